package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/michaelt919/TES3MP/internal/app"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", os.Getenv("TES3MP_CONFIG"), "path to the peer YAML config")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := app.Run(ctx, app.Config{ConfigPath: configPath}); err != nil {
		log.Fatalf("%v", err)
	}
}
