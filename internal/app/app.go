package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"

	"go.opentelemetry.io/otel"
	"golang.org/x/sync/errgroup"

	"github.com/michaelt919/TES3MP/internal/authority"
	"github.com/michaelt919/TES3MP/internal/config"
	"github.com/michaelt919/TES3MP/internal/entity"
	servernet "github.com/michaelt919/TES3MP/internal/net"
	"github.com/michaelt919/TES3MP/internal/net/proto"
	"github.com/michaelt919/TES3MP/internal/net/router"
	"github.com/michaelt919/TES3MP/internal/net/ws"
	"github.com/michaelt919/TES3MP/internal/observability"
	"github.com/michaelt919/TES3MP/internal/peer"
	"github.com/michaelt919/TES3MP/internal/rng"
	"github.com/michaelt919/TES3MP/internal/scriptapi"
	"github.com/michaelt919/TES3MP/internal/telemetry"
	"github.com/michaelt919/TES3MP/logging"
	lognetwork "github.com/michaelt919/TES3MP/logging/network"
	loggingSinks "github.com/michaelt919/TES3MP/logging/sinks"
)

type Config struct {
	Logger telemetry.Logger
	// ConfigPath is the YAML file to load. Empty runs on defaults and the
	// environment.
	ConfigPath string
}

func Run(ctx context.Context, cfg Config) error {
	stdLogger := log.Default()
	telemetryLogger := cfg.Logger
	if telemetryLogger == nil {
		telemetryLogger = telemetry.WrapLogger(stdLogger)
	}

	settings, err := config.Load(cfg.ConfigPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logConfig := settings.LoggingRouterConfig()
	sinks, err := buildSinks(logConfig)
	if err != nil {
		return fmt.Errorf("failed to construct logging sinks: %w", err)
	}
	events, err := logging.NewRouter(nil, logConfig, sinks)
	if err != nil {
		return fmt.Errorf("failed to construct logging router: %w", err)
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), settings.ShutdownTimeout)
		defer cancel()
		if cerr := events.Close(closeCtx); cerr != nil {
			telemetryLogger.Printf("failed to close logging router: %v", cerr)
		}
	}()

	shutdownTracing, err := observability.Setup(ctx, settings.Observability, settings.Peer)
	if err != nil {
		return fmt.Errorf("failed to set up tracing: %w", err)
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), settings.ShutdownTimeout)
		defer cancel()
		if serr := shutdownTracing(closeCtx); serr != nil {
			telemetryLogger.Printf("failed to flush traces: %v", serr)
		}
	}()

	counters := telemetry.NewCounters()
	metrics := telemetry.Tee(counters, telemetry.NewOTelMetrics(otel.Meter(observability.InstrumentationName), telemetryLogger))

	sess := authority.NewSession(settings.Peer, authority.NewTable(),
		authority.WithRandom(rng.SeededFactory(settings.Seed)),
		authority.WithMonitor(peer.NewMonitor(events, metrics)),
	)

	codec, err := proto.NewCodec(proto.DefaultRegistry(),
		proto.WithCompressionThreshold(settings.CompressionThreshold),
		proto.WithValidation(settings.ValidatePayloads),
	)
	if err != nil {
		return fmt.Errorf("failed to build codec: %w", err)
	}
	defer codec.Close()

	packets, err := router.New(router.Config{
		Codec:        codec,
		Publisher:    events,
		Metrics:      metrics,
		LaneCapacity: settings.LaneCapacity,
	})
	if err != nil {
		return fmt.Errorf("failed to build router: %w", err)
	}

	store := entity.NewMemoryStore()
	local, err := peer.New(peer.Config{
		Session:   sess,
		Store:     store,
		Catalog:   &settings.Catalog,
		Router:    packets,
		Publisher: events,
		Metrics:   metrics,
		Settings:  settings.Combat,
		Tracer:    observability.Tracer(),
	})
	if err != nil {
		return fmt.Errorf("failed to build peer: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)

	transport := ws.NewTransport(ws.Config{
		Peer:     settings.Peer,
		Receiver: packets,
		Logger:   stdLogger,
		OnConnect: func(remote string) {
			if err := local.Connected(gctx, remote); err != nil {
				telemetryLogger.Printf("failed to greet peer %s: %v", remote, err)
			}
		},
		OnDisconnect: func(remote string) {
			local.Disconnected(gctx, remote, "connection closed")
		},
	})
	packets.SetTransport(transport)

	g.Go(func() error {
		return packets.Run(gctx)
	})

	for _, ec := range settings.Entities {
		if err := local.Spawn(gctx, ec.Build(), ec.Owner); err != nil {
			telemetryLogger.Printf("failed to spawn %s: %v", ec.ID, err)
		}
	}

	var srv *http.Server
	if settings.Listen != "" {
		handler := servernet.NewHTTPHandler(servernet.HTTPHandlerConfig{
			Peer:        local,
			Items:       scriptapi.NewItems(sess, store, local.Buffer()),
			Transport:   transport,
			Router:      packets,
			Counters:    counters,
			Logger:      stdLogger,
			EnablePprof: settings.Observability.EnablePprofTrace,
		})
		srv = &http.Server{Addr: settings.Listen, Handler: handler}
		g.Go(func() error {
			telemetryLogger.Printf("peer %s listening on %s", settings.Peer, srv.Addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("server failed: %w", err)
			}
			return nil
		})
	}

	for _, endpoint := range settings.Dial {
		g.Go(func() error {
			remote, err := transport.Dial(gctx, endpoint)
			if err != nil {
				lognetwork.DialFailed(gctx, events, logging.EntityRef{ID: settings.Peer, Kind: logging.EntityKindPeer}, lognetwork.DialPayload{Endpoint: endpoint, Reason: err.Error()}, nil)
				return nil
			}
			telemetryLogger.Printf("connected to peer %s at %s", remote, endpoint)
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), settings.ShutdownTimeout)
		defer cancel()
		if srv != nil {
			if err := srv.Shutdown(shutdownCtx); err != nil {
				telemetryLogger.Printf("http shutdown: %v", err)
			}
		}
		transport.Close()
		return nil
	})

	err = g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// buildSinks opens every sink named in cfg.EnabledSinks.
func buildSinks(cfg logging.Config) ([]logging.NamedSink, error) {
	var sinks []logging.NamedSink
	if cfg.HasSink("console") {
		sinks = append(sinks, logging.NamedSink{Name: "console", Sink: loggingSinks.NewConsoleSink(os.Stdout, cfg.Console)})
	}
	if cfg.HasSink("json") {
		out := os.Stdout
		if cfg.JSON.FilePath != "" {
			f, err := os.OpenFile(cfg.JSON.FilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
			if err != nil {
				return nil, fmt.Errorf("open json log: %w", err)
			}
			out = f
		}
		sinks = append(sinks, logging.NamedSink{Name: "json", Sink: loggingSinks.NewJSON(out, cfg.JSON)})
	}
	if cfg.HasSink("archive") {
		sinks = append(sinks, logging.NamedSink{Name: "archive", Sink: loggingSinks.NewArchive(cfg.Archive)})
	}
	if cfg.HasSink("audit") {
		audit, err := loggingSinks.OpenAudit(cfg.Audit)
		if err != nil {
			return nil, fmt.Errorf("open audit log: %w", err)
		}
		sinks = append(sinks, logging.NamedSink{Name: "audit", Sink: audit})
	}
	return sinks, nil
}
