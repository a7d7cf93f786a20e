package observability

// Config captures opt-in observability toggles that wire into the peer.
type Config struct {
	// EnablePprofTrace mounts net/http/pprof under /debug/pprof/.
	EnablePprofTrace bool `yaml:"pprof" env:"PPROF"`
	// Endpoint is the OTLP HTTP collector URL. Tracing stays off when empty.
	Endpoint    string `yaml:"otlp_endpoint" env:"OTLP_ENDPOINT"`
	ServiceName string `yaml:"service_name" env:"SERVICE_NAME"`
	// SampleRatio below 1 enables ratio based sampling of root spans.
	SampleRatio float64 `yaml:"sample_ratio" env:"SAMPLE_RATIO"`
}

// DefaultConfig returns tracing disabled and full sampling once enabled.
func DefaultConfig() Config {
	return Config{
		ServiceName: "tes3mp-peer",
		SampleRatio: 1,
	}
}

// TracingEnabled reports whether Setup will install an exporter.
func (c Config) TracingEnabled() bool {
	return c.Endpoint != ""
}
