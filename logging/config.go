package logging

import "time"

type Config struct {
	// Peer stamps every event that does not name its own peer.
	Peer             string
	EnabledSinks     []string
	BufferSize       int
	MinimumSeverity  Severity
	Fields           map[string]any
	JSON             JSONConfig
	Console          ConsoleConfig
	Archive          ArchiveConfig
	Audit            AuditConfig
	DropWarnInterval time.Duration
}

type JSONConfig struct {
	FilePath      string
	MaxBatch      int
	FlushInterval time.Duration
}

type ConsoleConfig struct {
	UseColor bool
}

// ArchiveConfig configures the hourly rotated zstd JSONL archive.
type ArchiveConfig struct {
	Dir    string
	Prefix string
}

// AuditConfig configures the sqlite audit sink. Only events at or above
// MinimumSeverity are stored.
type AuditConfig struct {
	Path            string
	MinimumSeverity Severity
}

func DefaultConfig() Config {
	return Config{
		EnabledSinks:     []string{"console"},
		BufferSize:       512,
		MinimumSeverity:  SeverityInfo,
		DropWarnInterval: 5 * time.Second,
		JSON: JSONConfig{
			MaxBatch:      32,
			FlushInterval: 2 * time.Second,
		},
		Archive: ArchiveConfig{
			Dir:    "data/events",
			Prefix: "events",
		},
		Audit: AuditConfig{
			Path:            "data/audit.db",
			MinimumSeverity: SeverityWarn,
		},
	}
}

func (c Config) HasSink(name string) bool {
	for _, s := range c.EnabledSinks {
		if s == name {
			return true
		}
	}
	return false
}

func (c Config) CloneFields() map[string]any {
	if len(c.Fields) == 0 {
		return nil
	}
	cloned := make(map[string]any, len(c.Fields))
	for k, v := range c.Fields {
		cloned[k] = v
	}
	return cloned
}
