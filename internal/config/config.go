// Package config loads the peer configuration from a YAML file and overlays
// TES3MP_-prefixed environment variables on top.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/michaelt919/TES3MP/internal/entity"
	"github.com/michaelt919/TES3MP/internal/mechanics"
	"github.com/michaelt919/TES3MP/internal/net/lane"
	"github.com/michaelt919/TES3MP/internal/net/proto"
	"github.com/michaelt919/TES3MP/internal/observability"
	"github.com/michaelt919/TES3MP/logging"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "TES3MP_"

// ErrInvalidConfig wraps every validation failure.
var ErrInvalidConfig = errors.New("invalid config")

// Config is the full peer configuration.
type Config struct {
	// Peer is this peer's id. A random uuid is assigned when empty.
	Peer string `yaml:"peer" env:"PEER"`
	// Listen is the HTTP address serving /ws, /health and /diagnostics.
	// Empty disables the listener.
	Listen string `yaml:"listen" env:"LISTEN"`
	// Dial lists websocket endpoints of remote peers.
	Dial []string `yaml:"dial" env:"DIAL" envSeparator:","`
	// Seed is the session seed every per-action random source derives from.
	Seed uint64 `yaml:"seed" env:"SEED"`

	LaneCapacity         int  `yaml:"lane_capacity" env:"LANE_CAPACITY"`
	CompressionThreshold int  `yaml:"compression_threshold" env:"COMPRESSION_THRESHOLD"`
	ValidatePayloads     bool `yaml:"validate" env:"VALIDATE"`

	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT"`

	// CatalogPath points at a YAML record catalog merged over Catalog.
	CatalogPath string             `yaml:"catalog_path" env:"CATALOG_PATH"`
	Catalog     entity.Catalog     `yaml:"catalog"`
	Combat      mechanics.Settings `yaml:"combat"`
	Entities    []EntityConfig     `yaml:"entities"`

	Logging       LoggingConfig        `yaml:"logging" envPrefix:"LOG_"`
	Observability observability.Config `yaml:"observability" envPrefix:"OTEL_"`
}

// LoggingConfig selects the event sinks.
type LoggingConfig struct {
	Sinks        []string `yaml:"sinks" env:"SINKS" envSeparator:","`
	Severity     string   `yaml:"severity" env:"SEVERITY"`
	JSONPath     string   `yaml:"json_path" env:"JSON_PATH"`
	ArchiveDir   string   `yaml:"archive_dir" env:"ARCHIVE_DIR"`
	AuditPath    string   `yaml:"audit_path" env:"AUDIT_PATH"`
	AuditLevel   string   `yaml:"audit_severity" env:"AUDIT_SEVERITY"`
	BufferSize   int      `yaml:"buffer_size" env:"BUFFER_SIZE"`
	ConsoleColor bool     `yaml:"console_color" env:"CONSOLE_COLOR"`
}

// EntityConfig seeds one entity at startup. Owner defaults to this peer.
type EntityConfig struct {
	ID        string               `yaml:"id"`
	Class     string               `yaml:"class"`
	Variant   string               `yaml:"variant"`
	Owner     string               `yaml:"owner"`
	Position  [3]float32           `yaml:"position"`
	Heading   float32              `yaml:"heading"`
	Stats     entity.CreatureStats `yaml:"stats"`
	Inventory []ItemConfig         `yaml:"inventory"`
	Equipment map[int]ItemConfig   `yaml:"equipment"`
	Spell     string               `yaml:"spell"`
}

// ItemConfig is an item stack in YAML form.
type ItemConfig struct {
	RefID     string `yaml:"ref"`
	Count     uint32 `yaml:"count"`
	Condition *int32 `yaml:"condition"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	logCfg := logging.DefaultConfig()
	return Config{
		Listen:               ":25565",
		LaneCapacity:         lane.DefaultCapacity,
		CompressionThreshold: proto.DefaultCompressionThreshold,
		ValidatePayloads:     true,
		ShutdownTimeout:      5 * time.Second,
		Combat:               mechanics.DefaultSettings(),
		Logging: LoggingConfig{
			Sinks:      append([]string(nil), logCfg.EnabledSinks...),
			Severity:   logCfg.MinimumSeverity.String(),
			ArchiveDir: logCfg.Archive.Dir,
			AuditPath:  logCfg.Audit.Path,
			AuditLevel: logCfg.Audit.MinimumSeverity.String(),
			BufferSize: logCfg.BufferSize,
		},
		Observability: observability.DefaultConfig(),
	}
}

// Load reads path (when non-empty) over the defaults, then applies
// environment overrides and validates the result.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return cfg, err
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return cfg, fmt.Errorf("%s: %w", path, err)
		}
	}
	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return cfg, fmt.Errorf("parse env: %w", err)
	}
	if cfg.CatalogPath != "" {
		catalog, err := LoadCatalog(cfg.CatalogPath)
		if err != nil {
			return cfg, err
		}
		cfg.Catalog = mergeCatalog(cfg.Catalog, catalog)
	}
	if cfg.Peer == "" {
		cfg.Peer = uuid.NewString()
	}
	return cfg, cfg.Validate()
}

// LoadCatalog reads a standalone record catalog.
func LoadCatalog(path string) (entity.Catalog, error) {
	var catalog entity.Catalog
	raw, err := os.ReadFile(path)
	if err != nil {
		return catalog, err
	}
	if err := yaml.Unmarshal(raw, &catalog); err != nil {
		return catalog, fmt.Errorf("%s: %w", path, err)
	}
	return catalog, nil
}

// Validate checks values that cannot be defaulted.
func (c Config) Validate() error {
	if c.LaneCapacity <= 0 {
		return fmt.Errorf("lane_capacity %d: %w", c.LaneCapacity, ErrInvalidConfig)
	}
	if c.ShutdownTimeout <= 0 {
		return fmt.Errorf("shutdown_timeout %s: %w", c.ShutdownTimeout, ErrInvalidConfig)
	}
	if c.CompressionThreshold < 0 {
		return fmt.Errorf("compression_threshold %d: %w", c.CompressionThreshold, ErrInvalidConfig)
	}
	if c.Combat.BlockMinChance > c.Combat.BlockMaxChance {
		return fmt.Errorf("combat block chance range [%d, %d]: %w", c.Combat.BlockMinChance, c.Combat.BlockMaxChance, ErrInvalidConfig)
	}
	if _, err := logging.ParseSeverity(c.Logging.Severity); err != nil {
		return fmt.Errorf("logging.severity: %w", ErrInvalidConfig)
	}
	if _, err := logging.ParseSeverity(c.Logging.AuditLevel); err != nil {
		return fmt.Errorf("logging.audit_severity: %w", ErrInvalidConfig)
	}
	seen := make(map[string]struct{}, len(c.Entities))
	for i, e := range c.Entities {
		if e.ID == "" {
			return fmt.Errorf("entities[%d]: empty id: %w", i, ErrInvalidConfig)
		}
		if _, dup := seen[e.ID]; dup {
			return fmt.Errorf("entities[%d]: duplicate id %q: %w", i, e.ID, ErrInvalidConfig)
		}
		seen[e.ID] = struct{}{}
		if _, ok := proto.ParseClass(e.Class); !ok {
			return fmt.Errorf("entities[%d]: class %q: %w", i, e.Class, ErrInvalidConfig)
		}
		if _, ok := parseVariant(e.Variant); !ok {
			return fmt.Errorf("entities[%d]: variant %q: %w", i, e.Variant, ErrInvalidConfig)
		}
		for slot := range e.Equipment {
			if slot < 0 || slot >= entity.MaxSlots {
				return fmt.Errorf("entities[%d]: equipment slot %d: %w", i, slot, ErrInvalidConfig)
			}
		}
	}
	return nil
}

// LoggingRouterConfig maps the YAML logging block onto the router config.
func (c Config) LoggingRouterConfig() logging.Config {
	out := logging.DefaultConfig()
	out.Peer = c.Peer
	if len(c.Logging.Sinks) > 0 {
		out.EnabledSinks = append([]string(nil), c.Logging.Sinks...)
	}
	if sev, err := logging.ParseSeverity(c.Logging.Severity); err == nil {
		out.MinimumSeverity = sev
	}
	if c.Logging.BufferSize > 0 {
		out.BufferSize = c.Logging.BufferSize
	}
	out.Console.UseColor = c.Logging.ConsoleColor
	out.JSON.FilePath = c.Logging.JSONPath
	if c.Logging.ArchiveDir != "" {
		out.Archive.Dir = c.Logging.ArchiveDir
	}
	if c.Logging.AuditPath != "" {
		out.Audit.Path = c.Logging.AuditPath
	}
	if sev, err := logging.ParseSeverity(c.Logging.AuditLevel); err == nil {
		out.Audit.MinimumSeverity = sev
	}
	return out
}

// Build returns the entity described by e. Owner resolution is left to the
// caller.
func (e EntityConfig) Build() entity.Entity {
	class, _ := proto.ParseClass(e.Class)
	variant, _ := parseVariant(e.Variant)
	out := entity.Entity{
		ID:            e.ID,
		Class:         class,
		Variant:       variant,
		Position:      mgl32.Vec3(e.Position),
		Heading:       e.Heading,
		Stats:         e.Stats,
		SelectedSpell: e.Spell,
		UsesWeapons:   variant == entity.VariantCreature && len(e.Equipment) > 0,
	}
	for _, item := range e.Inventory {
		out.Inventory = out.Inventory.Add(item.Stack())
	}
	for slot, item := range e.Equipment {
		out.Equipment.Set(slot, item.Stack())
	}
	return out
}

// Stack converts the YAML form; count defaults to one and condition to unset.
func (i ItemConfig) Stack() entity.ItemStack {
	stack := entity.ItemStack{RefID: i.RefID, Count: i.Count, Condition: entity.ConditionUnset}
	if stack.Count == 0 {
		stack.Count = 1
	}
	if i.Condition != nil {
		stack.Condition = *i.Condition
	}
	return stack
}

func parseVariant(name string) (entity.Variant, bool) {
	switch strings.ToLower(name) {
	case "", "npc":
		return entity.VariantNPC, true
	case "creature":
		return entity.VariantCreature, true
	case "container":
		return entity.VariantContainer, true
	default:
		return 0, false
	}
}

func mergeCatalog(base, overlay entity.Catalog) entity.Catalog {
	base.Weapons = mergeMap(base.Weapons, overlay.Weapons)
	base.Armor = mergeMap(base.Armor, overlay.Armor)
	base.Enchantments = mergeMap(base.Enchantments, overlay.Enchantments)
	base.Spells = mergeMap(base.Spells, overlay.Spells)
	return base
}

func mergeMap[V any](base, overlay map[string]V) map[string]V {
	if len(overlay) == 0 {
		return base
	}
	if base == nil {
		base = make(map[string]V, len(overlay))
	}
	for k, v := range overlay {
		base[k] = v
	}
	return base
}
