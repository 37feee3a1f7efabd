// Package config loads the bridge configuration: a YAML file merged with
// ESBRIDGE__ environment overrides, then defaulted and validated.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"esbridge/internal/backend"
	"esbridge/internal/bus"
	"esbridge/source/kafka"
)

const (
	SupportedSchema = "v1"

	// EnvPrefix and EnvDelimiter shape override variables, e.g.
	// ESBRIDGE__GENERAL__SERVICE_UNIQUE_ID.
	EnvPrefix    = "ESBRIDGE__"
	EnvDelimiter = "__"
)

type General struct {
	APINames                []string `koanf:"api_names"`
	ServiceTopic            string   `koanf:"service_topic"`
	ServiceUniqueID         string   `koanf:"service_unique_id"`
	ReloadTransformOnChange bool     `koanf:"reload_transform_scripts_on_change"`
	ReplyTopic              string   `koanf:"reply_topic"` // used by the request client
}

// EventGroup binds a set of topics to one destination index.
type EventGroup struct {
	Topics          []string `koanf:"topics"`
	DocumentIndex   string   `koanf:"document_index"`
	DocumentType    string   `koanf:"document_type"`
	IDFieldName     string   `koanf:"id_field_name"`
	TransformScript string   `koanf:"transform_script"`
}

type Responses struct {
	Driver string `koanf:"driver"` // kafka|stdout
}

type Telemetry struct {
	MetricsPort int `koanf:"metrics_port"` // 0 disables /metrics
}

type Transport struct {
	GRPCPort int `koanf:"grpc_port"` // 0 disables the health server
}

type Config struct {
	SchemaVersion string                `koanf:"schema_version"`
	General       General               `koanf:"general"`
	Servers       []backend.Server      `koanf:"servers"`
	EventGroups   map[string]EventGroup `koanf:"event_groups"`
	Kafka         kafka.Config          `koanf:"kafka"`
	Responses     Responses             `koanf:"responses"`
	Telemetry     Telemetry             `koanf:"telemetry"`
	Transport     Transport             `koanf:"transport"`

	// Dir is the directory relative paths were resolved against.
	Dir string `koanf:"-"`
}

// Load merges the YAML file at path with environment overrides and validates
// the result. Relative file paths are resolved against the file's directory.
func Load(path string) (Config, error) {
	cfg, err := read(path)
	if err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

// LoadBus is Load for bus clients: only the general and kafka sections are
// validated.
func LoadBus(path string) (Config, error) {
	cfg, err := read(path)
	if err != nil {
		return cfg, err
	}
	return cfg, cfg.Kafka.Validate()
}

func read(path string) (Config, error) {
	k := koanf.New(".")
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return Config{}, fmt.Errorf("config: %w", err)
		}
	}
	sv := k.String("schema_version")
	if sv != "" && sv != SupportedSchema {
		return Config{}, fmt.Errorf("config: schema_version %q not supported (want %s)", sv, SupportedSchema)
	}

	if err := k.Load(env.Provider(EnvPrefix, EnvDelimiter, envKey), nil); err != nil {
		return Config{}, fmt.Errorf("config: env: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return cfg, fmt.Errorf("config: %w", err)
	}
	cfg.Dir = "."
	if path != "" {
		cfg.Dir = filepath.Dir(path)
	}
	applyDefaults(&cfg)
	resolvePaths(&cfg)
	return cfg, nil
}

func envKey(s string) string {
	return strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
}

func applyDefaults(c *Config) {
	if c.SchemaVersion == "" {
		c.SchemaVersion = SupportedSchema
	}
	if c.General.ServiceTopic == "" {
		c.General.ServiceTopic = bus.DefaultServiceTopic
	}
	if c.General.ReplyTopic == "" {
		c.General.ReplyTopic = c.General.ServiceTopic + ".replies"
	}
	if c.Responses.Driver == "" {
		c.Responses.Driver = "kafka"
	}
	kafka.ApplyDefaults(&c.Kafka)
}

func resolvePaths(c *Config) {
	abs := func(p string) string {
		if p == "" || filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(c.Dir, p)
	}
	for name, g := range c.EventGroups {
		g.TransformScript = abs(g.TransformScript)
		c.EventGroups[name] = g
	}
	for i := range c.Servers {
		s := &c.Servers[i]
		s.VerifyCertBundle = abs(s.VerifyCertBundle)
		s.ClientCertificate = abs(s.ClientCertificate)
		s.ClientKey = abs(s.ClientKey)
	}
}

// Validate reports every problem found, one per line.
func (c Config) Validate() error {
	var errs []error
	if len(c.Servers) == 0 {
		errs = append(errs, errors.New("servers: at least one server is required"))
	}
	for i, s := range c.Servers {
		if err := s.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("servers[%d]: %w", i, err))
		}
		for _, p := range []string{s.VerifyCertBundle, s.ClientCertificate, s.ClientKey} {
			if err := mustExist(p); err != nil {
				errs = append(errs, fmt.Errorf("servers[%d]: %w", i, err))
			}
		}
	}

	for _, name := range c.GroupNames() {
		g := c.EventGroups[name]
		if len(g.Topics) == 0 {
			errs = append(errs, fmt.Errorf("event_groups.%s: topics are required", name))
		}
		if g.DocumentIndex == "" {
			errs = append(errs, fmt.Errorf("event_groups.%s: document_index is required", name))
		}
		if g.DocumentType == "" {
			errs = append(errs, fmt.Errorf("event_groups.%s: document_type is required", name))
		}
		if err := mustExist(g.TransformScript); err != nil {
			errs = append(errs, fmt.Errorf("event_groups.%s: %w", name, err))
		}
	}

	if strings.TrimSpace(c.General.ServiceTopic) == "" {
		errs = append(errs, errors.New("general.service_topic must not be blank"))
	}
	switch c.Responses.Driver {
	case "kafka", "stdout":
	default:
		errs = append(errs, fmt.Errorf("responses.driver %q not supported (want kafka or stdout)", c.Responses.Driver))
	}
	if err := c.Kafka.Validate(); err != nil {
		errs = append(errs, err)
	}
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("config: %w", errors.Join(errs...))
}

// GroupNames lists event groups in a stable order.
func (c Config) GroupNames() []string {
	names := make([]string, 0, len(c.EventGroups))
	for n := range c.EventGroups {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func mustExist(path string) error {
	if path == "" {
		return nil
	}
	st, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("file %s: %w", path, err)
	}
	if st.IsDir() {
		return fmt.Errorf("file %s is a directory", path)
	}
	return nil
}
