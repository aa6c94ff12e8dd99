// Package config loads the recognized configuration surface into a typed
// Config via viper, keeping an Extra catch-all holding every unrecognized
// key unchanged.
package config

import (
	"strings"

	"github.com/spf13/viper"

	"github.com/kcache/kawai/internal/kawaierr"
	"github.com/kcache/kawai/internal/registry"
)

// DefaultGroupID is used when no "<source>.group.id" key is configured.
const DefaultGroupID = "kawai-1"

// Config is the parsed, typed form of the recognized configuration surface.
type Config struct {
	Topics            []string
	SchemaRegistryURL string
	GroupID           string
	LogLevel          string
	MetricsListen     string

	KeySerdes   map[string]registry.Directive
	ValueSerdes map[string]registry.Directive

	// Extra holds every configured key this table doesn't recognize,
	// unchanged. The engine reads only kafka.bootstrap.servers from it (as
	// the log source's seed brokers); no other entry is passed to the log
	// source or registry clients.
	Extra map[string]string
}

// FromMap builds a Config directly from a parsed options map, the boundary
// the engine facade's Configure accepts (reading the map from disk is a
// CLI-layer concern, not this package's).
func FromMap(m map[string]any) (*Config, error) {
	v := viper.New()
	if err := v.MergeConfigMap(m); err != nil {
		return nil, kawaierr.New(kawaierr.KindConfig, "failed to load configuration map", err)
	}
	return Load(v)
}

// Load reads the recognized keys out of an already-populated viper instance
// (env-override-capable, file-backed, or otherwise).
func Load(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		GroupID:     DefaultGroupID,
		KeySerdes:   make(map[string]registry.Directive),
		ValueSerdes: make(map[string]registry.Directive),
		Extra:       make(map[string]string),
	}

	cfg.Topics = v.GetStringSlice("topics")
	if len(cfg.Topics) == 0 {
		return nil, kawaierr.New(kawaierr.KindConfig, "topics must list at least one topic", nil)
	}
	cfg.SchemaRegistryURL = v.GetString("schema.registry.url")
	cfg.LogLevel = v.GetString("log.level")
	cfg.MetricsListen = v.GetString("metrics.listen")

	if err := parseSerdeMap(v, "key.serdes", cfg.KeySerdes); err != nil {
		return nil, err
	}
	if err := parseSerdeMap(v, "value.serdes", cfg.ValueSerdes); err != nil {
		return nil, err
	}

	for _, key := range v.AllKeys() {
		if strings.HasSuffix(key, ".group.id") {
			if val := v.GetString(key); val != "" {
				cfg.GroupID = val
			}
		}
		if !isRecognized(key) {
			cfg.Extra[key] = v.GetString(key)
		}
	}

	return cfg, nil
}

func parseSerdeMap(v *viper.Viper, key string, out map[string]registry.Directive) error {
	raw := v.GetStringMapString(key)
	for topic, directiveText := range raw {
		d, err := registry.ParseDirective(directiveText)
		if err != nil {
			return err
		}
		out[topic] = d
	}
	return nil
}

// KeyDirective returns the configured key directive for topic, defaulting
// to binary when unconfigured.
func (c *Config) KeyDirective(topic string) registry.Directive {
	if d, ok := c.KeySerdes[topic]; ok {
		return d
	}
	d, _ := registry.ParseDirective("binary")
	return d
}

// ValueDirective returns the configured value directive for topic,
// defaulting to latest when unconfigured.
func (c *Config) ValueDirective(topic string) registry.Directive {
	if d, ok := c.ValueSerdes[topic]; ok {
		return d
	}
	d, _ := registry.ParseDirective("latest")
	return d
}

func isRecognized(key string) bool {
	switch key {
	case "topics", "schema.registry.url", "log.level", "metrics.listen":
		return true
	}
	if strings.HasPrefix(key, "key.serdes.") || strings.HasPrefix(key, "value.serdes.") {
		return true
	}
	return strings.HasSuffix(key, ".group.id")
}
