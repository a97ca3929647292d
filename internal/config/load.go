package config

import (
	"fmt"
	"os"
	"strings"

	_ "github.com/joho/godotenv/autoload"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	env "github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const (
	envPrefix     = "APP_"
	envConfigFile = "APP_CONFIG_FILE"
)

// Option configures Load.
type Option func(*loadOptions)

type loadOptions struct {
	file string
}

// WithFile sets the YAML file layered over the defaults. It takes precedence
// over APP_CONFIG_FILE.
func WithFile(path string) Option {
	return func(o *loadOptions) {
		o.file = path
	}
}

// Load builds the configuration (highest precedence last):
//
//  1. Built-in defaults
//  2. YAML file, when one is given
//  3. Environment variables with the APP_ prefix
//
// Environment keys are matched against the known keys so that underscores
// inside a field name survive:
//
//	APP_SERVER_PORT          -> server.port
//	APP_DATABASE_MAX_OPEN_CONNS -> database.max_open_conns
//	APP_STORAGE_S3_BUCKET    -> storage.s3.bucket
//
// Keys holding a list take a comma-separated value:
//
//	APP_SERVER_ALLOWED_ORIGINS=https://a.example,https://b.example
func Load(opts ...Option) (*Config, error) {
	o := &loadOptions{file: os.Getenv(envConfigFile)}
	for _, opt := range opts {
		opt(o)
	}

	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("loading defaults: %w", err)
	}

	if o.file != "" {
		if err := k.Load(file.Provider(o.file), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("loading config file %s: %w", o.file, err)
		}
	}

	envLookup := buildEnvLookup(k.Keys())
	if err := k.Load(env.Provider(".", env.Opt{
		Prefix: envPrefix,
		TransformFunc: func(key, value string) (string, any) {
			key = strings.ToLower(strings.TrimPrefix(key, envPrefix))
			if koanfKey, ok := envLookup[key]; ok {
				if isList(k.Get(koanfKey)) {
					return koanfKey, splitList(value)
				}
				return koanfKey, value
			}
			return strings.ReplaceAll(key, "_", "."), value
		},
	}), nil); err != nil {
		return nil, fmt.Errorf("loading env vars: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// buildEnvLookup maps env-style keys (server_read_timeout) to koanf keys
// (server.read_timeout).
func buildEnvLookup(keys []string) map[string]string {
	lookup := make(map[string]string, len(keys))
	for _, key := range keys {
		lookup[strings.ReplaceAll(key, ".", "_")] = key
	}
	return lookup
}

func isList(v any) bool {
	switch v.(type) {
	case []string, []any:
		return true
	}
	return false
}

// splitList splits a comma-separated env value, dropping blank entries.
func splitList(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
