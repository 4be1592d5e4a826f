package config

import (
	"errors"
	"fmt"
	"os"

	"dario.cat/mergo"
	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v11"
)

// Load reads the environment, the optional CONFIG_FILE and the defaults,
// merges them and validates the result.
func Load() (*Config, error) {
	return newBuilder().
		withEnv().
		withFile().
		withDefaults().
		build()
}

// builder collects layers in priority order. Errors are joined so a single
// run reports every broken source.
type builder struct {
	layers []*Config
	err    error
}

func newBuilder() *builder {
	return &builder{layers: make([]*Config, 0, 3)}
}

func (b *builder) withEnv() *builder {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		b.err = errors.Join(b.err, fmt.Errorf("parsing environment: %w", err))
		return b
	}
	b.layers = append(b.layers, cfg)
	return b
}

// withFile decodes the TOML file named by the first layer that set
// FilePath. A missing path is not an error; a named but unreadable file is.
func (b *builder) withFile() *builder {
	var path string
	for _, layer := range b.layers {
		if layer.FilePath != "" {
			path = layer.FilePath
			break
		}
	}
	if path == "" {
		return b
	}

	cfg, err := parseFile(path)
	if err != nil {
		b.err = errors.Join(b.err, err)
		return b
	}
	b.layers = append(b.layers, cfg)
	return b
}

func (b *builder) withDefaults() *builder {
	b.layers = append(b.layers, Defaults())
	return b
}

func (b *builder) build() (*Config, error) {
	if b.err != nil {
		return nil, fmt.Errorf("loading config: %w", b.err)
	}

	cfg := new(Config)
	for _, layer := range b.layers {
		if err := mergo.Merge(cfg, layer); err != nil {
			return nil, fmt.Errorf("merging config: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func parseFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file %s: %w", path, err)
	}

	cfg := &Config{}
	if _, err := toml.Decode(string(data), cfg); err != nil {
		return nil, fmt.Errorf("decoding config file %s: %w", path, err)
	}
	return cfg, nil
}
