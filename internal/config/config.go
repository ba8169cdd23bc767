// Package config loads the optional YAML settings file. The file only carries
// ambient defaults (backend host, chunk size, metrics address, debug flag and
// an initial delay); the positional startup arguments and command line flags
// always win over it. The relay core itself never touches the filesystem.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

const DefaultChunkSize = 1024

type File struct {
	Host        string   `yaml:"host"`
	ChunkSize   int      `yaml:"chunk_size"`
	MetricsAddr string   `yaml:"metrics_addr"`
	Debug       bool     `yaml:"debug"`
	DelayMs     *float64 `yaml:"delay_ms"`
}

// Load reads and validates a settings file.
func Load(path string) (*File, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var f File
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	f.Normalize()
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

// Normalize fills defaults for omitted fields. It never rejects anything.
func (f *File) Normalize() {
	if f.Host == "" {
		f.Host = "127.0.0.1"
	}
	if f.ChunkSize == 0 {
		f.ChunkSize = DefaultChunkSize
	}
}

// Validate checks the normalized file. It MUST NOT mutate it.
func (f *File) Validate() error {
	if f.ChunkSize < 1 {
		return fmt.Errorf("chunk_size must be positive, got %d", f.ChunkSize)
	}
	if f.DelayMs != nil && *f.DelayMs < 0 {
		return fmt.Errorf("delay_ms must be non-negative, got %v", *f.DelayMs)
	}
	return nil
}
