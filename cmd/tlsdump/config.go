package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

const defaultMaxInput = 16 << 20

type fileConfig struct {
	Schema   string `toml:"schema"`
	Type     string `toml:"type"`
	Format   string `toml:"format"`
	Out      string `toml:"out"`
	Zstd     bool   `toml:"zstd"`
	MaxInput int64  `toml:"max_input"`
}

type options struct {
	Schema   string
	Type     string
	In       string
	Format   string // input encoding of wire bytes: bin or hex
	Out      string // yaml, json, hex or bin
	Zstd     bool
	MaxInput int64
}

func defaultOptions() options {
	return options{Format: "bin", Out: "yaml", MaxInput: defaultMaxInput}
}

// loadConfig applies the keys defined in a TOML file on top of opts. A
// relative schema path is resolved against the config file's directory.
func loadConfig(path string, opts *options) error {
	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return fmt.Errorf("load tlsdump config: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return fmt.Errorf("load tlsdump config: unknown key %q", undecoded[0].String())
	}

	if meta.IsDefined("schema") {
		p := strings.TrimSpace(raw.Schema)
		if p != "" && !filepath.IsAbs(p) {
			p = filepath.Join(filepath.Dir(path), p)
		}
		opts.Schema = p
	}
	if meta.IsDefined("type") {
		opts.Type = strings.TrimSpace(raw.Type)
	}
	if meta.IsDefined("format") {
		opts.Format = strings.ToLower(strings.TrimSpace(raw.Format))
	}
	if meta.IsDefined("out") {
		opts.Out = strings.ToLower(strings.TrimSpace(raw.Out))
	}
	if meta.IsDefined("zstd") {
		opts.Zstd = raw.Zstd
	}
	if meta.IsDefined("max_input") {
		if raw.MaxInput <= 0 {
			return fmt.Errorf("parse max_input: must be positive, got %d", raw.MaxInput)
		}
		opts.MaxInput = raw.MaxInput
	}
	return nil
}

func (o options) validate() error {
	switch o.Format {
	case "bin", "hex":
	default:
		return fmt.Errorf("unknown input format %q (want bin or hex)", o.Format)
	}
	switch o.Out {
	case "yaml", "json", "hex", "bin":
	default:
		return fmt.Errorf("unknown output format %q (want yaml, json, hex or bin)", o.Out)
	}
	if o.Schema == "" {
		return fmt.Errorf("no schema given")
	}
	return nil
}
