// Package config loads host option trees from files and the environment.
//
// Sources are layered in order: defaults, then each file, then environment
// variables. Mappings merge recursively; other values are replaced.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// DefaultEnvPrefix selects the environment variables read by Load.
const DefaultEnvPrefix = "ASSEMBLE_"

var (
	// ErrUnsupportedFormat is returned for option files with an unknown extension.
	ErrUnsupportedFormat = errors.New("config: unsupported file format")
)

type loader struct {
	defaults  map[string]any
	files     []string
	envPrefix string
	useEnv    bool
}

// Option configures Load.
type Option func(*loader)

// WithDefaults seeds the lowest-priority layer.
func WithDefaults(defaults map[string]any) Option {
	return func(l *loader) {
		l.defaults = defaults
	}
}

// WithFiles appends option files. Later files win.
func WithFiles(paths ...string) Option {
	return func(l *loader) {
		for _, p := range paths {
			if strings.TrimSpace(p) != "" {
				l.files = append(l.files, p)
			}
		}
	}
}

// WithEnvPrefix changes the environment prefix. An empty prefix disables
// environment loading.
func WithEnvPrefix(prefix string) Option {
	return func(l *loader) {
		l.envPrefix = prefix
		l.useEnv = prefix != ""
	}
}

// WithoutEnv disables environment loading.
func WithoutEnv() Option {
	return func(l *loader) {
		l.useEnv = false
	}
}

// Load builds the merged option tree.
//
// Environment keys drop the prefix, nest on "__" and camel-case on "_":
// ASSEMBLE_TRIM_BLOCKS becomes trimBlocks, ASSEMBLE_DATA__SITE_NAME becomes
// data.siteName.
func Load(opts ...Option) (map[string]any, error) {
	l := &loader{envPrefix: DefaultEnvPrefix, useEnv: true}
	for _, opt := range opts {
		if opt != nil {
			opt(l)
		}
	}

	k := koanf.New(".")

	if len(l.defaults) > 0 {
		if err := k.Load(confmap.Provider(l.defaults, "."), nil); err != nil {
			return nil, fmt.Errorf("config: load defaults: %w", err)
		}
	}

	for _, path := range l.files {
		parser, err := parserFor(path)
		if err != nil {
			return nil, err
		}
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("config: %w", err)
		}
		if err := k.Load(file.Provider(path), parser); err != nil {
			return nil, fmt.Errorf("config: load %s: %w", path, err)
		}
	}

	if l.useEnv {
		prefix := l.envPrefix
		err := k.Load(env.Provider(prefix, ".", func(s string) string {
			return EnvKey(prefix, s)
		}), nil)
		if err != nil {
			return nil, fmt.Errorf("config: load env: %w", err)
		}
	}

	return k.Raw(), nil
}

func parserFor(path string) (koanf.Parser, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml", ".json":
		// JSON documents are valid YAML.
		return yaml.Parser(), nil
	case ".toml":
		return toml.Parser(), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}
}

// EnvKey maps an environment variable name to a dotted option key.
func EnvKey(prefix, name string) string {
	name = strings.TrimPrefix(name, prefix)
	parts := strings.Split(name, "__")
	for i, part := range parts {
		parts[i] = camel(part)
	}
	return strings.Join(parts, ".")
}

func camel(s string) string {
	words := strings.Split(strings.ToLower(s), "_")
	var b strings.Builder
	for _, w := range words {
		if w == "" {
			continue
		}
		if b.Len() == 0 {
			b.WriteString(w)
			continue
		}
		r := []rune(w)
		r[0] = unicode.ToUpper(r[0])
		b.WriteString(string(r))
	}
	return b.String()
}
