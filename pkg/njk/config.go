package njk

import (
	"fmt"
	"maps"
	"time"

	"github.com/go-viper/mapstructure/v2"
)

// DefaultAsyncTimeout bounds how long a render waits on an async filter.
const DefaultAsyncTimeout = 30 * time.Second

// Config is the typed view of the option map handed to LazyConfigure. Keys
// not listed here are ignored.
type Config struct {
	// SearchPaths are directories consulted by RenderFile, include, extends
	// and import. A comma separated string is accepted.
	SearchPaths []string `mapstructure:"searchPaths"`
	// TrimBlocks removes the first newline after a block tag.
	TrimBlocks bool `mapstructure:"trimBlocks"`
	// LStripBlocks strips whitespace before a block tag on its line.
	LStripBlocks bool `mapstructure:"lstripBlocks"`
	// Debug disables pongo2's own template caching.
	Debug bool `mapstructure:"debug"`
	// Globals are visible to every template rendered by the engine.
	Globals map[string]any `mapstructure:"globals"`
	// AsyncTimeout accepts durations such as "5s".
	AsyncTimeout time.Duration `mapstructure:"asyncTimeout"`
	// Sanitize registers the "sanitize" filter (bluemonday UGC policy).
	Sanitize bool `mapstructure:"sanitize"`
}

// DefaultConfig returns the configuration used when no options are given.
func DefaultConfig() Config {
	return Config{
		AsyncTimeout: DefaultAsyncTimeout,
	}
}

// DecodeConfig overlays options onto base. Strings are weakly converted, so
// "true", "5s" and "a,b" decode into bool, duration and slice fields.
func DecodeConfig(base Config, options map[string]any) (Config, error) {
	cfg := base
	if base.Globals != nil {
		cfg.Globals = maps.Clone(base.Globals)
	}
	if len(options) == 0 {
		return cfg, nil
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &cfg,
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
	})
	if err != nil {
		return base, fmt.Errorf("njk: config decoder: %w", err)
	}
	if err := decoder.Decode(options); err != nil {
		return base, fmt.Errorf("njk: decode config: %w", err)
	}
	if cfg.AsyncTimeout <= 0 {
		cfg.AsyncTimeout = DefaultAsyncTimeout
	}
	return cfg, nil
}
