package app

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/goliatone/go-assemble-njk/internal/optree"
)

const defaultName = "app"

// Option configures an App before construction.
type Option func(*config)

type config struct {
	name      string
	kind      string
	features  []string
	options   map[string]any
	logger    *zerolog.Logger
	layoutTag string
}

// WithName sets the application name used in log lines.
func WithName(name string) Option {
	return func(cfg *config) {
		if trimmed := strings.TrimSpace(name); trimmed != "" {
			cfg.name = trimmed
		}
	}
}

// WithKind overrides the application-kind marker reported by Kind.
func WithKind(kind string) Option {
	return func(cfg *config) {
		cfg.kind = strings.TrimSpace(kind)
	}
}

// WithFeatures replaces the declared feature set. Passing no features yields
// an application that supports nothing optional.
func WithFeatures(features ...string) Option {
	return func(cfg *config) {
		cfg.features = append([]string{}, features...)
	}
}

// WithOptions seeds the option store. Later calls merge over earlier ones.
func WithOptions(options map[string]any) Option {
	return func(cfg *config) {
		cfg.options = optree.Merge(cfg.options, options)
	}
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(logger zerolog.Logger) Option {
	return func(cfg *config) {
		cfg.logger = &logger
	}
}

// WithLayoutTag overrides the marker replaced by page content in layouts.
func WithLayoutTag(tag string) Option {
	return func(cfg *config) {
		if tag != "" {
			cfg.layoutTag = tag
		}
	}
}

// App is a pluggable site application.
type App struct {
	mu sync.RWMutex

	name       string
	kind       string
	features   map[string]struct{}
	options    map[string]any
	engines    *Engines
	colls      map[string]*Collection
	collOrder  []string
	helpers    *helperRegistry
	methods    MethodSet
	registered map[string]struct{}
	layoutTag  string
	logger     zerolog.Logger
}

// New constructs an App. Without options it identifies as KindApp and
// supports collections, layouts and helpers.
func New(options ...Option) *App {
	cfg := &config{
		name:      defaultName,
		kind:      KindApp,
		features:  []string{FeatureCollection, FeatureLayout, FeatureHelper},
		layoutTag: DefaultLayoutTag,
	}
	for _, opt := range options {
		if opt == nil {
			continue
		}
		opt(cfg)
	}

	logger := zerolog.Nop()
	if cfg.logger != nil {
		logger = *cfg.logger
	}

	a := &App{
		name:       cfg.name,
		kind:       cfg.kind,
		features:   make(map[string]struct{}, len(cfg.features)),
		options:    optree.Merge(cfg.options),
		engines:    NewEngines(),
		colls:      make(map[string]*Collection),
		helpers:    newHelperRegistry(),
		registered: make(map[string]struct{}),
		layoutTag:  cfg.layoutTag,
		logger:     logger.With().Str("app", cfg.name).Logger(),
	}
	for _, feature := range cfg.features {
		if trimmed := strings.TrimSpace(feature); trimmed != "" {
			a.features[trimmed] = struct{}{}
		}
	}
	if a.Supports(FeatureHelper) {
		a.methods = MethodSet{
			Helpers:      a.helpers.addAll,
			Helper:       a.helpers.add,
			AsyncHelpers: a.helpers.addAllAsync,
			AsyncHelper:  a.helpers.addAsync,
		}
	}
	return a
}

// Name returns the application name.
func (a *App) Name() string { return a.name }

// Kind returns the application-kind marker.
func (a *App) Kind() string { return a.kind }

// Supports reports whether the application declares a feature.
func (a *App) Supports(feature string) bool {
	_, ok := a.features[feature]
	return ok
}

// Logger returns the application logger.
func (a *App) Logger() zerolog.Logger { return a.logger }

// IsRegistered marks a plugin name as installed and reports whether it had
// already been marked. The first call for a name returns false.
func (a *App) IsRegistered(name string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	if _, ok := a.registered[name]; ok {
		return true
	}
	a.registered[name] = struct{}{}
	return false
}

// Unregister drops a plugin-name claim made through IsRegistered, so a
// plugin whose installation failed can be installed again.
func (a *App) Unregister(name string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.registered, name)
}

// Use runs plugins in order, stopping at the first error.
func (a *App) Use(plugins ...Plugin) error {
	for i, plugin := range plugins {
		if plugin == nil {
			continue
		}
		if err := plugin(a); err != nil {
			return fmt.Errorf("app: plugin %d: %w", i, err)
		}
	}
	return nil
}

// Option sets a value in the option store. Dotted keys address nested
// options, so "data.site.title" lands under data → site.
func (a *App) Option(key string, value any) {
	a.mu.Lock()
	defer a.mu.Unlock()
	optree.Set(a.options, key, value)
}

// OptionValue reads an option by dotted key, returning nil when unset.
func (a *App) OptionValue(key string) any {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return optree.Get(a.options, key)
}

// LoadOptions merges a whole option tree over the current store.
func (a *App) LoadOptions(options map[string]any) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.options = optree.Merge(a.options, options)
}

// Options returns a snapshot of the option store. Mutating it does not affect
// the application.
func (a *App) Options() map[string]any {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return optree.Clone(a.options)
}

// Engine registers a render engine for a file extension.
func (a *App) Engine(ext string, engine Engine) error {
	if err := a.engines.Register(ext, engine); err != nil {
		return err
	}
	a.logger.Debug().Str("ext", NormalizeExt(ext)).Msg("engine registered")
	return nil
}

// EngineFor returns the engine registered for ext.
func (a *App) EngineFor(ext string) (Engine, error) {
	return a.engines.Get(ext)
}

// Engines returns the engine registry.
func (a *App) Engines() *Engines { return a.engines }

// Create adds a named view collection.
func (a *App) Create(name string, opts ...CollectionOption) (*Collection, error) {
	if !a.Supports(FeatureCollection) {
		return nil, fmt.Errorf("%w: %s", ErrUnsupported, FeatureCollection)
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("app: collection name is required")
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if _, exists := a.colls[name]; exists {
		return nil, fmt.Errorf("%w: %q", ErrCollectionExists, name)
	}
	c := newCollection(name, opts...)
	a.colls[name] = c
	a.collOrder = append(a.collOrder, name)

	a.logger.Debug().Str("collection", name).Str("kind", string(c.kind)).Msg("collection created")
	return c, nil
}

// Collection returns a collection by name.
func (a *App) Collection(name string) (*Collection, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	c, ok := a.colls[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrCollectionMissing, name)
	}
	return c, nil
}

// Collections returns collection names sorted alphabetically.
func (a *App) Collections() []string {
	a.mu.RLock()
	defer a.mu.RUnlock()

	names := append([]string{}, a.collOrder...)
	sort.Strings(names)
	return names
}

// FindView searches collections of the given kinds, in creation order.
func (a *App) FindView(key string, kinds ...ViewKind) (*View, bool) {
	a.mu.RLock()
	colls := make([]*Collection, 0, len(a.collOrder))
	for _, name := range a.collOrder {
		colls = append(colls, a.colls[name])
	}
	a.mu.RUnlock()

	for _, c := range colls {
		if len(kinds) > 0 && !containsKind(kinds, c.kind) {
			continue
		}
		if v, ok := c.Get(key); ok {
			return v, true
		}
	}
	return nil, false
}

func containsKind(kinds []ViewKind, kind ViewKind) bool {
	for _, k := range kinds {
		if k == kind {
			return true
		}
	}
	return false
}

// HasHelper reports whether a synchronous helper is in the host registry.
func (a *App) HasHelper(name string) bool {
	_, ok := a.helpers.get(name)
	return ok
}

// HasAsyncHelper reports whether an async helper is in the host registry.
func (a *App) HasAsyncHelper(name string) bool {
	_, ok := a.helpers.getAsync(name)
	return ok
}

// HelperNames lists every helper in the host registry.
func (a *App) HelperNames() []string {
	return a.helpers.names()
}

// LookupHelper returns a synchronous helper from the host registry.
func (a *App) LookupHelper(name string) (HelperFunc, bool) {
	return a.helpers.get(name)
}
