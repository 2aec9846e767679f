package registrar

import (
	"errors"
	"strings"

	"github.com/goliatone/go-assemble-njk/internal/optree"
	"github.com/goliatone/go-assemble-njk/pkg/app"
	"github.com/goliatone/go-assemble-njk/pkg/njk"
)

const (
	// DefaultName is the plugin name the host records on installation.
	DefaultName = "assemble-njk"
	// DefaultExtension is the file extension the engine is registered for.
	DefaultExtension = ".njk"

	// OptionEngine and OptionNunjucks may hold an Engine instance overriding
	// the default one. Non-Engine values under these keys are ignored.
	OptionEngine   = "engine"
	OptionNunjucks = "nunjucks"
)

var (
	ErrIncompatibleHost  = errors.New("registrar: host is not a compatible application")
	ErrAlreadyRegistered = errors.New("registrar: plugin already registered on host")
)

// Host is the capability contract an application must satisfy.
type Host interface {
	Kind() string
	Supports(capability string) bool
	IsRegistered(name string) bool
	Options() map[string]any
	Engine(ext string, engine app.Engine) error
	Methods() app.MethodSet
	Define(methods app.MethodSet)
}

// Engine is the engine contract the registrar wires into the host.
type Engine interface {
	app.Engine
	LazyConfigure(options map[string]any)
	AddFilter(name string, fn njk.FilterFunc) error
	AddFilters(fns map[string]njk.FilterFunc) error
	AsyncFilter(name string, fn njk.AsyncFilterFunc) error
	AsyncFilters(fns map[string]njk.AsyncFilterFunc) error
}

var (
	_ Host   = (*app.App)(nil)
	_ Engine = (*njk.Engine)(nil)
)

// Option customises a Registrar.
type Option func(*Registrar)

// WithConfig sets the caller configuration merged over the defaults.
func WithConfig(config map[string]any) Option {
	return func(r *Registrar) {
		r.config = optree.Clone(config)
	}
}

// WithDefaults supplies the defaults explicitly instead of reading the
// host's option store at install time.
func WithDefaults(defaults map[string]any) Option {
	return func(r *Registrar) {
		r.defaults = optree.Clone(defaults)
		r.hasDefaults = true
	}
}

// WithEngine sets the engine used when the options carry none.
func WithEngine(engine Engine) Option {
	return func(r *Registrar) {
		r.engine = engine
	}
}

// WithEngineFactory overrides how the default engine is built.
func WithEngineFactory(factory func() Engine) Option {
	return func(r *Registrar) {
		if factory != nil {
			r.factory = factory
		}
	}
}

// WithExtension overrides the extension the engine is registered for.
func WithExtension(ext string) Option {
	return func(r *Registrar) {
		if normalized := app.NormalizeExt(ext); normalized != "" {
			r.ext = normalized
		}
	}
}

// WithName overrides the plugin name recorded on the host.
func WithName(name string) Option {
	return func(r *Registrar) {
		if trimmed := strings.TrimSpace(name); trimmed != "" {
			r.name = trimmed
		}
	}
}

// WithStrict makes Install report incompatible hosts and repeated
// installation as errors instead of skipping silently.
func WithStrict() Option {
	return func(r *Registrar) {
		r.strict = true
	}
}

// Registrar wires an engine into hosts. One Registrar can install into any
// number of hosts; each installation resolves its own options and engine.
type Registrar struct {
	name        string
	ext         string
	config      map[string]any
	defaults    map[string]any
	hasDefaults bool
	engine      Engine
	factory     func() Engine
	strict      bool
}

// New constructs a Registrar.
func New(options ...Option) *Registrar {
	r := &Registrar{
		name:    DefaultName,
		ext:     DefaultExtension,
		factory: defaultEngine,
	}
	for _, opt := range options {
		if opt == nil {
			continue
		}
		opt(r)
	}
	return r
}

func defaultEngine() Engine {
	return njk.New()
}

// Plugin adapts Install to the host plugin signature.
func (r *Registrar) Plugin() app.Plugin {
	return func(a *app.App) error {
		return r.Install(a)
	}
}

// Validate checks the host kind and capabilities. It does not touch the
// host, so it can be called ahead of Install.
func (r *Registrar) Validate(host Host) error {
	if host == nil || host.Kind() != app.KindApp || !host.Supports(app.FeatureCollection) {
		return ErrIncompatibleHost
	}
	return nil
}

// releaser is implemented by hosts that can drop a plugin-name claim.
type releaser interface {
	Unregister(name string)
}

// Install wires the engine into host. A host that fails validation, or on
// which the plugin name is already claimed, is left untouched and Install
// returns nil unless the Registrar is strict. Errors from the host or the
// engine are returned as they are.
func (r *Registrar) Install(host Host) error {
	if err := r.Validate(host); err != nil {
		if r.strict {
			return err
		}
		return nil
	}

	defaults := r.defaults
	if !r.hasDefaults {
		defaults = host.Options()
	}
	options := MergeOptions(defaults, r.config)
	engine := r.resolveEngine(options)

	if host.IsRegistered(r.name) {
		if r.strict {
			return ErrAlreadyRegistered
		}
		return nil
	}

	engine.LazyConfigure(options)
	if err := host.Engine(r.ext, engine); err != nil {
		if rel, ok := host.(releaser); ok {
			rel.Unregister(r.name)
		}
		return err
	}

	host.Define(Redefine(host.Methods(), engine))
	return nil
}

// MergeOptions overlays config onto defaults into a new tree. Nested maps
// merge key by key; every other value, slices included, is replaced.
func MergeOptions(defaults, config map[string]any) map[string]any {
	return optree.Merge(defaults, config)
}

func (r *Registrar) resolveEngine(options map[string]any) Engine {
	for _, key := range []string{OptionEngine, OptionNunjucks} {
		if engine, ok := options[key].(Engine); ok && engine != nil {
			return engine
		}
	}
	if r.engine != nil {
		return r.engine
	}
	return r.factory()
}
