package njk

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"sort"
	"strings"
	"sync"

	"github.com/flosch/pongo2/v6"
	"github.com/rs/zerolog"

	"github.com/goliatone/go-assemble-njk/internal/optree"
)

// Name is the engine name, also used as its default file extension.
const Name = "njk"

// Option configures an Engine before construction.
type Option func(*Engine)

// WithFS adds an fs.FS loader consulted after SearchPaths.
func WithFS(files fs.FS) Option {
	return func(e *Engine) {
		e.fsys = files
	}
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(logger zerolog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithConfig sets the base configuration that LazyConfigure options are
// decoded over.
func WithConfig(cfg Config) Option {
	return func(e *Engine) {
		e.base = cfg
	}
}

// Engine renders Nunjucks-style templates with pongo2. The zero value is not
// usable; construct with New.
type Engine struct {
	mu sync.RWMutex

	base    Config
	cfg     Config
	pending map[string]any
	dirty   bool

	fsys        fs.FS
	templateSet *pongo2.TemplateSet
	templates   map[string]*pongo2.Template
	// generation is the filter registry generation templateSet was built at.
	generation uint64

	filters      map[string]FilterFunc
	asyncFilters map[string]AsyncFilterFunc

	logger zerolog.Logger
}

// New constructs an unconfigured Engine. Nothing is loaded until the first
// render.
func New(options ...Option) *Engine {
	e := &Engine{
		base:         DefaultConfig(),
		dirty:        true,
		templates:    make(map[string]*pongo2.Template),
		filters:      make(map[string]FilterFunc),
		asyncFilters: make(map[string]AsyncFilterFunc),
		logger:       zerolog.Nop(),
	}
	for _, opt := range options {
		if opt == nil {
			continue
		}
		opt(e)
	}
	e.cfg = e.base
	return e
}

// Name returns the engine name.
func (e *Engine) Name() string { return Name }

// LazyConfigure records options for the next render. Calling it again
// replaces the recorded options and forces the template set to be rebuilt.
func (e *Engine) LazyConfigure(options map[string]any) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.pending = optree.Clone(options)
	e.dirty = true
}

// Configured reports whether the template set is current: built from the
// latest options and after the latest filter registration in the process.
func (e *Engine) Configured() bool {
	registry.RLock()
	defer registry.RUnlock()
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.currentLocked()
}

// Config returns the active configuration. Before the first render it is the
// base configuration.
func (e *Engine) Config() Config {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.cfg
}

// Configure builds the template set now if it is missing or stale.
func (e *Engine) Configure() error {
	registry.RLock()
	defer registry.RUnlock()
	_, err := e.templateSetLocked()
	return err
}

func (e *Engine) currentLocked() bool {
	return !e.dirty && e.templateSet != nil && e.generation == registry.generation
}

// templateSetLocked returns a current template set, rebuilding it when
// needed. Callers hold the registry read lock.
func (e *Engine) templateSetLocked() (*pongo2.TemplateSet, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.currentLocked() {
		return e.templateSet, nil
	}

	cfg, err := DecodeConfig(e.base, e.pending)
	if err != nil {
		return nil, err
	}

	loaders, err := e.loaders(cfg)
	if err != nil {
		return nil, err
	}

	set := pongo2.NewSet(Name, loaders...)
	set.Debug = cfg.Debug
	set.Options.TrimBlocks = cfg.TrimBlocks
	set.Options.LStripBlocks = cfg.LStripBlocks
	if len(cfg.Globals) > 0 {
		globals, err := toContext(cfg.Globals)
		if err != nil {
			return nil, fmt.Errorf("njk: apply globals: %w", err)
		}
		if set.Globals == nil {
			set.Globals = make(pongo2.Context)
		}
		set.Globals.Update(globals)
	}

	banned := foreignFilters(e)
	if sanitizeInstalled && !cfg.Sanitize {
		banned = append(banned, "sanitize")
	}
	for _, name := range banned {
		if err := set.BanFilter(name); err != nil {
			return nil, fmt.Errorf("njk: ban filter %q: %w", name, err)
		}
	}

	e.cfg = cfg
	e.templateSet = set
	e.templates = make(map[string]*pongo2.Template)
	e.generation = registry.generation
	e.dirty = false

	e.logger.Debug().
		Strs("searchPaths", cfg.SearchPaths).
		Bool("trimBlocks", cfg.TrimBlocks).
		Bool("lstripBlocks", cfg.LStripBlocks).
		Int("bannedFilters", len(banned)).
		Msg("njk engine configured")
	return set, nil
}

func (e *Engine) loaders(cfg Config) ([]pongo2.TemplateLoader, error) {
	var loaders []pongo2.TemplateLoader
	for _, dir := range cfg.SearchPaths {
		dir = strings.TrimSpace(dir)
		if dir == "" {
			continue
		}
		loader, err := pongo2.NewLocalFileSystemLoader(dir)
		if err != nil {
			return nil, fmt.Errorf("njk: search path %q: %w", dir, err)
		}
		loaders = append(loaders, loader)
	}
	if e.fsys != nil {
		loaders = append(loaders, pongo2.NewFSLoader(e.fsys))
	}
	if len(loaders) == 0 {
		loader, err := pongo2.NewLocalFileSystemLoader("")
		if err != nil {
			return nil, fmt.Errorf("njk: working directory loader: %w", err)
		}
		loaders = append(loaders, loader)
	}
	return loaders, nil
}

// Render renders template text with locals.
func (e *Engine) Render(ctx context.Context, content string, locals map[string]any) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	tmpl, err := e.parse(content)
	if err != nil {
		return "", err
	}
	return execute(tmpl, locals, "template string")
}

func (e *Engine) parse(content string) (*pongo2.Template, error) {
	registry.RLock()
	defer registry.RUnlock()

	set, err := e.templateSetLocked()
	if err != nil {
		return nil, err
	}
	tmpl, err := set.FromString(content)
	if err != nil {
		return nil, fmt.Errorf("njk: parse template string: %w", err)
	}
	return tmpl, nil
}

// RenderFile renders a template resolved through the search paths and the
// fs.FS loader. Parsed templates are cached until the next filter
// registration in the process or reconfiguration. The result is also written
// to every out.
func (e *Engine) RenderFile(ctx context.Context, name string, locals map[string]any, out ...io.Writer) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if strings.TrimSpace(name) == "" {
		return "", errors.New("njk: template name required")
	}

	tmpl, err := e.lookup(name)
	if err != nil {
		return "", err
	}
	rendered, err := execute(tmpl, locals, name)
	if err != nil {
		return "", err
	}
	for _, w := range out {
		if _, err := io.WriteString(w, rendered); err != nil {
			return "", err
		}
	}
	return rendered, nil
}

func execute(tmpl *pongo2.Template, locals map[string]any, label string) (string, error) {
	viewContext, err := toContext(locals)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := tmpl.ExecuteWriter(viewContext, &buf); err != nil {
		return "", fmt.Errorf("njk: execute %s: %w", label, err)
	}
	return buf.String(), nil
}

// lookup returns the parsed template for name, parsing it through the loaders
// on a cache miss. The cache belongs to the current template set.
func (e *Engine) lookup(name string) (*pongo2.Template, error) {
	registry.RLock()
	defer registry.RUnlock()

	set, err := e.templateSetLocked()
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if cached, ok := e.templates[name]; ok && e.templateSet == set {
		return cached, nil
	}
	parsed, err := set.FromFile(name)
	if err != nil {
		return nil, fmt.Errorf("njk: load template %q: %w", name, err)
	}
	if e.templateSet == set {
		e.templates[name] = parsed
	}
	return parsed, nil
}

// Filters returns the names of filters registered through this engine.
func (e *Engine) Filters() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()

	names := make([]string, 0, len(e.filters)+len(e.asyncFilters))
	for name := range e.filters {
		names = append(names, name)
	}
	for name := range e.asyncFilters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// HasFilter reports whether name was registered through this engine.
func (e *Engine) HasFilter(name string) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if _, ok := e.filters[name]; ok {
		return true
	}
	_, ok := e.asyncFilters[name]
	return ok
}
