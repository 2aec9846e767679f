package app

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Engines stores render engines by normalised file extension. Registering an
// extension twice replaces the earlier engine.
type Engines struct {
	mu      sync.RWMutex
	engines map[string]Engine
}

// NewEngines creates an empty registry.
func NewEngines() *Engines {
	return &Engines{
		engines: make(map[string]Engine),
	}
}

// Register adds an engine for ext. Extensions are matched with a leading dot,
// so "njk" and ".njk" are the same key.
func (r *Engines) Register(ext string, engine Engine) error {
	if engine == nil {
		return fmt.Errorf("app: engine is required")
	}
	key := NormalizeExt(ext)
	if key == "" {
		return fmt.Errorf("app: engine extension is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.engines[key] = engine
	return nil
}

// Get retrieves the engine registered for ext.
func (r *Engines) Get(ext string) (Engine, error) {
	key := NormalizeExt(ext)

	r.mu.RLock()
	defer r.mu.RUnlock()

	engine, ok := r.engines[key]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrEngineNotFound, key)
	}
	return engine, nil
}

// List returns a sorted list of registered extensions.
func (r *Engines) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.engines))
	for name := range r.engines {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Has reports whether an engine is registered for ext.
func (r *Engines) Has(ext string) bool {
	key := NormalizeExt(ext)

	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.engines[key]
	return ok
}

// NormalizeExt trims ext and ensures a leading dot. Empty input stays empty.
func NormalizeExt(ext string) string {
	trimmed := strings.TrimSpace(ext)
	if trimmed == "" {
		return ""
	}
	if !strings.HasPrefix(trimmed, ".") {
		trimmed = "." + trimmed
	}
	return strings.ToLower(trimmed)
}
