package app

import (
	"sort"
	"strings"
	"sync"
)

// helperRegistry is the host's own bookkeeping for generic helpers. Engines
// that want helpers in their filter tables hook the method set instead.
type helperRegistry struct {
	mu    sync.RWMutex
	fns   map[string]HelperFunc
	async map[string]AsyncHelperFunc
}

func newHelperRegistry() *helperRegistry {
	return &helperRegistry{
		fns:   make(map[string]HelperFunc),
		async: make(map[string]AsyncHelperFunc),
	}
}

func (r *helperRegistry) add(name string, fn HelperFunc) error {
	name = strings.TrimSpace(name)
	if name == "" || fn == nil {
		return ErrInvalidHelper
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fns[name] = fn
	return nil
}

func (r *helperRegistry) addAll(fns map[string]HelperFunc) error {
	for _, name := range sortedKeys(fns) {
		if err := r.add(name, fns[name]); err != nil {
			return err
		}
	}
	return nil
}

func (r *helperRegistry) addAsync(name string, fn AsyncHelperFunc) error {
	name = strings.TrimSpace(name)
	if name == "" || fn == nil {
		return ErrInvalidHelper
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.async[name] = fn
	return nil
}

func (r *helperRegistry) addAllAsync(fns map[string]AsyncHelperFunc) error {
	for _, name := range sortedKeys(fns) {
		if err := r.addAsync(name, fns[name]); err != nil {
			return err
		}
	}
	return nil
}

func (r *helperRegistry) get(name string) (HelperFunc, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, ok := r.fns[name]
	return fn, ok
}

func (r *helperRegistry) getAsync(name string) (AsyncHelperFunc, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, ok := r.async[name]
	return fn, ok
}

func (r *helperRegistry) names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.fns)+len(r.async))
	for name := range r.fns {
		out = append(out, name)
	}
	for name := range r.async {
		if _, dup := r.fns[name]; !dup {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
