package njk

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/flosch/pongo2/v6"
)

// FilterFunc transforms a value piped into it. param is the optional filter
// argument, nil when absent.
type FilterFunc = func(input, param any) (any, error)

// AsyncFilterFunc delivers its result through done, possibly from another
// goroutine. Only the first call to done counts.
type AsyncFilterFunc = func(input, param any, done func(any, error))

// ErrInvalidFilter is returned for a blank name or a nil function.
var ErrInvalidFilter = errors.New("njk: filter name and function required")

// ErrFilterOwned is returned when a filter name is already taken by another
// engine, by pongo2 itself or by the compatibility filters.
var ErrFilterOwned = errors.New("njk: filter name owned elsewhere")

// registry guards pongo2's package-level filter map, which its parser reads
// without locking. Registration takes the write lock; building template sets
// and parsing take the read lock. Lock order is registry, then Engine.mu.
//
// Every registration bumps generation so engines rebuild their template sets,
// re-banning filters they do not own and dropping parsed templates.
var registry = struct {
	sync.RWMutex
	owners     map[string]*Engine
	generation uint64
}{owners: make(map[string]*Engine)}

// AddFilter registers a synchronous filter. Registering a name this engine
// already owns replaces it; names owned by another engine or built into
// pongo2 fail with ErrFilterOwned. Other engines cannot use the filter.
func (e *Engine) AddFilter(name string, fn FilterFunc) error {
	name = strings.TrimSpace(name)
	if name == "" || fn == nil {
		return ErrInvalidFilter
	}
	if err := e.claimFilter(name, toPongoFilter(name, fn)); err != nil {
		return err
	}

	e.mu.Lock()
	e.filters[name] = fn
	delete(e.asyncFilters, name)
	e.mu.Unlock()

	e.logger.Debug().Str("filter", name).Msg("filter registered")
	return nil
}

// AddFilters registers several synchronous filters in name order, stopping at
// the first failure.
func (e *Engine) AddFilters(fns map[string]FilterFunc) error {
	for _, name := range sortedNames(fns) {
		if err := e.AddFilter(name, fns[name]); err != nil {
			return fmt.Errorf("njk: filter %q: %w", name, err)
		}
	}
	return nil
}

// AsyncFilter registers a filter that completes through a callback. Renders
// block until the callback fires or the configured AsyncTimeout passes.
func (e *Engine) AsyncFilter(name string, fn AsyncFilterFunc) error {
	name = strings.TrimSpace(name)
	if name == "" || fn == nil {
		return ErrInvalidFilter
	}
	if err := e.claimFilter(name, toPongoFilter(name, e.awaitAsync(name, fn))); err != nil {
		return err
	}

	e.mu.Lock()
	e.asyncFilters[name] = fn
	delete(e.filters, name)
	e.mu.Unlock()

	e.logger.Debug().Str("filter", name).Bool("async", true).Msg("filter registered")
	return nil
}

// AsyncFilters registers several async filters in name order.
func (e *Engine) AsyncFilters(fns map[string]AsyncFilterFunc) error {
	for _, name := range sortedNames(fns) {
		if err := e.AsyncFilter(name, fns[name]); err != nil {
			return fmt.Errorf("njk: async filter %q: %w", name, err)
		}
	}
	return nil
}

func (e *Engine) asyncTimeout() time.Duration {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.cfg.AsyncTimeout <= 0 {
		return DefaultAsyncTimeout
	}
	return e.cfg.AsyncTimeout
}

type asyncResult struct {
	value any
	err   error
}

func (e *Engine) awaitAsync(name string, fn AsyncFilterFunc) FilterFunc {
	return func(input, param any) (any, error) {
		results := make(chan asyncResult, 1)
		var once sync.Once
		fn(input, param, func(value any, err error) {
			once.Do(func() {
				results <- asyncResult{value: value, err: err}
			})
		})

		timeout := e.asyncTimeout()
		timer := time.NewTimer(timeout)
		defer timer.Stop()

		select {
		case res := <-results:
			return res.value, res.err
		case <-timer.C:
			return nil, fmt.Errorf("njk: async filter %q timed out after %s", name, timeout)
		}
	}
}

func toPongoFilter(name string, fn FilterFunc) pongo2.FilterFunction {
	return func(in *pongo2.Value, param *pongo2.Value) (*pongo2.Value, *pongo2.Error) {
		var paramVal any
		if param != nil {
			paramVal = param.Interface()
		}
		var inVal any
		if in != nil {
			inVal = in.Interface()
		}
		result, err := fn(inVal, paramVal)
		if err != nil {
			return nil, &pongo2.Error{Sender: "filter:" + name, OrigError: err}
		}
		if v, ok := result.(*pongo2.Value); ok {
			return v, nil
		}
		return pongo2.AsValue(result), nil
	}
}

// claimFilter installs fn in pongo2's table under name on behalf of e.
func (e *Engine) claimFilter(name string, fn pongo2.FilterFunction) error {
	registry.Lock()
	defer registry.Unlock()

	owner, owned := registry.owners[name]
	switch {
	case owned && owner != e:
		return fmt.Errorf("%w: %q belongs to another engine", ErrFilterOwned, name)
	case owned:
		if err := pongo2.ReplaceFilter(name, fn); err != nil {
			return fmt.Errorf("njk: replace filter %q: %w", name, err)
		}
	case pongo2.FilterExists(name):
		return fmt.Errorf("%w: %q is built in", ErrFilterOwned, name)
	default:
		if err := pongo2.RegisterFilter(name, fn); err != nil {
			return fmt.Errorf("njk: register filter %q: %w", name, err)
		}
		registry.owners[name] = e
	}
	registry.generation++
	return nil
}

// foreignFilters lists filters owned by engines other than e. Callers hold
// the registry read lock.
func foreignFilters(e *Engine) []string {
	var names []string
	for name, owner := range registry.owners {
		if owner != e {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// registerFilterIfAbsent reports whether fn was installed.
func registerFilterIfAbsent(name string, fn pongo2.FilterFunction) bool {
	registry.Lock()
	defer registry.Unlock()

	if pongo2.FilterExists(name) {
		return false
	}
	return pongo2.RegisterFilter(name, fn) == nil
}

func sortedNames[V any](m map[string]V) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
