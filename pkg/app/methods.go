package app

import "fmt"

// Methods returns the current method table. Plugins read it before calling
// Define so they can wrap what was there.
func (a *App) Methods() MethodSet {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.methods
}

// Define installs methods. Non-nil fields replace the current definition;
// nil fields leave it untouched.
func (a *App) Define(methods MethodSet) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if methods.Helpers != nil {
		a.methods.Helpers = methods.Helpers
	}
	if methods.Helper != nil {
		a.methods.Helper = methods.Helper
	}
	if methods.AsyncHelpers != nil {
		a.methods.AsyncHelpers = methods.AsyncHelpers
	}
	if methods.AsyncHelper != nil {
		a.methods.AsyncHelper = methods.AsyncHelper
	}
	if methods.AddFilters != nil {
		a.methods.AddFilters = methods.AddFilters
	}
	if methods.AddFilter != nil {
		a.methods.AddFilter = methods.AddFilter
	}
	if methods.AsyncFilters != nil {
		a.methods.AsyncFilters = methods.AsyncFilters
	}
	if methods.AsyncFilter != nil {
		a.methods.AsyncFilter = methods.AsyncFilter
	}
	a.logger.Debug().Msg("methods defined")
}

// Helpers registers several helpers through the current method table.
func (a *App) Helpers(fns map[string]HelperFunc) error {
	m := a.Methods().Helpers
	if m == nil {
		return undefined("Helpers")
	}
	return m(fns)
}

// Helper registers one helper through the current method table.
func (a *App) Helper(name string, fn HelperFunc) error {
	m := a.Methods().Helper
	if m == nil {
		return undefined("Helper")
	}
	return m(name, fn)
}

// AsyncHelpers registers several async helpers through the current method table.
func (a *App) AsyncHelpers(fns map[string]AsyncHelperFunc) error {
	m := a.Methods().AsyncHelpers
	if m == nil {
		return undefined("AsyncHelpers")
	}
	return m(fns)
}

// AsyncHelper registers one async helper through the current method table.
func (a *App) AsyncHelper(name string, fn AsyncHelperFunc) error {
	m := a.Methods().AsyncHelper
	if m == nil {
		return undefined("AsyncHelper")
	}
	return m(name, fn)
}

// AddFilters is undefined until an engine plugin installs it.
func (a *App) AddFilters(fns map[string]HelperFunc) error {
	m := a.Methods().AddFilters
	if m == nil {
		return undefined("AddFilters")
	}
	return m(fns)
}

// AddFilter is undefined until an engine plugin installs it.
func (a *App) AddFilter(name string, fn HelperFunc) error {
	m := a.Methods().AddFilter
	if m == nil {
		return undefined("AddFilter")
	}
	return m(name, fn)
}

// AsyncFilters is undefined until an engine plugin installs it.
func (a *App) AsyncFilters(fns map[string]AsyncHelperFunc) error {
	m := a.Methods().AsyncFilters
	if m == nil {
		return undefined("AsyncFilters")
	}
	return m(fns)
}

// AsyncFilter is undefined until an engine plugin installs it.
func (a *App) AsyncFilter(name string, fn AsyncHelperFunc) error {
	m := a.Methods().AsyncFilter
	if m == nil {
		return undefined("AsyncFilter")
	}
	return m(name, fn)
}

func undefined(name string) error {
	return fmt.Errorf("%w: %s", ErrMethodUndefined, name)
}
