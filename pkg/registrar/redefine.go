package registrar

import "github.com/goliatone/go-assemble-njk/pkg/app"

// Redefine builds the method table installed on the host. The four helper
// methods keep running the host's prior definitions before feeding the
// engine; the four filter methods go straight to the engine.
func Redefine(prior app.MethodSet, engine Engine) app.MethodSet {
	return app.MethodSet{
		Helpers:      compose1(prior.Helpers, engine.AddFilters),
		Helper:       compose2(prior.Helper, engine.AddFilter),
		AsyncHelpers: compose1(prior.AsyncHelpers, engine.AsyncFilters),
		AsyncHelper:  compose2(prior.AsyncHelper, engine.AsyncFilter),

		AddFilters:   engine.AddFilters,
		AddFilter:    engine.AddFilter,
		AsyncFilters: engine.AsyncFilters,
		AsyncFilter:  engine.AsyncFilter,
	}
}

// compose1 returns op when prior is nil. Otherwise prior runs first and op's
// result is returned. An error from prior is returned as is and op is not
// called.
func compose1[A any](prior, op func(A) error) func(A) error {
	if prior == nil {
		return op
	}
	return func(a A) error {
		if err := prior(a); err != nil {
			return err
		}
		return op(a)
	}
}

// compose2 is compose1 for two-argument methods.
func compose2[A, B any](prior, op func(A, B) error) func(A, B) error {
	if prior == nil {
		return op
	}
	return func(a A, b B) error {
		if err := prior(a, b); err != nil {
			return err
		}
		return op(a, b)
	}
}
