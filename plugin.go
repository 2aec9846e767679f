package assemblenjk

import (
	"fmt"

	"github.com/goliatone/go-assemble-njk/pkg/app"
	"github.com/goliatone/go-assemble-njk/pkg/njk"
	"github.com/goliatone/go-assemble-njk/pkg/registrar"
)

// Default collection names created by NewApp.
const (
	CollectionPages    = "pages"
	CollectionPartials = "partials"
	CollectionLayouts  = "layouts"
)

// Plugin returns an app plugin that installs the njk engine, merging config
// over the host's options at install time.
func Plugin(config map[string]any, opts ...registrar.Option) app.Plugin {
	return New(config, opts...).Plugin()
}

// New returns a Registrar seeded with config. Later options win over config
// for the engine instance.
func New(config map[string]any, opts ...registrar.Option) *registrar.Registrar {
	options := make([]registrar.Option, 0, len(opts)+1)
	options = append(options, registrar.WithConfig(config))
	options = append(options, opts...)
	return registrar.New(options...)
}

// NewEngine constructs a standalone engine, e.g. to pass as the "engine"
// config value or through registrar.WithEngine.
func NewEngine(opts ...njk.Option) *njk.Engine {
	return njk.New(opts...)
}

// NewApp builds a host with the pages, partials and layouts collections.
func NewApp(opts ...app.Option) (*app.App, error) {
	a := app.New(opts...)

	collections := []struct {
		name string
		kind app.ViewKind
	}{
		{CollectionPages, app.KindRenderable},
		{CollectionPartials, app.KindPartial},
		{CollectionLayouts, app.KindLayout},
	}
	for _, c := range collections {
		if _, err := a.Create(c.name, app.WithViewKind(c.kind)); err != nil {
			return nil, fmt.Errorf("assemblenjk: create %s: %w", c.name, err)
		}
	}
	return a, nil
}

// EngineOf returns the njk engine installed on a, if any.
func EngineOf(a *app.App) (*njk.Engine, bool) {
	engine, err := a.EngineFor(registrar.DefaultExtension)
	if err != nil {
		return nil, false
	}
	e, ok := engine.(*njk.Engine)
	return e, ok
}
