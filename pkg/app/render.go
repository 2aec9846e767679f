package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/goliatone/go-assemble-njk/internal/optree"
)

// DefaultLayoutTag marks where page content goes inside a layout.
const DefaultLayoutTag = "{% body %}"

// maxLayoutDepth bounds layout chains that do not cycle but never end.
const maxLayoutDepth = 32

// Option keys read at render time.
const (
	// OptionEngine names the engine used for views without a registered
	// extension, e.g. "njk".
	OptionEngine = "engine"
	// OptionData holds locals shared by every render.
	OptionData = "data"
)

// Render applies the view's layouts and renders the result with the engine
// matching the view's extension, falling back to the "engine" option. Locals
// merge app data, then view locals, then the given locals. The returned view
// is a copy holding the rendered content.
func (a *App) Render(ctx context.Context, view *View, locals map[string]any) (*View, error) {
	if view == nil {
		return nil, ErrInvalidView
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	engine, err := a.resolveEngine(view)
	if err != nil {
		return nil, err
	}

	content, err := a.applyLayouts(view)
	if err != nil {
		return nil, err
	}

	out, err := engine.Render(ctx, content, a.renderLocals(view, locals))
	if err != nil {
		return nil, fmt.Errorf("app: render %q: %w", view.Path, err)
	}

	rendered := view.Clone()
	rendered.Content = out
	a.logger.Debug().Str("view", view.Path).Int("bytes", len(out)).Msg("view rendered")
	return rendered, nil
}

// RenderName finds a renderable view by path, base name or stem and renders it.
func (a *App) RenderName(ctx context.Context, key string, locals map[string]any) (*View, error) {
	view, ok := a.FindView(key, KindRenderable, KindPartial)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrViewNotFound, key)
	}
	return a.Render(ctx, view, locals)
}

func (a *App) resolveEngine(view *View) (Engine, error) {
	if ext := view.Ext(); ext != "" && a.engines.Has(ext) {
		return a.engines.Get(ext)
	}
	name, _ := a.OptionValue(OptionEngine).(string)
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("%w: no engine for %q", ErrEngineNotFound, view.Path)
	}
	return a.engines.Get(name)
}

func (a *App) renderLocals(view *View, locals map[string]any) map[string]any {
	data, _ := a.OptionValue(OptionData).(map[string]any)
	return optree.Merge(data, view.Locals, locals)
}

// applyLayouts wraps the view content in its layout chain, innermost first.
// Page content is substituted verbatim at the first layout tag.
func (a *App) applyLayouts(view *View) (string, error) {
	content := view.Content
	name := strings.TrimSpace(view.Layout)
	if name == "" {
		return content, nil
	}
	if !a.Supports(FeatureLayout) {
		return "", fmt.Errorf("%w: %s", ErrUnsupported, FeatureLayout)
	}

	seen := make(map[string]struct{})
	for depth := 0; name != ""; depth++ {
		if depth >= maxLayoutDepth {
			return "", fmt.Errorf("%w: chain deeper than %d at %q", ErrLayoutCycle, maxLayoutDepth, name)
		}
		layout, ok := a.FindView(name, KindLayout)
		if !ok {
			return "", fmt.Errorf("%w: %q", ErrLayoutNotFound, name)
		}
		if _, dup := seen[layout.Path]; dup {
			return "", fmt.Errorf("%w: %q", ErrLayoutCycle, layout.Path)
		}
		seen[layout.Path] = struct{}{}

		idx := strings.Index(layout.Content, a.layoutTag)
		if idx < 0 {
			return "", fmt.Errorf("%w: %q in %q", ErrLayoutTagMissing, a.layoutTag, layout.Path)
		}
		content = layout.Content[:idx] + content + layout.Content[idx+len(a.layoutTag):]
		name = strings.TrimSpace(layout.Layout)
	}
	return content, nil
}
