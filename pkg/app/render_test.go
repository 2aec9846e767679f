package app

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func newRenderApp(t *testing.T) (*App, *echoEngine) {
	t.Helper()

	a := New()
	engine := &echoEngine{}
	if err := a.Engine("njk", engine); err != nil {
		t.Fatalf("engine: %v", err)
	}
	if _, err := a.Create("pages"); err != nil {
		t.Fatalf("create pages: %v", err)
	}
	if _, err := a.Create("layouts", WithViewKind(KindLayout)); err != nil {
		t.Fatalf("create layouts: %v", err)
	}
	return a, engine
}

func mustCollection(t *testing.T, a *App, name string) *Collection {
	t.Helper()
	c, err := a.Collection(name)
	if err != nil {
		t.Fatalf("collection %q: %v", name, err)
	}
	return c
}

func TestRenderByExtension(t *testing.T) {
	a, engine := newRenderApp(t)
	view := &View{Path: "list.njk", Content: "hello"}

	out, err := a.Render(context.Background(), view, nil)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if out.Content != "hello" || engine.calls != 1 {
		t.Fatalf("unexpected render result %q (calls=%d)", out.Content, engine.calls)
	}
	if out == view {
		t.Fatalf("render should return a copy")
	}
	if view.Content != "hello" {
		t.Fatalf("source view mutated")
	}
}

func TestRenderFallsBackToEngineOption(t *testing.T) {
	a, engine := newRenderApp(t)

	if _, err := a.Render(context.Background(), &View{Path: "abc", Content: "x"}, nil); !errors.Is(err, ErrEngineNotFound) {
		t.Fatalf("expected ErrEngineNotFound without engine option, got %v", err)
	}

	a.Option(OptionEngine, "njk")
	if _, err := a.Render(context.Background(), &View{Path: "abc", Content: "x"}, nil); err != nil {
		t.Fatalf("render: %v", err)
	}
	if engine.calls != 1 {
		t.Fatalf("expected fallback engine to be used")
	}
}

func TestRenderMergesLocals(t *testing.T) {
	a, engine := newRenderApp(t)
	a.Option("data", map[string]any{"site": map[string]any{"title": "Docs", "lang": "en"}, "page": "app"})

	view := &View{
		Path:    "index.njk",
		Content: "x",
		Locals:  map[string]any{"site": map[string]any{"lang": "fr"}, "page": "view"},
	}
	if _, err := a.Render(context.Background(), view, map[string]any{"page": "call"}); err != nil {
		t.Fatalf("render: %v", err)
	}

	want := map[string]any{
		"site": map[string]any{"title": "Docs", "lang": "fr"},
		"page": "call",
	}
	if diff := cmp.Diff(want, engine.locals); diff != "" {
		t.Fatalf("locals (-want +got):\n%s", diff)
	}
}

func TestRenderAppliesLayoutVerbatim(t *testing.T) {
	a, engine := newRenderApp(t)
	mustCollection(t, a, "layouts").MustAdd(&View{Path: "base.njk", Content: "foo{% body %}bar"})

	page := &View{Path: "list.njk", Content: "<ul>\n</ul>\n", Layout: "base"}
	out, err := a.Render(context.Background(), page, nil)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if out.Content != "foo<ul>\n</ul>\nbar" {
		t.Fatalf("layout result %q", out.Content)
	}
	if engine.content != out.Content {
		t.Fatalf("engine should receive the composed layout")
	}
}

func TestRenderNestedLayouts(t *testing.T) {
	a, _ := newRenderApp(t)
	layouts := mustCollection(t, a, "layouts")
	layouts.MustAdd(&View{Path: "outer.njk", Content: "<html>{% body %}</html>"})
	layouts.MustAdd(&View{Path: "inner.njk", Content: "<main>{% body %}</main>", Layout: "outer"})

	out, err := a.Render(context.Background(), &View{Path: "p.njk", Content: "hi", Layout: "inner.njk"}, nil)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if out.Content != "<html><main>hi</main></html>" {
		t.Fatalf("nested layout result %q", out.Content)
	}
}

func TestRenderLayoutErrors(t *testing.T) {
	a, _ := newRenderApp(t)
	layouts := mustCollection(t, a, "layouts")
	layouts.MustAdd(&View{Path: "a.njk", Content: "{% body %}", Layout: "b"})
	layouts.MustAdd(&View{Path: "b.njk", Content: "{% body %}", Layout: "a"})
	layouts.MustAdd(&View{Path: "plain.njk", Content: "no marker"})

	tests := []struct {
		name   string
		layout string
		want   error
	}{
		{"missing", "nope", ErrLayoutNotFound},
		{"cycle", "a", ErrLayoutCycle},
		{"tag missing", "plain", ErrLayoutTagMissing},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := a.Render(context.Background(), &View{Path: "p.njk", Content: "x", Layout: tt.layout}, nil)
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestRenderNameSearchesCollections(t *testing.T) {
	a, _ := newRenderApp(t)
	mustCollection(t, a, "pages").MustAdd(&View{Path: "docs/list.njk", Content: "list"})

	for _, key := range []string{"docs/list.njk", "list.njk", "list"} {
		out, err := a.RenderName(context.Background(), key, nil)
		if err != nil {
			t.Fatalf("render %q: %v", key, err)
		}
		if out.Content != "list" {
			t.Fatalf("render %q = %q", key, out.Content)
		}
	}
	if _, err := a.RenderName(context.Background(), "missing", nil); !errors.Is(err, ErrViewNotFound) {
		t.Fatalf("expected ErrViewNotFound, got %v", err)
	}
}

func TestRenderWrapsEngineErrors(t *testing.T) {
	a, engine := newRenderApp(t)
	boom := errors.New("boom")
	engine.err = boom

	if _, err := a.Render(context.Background(), &View{Path: "x.njk"}, nil); !errors.Is(err, boom) {
		t.Fatalf("expected engine error, got %v", err)
	}
}

func TestRenderHonoursCancelledContext(t *testing.T) {
	a, engine := newRenderApp(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := a.Render(ctx, &View{Path: "x.njk"}, nil); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if engine.calls != 0 {
		t.Fatalf("engine should not run after cancellation")
	}
}

func TestCollectionAddAndOrder(t *testing.T) {
	a, _ := newRenderApp(t)
	pages := mustCollection(t, a, "pages")

	if _, err := pages.Add(&View{}); !errors.Is(err, ErrInvalidView) {
		t.Fatalf("expected ErrInvalidView, got %v", err)
	}
	pages.MustAdd(&View{Path: "b.njk"})
	pages.MustAdd(&View{Path: "a.njk"})
	pages.MustAdd(&View{Path: "b.njk", Content: "replaced"})

	var paths []string
	for _, v := range pages.Views() {
		paths = append(paths, v.Path)
	}
	if diff := cmp.Diff([]string{"b.njk", "a.njk"}, paths); diff != "" {
		t.Fatalf("order (-want +got):\n%s", diff)
	}
	if v, _ := pages.Get("b"); v.Content != "replaced" {
		t.Fatalf("expected replacement to win")
	}
	if _, err := a.Create("pages"); !errors.Is(err, ErrCollectionExists) {
		t.Fatalf("expected ErrCollectionExists, got %v", err)
	}
	if diff := cmp.Diff([]string{"layouts", "pages"}, a.Collections()); diff != "" {
		t.Fatalf("collections (-want +got):\n%s", diff)
	}
}
