package app

import (
	"fmt"
	"strings"
	"sync"
)

// ViewKind describes how views in a collection are used.
type ViewKind string

const (
	KindRenderable ViewKind = "renderable"
	KindLayout     ViewKind = "layout"
	KindPartial    ViewKind = "partial"
)

// CollectionOption configures a collection at creation time.
type CollectionOption func(*Collection)

// WithViewKind sets the kind of views a collection holds.
func WithViewKind(kind ViewKind) CollectionOption {
	return func(c *Collection) {
		if kind != "" {
			c.kind = kind
		}
	}
}

// Collection stores views by path, preserving insertion order.
type Collection struct {
	mu    sync.RWMutex
	name  string
	kind  ViewKind
	views map[string]*View
	order []string
}

func newCollection(name string, opts ...CollectionOption) *Collection {
	c := &Collection{
		name:  name,
		kind:  KindRenderable,
		views: make(map[string]*View),
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(c)
	}
	return c
}

// Name returns the collection name.
func (c *Collection) Name() string { return c.name }

// Kind returns the view kind.
func (c *Collection) Kind() ViewKind { return c.kind }

// Add stores a view, replacing any view with the same path.
func (c *Collection) Add(view *View) (*View, error) {
	if view == nil || strings.TrimSpace(view.Path) == "" {
		return nil, ErrInvalidView
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.views[view.Path]; !exists {
		c.order = append(c.order, view.Path)
	}
	c.views[view.Path] = view
	return view, nil
}

// MustAdd panics when Add fails.
func (c *Collection) MustAdd(view *View) *View {
	v, err := c.Add(view)
	if err != nil {
		panic(fmt.Errorf("app: collection %q: %w", c.name, err))
	}
	return v
}

// Get finds a view by exact path first, then by base name or stem.
func (c *Collection) Get(key string) (*View, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if v, ok := c.views[key]; ok {
		return v, true
	}
	for _, path := range c.order {
		if v := c.views[path]; v.matches(key) {
			return v, true
		}
	}
	return nil, false
}

// Views returns the views in insertion order.
func (c *Collection) Views() []*View {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]*View, 0, len(c.order))
	for _, path := range c.order {
		out = append(out, c.views[path])
	}
	return out
}

// Len reports the number of views.
func (c *Collection) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.views)
}
