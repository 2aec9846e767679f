package app

import (
	"path/filepath"
	"strings"

	"github.com/goliatone/go-assemble-njk/internal/optree"
)

// View is a renderable unit: a page, partial or layout.
type View struct {
	Path    string
	Content string
	// Layout names the layout view wrapping this one, matched by path, base
	// name or stem.
	Layout string
	Locals map[string]any
}

// Ext returns the file extension including the leading dot.
func (v *View) Ext() string {
	if v == nil {
		return ""
	}
	return filepath.Ext(v.Path)
}

// Stem returns the base name without its extension.
func (v *View) Stem() string {
	if v == nil {
		return ""
	}
	base := filepath.Base(v.Path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// Clone returns a copy whose locals can be changed independently.
func (v *View) Clone() *View {
	if v == nil {
		return nil
	}
	out := *v
	out.Locals = optree.Clone(v.Locals)
	return &out
}

func (v *View) matches(key string) bool {
	if v == nil || key == "" {
		return false
	}
	switch key {
	case v.Path, filepath.Base(v.Path), v.Stem():
		return true
	}
	return false
}
