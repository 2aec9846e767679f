package app

import (
	"context"
	"errors"
)

// HelperFunc transforms a template value. param carries the optional filter
// argument.
type HelperFunc = func(input, param any) (any, error)

// AsyncHelperFunc reports its result through done instead of returning it.
type AsyncHelperFunc = func(input, param any, done func(any, error))

type (
	HelperRegistrar       = func(name string, fn HelperFunc) error
	HelpersRegistrar      = func(fns map[string]HelperFunc) error
	AsyncHelperRegistrar  = func(name string, fn AsyncHelperFunc) error
	AsyncHelpersRegistrar = func(fns map[string]AsyncHelperFunc) error
)

// MethodSet is the table of redefinable host methods. A nil field means the
// method is not defined.
type MethodSet struct {
	Helpers      HelpersRegistrar
	Helper       HelperRegistrar
	AsyncHelpers AsyncHelpersRegistrar
	AsyncHelper  AsyncHelperRegistrar

	AddFilters   HelpersRegistrar
	AddFilter    HelperRegistrar
	AsyncFilters AsyncHelpersRegistrar
	AsyncFilter  AsyncHelperRegistrar
}

// Engine renders template text with the given locals.
type Engine interface {
	Render(ctx context.Context, content string, locals map[string]any) (string, error)
}

// Plugin extends an application. It runs once per Use call.
type Plugin func(a *App) error

// Capabilities an application can declare.
const (
	KindApp = "app"

	FeatureCollection = "collection"
	FeatureLayout     = "layout"
	FeatureHelper     = "helper"
)

var (
	ErrMethodUndefined   = errors.New("app: method not defined")
	ErrUnsupported       = errors.New("app: feature not supported")
	ErrEngineNotFound    = errors.New("app: engine not found")
	ErrViewNotFound      = errors.New("app: view not found")
	ErrLayoutNotFound    = errors.New("app: layout not found")
	ErrLayoutCycle       = errors.New("app: layout cycle")
	ErrLayoutTagMissing  = errors.New("app: layout body tag missing")
	ErrInvalidHelper     = errors.New("app: helper name and function required")
	ErrInvalidView       = errors.New("app: view path required")
	ErrCollectionExists  = errors.New("app: collection already exists")
	ErrCollectionMissing = errors.New("app: collection not found")
)
