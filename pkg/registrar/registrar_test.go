package registrar

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/goliatone/go-assemble-njk/pkg/app"
	"github.com/goliatone/go-assemble-njk/pkg/njk"
	"github.com/goliatone/go-assemble-njk/pkg/testsupport"
)

type recordingEngine struct {
	options    map[string]any
	configured int
	calls      []string
	err        error
}

func (e *recordingEngine) Render(_ context.Context, content string, _ map[string]any) (string, error) {
	return content, nil
}

func (e *recordingEngine) LazyConfigure(options map[string]any) {
	e.configured++
	e.options = options
}

func (e *recordingEngine) AddFilter(name string, _ njk.FilterFunc) error {
	e.calls = append(e.calls, "AddFilter:"+name)
	return e.err
}

func (e *recordingEngine) AddFilters(fns map[string]njk.FilterFunc) error {
	e.calls = append(e.calls, "AddFilters:"+joinKeys(fns))
	return e.err
}

func (e *recordingEngine) AsyncFilter(name string, _ njk.AsyncFilterFunc) error {
	e.calls = append(e.calls, "AsyncFilter:"+name)
	return e.err
}

func (e *recordingEngine) AsyncFilters(fns map[string]njk.AsyncFilterFunc) error {
	e.calls = append(e.calls, "AsyncFilters:"+joinKeys(fns))
	return e.err
}

func joinKeys[V any](m map[string]V) string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return strings.Join(keys, ",")
}

func identity(in, _ any) (any, error) { return in, nil }

func TestInstallSkipsIncompatibleHosts(t *testing.T) {
	tests := []struct {
		name string
		host *app.App
	}{
		{"wrong kind", app.New(app.WithKind("collection"))},
		{"no collections", app.New(app.WithFeatures(app.FeatureHelper))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine := &recordingEngine{}
			before := tt.host.Methods()

			if err := New(WithEngine(engine)).Install(tt.host); err != nil {
				t.Fatalf("install: %v", err)
			}

			if len(tt.host.Engines().List()) != 0 {
				t.Fatalf("engine registry changed: %v", tt.host.Engines().List())
			}
			after := tt.host.Methods()
			if after.AddFilter != nil || after.AddFilters != nil || after.AsyncFilter != nil || after.AsyncFilters != nil {
				t.Fatalf("filter methods were defined on an incompatible host")
			}
			if fmt.Sprintf("%p", before.Helper) != fmt.Sprintf("%p", after.Helper) {
				t.Fatalf("helper method was replaced on an incompatible host")
			}
			if engine.configured != 0 {
				t.Fatalf("engine configured for an incompatible host")
			}
		})
	}
}

func TestInstallStrictReportsIncompatibleHost(t *testing.T) {
	host := app.New(app.WithFeatures())
	err := New(WithStrict(), WithEngine(&recordingEngine{})).Install(host)
	if !errors.Is(err, ErrIncompatibleHost) {
		t.Fatalf("expected ErrIncompatibleHost, got %v", err)
	}
}

func TestInstallRegistersEngineAndMethods(t *testing.T) {
	host := app.New()
	engine := &recordingEngine{}

	if err := host.Use(New(WithEngine(engine)).Plugin()); err != nil {
		t.Fatalf("use: %v", err)
	}

	got, err := host.EngineFor("njk")
	if err != nil {
		t.Fatalf("engine for njk: %v", err)
	}
	if got != Engine(engine) {
		t.Fatalf("registered engine is not the configured one")
	}
	if engine.configured != 1 {
		t.Fatalf("LazyConfigure called %d times, want 1", engine.configured)
	}

	m := host.Methods()
	if m.Helpers == nil || m.Helper == nil || m.AsyncHelpers == nil || m.AsyncHelper == nil ||
		m.AddFilters == nil || m.AddFilter == nil || m.AsyncFilters == nil || m.AsyncFilter == nil {
		t.Fatalf("expected all eight methods defined: %+v", m)
	}
}

func TestAliasTableRoutesToEngine(t *testing.T) {
	host := app.New()
	engine := &recordingEngine{}
	if err := New(WithEngine(engine)).Install(host); err != nil {
		t.Fatalf("install: %v", err)
	}

	async := func(in, _ any, done func(any, error)) { done(in, nil) }
	calls := []error{
		host.Helpers(map[string]app.HelperFunc{"h1": identity, "h2": identity}),
		host.Helper("h3", identity),
		host.AsyncHelpers(map[string]app.AsyncHelperFunc{"a1": async}),
		host.AsyncHelper("a2", async),
		host.AddFilters(map[string]app.HelperFunc{"f1": identity}),
		host.AddFilter("f2", identity),
		host.AsyncFilters(map[string]app.AsyncHelperFunc{"af1": async}),
		host.AsyncFilter("af2", async),
	}
	for i, err := range calls {
		if err != nil {
			t.Fatalf("call %d: %v", i, err)
		}
	}

	want := []string{
		"AddFilters:h1,h2",
		"AddFilter:h3",
		"AsyncFilters:a1",
		"AsyncFilter:a2",
		"AddFilters:f1",
		"AddFilter:f2",
		"AsyncFilters:af1",
		"AsyncFilter:af2",
	}
	if diff := cmp.Diff(want, engine.calls); diff != "" {
		t.Fatalf("engine calls (-want +got):\n%s", diff)
	}

	for _, name := range []string{"h1", "h2", "h3"} {
		if !host.HasHelper(name) {
			t.Fatalf("host bookkeeping lost helper %q", name)
		}
	}
	for _, name := range []string{"a1", "a2"} {
		if !host.HasAsyncHelper(name) {
			t.Fatalf("host bookkeeping lost async helper %q", name)
		}
	}
	if host.HasHelper("f1") || host.HasHelper("f2") {
		t.Fatalf("plain filter methods must not touch host helpers")
	}
}

func TestComposedMethodRunsPriorFirst(t *testing.T) {
	host := app.New()
	var order []string
	host.Define(app.MethodSet{
		Helper: func(name string, _ app.HelperFunc) error {
			order = append(order, "prior:"+name)
			return nil
		},
	})

	engine := &recordingEngine{}
	if err := New(WithEngine(engine)).Install(host); err != nil {
		t.Fatalf("install: %v", err)
	}
	if err := host.Helper("x", identity); err != nil {
		t.Fatalf("helper: %v", err)
	}

	order = append(order, engine.calls...)
	if diff := cmp.Diff([]string{"prior:x", "AddFilter:x"}, order); diff != "" {
		t.Fatalf("call order (-want +got):\n%s", diff)
	}
}

func TestPriorErrorStopsAndPropagates(t *testing.T) {
	host := app.New()
	boom := errors.New("prior failed")
	host.Define(app.MethodSet{
		Helpers: func(map[string]app.HelperFunc) error { return boom },
	})

	engine := &recordingEngine{}
	if err := New(WithEngine(engine)).Install(host); err != nil {
		t.Fatalf("install: %v", err)
	}

	err := host.Helpers(map[string]app.HelperFunc{"x": identity})
	if err != boom {
		t.Fatalf("expected the prior error unchanged, got %v", err)
	}
	if len(engine.calls) != 0 {
		t.Fatalf("engine should not run after prior failure: %v", engine.calls)
	}
}

func TestEngineErrorPropagates(t *testing.T) {
	host := app.New()
	boom := errors.New("engine failed")
	engine := &recordingEngine{err: boom}
	if err := New(WithEngine(engine)).Install(host); err != nil {
		t.Fatalf("install: %v", err)
	}

	if err := host.AddFilter("x", identity); err != boom {
		t.Fatalf("expected engine error unchanged from AddFilter, got %v", err)
	}
	if err := host.Helper("y", identity); err != boom {
		t.Fatalf("expected engine error unchanged from Helper, got %v", err)
	}
	if !host.HasHelper("y") {
		t.Fatalf("prior helper bookkeeping should run before the engine fails")
	}
}

func TestReinstallIsIdempotent(t *testing.T) {
	host := app.New()
	count := 0
	host.Define(app.MethodSet{
		Helper: func(string, app.HelperFunc) error {
			count++
			return nil
		},
	})

	r := New(WithEngine(&recordingEngine{}))
	if err := r.Install(host); err != nil {
		t.Fatalf("first install: %v", err)
	}
	if err := r.Install(host); err != nil {
		t.Fatalf("second install: %v", err)
	}
	if err := host.Helper("x", identity); err != nil {
		t.Fatalf("helper: %v", err)
	}
	if count != 1 {
		t.Fatalf("prior helper ran %d times, want 1", count)
	}

	strict := New(WithStrict(), WithEngine(&recordingEngine{}))
	if err := strict.Install(host); !errors.Is(err, ErrAlreadyRegistered) {
		t.Fatalf("expected ErrAlreadyRegistered, got %v", err)
	}
}

func TestInstallMergesHostOptionsWithConfig(t *testing.T) {
	host := app.New(app.WithOptions(map[string]any{"a": 1, "b": map[string]any{"x": 1}}))
	engine := &recordingEngine{}

	r := New(WithEngine(engine), WithConfig(map[string]any{"b": map[string]any{"y": 2}, "c": 3}))
	if err := r.Install(host); err != nil {
		t.Fatalf("install: %v", err)
	}

	want := map[string]any{"a": 1, "b": map[string]any{"x": 1, "y": 2}, "c": 3}
	if diff := cmp.Diff(want, engine.options); diff != "" {
		t.Fatalf("options (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(map[string]any{"a": 1, "b": map[string]any{"x": 1}}, host.Options()); diff != "" {
		t.Fatalf("host options mutated (-want +got):\n%s", diff)
	}
}

func TestInstallReadsHostOptionsAtInstallTime(t *testing.T) {
	host := app.New()
	engine := &recordingEngine{}
	r := New(WithEngine(engine))

	host.Option("trimBlocks", true)
	if err := r.Install(host); err != nil {
		t.Fatalf("install: %v", err)
	}
	if engine.options["trimBlocks"] != true {
		t.Fatalf("expected option set before install, got %v", engine.options)
	}
}

func TestWithDefaultsReplacesHostStore(t *testing.T) {
	host := app.New(app.WithOptions(map[string]any{"fromHost": true}))
	engine := &recordingEngine{}

	r := New(WithEngine(engine), WithDefaults(map[string]any{"fromDefaults": true}))
	if err := r.Install(host); err != nil {
		t.Fatalf("install: %v", err)
	}
	if diff := cmp.Diff(map[string]any{"fromDefaults": true}, engine.options); diff != "" {
		t.Fatalf("options (-want +got):\n%s", diff)
	}
}

func TestEngineResolution(t *testing.T) {
	fromConfig := &recordingEngine{}
	fromNunjucks := &recordingEngine{}
	fromOption := &recordingEngine{}
	fromFactory := &recordingEngine{}

	tests := []struct {
		name   string
		host   *app.App
		opts   []Option
		expect *recordingEngine
	}{
		{
			name:   "engine key",
			host:   app.New(),
			opts:   []Option{WithConfig(map[string]any{OptionEngine: fromConfig}), WithEngine(fromOption)},
			expect: fromConfig,
		},
		{
			name:   "nunjucks key",
			host:   app.New(),
			opts:   []Option{WithConfig(map[string]any{OptionNunjucks: fromNunjucks}), WithEngine(fromOption)},
			expect: fromNunjucks,
		},
		{
			name:   "string engine option is ignored",
			host:   app.New(app.WithOptions(map[string]any{OptionEngine: "njk"})),
			opts:   []Option{WithEngine(fromOption)},
			expect: fromOption,
		},
		{
			name:   "factory",
			host:   app.New(),
			opts:   []Option{WithEngineFactory(func() Engine { return fromFactory })},
			expect: fromFactory,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := New(tt.opts...).Install(tt.host); err != nil {
				t.Fatalf("install: %v", err)
			}
			got, err := tt.host.EngineFor(DefaultExtension)
			if err != nil {
				t.Fatalf("engine for: %v", err)
			}
			if got != Engine(tt.expect) {
				t.Fatalf("unexpected engine registered")
			}
		})
	}
}

func TestDefaultEngineIsNjk(t *testing.T) {
	host := app.New()
	if err := New().Install(host); err != nil {
		t.Fatalf("install: %v", err)
	}
	got, err := host.EngineFor(DefaultExtension)
	if err != nil {
		t.Fatalf("engine for: %v", err)
	}
	engine, ok := got.(*njk.Engine)
	if !ok {
		t.Fatalf("expected *njk.Engine, got %T", got)
	}
	if engine.Configured() {
		t.Fatalf("engine must stay unconfigured until the first render")
	}
}

func TestWithExtension(t *testing.T) {
	host := app.New()
	if err := New(WithExtension("nunjucks"), WithEngine(&recordingEngine{})).Install(host); err != nil {
		t.Fatalf("install: %v", err)
	}
	if !host.Engines().Has(".nunjucks") || host.Engines().Has(DefaultExtension) {
		t.Fatalf("unexpected engines %v", host.Engines().List())
	}
}

func TestMergeOptions(t *testing.T) {
	got := MergeOptions(
		map[string]any{"a": 1, "b": map[string]any{"x": 1}, "list": []any{1, 2}},
		map[string]any{"b": map[string]any{"y": 2}, "c": 3, "list": []any{3}},
	)
	want := map[string]any{
		"a":    1,
		"b":    map[string]any{"x": 1, "y": 2},
		"c":    3,
		"list": []any{3},
	}
	if diff := testsupport.CompareGolden(want, got); diff != "" {
		t.Fatalf("merge (-want +got):\n%s", diff)
	}
}

type hostStub struct {
	kind      string
	supports  bool
	engineErr error
	defined   int
	claimed   map[string]bool
}

func (h *hostStub) Kind() string                    { return h.kind }
func (h *hostStub) Supports(string) bool            { return h.supports }
func (h *hostStub) Options() map[string]any         { return nil }
func (h *hostStub) Engine(string, app.Engine) error { return h.engineErr }
func (h *hostStub) Methods() app.MethodSet          { return app.MethodSet{} }
func (h *hostStub) Define(app.MethodSet)            { h.defined++ }
func (h *hostStub) Unregister(name string)          { delete(h.claimed, name) }

func (h *hostStub) IsRegistered(name string) bool {
	if h.claimed == nil {
		h.claimed = make(map[string]bool)
	}
	was := h.claimed[name]
	h.claimed[name] = true
	return was
}

func TestHostEngineErrorPropagates(t *testing.T) {
	boom := errors.New("registry full")
	host := &hostStub{kind: app.KindApp, supports: true, engineErr: boom}

	if err := New(WithEngine(&recordingEngine{})).Install(host); err != boom {
		t.Fatalf("expected host error unchanged, got %v", err)
	}
	if host.defined != 0 {
		t.Fatalf("methods defined after engine registration failed")
	}
	if host.claimed[DefaultName] {
		t.Fatalf("plugin name still claimed after engine registration failed")
	}

	host.engineErr = nil
	if err := New(WithStrict(), WithEngine(&recordingEngine{})).Install(host); err != nil {
		t.Fatalf("retry after failure: %v", err)
	}
	if host.defined != 1 {
		t.Fatalf("expected methods defined on retry, got %d", host.defined)
	}
}

func TestValidateDoesNotClaimName(t *testing.T) {
	host := app.New()
	r := New(WithEngine(&recordingEngine{}))

	for i := 0; i < 2; i++ {
		if err := r.Validate(host); err != nil {
			t.Fatalf("validate %d: %v", i, err)
		}
	}
	if err := r.Install(host); err != nil {
		t.Fatalf("install: %v", err)
	}
	if diff := cmp.Diff([]string{DefaultExtension}, host.Engines().List()); diff != "" {
		t.Fatalf("engines (-want +got):\n%s", diff)
	}
	if host.Methods().AddFilter == nil {
		t.Fatalf("methods not defined after Validate then Install")
	}
}

func TestValidateRejectsIncompatibleHost(t *testing.T) {
	r := New()
	if err := r.Validate(app.New(app.WithKind("site"))); !errors.Is(err, ErrIncompatibleHost) {
		t.Fatalf("expected ErrIncompatibleHost for kind, got %v", err)
	}
	if err := r.Validate(app.New(app.WithFeatures(app.FeatureHelper))); !errors.Is(err, ErrIncompatibleHost) {
		t.Fatalf("expected ErrIncompatibleHost for features, got %v", err)
	}
	if err := r.Validate(nil); !errors.Is(err, ErrIncompatibleHost) {
		t.Fatalf("expected ErrIncompatibleHost for nil host, got %v", err)
	}
}

func TestAlreadyRegisteredSharedEngineNotReconfigured(t *testing.T) {
	host := app.New()
	engine := &recordingEngine{}
	r := New(WithEngine(engine))

	if err := r.Install(host); err != nil {
		t.Fatalf("first install: %v", err)
	}
	if err := r.Install(host); err != nil {
		t.Fatalf("second install: %v", err)
	}
	if engine.configured != 1 {
		t.Fatalf("LazyConfigure called %d times, want 1", engine.configured)
	}
}

func TestPlainDelegatesWithoutPriorMethods(t *testing.T) {
	host := &hostStub{kind: app.KindApp, supports: true}
	engine := &recordingEngine{}

	m := Redefine(host.Methods(), engine)
	if err := m.Helper("x", identity); err != nil {
		t.Fatalf("helper: %v", err)
	}
	if err := m.AsyncHelpers(map[string]app.AsyncHelperFunc{"y": nil}); err != nil {
		t.Fatalf("async helpers: %v", err)
	}
	if diff := cmp.Diff([]string{"AddFilter:x", "AsyncFilters:y"}, engine.calls); diff != "" {
		t.Fatalf("engine calls (-want +got):\n%s", diff)
	}
}
