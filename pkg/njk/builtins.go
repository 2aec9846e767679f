package njk

import (
	"encoding/json"
	"reflect"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/dustin/go-humanize"
	"github.com/flosch/pongo2/v6"
	"github.com/microcosm-cc/bluemonday"
)

// sanitizeInstalled records whether the sanitize filter is ours. Template
// sets without Config.Sanitize ban it.
var sanitizeInstalled bool

// BuiltinFilters lists the compatibility filters installed when the package
// loads. sanitize is only usable when Config.Sanitize is set.
func BuiltinFilters() []string {
	return []string{"capitalize", "dump", "filesizeformat", "lowerfirst", "reverse", "trim"}
}

// Nunjucks filters pongo2 lacks. Filters that already exist are left alone.
func init() {
	registerFilterIfAbsent("trim", filterTrim)
	registerFilterIfAbsent("capitalize", filterCapitalize)
	registerFilterIfAbsent("lowerfirst", filterLowerFirst)
	registerFilterIfAbsent("dump", filterDump)
	registerFilterIfAbsent("reverse", filterReverse)
	registerFilterIfAbsent("filesizeformat", filterFileSizeFormat)

	policy := bluemonday.UGCPolicy()
	sanitizeInstalled = registerFilterIfAbsent("sanitize", func(in *pongo2.Value, _ *pongo2.Value) (*pongo2.Value, *pongo2.Error) {
		return pongo2.AsSafeValue(policy.Sanitize(in.String())), nil
	})
}

func filterTrim(in *pongo2.Value, _ *pongo2.Value) (*pongo2.Value, *pongo2.Error) {
	return pongo2.AsValue(strings.TrimSpace(in.String())), nil
}

// filterCapitalize upper-cases the first character and lower-cases the rest.
func filterCapitalize(in *pongo2.Value, _ *pongo2.Value) (*pongo2.Value, *pongo2.Error) {
	s := in.String()
	if s == "" {
		return pongo2.AsValue(""), nil
	}
	r, size := utf8.DecodeRuneInString(s)
	return pongo2.AsValue(string(unicode.ToUpper(r)) + strings.ToLower(s[size:])), nil
}

// filterLowerFirst lower-cases the first non-space character, keeping any
// leading whitespace.
func filterLowerFirst(in *pongo2.Value, _ *pongo2.Value) (*pongo2.Value, *pongo2.Error) {
	s := in.String()
	i := strings.IndexFunc(s, func(r rune) bool { return !unicode.IsSpace(r) })
	if i < 0 {
		return pongo2.AsValue(s), nil
	}
	r, size := utf8.DecodeRuneInString(s[i:])
	return pongo2.AsValue(s[:i] + string(unicode.ToLower(r)) + s[i+size:]), nil
}

// filterDump serialises the value as JSON. A numeric param sets the indent.
func filterDump(in *pongo2.Value, param *pongo2.Value) (*pongo2.Value, *pongo2.Error) {
	var (
		b   []byte
		err error
	)
	if param != nil && param.IsInteger() && param.Integer() > 0 {
		b, err = json.MarshalIndent(in.Interface(), "", strings.Repeat(" ", param.Integer()))
	} else {
		b, err = json.Marshal(in.Interface())
	}
	if err != nil {
		return nil, &pongo2.Error{Sender: "filter:dump", OrigError: err}
	}
	return pongo2.AsValue(string(b)), nil
}

// filterReverse reverses strings by rune and lists by element.
func filterReverse(in *pongo2.Value, _ *pongo2.Value) (*pongo2.Value, *pongo2.Error) {
	if in.IsString() {
		runes := []rune(in.String())
		for i, j := 0, len(runes)-1; i < j; i, j = i+1, j-1 {
			runes[i], runes[j] = runes[j], runes[i]
		}
		return pongo2.AsValue(string(runes)), nil
	}

	rv := reflect.ValueOf(in.Interface())
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return in, nil
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[len(out)-1-i] = rv.Index(i).Interface()
	}
	return pongo2.AsValue(out), nil
}

func filterFileSizeFormat(in *pongo2.Value, _ *pongo2.Value) (*pongo2.Value, *pongo2.Error) {
	size := in.Integer()
	if in.IsFloat() {
		size = int(in.Float())
	}
	if size < 0 {
		size = 0
	}
	return pongo2.AsValue(humanize.Bytes(uint64(size))), nil
}
