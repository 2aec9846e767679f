// Package njk is a Nunjucks-flavoured template engine backed by pongo2.
//
// Configuration is lazy: LazyConfigure only records options, and the
// template set is built on the first render.
//
// pongo2 keeps filters in one process-wide table. A filter name belongs to
// the engine that registered it first; other engines get ErrFilterOwned when
// registering it and cannot use it in their templates. pongo2's own filters
// and the compatibility filters cannot be replaced. Registration and parsing
// are serialised against each other, but templates included through a name
// computed at render time are parsed outside that lock, so avoid registering
// filters while such templates render.
package njk
