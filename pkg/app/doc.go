// Package app is a small pluggable site application: an option store, render
// engines keyed by file extension, named view collections, layouts, a helper
// registry and a redefinable method table that plugins extend.
package app
