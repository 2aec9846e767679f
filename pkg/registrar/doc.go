// Package registrar installs the njk template engine into an application
// host. Installation checks the host's capabilities, merges options over the
// host defaults, lazily configures the engine, registers it for the .njk
// extension and redefines the host's helper methods so helpers also become
// template filters.
package registrar
