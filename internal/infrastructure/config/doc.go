// Package config loads and validates Lumen's configuration.
//
// Configuration comes from three layers, each overriding the previous:
// built-in defaults, a YAML file, and LUMEN_* environment variables.
// A missing file is fine; a malformed or invalid one is a startup error.
package config
