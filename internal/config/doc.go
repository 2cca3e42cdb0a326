// Package config defines the settings of the master and slave roles and
// provides helpers to load, validate and save them in YAML format.
//
// An empty path stands for the built-in defaults, so both roles can run
// without a settings file.
package config
