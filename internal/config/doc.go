// Package config loads, defaults, and validates client configuration.
//
// Configuration comes from a YAML file with ${VAR} environment expansion.
// Programmatic consumers can start from Default() and override fields.
package config
