// Package config loads and validates the typed configuration of the
// resilience core from yaml files and environment variables.
package config
