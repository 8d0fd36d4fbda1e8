// Package config loads and validates the node's YAML configuration.
// Configuration is read once at startup and read-only afterwards;
// malformed configuration is fatal.
package config
