// Package config loads the daemon configuration from a JSON file, applies
// defaults for every section, and resolves relative file references against
// the configuration directory so the process can be started from anywhere.
package config
