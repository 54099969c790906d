// Package app loads configuration and wires the key store, services and
// directory client for the CLI.
package app
