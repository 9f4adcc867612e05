// Package cmd provides common initialization functions for command-line applications.
package cmd

import (
	"log/slog"

	"github.com/relaycrm/relay/pkg/registry"
)

// NewRegistry builds a node handler registry with every built-in kind
// registered.
func NewRegistry(logger *slog.Logger) *registry.Registry {
	reg := registry.NewRegistry(logger)
	reg.RegisterDefaults()

	return reg
}
