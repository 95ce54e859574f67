//go:build tools
// +build tools

// Package tools tracks mockgen as a module dependency for `go generate`.
package portfolio_contact

import (
	_ "go.uber.org/mock/mockgen"
)
