//go:build tools

// Package tools tracks code generators used via go generate (mockgen) so
// that go.mod and go.sum keep them pinned.
package tools

import (
	_ "go.uber.org/mock/mockgen"
)
