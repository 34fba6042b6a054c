//go:build tools
// +build tools

// Package hive_chat pins the code generators used by go:generate (mockgen) in go.mod.
package hive_chat

import (
	_ "go.uber.org/mock/mockgen"
)
