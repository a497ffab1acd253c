// Package passes implements the optimization pass catalog and the
// YAML-configurable manager that sequences them: an ordered, repeatable
// list of named Pass implementations run to a fixpoint over every
// function in a module.
package passes

import (
	"scathago/internal/ir"
)

// Pass is one optimization transformation over a single function. Apply
// reports whether it changed anything, so the manager can iterate passes
// to a fixpoint.
type Pass interface {
	Name() string
	Description() string
	Apply(fn *ir.Function) bool
}

// ModulePass is a pass that needs cross-function information (only the
// Inliner currently does, since inlining rewrites a caller using a
// callee's body).
type ModulePass interface {
	Pass
	ApplyModule(m *ir.Module) bool
}
