// Package clog centralizes structured logging for the compiler driver,
// wrapping tliron/commonlog so every stage (parsing, lowering,
// optimization, codegen) logs through one named-logger hierarchy instead
// of reaching for the standard library logger ad hoc.
package clog

import (
	"github.com/tliron/commonlog"

	// Backend registration: commonlog dispatches through whichever
	// implementation package is imported for side effects; simple is the
	// dependency-free console backend, adequate for a CLI driver.
	_ "github.com/tliron/commonlog/simple"
)

// Configure sets the global verbosity via commonlog.Configure. verbosity
// 0 silences everything above errors; each increment enables one more
// debug tier.
func Configure(verbosity int) {
	commonlog.Configure(verbosity, nil)
}

// For returns the named logger for one pipeline stage, e.g. "lower",
// "mem2reg", "codegen". Names nest with "." the way commonlog expects,
// so passes can log under "passes.mem2reg" and have it filterable as a
// group alongside "passes.sccp".
func For(name string) commonlog.Logger {
	return commonlog.GetLogger(name)
}
