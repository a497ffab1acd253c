package issue

import "fmt"

// Invariant panics with a consistently formatted message when cond is
// false. It is the second error-model layer: a violated IR invariant
// is always a bug in the pass or builder that produced the IR, so
// there is nothing to recover — the panic is meant to be caught by
// nothing but a test's require.Panics or a top-level crash handler.
func Invariant(cond bool, format string, args ...any) {
	if !cond {
		panic(fmt.Sprintf("invariant violation: "+format, args...))
	}
}

// Unsupported panics unconditionally. It marks a construction the current
// build deliberately does not implement (layer three of the error
// model) — distinct from Invariant in that the input was well-formed, the
// implementation is simply incomplete, and a caller should never attempt
// to recover from it either.
func Unsupported(format string, args ...any) {
	panic(fmt.Sprintf("unsupported: "+format, args...))
}
