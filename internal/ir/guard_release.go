//go:build !scathadebug

package ir

// contextGuard is a no-op in production builds: see guard_debug.go for the
// debug-build deadlock detector this stands in for.
type contextGuard struct{}

func (g *contextGuard) lock()   {}
func (g *contextGuard) unlock() {}
