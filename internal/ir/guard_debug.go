//go:build scathadebug

package ir

import "github.com/sasha-s/go-deadlock"

// contextGuard is a deadlock-detecting mutex in debug builds. The core is
// specified as strictly single-threaded; this guard exists purely to
// catch a pass author who accidentally shares a Context across goroutines
// — it is not part of the production concurrency model.
type contextGuard struct {
	mu deadlock.Mutex
}

func (g *contextGuard) lock()   { g.mu.Lock() }
func (g *contextGuard) unlock() { g.mu.Unlock() }
