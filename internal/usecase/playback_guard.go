package usecase

import "sync"

// PlaybackGuard owns a process-wide exclusive resource such as the speaker or the
// microphone. Acquiring preempts the current owner through its release callback.
type PlaybackGuard struct {
	mu      sync.Mutex
	next    uint64
	owner   uint64
	preempt func()
}

var (
	speechGuard    = &PlaybackGuard{}
	recordingGuard = &PlaybackGuard{}
)

// Acquire takes ownership and returns a token for Release/Owns. The previous owner's
// preempt callback runs outside the lock before Acquire returns.
func (g *PlaybackGuard) Acquire(preempt func()) uint64 {
	g.mu.Lock()
	previous := g.preempt
	g.next++
	token := g.next
	g.owner = token
	g.preempt = preempt
	g.mu.Unlock()

	if previous != nil {
		previous()
	}
	return token
}

// Release gives up ownership if token still owns the guard.
func (g *PlaybackGuard) Release(token uint64) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if token == 0 || g.owner != token {
		return false
	}
	g.owner = 0
	g.preempt = nil
	return true
}

// Owns reports whether token is the current owner.
func (g *PlaybackGuard) Owns(token uint64) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return token != 0 && g.owner == token
}

// Active reports whether anyone holds the guard.
func (g *PlaybackGuard) Active() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.owner != 0
}
