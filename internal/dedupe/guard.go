// Package dedupe guards message processing against duplicate submissions.
// Two mechanisms compose: concurrent callers with the same key share one
// in-flight execution, and exact repeats inside a fixed recency window are
// rejected outright.
package dedupe

import (
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrDuplicateMessage is returned when the same message text arrives again
// for the same chat within the dedup window. It signals the caller to slow
// down, not a fault.
var ErrDuplicateMessage = errors.New("duplicate message: wait before sending the same message again")

const (
	// Window is the interval during which an identical message to the same
	// chat is rejected as a duplicate.
	Window = 10 * time.Second

	// inFlightKeyPrefixLen bounds the message-text portion of the coalescing
	// key. Long messages differing only past this prefix coalesce together,
	// matching the submission-retry case this guards against.
	inFlightKeyPrefixLen = 50

	// cleanupThreshold is the recency-map size past which expired entries
	// are swept.
	cleanupThreshold = 100
)

// call is one in-flight execution shared between coalesced callers.
type call struct {
	done chan struct{}
	val  string
	err  error
}

// Guard tracks in-flight and recently completed submissions. One Guard
// instance serves the whole process; all state is internal and
// mutex-protected.
type Guard struct {
	mu       sync.Mutex
	inFlight map[string]*call
	recent   map[string]time.Time
	window   time.Duration
	now      func() time.Time
}

// NewGuard returns a Guard using the default 10-second window.
func NewGuard() *Guard {
	return newGuard(Window, time.Now)
}

func newGuard(window time.Duration, now func() time.Time) *Guard {
	return &Guard{
		inFlight: make(map[string]*call),
		recent:   make(map[string]time.Time),
		window:   window,
		now:      now,
	}
}

// Do runs fn for the given (chatID, text) pair unless it is a duplicate.
//
// If an execution for the same key is already in flight, Do waits for it and
// returns its outcome instead of starting a second one. If the same exact
// text completed acceptance within the window, Do fails with
// ErrDuplicateMessage. Otherwise fn runs; its in-flight registration is
// released whether fn succeeds, fails, or panics.
func (g *Guard) Do(chatID, text string, fn func() (string, error)) (string, error) {
	flightKey := chatID + ":" + prefix(text, inFlightKeyPrefixLen)
	recentKey := chatID + ":" + text

	g.mu.Lock()

	if c, ok := g.inFlight[flightKey]; ok {
		g.mu.Unlock()
		slog.Debug("coalescing duplicate in-flight message", "chat_id", chatID)
		<-c.done
		return c.val, c.err
	}

	if seen, ok := g.recent[recentKey]; ok && g.now().Sub(seen) < g.window {
		g.mu.Unlock()
		slog.Info("rejecting message inside dedup window", "chat_id", chatID)
		return "", ErrDuplicateMessage
	}
	g.recent[recentKey] = g.now()
	if len(g.recent) > cleanupThreshold {
		g.cleanupLocked()
	}

	c := &call{done: make(chan struct{})}
	g.inFlight[flightKey] = c
	g.mu.Unlock()

	defer func() {
		g.mu.Lock()
		delete(g.inFlight, flightKey)
		g.mu.Unlock()
		close(c.done)
	}()

	c.val, c.err = fn()
	return c.val, c.err
}

// cleanupLocked removes recency entries older than twice the window.
// Callers must hold g.mu.
func (g *Guard) cleanupLocked() {
	cutoff := g.now().Add(-2 * g.window)
	removed := 0
	for key, seen := range g.recent {
		if seen.Before(cutoff) {
			delete(g.recent, key)
			removed++
		}
	}
	if removed > 0 {
		slog.Debug("cleaned up expired dedup entries", "removed", removed)
	}
}

func prefix(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
