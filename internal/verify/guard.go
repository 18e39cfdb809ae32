package verify

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"
)

// DefaultMaxSessions bounds concurrently active verification runs.
const DefaultMaxSessions = 3

// Session is the opaque token held for the duration of one pipeline run.
type Session struct {
	ID         string
	WorkingDir string
	StartedAt  time.Time
}

// Guard bounds concurrently active verification sessions so a verification
// run that files todos cannot trigger an unbounded chain of re-verification.
// It is the single concurrency-safety mechanism in the core: acquisition is
// fail-fast (never blocks) and release is guaranteed on every exit path by
// the caller's defer.
type Guard struct {
	max    int64
	sem    *semaphore.Weighted
	logger *slog.Logger

	mu       sync.Mutex
	sessions map[string]Session
}

// NewGuard constructs a Guard admitting at most max concurrent sessions.
// Non-positive max falls back to DefaultMaxSessions. Guards are injected
// into pipelines explicitly; there is no process-wide singleton, so tests
// can run isolated pipelines in parallel.
func NewGuard(max int, logger *slog.Logger) *Guard {
	if max <= 0 {
		max = DefaultMaxSessions
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Guard{
		max:      int64(max),
		sem:      semaphore.NewWeighted(int64(max)),
		logger:   logger,
		sessions: make(map[string]Session),
	}
}

// Acquire attempts to reserve a session slot. It returns immediately: the
// second return value is false when the guard is at capacity and the run
// must be skipped.
func (g *Guard) Acquire(workingDir string) (Session, bool) {
	if !g.sem.TryAcquire(1) {
		g.logger.Warn("verification run rejected: guard at capacity",
			slog.String("working_dir", workingDir),
			slog.Int64("max_sessions", g.max))
		return Session{}, false
	}

	session := Session{
		ID:         uuid.NewString(),
		WorkingDir: workingDir,
		StartedAt:  time.Now().UTC(),
	}
	g.mu.Lock()
	g.sessions[session.ID] = session
	g.mu.Unlock()
	return session, true
}

// Release returns the slot held by session. Releasing an unknown or
// already-released session is a no-op, so defer-on-every-path is safe.
func (g *Guard) Release(session Session) {
	g.mu.Lock()
	_, ok := g.sessions[session.ID]
	if ok {
		delete(g.sessions, session.ID)
	}
	g.mu.Unlock()
	if ok {
		g.sem.Release(1)
	}
}

// Active reports the number of sessions currently held.
func (g *Guard) Active() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.sessions)
}

// Max reports the configured session limit.
func (g *Guard) Max() int { return int(g.max) }
