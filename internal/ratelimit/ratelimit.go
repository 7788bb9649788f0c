package ratelimit

import (
	"sync"
	"time"

	"github.com/vjuliano/audiodrop/internal/config"
	"github.com/vjuliano/audiodrop/internal/store"
)

// Window is the trailing interval over which uploads are counted.
const Window = time.Hour

// Decision is the outcome of a rate-limit check. RetryAfterSeconds is only
// meaningful when Allowed is false.
type Decision struct {
	Allowed           bool
	RetryAfterSeconds int
}

// Limiter enforces the per-IP sliding-window upload quota. All checks go
// through a single mutex so that the prune-then-append cycle on a window is
// never interleaved between two requests from the same IP.
type Limiter struct {
	mu    sync.Mutex
	cfg   *config.Config
	store *store.Store
}

func New(cfg *config.Config, st *store.Store) *Limiter {
	return &Limiter{cfg: cfg, store: st}
}

// CheckAndRecord decides whether an upload from ip may proceed at time now.
// When the quota has room, now is appended to the window and persisted before
// returning — the slot is consumed even if the upload later fails validation.
// When the policy is disabled the check always passes and nothing is stored.
func (l *Limiter) CheckAndRecord(ip string, now time.Time) (Decision, error) {
	policy := l.cfg.RateLimit()
	if !policy.Enabled {
		return Decision{Allowed: true}, nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	stamps, err := l.store.Window(ip)
	if err != nil {
		return Decision{}, err
	}

	nowMs := now.UnixMilli()
	windowMs := Window.Milliseconds()

	// Lazily prune entries that have aged out of the window.
	recent := stamps[:0]
	for _, ts := range stamps {
		if nowMs-ts < windowMs {
			recent = append(recent, ts)
		}
	}

	maxUploads := policy.MaxUploads
	if maxUploads <= 0 {
		maxUploads = 3
	}

	// The quota is a hard ceiling: at exactly maxUploads, deny.
	if len(recent) >= maxUploads {
		remainingMs := windowMs - (nowMs - recent[0])
		return Decision{
			Allowed:           false,
			RetryAfterSeconds: int((remainingMs + 999) / 1000),
		}, nil
	}

	recent = append(recent, nowMs)
	if err := l.store.PutWindow(ip, recent); err != nil {
		return Decision{}, err
	}

	return Decision{Allowed: true}, nil
}
