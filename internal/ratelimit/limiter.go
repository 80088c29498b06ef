package ratelimit

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/garyjia/task-tracker/internal/domain/entity"
)

// Class distinguishes read and write throughput budgets.
type Class string

// Operation classes
const (
	ClassRead  Class = "read"
	ClassWrite Class = "write"
)

// RoleLimits holds the per-window request budgets for one role. A nil limit
// means unlimited; a zero limit is a hard block regardless of window state.
type RoleLimits struct {
	Read  *int
	Write *int
}

// Policy maps role -> limits. It is treated as immutable after construction;
// the limiter never modifies it.
type Policy map[string]RoleLimits

// DefaultPolicy returns the reference limits: developers 100/20, managers
// 200/50, auditors unlimited reads and no writes at all.
func DefaultPolicy() Policy {
	devRead, devWrite := 100, 20
	mgrRead, mgrWrite := 200, 50
	audWrite := 0
	return Policy{
		entity.RoleDeveloper: {Read: &devRead, Write: &devWrite},
		entity.RoleManager:   {Read: &mgrRead, Write: &mgrWrite},
		entity.RoleAuditor:   {Read: nil, Write: &audWrite},
	}
}

// Decision is the outcome of one Allow call.
type Decision struct {
	Allowed bool

	// Unlimited marks decisions that never touched a counter (nil limit).
	Unlimited bool

	// HardBlocked marks zero-limit denials (auditor writes): the caller maps
	// these to a role error, not a retry-later error.
	HardBlocked bool

	// WaitSeconds is how long until the window resets, set on non-hard denials.
	WaitSeconds int
}

type counterKey struct {
	userID int64
	class  Class
}

// windowCounter is a fixed-start window: the first request opens it, requests
// inside it increment the count, and the first request after it expires
// replaces it.
type windowCounter struct {
	count int
	start time.Time
}

// Limiter gates per-user request throughput by role and operation class.
type Limiter struct {
	policy Policy
	window time.Duration
	logger *zap.Logger

	mu       sync.Mutex
	counters map[counterKey]*windowCounter

	// now is swappable for tests
	now func() time.Time
}

// WindowSeconds is the reference counting window.
const WindowSeconds = 3600

// New creates a limiter with the given policy and window.
func New(policy Policy, window time.Duration, logger *zap.Logger) *Limiter {
	return &Limiter{
		policy:   policy,
		window:   window,
		logger:   logger,
		counters: make(map[counterKey]*windowCounter),
		now:      time.Now,
	}
}

// Allow decides whether one request from user counts against and fits within
// the (user, class) budget. A nil user is an unauthenticated caller and
// bypasses limiting entirely. The read-increment-write on the counter happens
// under the limiter's lock, so concurrent requests from one user never
// undercount.
func (l *Limiter) Allow(user *entity.User, class Class) Decision {
	if user == nil {
		return Decision{Allowed: true}
	}

	limits, ok := l.policy[user.Role]
	if !ok {
		// Unknown role: no budget configured, let it through.
		return Decision{Allowed: true}
	}

	var limit *int
	if class == ClassWrite {
		limit = limits.Write
	} else {
		limit = limits.Read
	}

	if limit == nil {
		return Decision{Allowed: true, Unlimited: true}
	}
	if *limit == 0 {
		return Decision{Allowed: false, HardBlocked: true}
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	key := counterKey{userID: user.ID, class: class}
	now := l.now()

	rec, exists := l.counters[key]
	if !exists || now.Sub(rec.start) > l.window {
		l.counters[key] = &windowCounter{count: 1, start: now}
		return Decision{Allowed: true}
	}

	if rec.count >= *limit {
		wait := int((l.window - now.Sub(rec.start)).Seconds())
		if wait < 0 {
			wait = 0
		}
		l.logger.Warn("Rate limit exceeded",
			zap.Int64("user_id", user.ID),
			zap.String("role", user.Role),
			zap.String("class", string(class)),
			zap.Int("wait_seconds", wait))
		return Decision{Allowed: false, WaitSeconds: wait}
	}

	rec.count++
	return Decision{Allowed: true}
}
