package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-identity/core"
)

var ErrStateNotFound = errors.New("ratelimit: state not found")

// State tracks consecutive credential failures for one subject. The
// throttle window grows with each failure past the grace allowance and
// collapses on the first success.
type State struct {
	Subject        string
	Failures       int
	ThrottledUntil *time.Time
	LastFailureAt  *time.Time
	UpdatedAt      time.Time
}

type StateStore interface {
	Get(ctx context.Context, subject string) (State, error)
	Upsert(ctx context.Context, state State) error
	Delete(ctx context.Context, subject string) error
}

type ThrottledError struct {
	Subject    string
	RetryAfter time.Duration
}

func (e ThrottledError) Error() string {
	return fmt.Sprintf(
		"ratelimit: subject %q throttled for %s",
		strings.TrimSpace(e.Subject),
		e.RetryAfter,
	)
}

func (e ThrottledError) ToAuthError() *goerrors.Error {
	metadata := map[string]any{
		"subject": strings.TrimSpace(e.Subject),
	}
	if e.RetryAfter > 0 {
		metadata["retry_after_ms"] = e.RetryAfter.Milliseconds()
	}
	return goerrors.New(e.Error(), goerrors.CategoryRateLimit).
		WithCode(http.StatusTooManyRequests).
		WithTextCode(core.AuthErrorRateLimited).
		WithMetadata(metadata)
}

// AttemptPolicy throttles repeated credential failures with exponential
// backoff. The first FreeAttempts failures pass unthrottled; after that
// each failure doubles the lockout up to MaxBackoff.
type AttemptPolicy struct {
	Store          StateStore
	Now            func() time.Time
	FreeAttempts   int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	// StaleAfter resets the failure count when the last failure is older
	// than the window, so a forgotten typo last week does not count.
	StaleAfter time.Duration
}

func NewAttemptPolicy(store StateStore) *AttemptPolicy {
	return &AttemptPolicy{
		Store:          store,
		Now:            func() time.Time { return time.Now().UTC() },
		FreeAttempts:   5,
		InitialBackoff: time.Second,
		MaxBackoff:     15 * time.Minute,
		StaleAfter:     time.Hour,
	}
}

// CheckAttempt rejects the attempt while the subject is inside an active
// throttle window. Unknown subjects always pass.
func (p *AttemptPolicy) CheckAttempt(ctx context.Context, subject string) error {
	if p == nil || p.Store == nil {
		return nil
	}
	subject = normalizeSubject(subject)
	state, err := p.Store.Get(ctx, subject)
	if err != nil {
		if errors.Is(err, ErrStateNotFound) {
			return nil
		}
		return err
	}

	now := p.now()
	if until := state.ThrottledUntil; until != nil && now.Before(*until) {
		return ThrottledError{Subject: subject, RetryAfter: until.Sub(now)}.ToAuthError()
	}
	return nil
}

// RecordFailure bumps the failure count and, past the grace allowance,
// opens or extends the throttle window.
func (p *AttemptPolicy) RecordFailure(ctx context.Context, subject string) error {
	if p == nil || p.Store == nil {
		return nil
	}
	subject = normalizeSubject(subject)
	now := p.now()

	state, err := p.Store.Get(ctx, subject)
	if err != nil && !errors.Is(err, ErrStateNotFound) {
		return err
	}
	if errors.Is(err, ErrStateNotFound) {
		state = State{Subject: subject}
	}
	if p.isStale(state, now) {
		state.Failures = 0
		state.ThrottledUntil = nil
	}

	state.Failures++
	state.LastFailureAt = &now
	state.UpdatedAt = now

	if over := state.Failures - p.freeAttempts(); over > 0 {
		until := now.Add(p.nextBackoff(over))
		state.ThrottledUntil = &until
	}
	return p.Store.Upsert(ctx, state)
}

// RecordSuccess clears the subject's failure history.
func (p *AttemptPolicy) RecordSuccess(ctx context.Context, subject string) error {
	if p == nil || p.Store == nil {
		return nil
	}
	return p.Store.Delete(ctx, normalizeSubject(subject))
}

func (p *AttemptPolicy) now() time.Time {
	if p != nil && p.Now != nil {
		return p.Now().UTC()
	}
	return time.Now().UTC()
}

func (p *AttemptPolicy) freeAttempts() int {
	if p != nil && p.FreeAttempts > 0 {
		return p.FreeAttempts
	}
	return 5
}

func (p *AttemptPolicy) isStale(state State, now time.Time) bool {
	if p.StaleAfter <= 0 || state.LastFailureAt == nil {
		return false
	}
	return now.Sub(*state.LastFailureAt) > p.StaleAfter
}

func (p *AttemptPolicy) nextBackoff(over int) time.Duration {
	initial := p.InitialBackoff
	if initial <= 0 {
		initial = time.Second
	}
	maximum := p.MaxBackoff
	if maximum <= 0 {
		maximum = 15 * time.Minute
	}
	delay := initial
	for i := 1; i < over; i++ {
		delay *= 2
		if delay >= maximum {
			return maximum
		}
	}
	if delay > maximum {
		return maximum
	}
	return delay
}

func normalizeSubject(subject string) string {
	return strings.TrimSpace(strings.ToLower(subject))
}

type MemoryStateStore struct {
	mu    sync.RWMutex
	items map[string]State
}

func NewMemoryStateStore() *MemoryStateStore {
	return &MemoryStateStore{items: map[string]State{}}
}

func (s *MemoryStateStore) Get(_ context.Context, subject string) (State, error) {
	if s == nil {
		return State{}, fmt.Errorf("ratelimit: state store is nil")
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	state, ok := s.items[normalizeSubject(subject)]
	if !ok {
		return State{}, ErrStateNotFound
	}
	return state, nil
}

func (s *MemoryStateStore) Upsert(_ context.Context, state State) error {
	if s == nil {
		return fmt.Errorf("ratelimit: state store is nil")
	}
	state.Subject = normalizeSubject(state.Subject)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[state.Subject] = state
	return nil
}

func (s *MemoryStateStore) Delete(_ context.Context, subject string) error {
	if s == nil {
		return fmt.Errorf("ratelimit: state store is nil")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.items, normalizeSubject(subject))
	return nil
}

var _ core.LoginThrottle = (*AttemptPolicy)(nil)
