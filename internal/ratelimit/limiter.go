package ratelimit

import (
	"context"
	"time"

	"vetdirectory/internal/observability"
)

// Operation identifies a rate-limited sensitive endpoint. Each operation
// has its own limit; registration and password reset are stricter because
// they are more expensive and more abusable than login.
type Operation string

const (
	OpLogin         Operation = "login"
	OpRegister      Operation = "register"
	OpPasswordReset Operation = "password_reset"
)

const (
	DefaultLoginLimit         = 5
	DefaultRegisterLimit      = 3
	DefaultPasswordResetLimit = 2
	DefaultWindow             = time.Minute
)

// CounterStore is the atomic counter backend. Incr must increment and, on
// the first hit in a window, arm the key's TTL — both effects at the
// storage layer so concurrent callers never lose updates.
type CounterStore interface {
	Incr(ctx context.Context, key string, ttl time.Duration) (int64, error)
	Get(ctx context.Context, key string) (int64, error)
	Delete(ctx context.Context, keys ...string) error
}

// Limiter applies fixed-window counting per (operation, client address).
// Windows reset wholesale when the counter's TTL lapses; burst at the
// window boundary is an accepted approximation.
//
// The limiter fails open: a store error or an unknown operation never
// denies the request. An outage in the counting store must not lock every
// user out of login.
type Limiter struct {
	store  CounterStore
	limits map[Operation]int
	window time.Duration
	logger *observability.Logger
}

type LimiterOption func(*Limiter)

func WithLimit(op Operation, limit int) LimiterOption {
	return func(l *Limiter) {
		if limit > 0 {
			l.limits[op] = limit
		}
	}
}

func WithWindow(window time.Duration) LimiterOption {
	return func(l *Limiter) {
		if window > 0 {
			l.window = window
		}
	}
}

func NewLimiter(store CounterStore, logger *observability.Logger, options ...LimiterOption) *Limiter {
	l := &Limiter{
		store: store,
		limits: map[Operation]int{
			OpLogin:         DefaultLoginLimit,
			OpRegister:      DefaultRegisterLimit,
			OpPasswordReset: DefaultPasswordResetLimit,
		},
		window: DefaultWindow,
		logger: logger,
	}
	for _, opt := range options {
		opt(l)
	}

	return l
}

func (l *Limiter) Window() time.Duration {
	return l.window
}

// Allow counts one attempt and reports whether it fits the window's limit.
func (l *Limiter) Allow(ctx context.Context, op Operation, clientAddr string) bool {
	limit, ok := l.limits[op]
	if !ok {
		return true
	}

	count, err := l.store.Incr(ctx, counterKey(op, clientAddr), l.window)
	if err != nil {
		l.logger.Error("rate_limit_store_failed", map[string]any{
			"operation": string(op),
			"error":     err.Error(),
		})
		return true
	}

	return count <= int64(limit)
}

// Remaining reports how many attempts are left in the current window. A
// missing counter means the full limit is available.
func (l *Limiter) Remaining(ctx context.Context, op Operation, clientAddr string) int {
	limit, ok := l.limits[op]
	if !ok {
		return 0
	}

	count, err := l.store.Get(ctx, counterKey(op, clientAddr))
	if err != nil {
		l.logger.Error("rate_limit_store_failed", map[string]any{
			"operation": string(op),
			"error":     err.Error(),
		})
		return limit
	}

	remaining := limit - int(count)
	if remaining < 0 {
		return 0
	}

	return remaining
}

// Clear drops every operation counter for the address. Admin and test use.
func (l *Limiter) Clear(ctx context.Context, clientAddr string) error {
	keys := make([]string, 0, len(l.limits))
	for op := range l.limits {
		keys = append(keys, counterKey(op, clientAddr))
	}

	return l.store.Delete(ctx, keys...)
}

func counterKey(op Operation, clientAddr string) string {
	return "ratelimit:" + string(op) + ":" + clientAddr
}
