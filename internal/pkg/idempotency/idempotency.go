// Package idempotency suppresses repeated execution of an operation keyed by
// a caller-chosen string. A redis SET NX marker holds the key while the
// operation runs and is then replaced by a short-lived completed or failed
// marker, so a double-submitted request within that window is reported as a
// duplicate instead of running again.
package idempotency

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	ErrAlreadyInProgress = errors.New("idempotency: operation already in progress")
	ErrAlreadyCompleted  = errors.New("idempotency: operation already completed")
	ErrAlreadyFailed     = errors.New("idempotency: operation already failed")
	ErrInvalidState      = errors.New("idempotency: invalid state")
)

// IsDuplicate reports whether err means another caller already ran, or is
// running, the operation for the same key.
func IsDuplicate(err error) bool {
	return errors.Is(err, ErrAlreadyInProgress) ||
		errors.Is(err, ErrAlreadyCompleted) ||
		errors.Is(err, ErrAlreadyFailed)
}

// State is the marker stored under a key.
type State string

const (
	StateNone       State = "none"
	StateInProgress State = "in_progress"
	StateCompleted  State = "completed"
	StateFailed     State = "failed"
	StateError      State = "error"
)

func (s State) String() string {
	return string(s)
}

// duplicateErr maps a marker found on acquire to the error Exec returns.
var duplicateErr = map[State]error{
	StateInProgress: ErrAlreadyInProgress,
	StateCompleted:  ErrAlreadyCompleted,
	StateFailed:     ErrAlreadyFailed,
}

// Idempotency runs fn unless the same key ran recently or is running now.
type Idempotency interface {
	Exec(ctx context.Context, key string, fn func(context.Context) error, opts ...Option) error
}

const (
	defaultPrefix       = "stepup:idempotency:"
	defaultLockDuration = time.Minute
	defaultStateTTL     = time.Minute
)

// Tracker is the redis-backed Idempotency.
type Tracker struct {
	client redis.Cmdable
	prefix string
}

func New(client redis.Cmdable) *Tracker {
	return &Tracker{client: client, prefix: defaultPrefix}
}

type Option func(*execOptions)

type execOptions struct {
	lockDuration time.Duration
	stateTTL     time.Duration
}

// WithLockDuration bounds how long the in-progress marker lives if the
// process dies before writing a terminal marker.
func WithLockDuration(d time.Duration) Option {
	return func(o *execOptions) {
		if d > 0 {
			o.lockDuration = d
		}
	}
}

// WithStateTTL sets how long the completed or failed marker suppresses repeats.
func WithStateTTL(d time.Duration) Option {
	return func(o *execOptions) {
		if d > 0 {
			o.stateTTL = d
		}
	}
}

// Acquire takes the key, returning StateNone on success or the marker that
// another caller left behind.
func (t *Tracker) Acquire(ctx context.Context, key string, lock time.Duration) (State, error) {
	fk := t.prefix + key

	// The second round covers a marker that expired between SETNX and GET.
	for range 2 {
		ok, err := t.client.SetNX(ctx, fk, StateInProgress.String(), lock).Result()
		if err != nil {
			return StateError, err
		}
		if ok {
			return StateNone, nil
		}

		current, err := t.client.Get(ctx, fk).Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return StateError, err
		}

		state := State(current)
		if _, known := duplicateErr[state]; !known {
			return StateError, ErrInvalidState
		}
		return state, nil
	}

	return StateError, ErrInvalidState
}

// mark writes a terminal marker even when ctx was canceled while fn ran.
func (t *Tracker) mark(ctx context.Context, key string, state State, ttl time.Duration) error {
	return t.client.Set(context.WithoutCancel(ctx), t.prefix+key, state.String(), ttl).Err()
}

// Exec runs fn at most once per key within the lock and state windows.
// A failed fn is remembered too; callers that want a retry choose a new key.
func (t *Tracker) Exec(ctx context.Context, key string, fn func(context.Context) error, opts ...Option) error {
	o := execOptions{lockDuration: defaultLockDuration, stateTTL: defaultStateTTL}
	for _, opt := range opts {
		opt(&o)
	}

	state, err := t.Acquire(ctx, key, o.lockDuration)
	if err != nil {
		return err
	}
	if dup, ok := duplicateErr[state]; ok {
		return dup
	}

	if err := fn(ctx); err != nil {
		return errors.Join(err, t.mark(ctx, key, StateFailed, o.stateTTL))
	}
	return t.mark(ctx, key, StateCompleted, o.stateTTL)
}
