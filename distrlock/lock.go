/*
Copyright © 2026 Acronis International GmbH.

Released under MIT license.
*/

// Package distrlock provides advisory locks with a TTL used to serialize migration runs
// across processes.
//
// A lock record holds a token of its current holder and an expiration time, so a lock left
// by a crashed process is taken over once its TTL elapses. SQLLock keeps records in an SQL table,
// other stores implement the Lock interface and reuse Run.
package distrlock

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/acronis/go-appkit/log"
)

// Default values used by Run.
const (
	DefaultTTL            = time.Minute
	DefaultReleaseTimeout = 5 * time.Second
)

// Lock is an advisory lock kept in a store.
type Lock interface {
	Key() string

	// Token identifies the current holder. It's empty until the lock is acquired.
	Token() string

	// Acquire takes the lock for ttl. ErrLockAlreadyAcquired is returned if it's held by someone else.
	Acquire(ctx context.Context, ttl time.Duration) error

	// Extend prolongs the acquired lock for its TTL.
	// ErrLockAlreadyReleased is returned if the lock has been released or has expired.
	Extend(ctx context.Context) error

	// Release gives the lock up. ErrLockAlreadyReleased is returned if it has been released or has expired.
	Release(ctx context.Context) error
}

type runOptions struct {
	ttl            time.Duration
	extendInterval time.Duration
	releaseTimeout time.Duration
	logger         log.FieldLogger
}

// RunOption is an option for Run.
type RunOption func(*runOptions)

// WithTTL sets TTL of the lock acquired by Run.
func WithTTL(ttl time.Duration) RunOption {
	return func(o *runOptions) {
		o.ttl = ttl
	}
}

// WithExtendInterval sets interval of the lock extension. By default, it's half of the TTL.
func WithExtendInterval(interval time.Duration) RunOption {
	return func(o *runOptions) {
		o.extendInterval = interval
	}
}

// WithReleaseTimeout sets timeout for the lock release.
func WithReleaseTimeout(timeout time.Duration) RunOption {
	return func(o *runOptions) {
		o.releaseTimeout = timeout
	}
}

// WithLogger sets logger for failures of the lock extension and release.
func WithLogger(logger log.FieldLogger) RunOption {
	return func(o *runOptions) {
		o.logger = logger
	}
}

// Run acquires the lock, calls fn and releases the lock when fn is finished.
// While fn is running, the lock is extended periodically in a separate goroutine.
// If the extension finds the lock lost, the context passed to fn is canceled.
// The lock is released with a fresh context, so it's given up even if ctx is canceled.
func Run(ctx context.Context, lock Lock, fn func(ctx context.Context) error, options ...RunOption) error {
	opts := runOptions{ttl: DefaultTTL, releaseTimeout: DefaultReleaseTimeout}
	for _, opt := range options {
		opt(&opts)
	}
	if opts.ttl <= 0 {
		opts.ttl = DefaultTTL
	}
	if opts.extendInterval <= 0 {
		opts.extendInterval = opts.ttl / 2
	}
	if opts.logger == nil {
		opts.logger = log.NewDisabledLogger()
	}

	if err := lock.Acquire(ctx, opts.ttl); err != nil {
		return err
	}
	logger := opts.logger.With(log.String("lock_key", lock.Key()), log.String("lock_token", lock.Token()))

	//nolint:contextcheck // the lock must be released even if ctx is already canceled
	defer func() {
		releaseCtx, releaseCtxCancel := context.WithTimeout(context.Background(), opts.releaseTimeout)
		defer releaseCtxCancel()
		if releaseErr := lock.Release(releaseCtx); releaseErr != nil {
			logger.Error("failed to release lock", log.Error(releaseErr))
		}
	}()

	fnCtx, fnCtxCancel := context.WithCancel(ctx)
	defer fnCtxCancel()

	var wg sync.WaitGroup
	stop := make(chan struct{})
	defer func() {
		close(stop)
		wg.Wait()
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(opts.extendInterval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				extendErr := lock.Extend(ctx)
				if extendErr == nil {
					continue
				}
				logger.Error("failed to extend lock", log.Error(extendErr))
				if errors.Is(extendErr, ErrLockAlreadyReleased) {
					fnCtxCancel()
					return
				}
			}
		}
	}()

	return fn(fnCtx)
}
