/*
Copyright © 2026 Acronis International GmbH.

Released under MIT license.
*/

package distrlock

import "errors"

// ErrLockAlreadyAcquired is returned when the lock is held by another token and hasn't expired yet.
var ErrLockAlreadyAcquired = errors.New("distributed lock already acquired")

// ErrLockAlreadyReleased is returned when the lock is released or expired.
var ErrLockAlreadyReleased = errors.New("distributed lock already released")

// ErrUnsupportedDialect is returned for dialects without a lock implementation.
var ErrUnsupportedDialect = errors.New("unsupported sql dialect")
