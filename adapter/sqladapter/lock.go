/*
Copyright © 2026 Acronis International GmbH.

Released under MIT license.
*/

package sqladapter

import (
	"context"
	"fmt"
	"time"

	"github.com/acronis/go-appkit/log"

	"github.com/acronis/go-dbmigrate"
	"github.com/acronis/go-dbmigrate/distrlock"
)

// RunExclusively calls fn holding the advisory lock identified by key.
// MSSQL has no lock implementation, fn is called without locking there.
func (a *Adapter) RunExclusively(
	ctx context.Context, key string, ttl time.Duration, fn func(ctx context.Context) error,
) error {
	if a.dialect == dbmigrate.DialectMSSQL {
		a.logger.Warn("advisory lock is not supported, running without it",
			log.String("dialect", string(a.dialect)), log.String("lock_key", key))
		return fn(ctx)
	}

	db, err := a.conn()
	if err != nil {
		return a.storageErr("lock", "", err)
	}
	manager, err := distrlock.NewSQLManager(a.dialect, distrlock.WithTableName(a.locksTable))
	if err != nil {
		return a.storageErr("lock", "", err)
	}
	if err = manager.EnsureTable(ctx, db); err != nil {
		return a.storageErr("lock", "", err)
	}
	lock, err := manager.NewLock(ctx, db, key)
	if err != nil {
		return a.storageErr("lock", "", err)
	}

	var fnCalled bool
	err = distrlock.Run(ctx, lock, func(ctx context.Context) error {
		fnCalled = true
		a.logger.Debug("advisory lock acquired", log.String("lock_key", key), log.String("token", lock.Token()))
		return fn(ctx)
	}, distrlock.WithTTL(ttl), distrlock.WithLogger(a.logger))
	if err != nil && !fnCalled {
		return a.storageErr("lock", "", fmt.Errorf("acquire lock %s: %w", key, err))
	}
	return err
}
