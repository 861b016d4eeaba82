/*
Copyright © 2026 Acronis International GmbH.

Released under MIT license.
*/

package mongoadapter

import (
	"context"
	"fmt"
	"time"

	"github.com/acronis/go-appkit/log"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/acronis/go-dbmigrate/distrlock"
)

// docLock is an advisory lock stored as a document {_id: key, token, expireAt}.
type docLock struct {
	coll  *mongo.Collection
	key   string
	token string
	ttl   time.Duration
	now   func() time.Time
}

var _ distrlock.Lock = (*docLock)(nil)

func (l *docLock) Key() string { return l.key }

func (l *docLock) Token() string { return l.token }

// Acquire takes the lock if it's absent or expired.
// A duplicate key error means the document exists and is held by someone else.
func (l *docLock) Acquire(ctx context.Context, ttl time.Duration) error {
	token := uuid.NewString()
	now := l.now().UTC()
	filter := bson.D{
		{Key: "_id", Value: l.key},
		{Key: "expireAt", Value: bson.D{{Key: "$lt", Value: now}}},
	}
	update := bson.D{{Key: "$set", Value: bson.D{
		{Key: "token", Value: token},
		{Key: "expireAt", Value: now.Add(ttl)},
	}}}
	_, err := l.coll.UpdateOne(ctx, filter, update, options.UpdateOne().SetUpsert(true))
	if mongo.IsDuplicateKeyError(err) {
		return distrlock.ErrLockAlreadyAcquired
	}
	if err != nil {
		return err
	}
	l.token = token
	l.ttl = ttl
	return nil
}

func (l *docLock) Extend(ctx context.Context) error {
	now := l.now().UTC()
	res, err := l.coll.UpdateOne(ctx,
		bson.D{{Key: "_id", Value: l.key}, {Key: "token", Value: l.token}, {Key: "expireAt", Value: bson.D{{Key: "$gte", Value: now}}}},
		bson.D{{Key: "$set", Value: bson.D{{Key: "expireAt", Value: now.Add(l.ttl)}}}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return distrlock.ErrLockAlreadyReleased
	}
	return nil
}

func (l *docLock) Release(ctx context.Context) error {
	res, err := l.coll.DeleteOne(ctx, bson.D{{Key: "_id", Value: l.key}, {Key: "token", Value: l.token}})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return distrlock.ErrLockAlreadyReleased
	}
	return nil
}

// RunExclusively calls fn holding the advisory lock identified by key.
// If the lock is lost while fn is running, the context passed to fn is canceled.
func (a *Adapter) RunExclusively(
	ctx context.Context, key string, ttl time.Duration, fn func(ctx context.Context) error,
) error {
	db, err := a.database()
	if err != nil {
		return a.storageErr("lock", "", err)
	}
	lock := &docLock{coll: db.Collection(a.locksCollection), key: key, now: a.now}

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
