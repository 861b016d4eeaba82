/*
Copyright © 2026 Acronis International GmbH.

Released under MIT license.
*/

package migrate_test

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/acronis/go-dbmigrate"
	"github.com/acronis/go-dbmigrate/adapter"
	"github.com/acronis/go-dbmigrate/change"
)

// memAdapter keeps execution logs in memory and records every call.
type memAdapter struct {
	mu sync.Mutex

	ext       string
	clock     time.Time
	connected bool
	records   map[change.Kind]map[string]change.ExecutionRecord
	calls     []string
	lockKeys  []string

	applyErrs  map[string]error
	revertErrs map[string]error
	markErr    error
	readErr    error
}

// noLockAdapter hides RunExclusively of the wrapped adapter.
type noLockAdapter struct {
	adapter.Adapter
}

func newMemAdapter() *memAdapter {
	return &memAdapter{
		ext:        ".sql",
		clock:      time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		records:    map[change.Kind]map[string]change.ExecutionRecord{},
		applyErrs:  map[string]error{},
		revertErrs: map[string]error{},
	}
}

func (a *memAdapter) Backend() string { return "memory" }

func (a *memAdapter) ScriptExtension() string { return a.ext }

func (a *memAdapter) Connect(context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.connected = true
	return nil
}

func (a *memAdapter) Disconnect(context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.connected = false
	return nil
}

func (a *memAdapter) EnsureChangeLog(_ context.Context, kind change.Kind) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.records[kind] == nil {
		a.records[kind] = map[string]change.ExecutionRecord{}
	}
	return nil
}

func (a *memAdapter) ReadExecutionLog(_ context.Context, kind change.Kind) ([]change.ExecutionRecord, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.readErr != nil {
		return nil, &dbmigrate.StorageError{Backend: "memory", Op: "read execution log", Err: a.readErr}
	}
	res := make([]change.ExecutionRecord, 0, len(a.records[kind]))
	for _, rec := range a.records[kind] {
		res = append(res, rec)
	}
	sort.Slice(res, func(i, j int) bool {
		if !res[i].AppliedAt.Equal(res[j].AppliedAt) {
			return res[i].AppliedAt.Before(res[j].AppliedAt)
		}
		return res[i].ID < res[j].ID
	})
	return res, nil
}

func (a *memAdapter) Apply(_ context.Context, def *change.Definition) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls = append(a.calls, "apply "+def.Name)
	if err := a.applyErrs[def.Name]; err != nil {
		return &dbmigrate.StorageError{Backend: "memory", Op: "apply", ChangeID: def.ID, Err: err}
	}
	return nil
}

func (a *memAdapter) Revert(_ context.Context, def *change.Definition) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if def.Kind == change.KindSeed {
		return errors.New("seeds can't be reverted")
	}
	a.calls = append(a.calls, "revert "+def.Name)
	if err := a.revertErrs[def.Name]; err != nil {
		return &dbmigrate.StorageError{Backend: "memory", Op: "revert", ChangeID: def.ID, Err: err}
	}
	return nil
}

func (a *memAdapter) MarkApplied(ctx context.Context, def *change.Definition) error {
	if err := ctx.Err(); err != nil {
		return &dbmigrate.StorageError{Backend: "memory", Op: "mark", ChangeID: def.ID, Err: err}
	}
	return a.mark(def, true)
}

func (a *memAdapter) MarkReverted(ctx context.Context, def *change.Definition) error {
	if err := ctx.Err(); err != nil {
		return &dbmigrate.StorageError{Backend: "memory", Op: "mark", ChangeID: def.ID, Err: err}
	}
	return a.mark(def, false)
}

func (a *memAdapter) mark(def *change.Definition, applied bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.markErr != nil {
		return &dbmigrate.StorageError{Backend: "memory", Op: "mark", ChangeID: def.ID, Err: a.markErr}
	}
	if a.records[def.Kind] == nil {
		a.records[def.Kind] = map[string]change.ExecutionRecord{}
	}
	a.clock = a.clock.Add(time.Second)
	a.records[def.Kind][def.ID] = change.ExecutionRecord{
		ID: def.ID, Name: def.Name, SourceRef: def.SourceRef, AppliedAt: a.clock, Applied: applied,
	}
	return nil
}

func (a *memAdapter) RunExclusively(
	ctx context.Context, key string, _ time.Duration, fn func(ctx context.Context) error,
) error {
	a.mu.Lock()
	a.lockKeys = append(a.lockKeys, key)
	a.mu.Unlock()
	return fn(ctx)
}

// lockLosingAdapter cancels the context of the exclusive run right after the change named loseDuring
// is applied or reverted, the way the lock extension does when it finds the lock lost.
type lockLosingAdapter struct {
	*memAdapter
	loseDuring string
	cancel     context.CancelFunc
}

func (a *lockLosingAdapter) RunExclusively(
	ctx context.Context, key string, ttl time.Duration, fn func(ctx context.Context) error,
) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	a.cancel = cancel
	return a.memAdapter.RunExclusively(ctx, key, ttl, fn)
}

func (a *lockLosingAdapter) Apply(ctx context.Context, def *change.Definition) error {
	err := a.memAdapter.Apply(ctx, def)
	a.loseLockAfter(def)
	return err
}

func (a *lockLosingAdapter) Revert(ctx context.Context, def *change.Definition) error {
	err := a.memAdapter.Revert(ctx, def)
	a.loseLockAfter(def)
	return err
}

func (a *lockLosingAdapter) loseLockAfter(def *change.Definition) {
	if def.Name == a.loseDuring && a.cancel != nil {
		a.cancel()
	}
}

// validatingAdapter rejects definitions listed in invalid when they are loaded.
type validatingAdapter struct {
	*memAdapter
	invalid map[string]error
}

func (a *validatingAdapter) ValidateDefinition(def *change.Definition) error {
	if err := a.invalid[def.Name]; err != nil {
		return &dbmigrate.DefinitionParseError{File: def.SourceRef, Err: err}
	}
	return nil
}

// putRecord stores the record as is, bypassing the clock.
func (a *memAdapter) putRecord(kind change.Kind, rec change.ExecutionRecord) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.records[kind] == nil {
		a.records[kind] = map[string]change.ExecutionRecord{}
	}
	a.records[kind][rec.ID] = rec
}

func (a *memAdapter) appliedIDs(kind change.Kind) []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	var ids []string
	for id, rec := range a.records[kind] {
		if rec.Applied {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

func (a *memAdapter) resetCalls() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls = nil
}
