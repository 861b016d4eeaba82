/*
Copyright © 2026 Acronis International GmbH.

Released under MIT license.
*/

// Package adapter defines the contract a storage backend implements to be driven by the migration engine.
package adapter

import (
	"context"
	"time"

	"github.com/acronis/go-dbmigrate/change"
)

// Adapter bridges the migration engine to one concrete storage backend.
// All methods except Backend and ScriptExtension return *dbmigrate.StorageError on failure.
type Adapter interface {
	// Backend returns the name of the backend (e.g. "postgres", "mongodb").
	Backend() string

	// ScriptExtension returns the extension of definition files this adapter executes (e.g. ".sql").
	ScriptExtension() string

	// Connect establishes the connection used for the rest of the run. Calling it twice is a no-op.
	Connect(ctx context.Context) error

	// Disconnect releases the connection. It's safe to call without Connect and more than once.
	Disconnect(ctx context.Context) error

	// EnsureChangeLog creates the table or collection storing execution records of the kind
	// if it doesn't exist yet.
	EnsureChangeLog(ctx context.Context, kind change.Kind) error

	// ReadExecutionLog returns all execution records of the kind ordered by AppliedAt ascending
	// (ties are ordered by ID).
	ReadExecutionLog(ctx context.Context, kind change.Kind) ([]change.ExecutionRecord, error)

	// Apply executes the forward body of a migration or the body of a seed.
	Apply(ctx context.Context, def *change.Definition) error

	// Revert executes the reverse body of a migration.
	Revert(ctx context.Context, def *change.Definition) error

	// MarkApplied upserts the execution record of def with Applied set to true.
	MarkApplied(ctx context.Context, def *change.Definition) error

	// MarkReverted upserts the execution record of def with Applied set to false.
	MarkReverted(ctx context.Context, def *change.Definition) error
}

// ExclusiveRunner is implemented by adapters able to hold an advisory lock in the target store.
type ExclusiveRunner interface {
	// RunExclusively acquires the lock identified by key for ttl, calls fn and releases the lock.
	// The lock is extended periodically while fn is running.
	RunExclusively(ctx context.Context, key string, ttl time.Duration, fn func(ctx context.Context) error) error
}

// DefinitionValidator is implemented by adapters able to check definition bodies without executing them.
// The migration engine calls it for every loaded definition.
type DefinitionValidator interface {
	// ValidateDefinition returns *dbmigrate.DefinitionParseError if a body of def can't be executed.
	ValidateDefinition(def *change.Definition) error
}
