/*
Copyright © 2026 Acronis International GmbH.

Released under MIT license.
*/

// Package migrate provides the services applying migrations and seeds through an adapter.
//
// Changes are discovered in a directory of timestamp-named definition files and diffed against
// the execution log read from the adapter. Pending changes are executed one at a time in file name
// order. The first failure stops the batch, changes executed before it stay recorded as applied.
//
// Basic usage:
//
//	a, err := backend.New(dbCfg, logger, backend.Options{})
//	if err != nil {
//	    return err
//	}
//	svc := migrate.NewMigrationService(a, logger, migrate.WithDir("./migrations"))
//	defer svc.Close(ctx)
//	if err = svc.Initialize(ctx); err != nil {
//	    return err
//	}
//	applied, err := svc.Up(ctx)
package migrate

import (
	"context"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/acronis/go-appkit/log"

	"github.com/acronis/go-dbmigrate"
	"github.com/acronis/go-dbmigrate/adapter"
	"github.com/acronis/go-dbmigrate/change"
)

// LockKey returns the key of the advisory lock taken by mutating operations on changes of the kind.
func LockKey(kind change.Kind) string {
	return "dbmigrate:" + string(kind)
}

// service contains the logic shared by MigrationService and SeedService.
type service struct {
	adapter adapter.Adapter
	kind    change.Kind
	logger  log.FieldLogger
	opts    serviceOptions
}

func newService(a adapter.Adapter, kind change.Kind, logger log.FieldLogger, defaultDir string, opts []Option) service {
	if logger == nil {
		logger = log.NewDisabledLogger()
	}
	return service{adapter: a, kind: kind, logger: logger, opts: newServiceOptions(defaultDir, opts)}
}

// Dir returns the directory containing definition files.
func (s *service) Dir() string {
	return s.opts.dir
}

// Initialize connects the adapter, ensures the execution log exists and creates
// the definitions directory if it's absent.
func (s *service) Initialize(ctx context.Context) error {
	if err := s.adapter.Connect(ctx); err != nil {
		return err
	}
	if err := s.adapter.EnsureChangeLog(ctx, s.kind); err != nil {
		return err
	}
	if s.opts.fsys != nil {
		return nil
	}
	if err := os.MkdirAll(s.opts.dir, 0o755); err != nil {
		return fmt.Errorf("create %s directory %s: %w", s.kind, s.opts.dir, err)
	}
	return nil
}

// Close disconnects the adapter. It's safe to call it on every exit path, also when Initialize failed.
func (s *service) Close(ctx context.Context) error {
	return s.adapter.Disconnect(ctx)
}

// Create writes a new definition file with an empty template and returns its path.
// It doesn't touch the execution log.
func (s *service) Create(name string) (string, error) {
	if s.opts.fsys != nil {
		return "", fmt.Errorf("create %s: definitions are read from a read-only file system", s.kind)
	}
	filePath, err := change.Create(s.opts.dir, s.kind, name, s.adapter.ScriptExtension(), s.opts.now())
	if err != nil {
		return "", err
	}
	s.logger.Info(fmt.Sprintf("created %s %s", s.kind, filePath))
	return filePath, nil
}

// Status reports applied and pending definitions. It never mutates anything and doesn't take the lock.
func (s *service) Status(ctx context.Context) (Report, error) {
	defs, records, err := s.load(ctx)
	if err != nil {
		return Report{}, err
	}
	return newReport(s.kind, defs, records), nil
}

func (s *service) loadDefinitions() ([]change.Definition, error) {
	var defs []change.Definition
	var err error
	if s.opts.fsys != nil {
		defs, err = change.LoadFS(s.opts.fsys, s.opts.dir, s.kind, s.adapter.ScriptExtension())
	} else {
		defs, err = change.LoadAll(s.opts.dir, s.kind, s.adapter.ScriptExtension())
	}
	if err != nil {
		return nil, err
	}
	if validator, ok := s.adapter.(adapter.DefinitionValidator); ok {
		for i := range defs {
			if err = validator.ValidateDefinition(&defs[i]); err != nil {
				return nil, err
			}
		}
	}
	return defs, nil
}

func (s *service) load(ctx context.Context) ([]change.Definition, []change.ExecutionRecord, error) {
	defs, err := s.loadDefinitions()
	if err != nil {
		return nil, nil, err
	}
	records, err := s.adapter.ReadExecutionLog(ctx, s.kind)
	if err != nil {
		return nil, nil, err
	}
	return defs, records, nil
}

func (s *service) exclusively(ctx context.Context, fn func(ctx context.Context) error) error {
	runner, ok := s.adapter.(adapter.ExclusiveRunner)
	if !s.opts.lockEnabled || !ok {
		return fn(ctx)
	}
	return runner.RunExclusively(ctx, LockKey(s.kind), s.opts.lockTTL, fn)
}

// execute runs the body of def in the direction and records the result in the execution log.
// A canceled ctx (e.g. the lock is lost) prevents the change from being started,
// but once the body is executed the result is recorded regardless of ctx.
func (s *service) execute(ctx context.Context, def *change.Definition, direction change.Direction) error {
	logger := s.logger.With(
		log.String("kind", string(def.Kind)), log.String("id", def.ID), log.String("name", def.Name))

	op, markOp := "apply", "mark applied"
	execFn, markFn := s.adapter.Apply, s.adapter.MarkApplied
	if direction == change.DirectionDown {
		op, markOp = "revert", "mark reverted"
		execFn, markFn = s.adapter.Revert, s.adapter.MarkReverted
	}

	if err := ctx.Err(); err != nil {
		logger.Error(fmt.Sprintf("%s %s not started", op, def.Kind), log.Error(err))
		return &dbmigrate.ChangeError{Kind: string(def.Kind), ID: def.ID, Name: def.Name, Op: op, Err: err}
	}

	logger.Info(fmt.Sprintf("%s %s started", op, def.Kind))
	startTime := time.Now()
	err := execFn(ctx, def)
	elapsed := time.Since(startTime)
	if s.opts.metrics != nil {
		s.opts.metrics.ObserveExecution(def.Kind, direction, elapsed, err)
	}
	if err != nil {
		logger.Error(fmt.Sprintf("%s %s failed", op, def.Kind), log.Error(err))
		return &dbmigrate.ChangeError{Kind: string(def.Kind), ID: def.ID, Name: def.Name, Op: op, Err: err}
	}
	if err = markFn(context.WithoutCancel(ctx), def); err != nil {
		logger.Error(fmt.Sprintf("%s %s failed", markOp, def.Kind), log.Error(err))
		return &dbmigrate.ChangeError{Kind: string(def.Kind), ID: def.ID, Name: def.Name, Op: markOp, Err: err}
	}
	logger.Info(fmt.Sprintf("%s %s finished", op, def.Kind), log.Int64("duration_ms", elapsed.Milliseconds()))
	return nil
}

// pendingDefinitions returns definitions without an applied execution record, preserving their order.
func pendingDefinitions(defs []change.Definition, records []change.ExecutionRecord) []change.Definition {
	applied := appliedIDs(records)
	var pending []change.Definition
	for _, def := range defs {
		if _, ok := applied[def.ID]; !ok {
			pending = append(pending, def)
		}
	}
	return pending
}

// executedDefinitions returns definitions with an applied execution record ordered
// by the time they were applied (ties are ordered by ID).
func executedDefinitions(defs []change.Definition, records []change.ExecutionRecord) []change.Definition {
	byID := make(map[string]change.Definition, len(defs))
	for _, def := range defs {
		byID[def.ID] = def
	}
	sorted := sortedRecords(records)
	var executed []change.Definition
	for _, rec := range sorted {
		if !rec.Applied {
			continue
		}
		if def, ok := byID[rec.ID]; ok {
			executed = append(executed, def)
		}
	}
	return executed
}

func appliedIDs(records []change.ExecutionRecord) map[string]change.ExecutionRecord {
	applied := make(map[string]change.ExecutionRecord, len(records))
	for _, rec := range records {
		if rec.Applied {
			applied[rec.ID] = rec
		}
	}
	return applied
}

func sortedRecords(records []change.ExecutionRecord) []change.ExecutionRecord {
	sorted := make([]change.ExecutionRecord, len(records))
	copy(sorted, records)
	sort.SliceStable(sorted, func(i, j int) bool {
		if !sorted[i].AppliedAt.Equal(sorted[j].AppliedAt) {
			return sorted[i].AppliedAt.Before(sorted[j].AppliedAt)
		}
		return sorted[i].ID < sorted[j].ID
	})
	return sorted
}
