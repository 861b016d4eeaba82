/*
Copyright © 2026 Acronis International GmbH.

Released under MIT license.
*/

package sqladapter

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"time"

	"github.com/doug-martin/goqu/v9"

	"github.com/acronis/go-dbmigrate"
	"github.com/acronis/go-dbmigrate/change"
)

var logColumns = []interface{}{"id", "name", "source_ref", "applied_at", "applied"}

// ReadExecutionLog returns all execution records of the kind ordered by applied_at and id.
func (a *Adapter) ReadExecutionLog(ctx context.Context, kind change.Kind) ([]change.ExecutionRecord, error) {
	records, err := a.readExecutionLog(ctx, kind)
	if err != nil {
		return nil, a.storageErr("read execution log", "", err)
	}
	return records, nil
}

func (a *Adapter) readExecutionLog(ctx context.Context, kind change.Kind) ([]change.ExecutionRecord, error) {
	db, err := a.conn()
	if err != nil {
		return nil, err
	}
	table, err := a.tableFor(kind)
	if err != nil {
		return nil, err
	}
	query, args, err := a.builder.From(table).
		Select(logColumns...).
		Order(goqu.C("applied_at").Asc(), goqu.C("id").Asc()).
		Prepared(true).
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build select query: %w", err)
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", table, err)
	}
	defer func() { _ = rows.Close() }()

	var records []change.ExecutionRecord
	for rows.Next() {
		var rec change.ExecutionRecord
		var appliedAt timeValue
		if err = rows.Scan(&rec.ID, &rec.Name, &rec.SourceRef, &appliedAt, &rec.Applied); err != nil {
			return nil, fmt.Errorf("scan %s row: %w", table, err)
		}
		rec.AppliedAt = appliedAt.Time
		records = append(records, rec)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s rows: %w", table, err)
	}

	// Drivers differ in time precision and text representation, order once more on decoded values.
	sort.SliceStable(records, func(i, j int) bool {
		if !records[i].AppliedAt.Equal(records[j].AppliedAt) {
			return records[i].AppliedAt.Before(records[j].AppliedAt)
		}
		return records[i].ID < records[j].ID
	})
	return records, nil
}

// MarkApplied upserts the execution record of def with applied = true.
func (a *Adapter) MarkApplied(ctx context.Context, def *change.Definition) error {
	if err := a.mark(ctx, def, true); err != nil {
		return a.storageErr("mark applied", def.ID, err)
	}
	return nil
}

// MarkReverted upserts the execution record of def with applied = false.
func (a *Adapter) MarkReverted(ctx context.Context, def *change.Definition) error {
	if err := a.mark(ctx, def, false); err != nil {
		return a.storageErr("mark reverted", def.ID, err)
	}
	return nil
}

func (a *Adapter) mark(ctx context.Context, def *change.Definition, applied bool) error {
	db, err := a.conn()
	if err != nil {
		return err
	}
	table, err := a.tableFor(def.Kind)
	if err != nil {
		return err
	}
	// Microseconds is the finest precision supported by all dialects.
	appliedAt := a.now().UTC().Truncate(time.Microsecond)

	updateSQL, updateArgs, err := a.builder.Update(table).
		Set(goqu.Record{"name": def.Name, "source_ref": def.SourceRef, "applied_at": appliedAt, "applied": applied}).
		Where(goqu.C("id").Eq(def.ID)).
		Prepared(true).
		ToSQL()
	if err != nil {
		return fmt.Errorf("build update query: %w", err)
	}
	insertSQL, insertArgs, err := a.builder.Insert(table).
		Rows(goqu.Record{
			"id": def.ID, "name": def.Name, "source_ref": def.SourceRef, "applied_at": appliedAt, "applied": applied,
		}).
		Prepared(true).
		ToSQL()
	if err != nil {
		return fmt.Errorf("build insert query: %w", err)
	}

	return dbmigrate.DoInTx(ctx, db, func(tx *sql.Tx) error {
		res, execErr := tx.ExecContext(ctx, updateSQL, updateArgs...)
		if execErr != nil {
			return fmt.Errorf("update %s: %w", table, execErr)
		}
		affected, execErr := res.RowsAffected()
		if execErr != nil {
			return fmt.Errorf("get affected rows: %w", execErr)
		}
		if affected > 0 {
			return nil
		}
		if _, execErr = tx.ExecContext(ctx, insertSQL, insertArgs...); execErr != nil {
			return fmt.Errorf("insert into %s: %w", table, execErr)
		}
		return nil
	})
}

// timeValue scans timestamps returned either as time.Time or as text (SQLite without type
// detection, MySQL without parseTime).
type timeValue struct {
	Time time.Time
}

var timeLayouts = []string{
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02T15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05",
	time.RFC3339Nano,
}

func (v *timeValue) Scan(src interface{}) error {
	switch t := src.(type) {
	case time.Time:
		v.Time = t.UTC()
		return nil
	case string:
		return v.parse(t)
	case []byte:
		return v.parse(string(t))
	case nil:
		v.Time = time.Time{}
		return nil
	default:
		return fmt.Errorf("unsupported time value type %T", src)
	}
}

func (v *timeValue) parse(s string) error {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			v.Time = t.UTC()
			return nil
		}
	}
	return fmt.Errorf("parse time %q", s)
}
