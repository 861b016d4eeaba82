/*
Copyright © 2026 Acronis International GmbH.

Released under MIT license.
*/

// Package change describes migration and seed definitions and their execution records,
// and loads definitions from timestamp-named files.
//
// A definition file is named <YYYY-MM-DDTHH-MM-SS-mmmZ>_<name>.<ext> and contains entry points
// delimited by marker lines:
//
//	-- +up
//	CREATE TABLE users (id INTEGER PRIMARY KEY, name TEXT);
//
//	-- +down
//	DROP TABLE users;
//
// Seeds carry a single "+seed" entry point. A "+notransaction" marker disables
// the wrapping transaction for backends that support one.
package change

import (
	"fmt"
	"strings"
	"time"
)

// Kind defines the kind of a change.
type Kind string

// Change kinds.
const (
	KindMigration Kind = "migration"
	KindSeed      Kind = "seed"
)

// Direction defines the direction in which a change body is executed.
type Direction string

// Change directions.
const (
	DirectionUp   Direction = "up"
	DirectionDown Direction = "down"
)

// TimestampLayout is the layout of the timestamp prefix in definition file names.
// The dot before milliseconds is replaced by a dash when the name is generated.
const TimestampLayout = "2006-01-02T15-04-05.000Z"

const timestampPrefixLen = len("2006-01-02T15-04-05-000Z")

// Definition is a change parsed from a file. It never carries applied state:
// definitions and execution records are correlated by ID only.
type Definition struct {
	Kind      Kind
	ID        string // file name including extension
	Name      string
	SourceRef string // path of the file
	Timestamp time.Time
	Forward   string // migrations only
	Reverse   string // migrations only
	Body      string // seeds only
	DisableTx bool
}

// Script returns the body executed in the given direction.
// For seeds the body is returned for DirectionUp and an empty string otherwise.
func (d *Definition) Script(direction Direction) string {
	if d.Kind == KindSeed {
		if direction == DirectionUp {
			return d.Body
		}
		return ""
	}
	if direction == DirectionDown {
		return d.Reverse
	}
	return d.Forward
}

func (d *Definition) String() string {
	return fmt.Sprintf("%s %s", d.Kind, d.ID)
}

// ExecutionRecord is the persisted fact that a change has been applied or reverted.
type ExecutionRecord struct {
	ID        string
	Name      string
	SourceRef string
	AppliedAt time.Time
	Applied   bool
}

// FormatTimestamp formats t (converted to UTC) as a file name prefix,
// e.g. 2025-01-02T15-04-05-123Z.
func FormatTimestamp(t time.Time) string {
	return strings.Replace(t.UTC().Format(TimestampLayout), ".", "-", 1)
}

// ParseTimestamp parses a file name prefix produced by FormatTimestamp.
func ParseTimestamp(s string) (time.Time, error) {
	if len(s) != timestampPrefixLen || s[19] != '-' {
		return time.Time{}, fmt.Errorf("invalid timestamp %q", s)
	}
	t, err := time.Parse(TimestampLayout, s[:19]+"."+s[20:])
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid timestamp %q: %w", s, err)
	}
	return t, nil
}

// SplitFileName extracts the timestamp and the human-readable name from a definition file name.
// If the name doesn't start with a timestamp prefix, the zero time and
// the file name without extension are returned.
func SplitFileName(fileName, ext string) (ts time.Time, name string) {
	base := strings.TrimSuffix(fileName, ext)
	if len(base) > timestampPrefixLen+1 && base[timestampPrefixLen] == '_' {
		if t, err := ParseTimestamp(base[:timestampPrefixLen]); err == nil {
			return t, base[timestampPrefixLen+1:]
		}
	}
	return time.Time{}, base
}
