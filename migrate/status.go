/*
Copyright © 2026 Acronis International GmbH.

Released under MIT license.
*/

package migrate

import (
	"time"

	"github.com/acronis/go-dbmigrate/change"
)

// StatusEntry is the state of a single definition.
type StatusEntry struct {
	ID        string
	Name      string
	Applied   bool
	AppliedAt time.Time // zero for pending definitions
}

// Report is the result of a status request.
type Report struct {
	Kind    change.Kind
	Entries []StatusEntry // in definition file order

	// Orphans are applied execution records without a definition file.
	Orphans []change.ExecutionRecord
}

func newReport(kind change.Kind, defs []change.Definition, records []change.ExecutionRecord) Report {
	applied := appliedIDs(records)
	report := Report{Kind: kind, Entries: make([]StatusEntry, 0, len(defs))}
	known := make(map[string]struct{}, len(defs))
	for _, def := range defs {
		known[def.ID] = struct{}{}
		entry := StatusEntry{ID: def.ID, Name: def.Name}
		if rec, ok := applied[def.ID]; ok {
			entry.Applied = true
			entry.AppliedAt = rec.AppliedAt
		}
		report.Entries = append(report.Entries, entry)
	}
	for _, rec := range sortedRecords(records) {
		if _, ok := known[rec.ID]; !ok && rec.Applied {
			report.Orphans = append(report.Orphans, rec)
		}
	}
	return report
}

// Pending returns entries which haven't been applied.
func (r Report) Pending() []StatusEntry {
	return r.filter(false)
}

// Applied returns applied entries.
func (r Report) Applied() []StatusEntry {
	return r.filter(true)
}

func (r Report) filter(applied bool) []StatusEntry {
	var res []StatusEntry
	for _, e := range r.Entries {
		if e.Applied == applied {
			res = append(res, e)
		}
	}
	return res
}
