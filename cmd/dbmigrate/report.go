/*
Copyright © 2026 Acronis International GmbH.

Released under MIT license.
*/

package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"

	"github.com/acronis/go-dbmigrate/migrate"
)

var (
	colorApplied = color.New(color.FgGreen).SprintFunc()
	colorPending = color.New(color.FgYellow).SprintFunc()
	colorOrphan  = color.New(color.FgRed).SprintFunc()
)

func successMark() string {
	return colorApplied("✓")
}

// printReport prints the status report as a table followed by a summary line.
func (a *app) printReport(report migrate.Report) error {
	if len(report.Entries) == 0 && len(report.Orphans) == 0 {
		a.printf("No %ss found\n", report.Kind)
		return nil
	}
	w := tabwriter.NewWriter(a.stdout, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "STATUS\tAPPLIED AT\tID")
	for _, e := range report.Entries {
		if e.Applied {
			_, _ = fmt.Fprintf(w, "%s\t%s\t%s\n", colorApplied("applied"), e.AppliedAt.UTC().Format(time.RFC3339), e.ID)
		} else {
			_, _ = fmt.Fprintf(w, "%s\t%s\t%s\n", colorPending("pending"), "-", e.ID)
		}
	}
	for _, rec := range report.Orphans {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\n", colorOrphan("missing"), rec.AppliedAt.UTC().Format(time.RFC3339), rec.ID)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	a.printf("\n%d applied, %d pending", len(report.Applied()), len(report.Pending()))
	if len(report.Orphans) != 0 {
		a.printf(", %d applied without a file", len(report.Orphans))
	}
	a.printf("\n")
	return nil
}
