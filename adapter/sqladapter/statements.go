/*
Copyright © 2026 Acronis International GmbH.

Released under MIT license.
*/

package sqladapter

import (
	"strings"
)

// splitStatements splits an SQL body into individual statements.
// A statement ends with a semicolon at the end of a line. Whole-line comments are skipped,
// semicolons inside a line (e.g. in string literals) don't split it.
func splitStatements(body string) []string {
	var statements []string
	var current strings.Builder

	appendCurrent := func() {
		stmt := strings.TrimSpace(current.String())
		if stmt != "" && stmt != ";" {
			statements = append(statements, stmt)
		}
		current.Reset()
	}

	for _, line := range strings.Split(body, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" && current.Len() == 0 {
			continue
		}
		if strings.HasPrefix(trimmed, "--") || strings.HasPrefix(trimmed, "#") {
			continue
		}

		current.WriteString(strings.TrimRight(line, "\r"))
		current.WriteString("\n")

		if strings.HasSuffix(trimmed, ";") {
			appendCurrent()
		}
	}
	appendCurrent()

	return statements
}
