/*
Copyright © 2026 Acronis International GmbH.

Released under MIT license.
*/

package change

import (
	"bufio"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

type marker string

const (
	markerUp            marker = "up"
	markerDown          marker = "down"
	markerSeed          marker = "seed"
	markerNoTransaction marker = "notransaction"
)

var markerRegexp = regexp.MustCompile(`(?i)^\s*(?:--|//|#)\s*\+(up|down|seed|notransaction)\s*$`)

// Errors returned (wrapped into dbmigrate.DefinitionParseError) by Parse.
var (
	ErrMissingEntryPoint    = errors.New("missing entry point")
	ErrDuplicateEntryPoint  = errors.New("duplicate entry point")
	ErrUnexpectedEntryPoint = errors.New("unexpected entry point")
)

type sections struct {
	bodies    map[marker]string
	order     []marker
	disableTx bool
}

func splitSections(content string) (sections, error) {
	res := sections{bodies: make(map[marker]string)}
	var current marker
	var buf strings.Builder
	flush := func() {
		if current != "" {
			res.bodies[current] = strings.TrimSpace(buf.String())
		}
		buf.Reset()
	}

	scanner := bufio.NewScanner(strings.NewReader(content))
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		m := markerRegexp.FindStringSubmatch(line)
		if m == nil {
			if current != "" {
				buf.WriteString(line)
				buf.WriteString("\n")
			}
			continue
		}
		mk := marker(strings.ToLower(m[1]))
		if mk == markerNoTransaction {
			res.disableTx = true
			continue
		}
		if _, ok := res.bodies[mk]; ok {
			return res, fmt.Errorf("%w: +%s", ErrDuplicateEntryPoint, mk)
		}
		flush()
		current = mk
		res.bodies[mk] = ""
		res.order = append(res.order, mk)
	}
	if err := scanner.Err(); err != nil {
		return res, err
	}
	flush()
	return res, nil
}

// Parse extracts entry point bodies from the content of a definition file.
// Text before the first entry point marker is ignored.
// Migrations must have "+up" followed by "+down", seeds must have exactly one "+seed".
func Parse(kind Kind, content string) (forward, reverse, body string, disableTx bool, err error) {
	s, err := splitSections(content)
	if err != nil {
		return "", "", "", false, err
	}
	switch kind {
	case KindMigration:
		if _, ok := s.bodies[markerSeed]; ok {
			return "", "", "", false, fmt.Errorf("%w: +seed in migration", ErrUnexpectedEntryPoint)
		}
		if _, ok := s.bodies[markerUp]; !ok {
			return "", "", "", false, fmt.Errorf("%w: +up", ErrMissingEntryPoint)
		}
		if _, ok := s.bodies[markerDown]; !ok {
			return "", "", "", false, fmt.Errorf("%w: +down", ErrMissingEntryPoint)
		}
		if s.order[0] != markerUp {
			return "", "", "", false, fmt.Errorf("%w: +down before +up", ErrUnexpectedEntryPoint)
		}
		return s.bodies[markerUp], s.bodies[markerDown], "", s.disableTx, nil
	case KindSeed:
		for _, mk := range []marker{markerUp, markerDown} {
			if _, ok := s.bodies[mk]; ok {
				return "", "", "", false, fmt.Errorf("%w: +%s in seed", ErrUnexpectedEntryPoint, mk)
			}
		}
		if _, ok := s.bodies[markerSeed]; !ok {
			return "", "", "", false, fmt.Errorf("%w: +seed", ErrMissingEntryPoint)
		}
		return "", "", s.bodies[markerSeed], s.disableTx, nil
	default:
		return "", "", "", false, fmt.Errorf("unknown change kind %q", kind)
	}
}
