/*
Copyright © 2026 Acronis International GmbH.

Released under MIT license.
*/

package change

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

var nameRegexp = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_-]*$`)

// ErrInvalidName is returned by Create when the human-readable name can't be used in a file name.
var ErrInvalidName = errors.New("invalid name: only letters, digits, '_' and '-' are allowed")

// Create writes a new definition file with an empty template into dir and returns its path.
// The file is named after now (in UTC) and name. The directory is created if needed.
// An existing file is never overwritten.
func Create(dir string, kind Kind, name, ext string, now time.Time) (string, error) {
	if !nameRegexp.MatchString(name) {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	content, err := Template(kind, ext)
	if err != nil {
		return "", err
	}
	if err = os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create directory %s: %w", dir, err)
	}

	filePath := filepath.Join(dir, FileName(now, name, ext))
	f, err := os.OpenFile(filePath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("create %s file: %w", kind, err)
	}
	if _, err = f.WriteString(content); err != nil {
		_ = f.Close()
		return "", fmt.Errorf("write %s file: %w", kind, err)
	}
	if err = f.Close(); err != nil {
		return "", fmt.Errorf("close %s file: %w", kind, err)
	}
	return filePath, nil
}

// FileName returns the definition file name for the given creation time and name.
func FileName(now time.Time, name, ext string) string {
	return FormatTimestamp(now) + "_" + name + ext
}

// Template returns the initial content of a new definition file.
func Template(kind Kind, ext string) (string, error) {
	leader := commentLeader(ext)
	emptyBody := ""
	if ext == ".json" {
		emptyBody = "[]\n"
	}
	var b strings.Builder
	switch kind {
	case KindMigration:
		fmt.Fprintf(&b, "%s +up\n%s\n%s +down\n%s", leader, emptyBody, leader, emptyBody)
	case KindSeed:
		fmt.Fprintf(&b, "%s +seed\n%s", leader, emptyBody)
	default:
		return "", fmt.Errorf("unknown change kind %q", kind)
	}
	return b.String(), nil
}

func commentLeader(ext string) string {
	switch ext {
	case ".sql":
		return "--"
	case ".json", ".js":
		return "//"
	default:
		return "#"
	}
}
