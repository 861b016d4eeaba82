/*
Copyright © 2026 Acronis International GmbH.

Released under MIT license.
*/

package change

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/acronis/go-dbmigrate"
)

// LoadAll loads all definitions of the given kind from the directory.
// Only regular files with the ext extension are considered. Definitions are returned sorted
// by file name, which is their creation order. A missing directory yields no definitions.
func LoadAll(dir string, kind Kind, ext string) ([]Definition, error) {
	return loadDefinitions(os.DirFS(dir), ".", kind, ext, func(fileName string) string {
		return filepath.Join(dir, fileName)
	})
}

// LoadFS is like LoadAll but reads definitions from dirName within fsys (e.g. embed.FS).
func LoadFS(fsys fs.FS, dirName string, kind Kind, ext string) ([]Definition, error) {
	return loadDefinitions(fsys, dirName, kind, ext, func(fileName string) string {
		return path.Join(dirName, fileName)
	})
}

func loadDefinitions(
	fsys fs.FS, dirName string, kind Kind, ext string, sourceRefFn func(fileName string) string,
) ([]Definition, error) {
	entries, err := fs.ReadDir(fsys, dirName)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read directory %s: %w", dirName, err)
	}

	fileNames := make([]string, 0, len(entries))
	for _, entry := range entries {
		if !entry.Type().IsRegular() || !strings.HasSuffix(entry.Name(), ext) {
			continue
		}
		fileNames = append(fileNames, entry.Name())
	}
	sort.Strings(fileNames)

	defs := make([]Definition, 0, len(fileNames))
	seenPrefixes := make(map[string]string, len(fileNames))
	for _, fileName := range fileNames {
		sourceRef := sourceRefFn(fileName)
		ts, name := SplitFileName(fileName, ext)
		if !ts.IsZero() {
			prefix := fileName[:timestampPrefixLen]
			if other, ok := seenPrefixes[prefix]; ok {
				return nil, &dbmigrate.DefinitionParseError{
					File: sourceRef, Err: fmt.Errorf("duplicate id: timestamp %s is already used by %s", prefix, other)}
			}
			seenPrefixes[prefix] = fileName
		}

		content, readErr := fs.ReadFile(fsys, path.Join(dirName, fileName))
		if readErr != nil {
			return nil, fmt.Errorf("read definition %s: %w", sourceRef, readErr)
		}
		forward, reverse, body, disableTx, parseErr := Parse(kind, string(content))
		if parseErr != nil {
			return nil, &dbmigrate.DefinitionParseError{File: sourceRef, Err: parseErr}
		}
		defs = append(defs, Definition{
			Kind:      kind,
			ID:        fileName,
			Name:      name,
			SourceRef: sourceRef,
			Timestamp: ts,
			Forward:   forward,
			Reverse:   reverse,
			Body:      body,
			DisableTx: disableTx,
		})
	}
	return defs, nil
}
