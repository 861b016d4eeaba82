/*
Copyright © 2026 Acronis International GmbH.

Released under MIT license.
*/

package dbmigrate

import (
	"fmt"
)

// ConfigurationError is returned when connection parameters are missing or invalid.
// It is always reported before any connection attempt.
type ConfigurationError struct {
	Key string
	Err error
}

func (e *ConfigurationError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("configuration error: %v", e.Err)
	}
	return fmt.Sprintf("configuration error: %s: %v", e.Key, e.Err)
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

// StorageError wraps a failure of a storage backend (connect, query or command).
type StorageError struct {
	Backend  string
	Op       string
	ChangeID string
	Err      error
}

func (e *StorageError) Error() string {
	if e.ChangeID == "" {
		return fmt.Sprintf("%s: %s: %v", e.Backend, e.Op, e.Err)
	}
	return fmt.Sprintf("%s: %s %s: %v", e.Backend, e.Op, e.ChangeID, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// DefinitionParseError is returned when a change definition file is malformed
// or when two definition files share the same identity.
type DefinitionParseError struct {
	File string
	Err  error
}

func (e *DefinitionParseError) Error() string {
	return fmt.Sprintf("parse definition %s: %v", e.File, e.Err)
}

func (e *DefinitionParseError) Unwrap() error {
	return e.Err
}

// NotFoundError is returned when a named migration or seed does not exist.
type NotFoundError struct {
	Kind string
	Name string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Kind, e.Name)
}

// ChangeError reports the change that stopped a batch. Changes applied before it stay applied.
type ChangeError struct {
	Kind string
	ID   string
	Name string
	Op   string
	Err  error
}

func (e *ChangeError) Error() string {
	return fmt.Sprintf("%s %s %s (%s): %v", e.Op, e.Kind, e.Name, e.ID, e.Err)
}

func (e *ChangeError) Unwrap() error {
	return e.Err
}
