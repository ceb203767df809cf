/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package importer

import (
	"errors"
	"fmt"
)

// ErrEmptyInput is returned when the uploaded text is empty after trimming.
var ErrEmptyInput = errors.New("timetable input is empty")

// ErrNoValidRows is returned when parsing produced zero schedule entries.
var ErrNoValidRows = errors.New("no valid schedule rows found")

// ErrShuttleNotFound is returned when the target shuttle does not exist.
var ErrShuttleNotFound = errors.New("shuttle not found")

// StorageError wraps a failure in the delete/insert/commit sequence.
// The transaction is always rolled back in full before this surfaces.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}
