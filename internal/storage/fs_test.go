/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package storage

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
)

func TestFilesystemStoreRoundTrip(t *testing.T) {
	store := NewFilesystemStore(t.TempDir(), zerolog.Nop())
	ctx := context.Background()

	payload := []byte("time,route\n08:00,downtown\n")
	if err := store.Put(ctx, "uploads/2026/timetable.csv", payload); err != nil {
		t.Fatalf("Put: %v", err)
	}

	got, err := store.Get(ctx, "uploads/2026/timetable.csv")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(got) != string(payload) {
		t.Errorf("Get = %q, want %q", got, payload)
	}

	if err := store.Delete(ctx, "uploads/2026/timetable.csv"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := store.Get(ctx, "uploads/2026/timetable.csv"); err == nil {
		t.Error("expected error reading deleted object")
	}

	// Deleting a missing object is not an error.
	if err := store.Delete(ctx, "uploads/2026/timetable.csv"); err != nil {
		t.Errorf("Delete missing: %v", err)
	}
}

func TestFilesystemStoreRejectsTraversal(t *testing.T) {
	store := NewFilesystemStore(t.TempDir(), zerolog.Nop())
	ctx := context.Background()

	for _, key := range []string{"../escape.csv", "/etc/passwd", "a/../../b"} {
		if err := store.Put(ctx, key, []byte("x")); err == nil {
			t.Errorf("Put(%q) succeeded, want error", key)
		}
	}
}
