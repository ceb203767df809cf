package logbuffer

import (
	"testing"
	"time"
)

func TestRingBufferWraps(t *testing.T) {
	b := New(3)
	for _, msg := range []string{"one", "two", "three", "four"} {
		b.Add(LogEntry{Timestamp: time.Now(), Level: "info", Message: msg})
	}

	all := b.GetAll()
	if len(all) != 3 {
		t.Fatalf("expected 3 entries after wrap, got %d", len(all))
	}
	if all[0].Message != "two" || all[2].Message != "four" {
		t.Errorf("wrong chronological order: %q .. %q", all[0].Message, all[2].Message)
	}
}

func TestQueryFilters(t *testing.T) {
	b := New(10)
	base := time.Now()
	b.Add(LogEntry{Timestamp: base, Level: "info", Component: "importer", Message: "timetable import started",
		Fields: map[string]interface{}{"shuttle_id": "sh-1"}})
	b.Add(LogEntry{Timestamp: base.Add(time.Second), Level: "error", Component: "importer", Message: "row rejected",
		Fields: map[string]interface{}{"shuttle_id": "sh-2"}})
	b.Add(LogEntry{Timestamp: base.Add(2 * time.Second), Level: "info", Component: "api", Message: "registration created"})

	got := b.Query(QueryParams{Level: "error"})
	if len(got) != 1 || got[0].Message != "row rejected" {
		t.Errorf("level filter: got %v", got)
	}

	got = b.Query(QueryParams{ShuttleID: "sh-1"})
	if len(got) != 1 || got[0].Fields["shuttle_id"] != "sh-1" {
		t.Errorf("shuttle filter: got %v", got)
	}

	got = b.Query(QueryParams{Since: base.Add(1500 * time.Millisecond)})
	if len(got) != 1 || got[0].Component != "api" {
		t.Errorf("since filter: got %v", got)
	}

	got = b.Query(QueryParams{Search: "REGISTRATION"})
	if len(got) != 1 {
		t.Errorf("search should be case-insensitive, got %d entries", len(got))
	}

	got = b.Query(QueryParams{Descending: true, Limit: 2})
	if len(got) != 2 || got[0].Component != "api" {
		t.Errorf("descending+limit: got %v", got)
	}
}

func TestStatsAndClear(t *testing.T) {
	b := New(5)
	b.Add(LogEntry{Level: "info"})
	b.Add(LogEntry{Level: "info"})
	b.Add(LogEntry{Level: "warn"})

	s := b.Stats()
	if s.Capacity != 5 || s.Count != 3 {
		t.Errorf("stats capacity/count = %d/%d", s.Capacity, s.Count)
	}
	if s.LevelCount["info"] != 2 || s.LevelCount["warn"] != 1 {
		t.Errorf("level counts = %v", s.LevelCount)
	}

	b.Clear()
	if b.Stats().Count != 0 {
		t.Error("clear should empty the buffer")
	}
}

func TestWriterParsesZerologJSON(t *testing.T) {
	b := New(10)
	w := NewWriter(b, nil)

	line := []byte(`{"level":"warn","component":"registration","shuttle_id":"sh-9","time":"2026-03-02T07:30:00Z","message":"capacity reached"}`)
	if _, err := w.Write(line); err != nil {
		t.Fatalf("write: %v", err)
	}

	all := b.GetAll()
	if len(all) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(all))
	}
	e := all[0]
	if e.Level != "warn" || e.Component != "registration" || e.Message != "capacity reached" {
		t.Errorf("parsed entry = %+v", e)
	}
	if e.Fields["shuttle_id"] != "sh-9" {
		t.Errorf("extra fields not captured: %v", e.Fields)
	}
	if e.Timestamp.UTC().Hour() != 7 {
		t.Errorf("timestamp not taken from log line: %v", e.Timestamp)
	}
}
