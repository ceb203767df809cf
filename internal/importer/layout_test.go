package importer

import (
	"strings"
	"testing"

	"github.com/friendsincode/shuttle_hub/internal/models"
)

func TestNormalizeTime(t *testing.T) {
	cases := []struct {
		in   string
		want string
		ok   bool
	}{
		{"19:30", "19:30:00", true},
		{"7:00", "07:00:00", true},
		{"07:05", "07:05:00", true},
		{"7:5", "", false},
		{"25", "", false},
		{"", "", false},
		{"seven", "", false},
	}
	for _, tc := range cases {
		got, ok := normalizeTime(tc.in)
		if ok != tc.ok || got != tc.want {
			t.Errorf("normalizeTime(%q) = %q,%v want %q,%v", tc.in, got, ok, tc.want, tc.ok)
		}
	}
}

func TestDetectLayoutPrefersFixedWhenMarkersPresent(t *testing.T) {
	// The first line looks like a generic header too; the markers win.
	first := "סבידור,צפריר,sort_order,is_break"
	if DetectLayout(first).Name() != "fixed" {
		t.Fatal("expected fixed layout when both markers are present")
	}
	if DetectLayout("time_slot,route_description").Name() != "generic" {
		t.Fatal("expected generic layout without markers")
	}
}

func TestGenericParseEndToEnd(t *testing.T) {
	raw := strings.Join([]string{
		"time_slot,route_description,sort_order,is_break",
		"7:00,Outbound from Savidor,1,false",
		"12:30-13:30,Break,2,true",
		"8:00,Outbound from Savidor,3,false",
	}, "\n")

	lines := strings.Split(raw, "\n")
	entries, warnings := genericLayout{}.Parse(lines)
	if len(warnings) != 0 {
		t.Fatalf("unexpected warnings: %v", warnings)
	}
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}
	if entries[0].DepartureTime != "07:00:00" {
		t.Errorf("expected first departure 07:00:00, got %s", entries[0].DepartureTime)
	}
	if !entries[1].IsBreak {
		t.Error("expected second row marked as break")
	}
	if entries[1].DepartureTime != "12:30:00" {
		t.Errorf("expected break departure 12:30:00, got %s", entries[1].DepartureTime)
	}

	deduped := dedupe(entries)
	for i, e := range deduped {
		if e.SortOrder != i+1 {
			t.Errorf("entry %d: expected sort order %d, got %d", i, i+1, e.SortOrder)
		}
	}
}

func TestGenericParseCoercesUnparseableTimeWithWarning(t *testing.T) {
	lines := []string{
		"time_slot,route_description",
		"7:5,Outbound from Savidor",
	}
	entries, warnings := genericLayout{}.Parse(lines)
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	if entries[0].DepartureTime != fallbackDeparture {
		t.Fatalf("expected fallback departure, got %s", entries[0].DepartureTime)
	}
	if len(warnings) != 1 {
		t.Fatalf("expected one warning, got %v", warnings)
	}
}

func TestGenericParseSkipsShortRows(t *testing.T) {
	lines := []string{
		"time_slot,route_description",
		"",
		"lonely-field",
		",missing time slot",
	}
	entries, _ := genericLayout{}.Parse(lines)
	if len(entries) != 0 {
		t.Fatalf("expected no entries, got %d", len(entries))
	}
}

func TestFixedParseExtractsBothRoutes(t *testing.T) {
	lines := make([]string, 20)
	lines[0] = "לוח זמנים סבידור צפריר"
	// Savidor block, zero-based lines 3-11.
	lines[3] = "7:00,x,7:20,7:30,7:50"
	lines[4] = "8:00,,,," // outbound only, no arrival, no return
	// A non-time cell is skipped silently.
	lines[5] = "no-time,,,9:15,"
	// Kiryat block from line 15 on.
	lines[15] = "6:45,17:10,,,,,,18:40"
	lines[16] = "אין נסיעות,,,,,,,"
	lines[17] = "הפסקה,12:00,,,,,,"

	entries, warnings := fixedLayout{}.Parse(lines)
	if len(warnings) != 0 {
		t.Fatalf("unexpected warnings: %v", warnings)
	}

	count := map[string]int{}
	for _, e := range entries {
		count[string(e.RouteType)+"/"+string(e.Direction)]++
	}

	// Line 3: outbound 7:00 (arr 7:20) + return 7:30 (arr 7:50).
	// Line 4: outbound 8:00. Line 5: return 9:15.
	if got := count["savidor_to_tzafrir/outbound"]; got != 2 {
		t.Errorf("expected 2 savidor outbound entries, got %d", got)
	}
	if got := count["savidor_to_tzafrir/return"]; got != 2 {
		t.Errorf("expected 2 savidor return entries, got %d", got)
	}
	// Line 15: outbound 6:45, return 17:10, additional return 18:40.
	if got := count["kiryat_aryeh_to_tzafrir/outbound"]; got != 1 {
		t.Errorf("expected 1 kiryat outbound entry, got %d", got)
	}
	if got := count["kiryat_aryeh_to_tzafrir/return"]; got != 2 {
		t.Errorf("expected 2 kiryat return entries, got %d", got)
	}

	for _, e := range entries {
		if e.RouteType == models.RouteKiryatAryehToTzafrir && e.ArrivalTime != nil {
			t.Error("kiryat entries carry no arrival time in this layout")
		}
	}
}

func TestFixedParseSkipsMarkerLines(t *testing.T) {
	lines := make([]string, 17)
	lines[0] = "סבידור צפריר"
	lines[15] = "שאטל הזמנות,9:00,,,,,,"
	lines[16] = "אופציה,10:00,,,,,,"

	entries, _ := fixedLayout{}.Parse(lines)
	if len(entries) != 0 {
		t.Fatalf("expected marker lines to be skipped, got %d entries", len(entries))
	}
}

func TestDedupeKeepsFirstOccurrence(t *testing.T) {
	entries := []Entry{
		{RouteType: models.RouteSavidorToTzafrir, Direction: models.DirectionOutbound, DepartureTime: "07:00:00", Description: "first"},
		{RouteType: models.RouteSavidorToTzafrir, Direction: models.DirectionOutbound, DepartureTime: "07:00:00", Description: "second"},
		{RouteType: models.RouteSavidorToTzafrir, Direction: models.DirectionReturn, DepartureTime: "07:00:00", Description: "other direction"},
	}
	out := dedupe(entries)
	if len(out) != 2 {
		t.Fatalf("expected 2 entries after dedupe, got %d", len(out))
	}
	if out[0].Description != "first" {
		t.Fatalf("expected the first duplicate to survive, got %q", out[0].Description)
	}
	if out[0].SortOrder != 1 || out[1].SortOrder != 2 {
		t.Fatalf("expected re-assigned sort orders 1,2 got %d,%d", out[0].SortOrder, out[1].SortOrder)
	}
}

func TestDedupeIgnoresSortHintWhenResolvingDuplicates(t *testing.T) {
	// The duplicate at the end carries a smaller hint; it must still lose
	// to the row that appeared first in the file.
	lines := []string{
		"time_slot,route_description,sort_order",
		"8:00,Outbound from Savidor,5",
		"9:00,Outbound from Savidor,2",
		"8:00,Outbound from Savidor duplicate,1",
	}
	entries, _ := genericLayout{}.Parse(lines)
	out := dedupe(entries)
	if len(out) != 2 {
		t.Fatalf("expected 2 entries after dedupe, got %d", len(out))
	}

	// Survivors are then ordered by hint: 9:00 (hint 2) before 8:00 (hint 5).
	if out[0].DepartureTime != "09:00:00" || out[1].DepartureTime != "08:00:00" {
		t.Fatalf("wrong hint ordering: %s, %s", out[0].DepartureTime, out[1].DepartureTime)
	}
	if out[1].Description != "Outbound from Savidor" {
		t.Errorf("duplicate with smaller hint displaced the first occurrence: %q", out[1].Description)
	}
	if out[0].SortOrder != 1 || out[1].SortOrder != 2 {
		t.Errorf("final sort orders = %d,%d", out[0].SortOrder, out[1].SortOrder)
	}
}
