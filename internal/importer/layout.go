/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package importer

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/friendsincode/shuttle_hub/internal/models"
)

// Entry is one schedule row produced by parsing, before deduplication.
type Entry struct {
	RouteType     models.RouteType
	Direction     models.Direction
	DepartureTime string
	ArrivalTime   *string
	TimeSlot      string
	Description   string
	IsBreak       bool
	SortOrder     int
}

// TimetableLayout is a parsing strategy for one upload format. New layouts
// plug in here without touching the import pipeline.
type TimetableLayout interface {
	Name() string
	Parse(lines []string) (entries []Entry, warnings []string)
}

// First-line markers that identify the fixed spreadsheet export.
const (
	markerSavidor = "סבידור"
	markerTzafrir = "צפריר"
)

// Marker substrings that flag non-data lines in the fixed layout.
var fixedSkipMarkers = []string{
	markerSavidor,
	"קרית",
	"אין נסיעות",
	"אופציה",
	"הזמנות",
	"שאטל",
	"הפסקה",
}

var timePattern = regexp.MustCompile(`^\d{1,2}:\d{2}$`)

// DetectLayout picks the parsing strategy from the first line of the file.
func DetectLayout(firstLine string) TimetableLayout {
	if strings.Contains(firstLine, markerSavidor) && strings.Contains(firstLine, markerTzafrir) {
		return fixedLayout{}
	}
	return genericLayout{}
}

// normalizeTime turns H:MM or HH:MM into HH:MM:00. The second return
// reports whether the input matched the expected pattern.
func normalizeTime(raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if !timePattern.MatchString(raw) {
		return "", false
	}
	parts := strings.SplitN(raw, ":", 2)
	if len(parts[0]) == 1 {
		parts[0] = "0" + parts[0]
	}
	return parts[0] + ":" + parts[1] + ":00", true
}

// fallbackDeparture is used when a generic row carries an unparseable
// time. The row is kept rather than rejected; callers receive a warning.
const fallbackDeparture = "08:00:00"

// splitCSVLine splits on commas and strips surrounding quotes and space
// from every field.
func splitCSVLine(line string) []string {
	fields := strings.Split(line, ",")
	for i, f := range fields {
		f = strings.TrimSpace(f)
		f = strings.Trim(f, `"`)
		fields[i] = strings.TrimSpace(f)
	}
	return fields
}

// genericLayout parses the two-column upload format:
//
//	time_slot,route_description[,sort_order[,is_break]]
type genericLayout struct{}

func (genericLayout) Name() string { return "generic" }

func (genericLayout) Parse(lines []string) ([]Entry, []string) {
	var entries []Entry
	var warnings []string

	// Line 0 is the header.
	for i := 1; i < len(lines); i++ {
		line := strings.TrimSpace(lines[i])
		if line == "" {
			continue
		}
		fields := splitCSVLine(line)
		if len(fields) < 2 || fields[0] == "" {
			continue
		}

		timeSlot := fields[0]
		description := fields[1]

		sortOrder := i // 1-based line index into the data section
		if len(fields) >= 3 && fields[2] != "" {
			if parsed, err := strconv.Atoi(fields[2]); err == nil {
				sortOrder = parsed
			}
		}

		isBreak := len(fields) >= 4 && strings.EqualFold(fields[3], "true")

		departureRaw := timeSlot
		if idx := strings.Index(timeSlot, "-"); idx >= 0 {
			departureRaw = timeSlot[:idx]
		}
		departure, ok := normalizeTime(departureRaw)
		if !ok {
			departure = fallbackDeparture
			warnings = append(warnings, fmt.Sprintf("line %d: unparseable time %q, using %s", i+1, departureRaw, fallbackDeparture))
		}

		route, direction := Classify(description)

		entries = append(entries, Entry{
			RouteType:     route,
			Direction:     direction,
			DepartureTime: departure,
			TimeSlot:      timeSlot,
			Description:   description,
			IsBreak:       isBreak,
			SortOrder:     sortOrder,
		})
	}

	return entries, warnings
}

// fixedLayout parses the positional spreadsheet export that encodes two
// physical routes in one file. The line and column positions were
// established from the source spreadsheets and are intentionally literal.
type fixedLayout struct{}

func (fixedLayout) Name() string { return "fixed" }

func (fixedLayout) Parse(lines []string) ([]Entry, []string) {
	var entries []Entry
	order := 0

	appendEntry := func(route models.RouteType, direction models.Direction, depRaw string, arrRaw string) {
		departure, ok := normalizeTime(depRaw)
		if !ok {
			return
		}
		order++
		e := Entry{
			RouteType:     route,
			Direction:     direction,
			DepartureTime: departure,
			TimeSlot:      shortClock(departure),
			Description:   describeRoute(route, direction),
			SortOrder:     order,
		}
		if arrival, ok := normalizeTime(arrRaw); ok {
			e.ArrivalTime = &arrival
			e.TimeSlot = shortClock(departure) + "-" + shortClock(arrival)
		}
		entries = append(entries, e)
	}

	field := func(fields []string, idx int) string {
		if idx < len(fields) {
			return fields[idx]
		}
		return ""
	}

	for i, line := range lines {
		fields := splitCSVLine(line)

		switch {
		case i >= 3 && i <= 11:
			// Savidor block: outbound in columns 0/2, return in 3/4.
			appendEntry(models.RouteSavidorToTzafrir, models.DirectionOutbound, field(fields, 0), field(fields, 2))
			appendEntry(models.RouteSavidorToTzafrir, models.DirectionReturn, field(fields, 3), field(fields, 4))

		case i >= 15:
			if first := field(fields, 0); first != "" && containsAny(first, fixedSkipMarkers) {
				continue
			}
			// Kiryat Aryeh block: no arrival columns in this export.
			appendEntry(models.RouteKiryatAryehToTzafrir, models.DirectionOutbound, field(fields, 0), "")
			appendEntry(models.RouteKiryatAryehToTzafrir, models.DirectionReturn, field(fields, 1), "")
			// A second return table sits further right on the same lines.
			appendEntry(models.RouteKiryatAryehToTzafrir, models.DirectionReturn, field(fields, 7), "")
		}
	}

	return entries, nil
}

func containsAny(s string, markers []string) bool {
	for _, m := range markers {
		if strings.Contains(s, m) {
			return true
		}
	}
	return false
}

// shortClock trims HH:MM:SS to HH:MM for display labels.
func shortClock(t string) string {
	if len(t) == 8 {
		return t[:5]
	}
	return t
}

// describeRoute builds the user-facing label for fixed-layout rows, which
// carry no free-text description of their own.
func describeRoute(route models.RouteType, direction models.Direction) string {
	switch {
	case route == models.RouteSavidorToTzafrir && direction == models.DirectionOutbound:
		return "מסבידור לצפריר"
	case route == models.RouteSavidorToTzafrir && direction == models.DirectionReturn:
		return "מצפריר לסבידור"
	case route == models.RouteKiryatAryehToTzafrir && direction == models.DirectionOutbound:
		return "מקרית אריה לצפריר"
	default:
		return "מצפריר לקרית אריה"
	}
}
