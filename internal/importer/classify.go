/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package importer

import (
	"strings"

	"github.com/friendsincode/shuttle_hub/internal/models"
)

// Keyword markers used to classify free-text row descriptions. These are
// the literal strings the timetable spreadsheets use.
const (
	keywordKiryat     = "קרית"
	keywordToSavidor  = "לסבידור"
	keywordToKiryat   = "לקרית"
	keywordFromCamp   = "ממחנה"
	keywordKiryatLat  = "kiryat"
	keywordReturnWord = "return"
)

// Classify infers the route and direction of a schedule row from its
// description text. The default is the Savidor route, outbound.
func Classify(description string) (models.RouteType, models.Direction) {
	route := models.RouteSavidorToTzafrir
	direction := models.DirectionOutbound

	lower := strings.ToLower(description)

	if strings.Contains(description, keywordKiryat) || strings.Contains(lower, keywordKiryatLat) {
		route = models.RouteKiryatAryehToTzafrir
	}

	if strings.Contains(description, keywordToSavidor) ||
		strings.Contains(description, keywordToKiryat) ||
		strings.Contains(description, keywordFromCamp) ||
		strings.Contains(lower, keywordReturnWord) {
		direction = models.DirectionReturn
	}

	return route, direction
}
