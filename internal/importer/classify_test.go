package importer

import (
	"testing"

	"github.com/friendsincode/shuttle_hub/internal/models"
)

func TestClassifyKeywordTable(t *testing.T) {
	cases := []struct {
		description string
		route       models.RouteType
		direction   models.Direction
	}{
		{"Outbound from Savidor", models.RouteSavidorToTzafrir, models.DirectionOutbound},
		{"", models.RouteSavidorToTzafrir, models.DirectionOutbound},
		{"מסבידור לצפריר", models.RouteSavidorToTzafrir, models.DirectionOutbound},
		{"מצפריר לסבידור", models.RouteSavidorToTzafrir, models.DirectionReturn},
		{"קרית אריה לצפריר", models.RouteKiryatAryehToTzafrir, models.DirectionOutbound},
		{"מצפריר לקרית אריה", models.RouteKiryatAryehToTzafrir, models.DirectionReturn},
		{"Kiryat Aryeh shuttle", models.RouteKiryatAryehToTzafrir, models.DirectionOutbound},
		{"KIRYAT return ride", models.RouteKiryatAryehToTzafrir, models.DirectionReturn},
		{"ממחנה צפריר", models.RouteSavidorToTzafrir, models.DirectionReturn},
		{"Return to station", models.RouteSavidorToTzafrir, models.DirectionReturn},
	}

	for _, tc := range cases {
		route, direction := Classify(tc.description)
		if route != tc.route || direction != tc.direction {
			t.Errorf("Classify(%q) = %s/%s, want %s/%s", tc.description, route, direction, tc.route, tc.direction)
		}
	}
}
