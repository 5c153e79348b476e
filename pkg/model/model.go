package model

import (
	"sort"
	"time"
)

// Category classifies a centre by the service it provides.
type Category string

// Known centre categories.
const (
	CategoryFamilies       Category = "families"
	CategoryChildren       Category = "children"
	CategorySeniorsActive  Category = "seniors_active"
	CategorySeniorsKitchen Category = "seniors_kitchen"
	CategorySeniorsHome    Category = "seniors_home"
	CategoryAntiViolence   Category = "anti_violence"
	CategoryMentalHealth   Category = "mental_health"
	CategoryCaregiving     Category = "caregiving"
)

// Categories lists all known categories in menu order.
var Categories = []Category{
	CategoryFamilies,
	CategoryChildren,
	CategorySeniorsActive,
	CategorySeniorsKitchen,
	CategorySeniorsHome,
	CategoryAntiViolence,
	CategoryMentalHealth,
	CategoryCaregiving,
}

var categoryLabels = map[Category]string{
	CategoryFamilies:       "🏠 Families",
	CategoryChildren:       "🧒 Children",
	CategorySeniorsActive:  "👵 Seniors (Active Ageing Centre)",
	CategorySeniorsKitchen: "👵 Seniors (Community Kitchen)",
	CategorySeniorsHome:    "👵 Seniors (GoodLife at Home)",
	CategoryAntiViolence:   "🚫 Anti-Violence",
	CategoryMentalHealth:   "🧠 Mental Health",
	CategoryCaregiving:     "🤝 Caregiving",
}

// Display returns the human-readable menu label for the category.
// Unknown categories fall back to the raw value.
func (c Category) Display() string {
	if label, ok := categoryLabels[c]; ok {
		return label
	}
	return string(c)
}

// Valid reports whether the category is one of the known values.
func (c Category) Valid() bool {
	_, ok := categoryLabels[c]
	return ok
}

// Centre represents a physical community-service location.
// Lat/Lng are either both set or both absent; centres without coordinates are
// excluded from proximity ranking.
type Centre struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Address  string   `json:"address"`
	Phone    string   `json:"phone"`
	Email    string   `json:"email"`
	Lat      *float64 `json:"lat,omitempty"`
	Lng      *float64 `json:"lng,omitempty"`
	Category Category `json:"category"`
}

// HasCoords reports whether both coordinates are present.
func (c *Centre) HasCoords() bool {
	return c.Lat != nil && c.Lng != nil
}

// Activity represents a scheduled programme at a centre. The centre is
// referenced by name (denormalized, no foreign key), matching the upstream
// data feed.
type Activity struct {
	ID                  string      `json:"id"`
	Name                string      `json:"name"`
	Centre              string      `json:"centre"`
	Description         string      `json:"description"`
	Dates               []time.Time `json:"dates"`
	TimeOfDay           string      `json:"time_of_day"`
	SignUpInstruction   string      `json:"sign_up_instruction"`
	RecommendedAudience string      `json:"recommended_audience"`
	IsHighlight         bool        `json:"is_highlight"`
	HighlightNote       string      `json:"highlight_note,omitempty"`
	HighlightOrder      *int        `json:"highlight_order,omitempty"`
}

// UpcomingDates returns the activity's dates at or after now, sorted ascending.
func (a *Activity) UpcomingDates(now time.Time) []time.Time {
	var out []time.Time
	for _, d := range a.Dates {
		if !d.Before(now) {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}

// RankedCentre is a Centre plus its computed distance from a query origin.
// Derived, never stored.
type RankedCentre struct {
	Centre     *Centre `json:"centre"`
	DistanceKm float64 `json:"distance_km"`
}
