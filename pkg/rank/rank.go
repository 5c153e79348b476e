// Package rank orders centres by distance from a query origin.
package rank

import (
	"math"
	"sort"

	"nearbybot/pkg/geo"
	"nearbybot/pkg/model"
)

// Default result limits for the two proximity flows.
const (
	CategoryLimit = 3 // nearest centres within a category
	CentreLimit   = 5 // centre selection in the activities flow
)

// Nearest computes the distance from origin to every candidate with valid
// coordinates, sorts ascending and returns the first limit entries. Candidates
// with missing or non-finite coordinates are dropped. The sort is stable, so
// equal distances preserve the candidates' original order.
func Nearest(origin geo.Point, candidates []*model.Centre, limit int) []model.RankedCentre {
	ranked := make([]model.RankedCentre, 0, len(candidates))
	for _, c := range candidates {
		if !c.HasCoords() {
			continue
		}
		p := geo.Point{Lat: *c.Lat, Lng: *c.Lng}
		if !p.Valid() {
			continue
		}
		d := geo.Distance(origin, p)
		if math.IsNaN(d) || math.IsInf(d, 0) {
			continue
		}
		ranked = append(ranked, model.RankedCentre{Centre: c, DistanceKm: d})
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].DistanceKm < ranked[j].DistanceKm
	})

	if limit > 0 && len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked
}
