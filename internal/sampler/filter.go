package sampler

import (
	"strings"

	"github.com/sells-group/carpark-cli/internal/geo"
	"github.com/sells-group/carpark-cli/internal/model"
)

// Criteria narrows a facility set before sampling. Zero-valued fields do
// not filter.
type Criteria struct {
	// Query matches ID, name or address, case-insensitively.
	Query string

	// Near and RadiusKm keep facilities within RadiusKm of a point, for
	// example a geocoded postal code.
	Near     *geo.Point
	RadiusKm float64

	// Lots keeps facilities offering any of these categories.
	Lots []model.LotCode

	// Favorites, when non-empty, keeps only these facility IDs.
	Favorites map[string]bool

	// Viewport keeps facilities inside the visible map area.
	Viewport *geo.Bounds
}

// Filter returns the facilities matching every criterion, in input order.
func Filter(facilities []model.Facility, c Criteria) []model.Facility {
	q := strings.ToLower(strings.TrimSpace(c.Query))
	out := make([]model.Facility, 0, len(facilities))
	for _, f := range facilities {
		if q != "" && !matchesText(f, q) {
			continue
		}
		if c.Near != nil && c.RadiusKm > 0 && geo.Distance(*c.Near, f.Point()) > c.RadiusKm {
			continue
		}
		if len(c.Lots) > 0 && !offersAny(f, c.Lots) {
			continue
		}
		if len(c.Favorites) > 0 && !c.Favorites[f.ID] {
			continue
		}
		if c.Viewport != nil && !c.Viewport.Contains(f.Lat, f.Lng) {
			continue
		}
		out = append(out, f)
	}
	return out
}

func matchesText(f model.Facility, q string) bool {
	return strings.Contains(strings.ToLower(f.ID), q) ||
		strings.Contains(strings.ToLower(f.Name), q) ||
		strings.Contains(strings.ToLower(f.Address), q)
}

func offersAny(f model.Facility, codes []model.LotCode) bool {
	for _, code := range codes {
		if l, ok := f.Lot(code); ok && (l.Available > 0 || (l.Total != nil && *l.Total > 0)) {
			return true
		}
	}
	return false
}
