// Package merge joins the carpark info feed and the availability feed into
// Facility entities, keyed by carpark number.
package merge

import (
	"slices"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/sells-group/carpark-cli/internal/feed"
	"github.com/sells-group/carpark-cli/internal/geo"
	"github.com/sells-group/carpark-cli/internal/model"
	"github.com/sells-group/carpark-cli/internal/pricing"
	"github.com/sells-group/carpark-cli/internal/svy21"
)

var sgt = time.FixedZone("SGT", 8*60*60)

// Stats summarizes one merge.
type Stats struct {
	InfoRecords int `json:"info_records" yaml:"info_records"`
	Duplicates  int `json:"duplicates" yaml:"duplicates"`
	Skipped     int `json:"skipped" yaml:"skipped"`
	Merged      int `json:"merged" yaml:"merged"`
	Matched     int `json:"matched" yaml:"matched"`
	Unmatched   int `json:"unmatched" yaml:"unmatched"`
	OrphanAvail int `json:"orphan_availability" yaml:"orphan_availability"`
}

// Option configures a Merger.
type Option func(*Merger)

// WithClock sets the instant used for time-dependent rates.
func WithClock(now func() time.Time) Option {
	return func(m *Merger) { m.now = now }
}

// WithEVLocations supplies carpark number -> EV lot location text.
func WithEVLocations(ev map[string]string) Option {
	return func(m *Merger) { m.ev = ev }
}

// Merger builds Facilities from raw feed records.
type Merger struct {
	now   func() time.Time
	ev    map[string]string
	title cases.Caser
}

// New creates a Merger.
func New(opts ...Option) *Merger {
	m := &Merger{
		now:   time.Now,
		title: cases.Title(language.English),
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Merge combines info and availability records. See MergeWithStats.
func (m *Merger) Merge(info []feed.InfoRecord, avail []feed.AvailabilityRecord) []model.Facility {
	out, _ := m.MergeWithStats(info, avail)
	return out
}

// MergeWithStats de-duplicates info records (first occurrence wins), overlays
// per-category availability onto info totals, and skips records that fail
// validation. The result is sorted by ID.
func (m *Merger) MergeWithStats(info []feed.InfoRecord, avail []feed.AvailabilityRecord) ([]model.Facility, Stats) {
	stats := Stats{InfoRecords: len(info)}
	now := m.now()

	counts := availabilityByID(avail)

	seen := make(map[string]struct{}, len(info))
	out := make([]model.Facility, 0, len(info))
	for _, rec := range info {
		id := rec.ID()
		if _, dup := seen[id]; dup && id != "" {
			stats.Duplicates++
			continue
		}
		seen[id] = struct{}{}

		f, reason := m.build(rec, now)
		if reason != "" {
			stats.Skipped++
			zap.L().Warn("merge: skipping info record",
				zap.String("carpark", id),
				zap.String("reason", reason),
			)
			continue
		}

		a, matched := counts[id]
		if matched {
			stats.Matched++
			if !a.updated.IsZero() {
				f.UpdatedAt = a.updated
			}
		} else {
			stats.Unmatched++
		}
		f.Lots = overlay(rec.Lots, a.available)
		f.Recount()

		out = append(out, f)
	}

	for id := range counts {
		if _, ok := seen[id]; !ok {
			stats.OrphanAvail++
		}
	}

	slices.SortStableFunc(out, func(a, b model.Facility) int {
		return strings.Compare(a.ID, b.ID)
	})
	stats.Merged = len(out)

	if len(out) == 0 {
		zap.L().Error("merge: no facilities produced",
			zap.Int("info_records", len(info)),
			zap.Int("availability_records", len(avail)),
		)
	}
	return out, stats
}

func (m *Merger) build(rec feed.InfoRecord, now time.Time) (model.Facility, string) {
	id := rec.ID()
	address := strings.TrimSpace(string(rec.Address))
	switch {
	case id == "":
		return model.Facility{}, "missing identifier"
	case address == "":
		return model.Facility{}, "missing address"
	}

	p, ok := svy21.ProjectStrings(string(rec.XCoord), string(rec.YCoord))
	if !ok || !geo.Singapore.Contains(p.Lat, p.Lng) {
		return model.Facility{}, "coordinates outside region"
	}

	name := strings.TrimSpace(string(rec.Name))
	if name == "" {
		name = m.title.String(address)
	}

	ev := m.ev[id]
	f := model.Facility{
		ID:      id,
		Name:    name,
		Address: address,
		Lat:     p.Lat,
		Lng:     p.Lng,
		Rates: pricing.Rates(pricing.Input{
			CarparkNo:    id,
			NightParking: string(rec.NightParking),
			EVLots:       ev != "",
		}, now),
		Features: Features(rec, ev != ""),
		Hours:    Hours(rec),
		Payment:  Payment(string(rec.TypeOfParkingSystem)),
		Type:     Classify(string(rec.CarParkType)),
	}
	if m.ev != nil {
		f.EVLocation = feed.NoEVChargers
		if ev != "" {
			f.EVLocation = ev
		}
	}
	return f, ""
}

type availability struct {
	available map[model.LotCode]int
	updated   time.Time
}

// availabilityByID extracts per-category available counts, first record per
// ID wins. Unknown lot types are discarded. The legacy single count maps to
// the car category only when a record has no per-category detail.
func availabilityByID(avail []feed.AvailabilityRecord) map[string]availability {
	out := make(map[string]availability, len(avail))
	for _, rec := range avail {
		id := rec.ID()
		if id == "" {
			continue
		}
		if _, ok := out[id]; ok {
			continue
		}

		a := availability{available: make(map[model.LotCode]int)}
		if len(rec.CarparkInfo) > 0 {
			for _, lot := range rec.CarparkInfo {
				code, ok := model.ParseLotCode(string(lot.LotType))
				if !ok {
					continue
				}
				if _, dup := a.available[code]; dup {
					continue
				}
				a.available[code] = 0
				if lot.LotsAvailable.Valid {
					a.available[code] = lot.LotsAvailable.Value
				}
			}
		} else if rec.LotsAvailable.Valid {
			a.available[model.LotCar] = rec.LotsAvailable.Value
		}

		if ts, err := time.ParseInLocation("2006-01-02T15:04:05", string(rec.UpdateDatetime), sgt); err == nil {
			a.updated = ts
		}
		out[id] = a
	}
	return out
}

// overlay combines info totals with availability counts. A category on either
// side is kept; the missing side stays nil (total) or zero (available).
// Available is clamped to a known total.
func overlay(totals []feed.InfoLot, available map[model.LotCode]int) []model.LotCategory {
	byCode := make(map[model.LotCode]*model.LotCategory)
	for _, l := range totals {
		code, ok := model.ParseLotCode(string(l.LotType))
		if !ok {
			continue
		}
		cat, exists := byCode[code]
		if !exists {
			cat = &model.LotCategory{Code: code}
			byCode[code] = cat
		}
		if cat.Total == nil && l.TotalLots.Valid {
			total := l.TotalLots.Value
			cat.Total = &total
		}
	}
	for code, n := range available {
		cat, exists := byCode[code]
		if !exists {
			cat = &model.LotCategory{Code: code}
			byCode[code] = cat
		}
		cat.Available = n
	}

	out := make([]model.LotCategory, 0, len(byCode))
	for _, code := range model.LotCodes {
		cat, ok := byCode[code]
		if !ok {
			continue
		}
		if cat.Total != nil && cat.Available > *cat.Total {
			cat.Available = *cat.Total
		}
		out = append(out, *cat)
	}
	return out
}
