package model

import (
	"strings"
	"time"

	"github.com/sells-group/carpark-cli/internal/geo"
)

// LotCode identifies a lot category.
type LotCode string

const (
	LotCar          LotCode = "C"
	LotHeavyVehicle LotCode = "H"
	LotMotorcycle   LotCode = "Y"
	LotLoadingBay   LotCode = "L"
)

// LotCodes is the closed set of categories the pipeline keeps, in display order.
var LotCodes = []LotCode{LotCar, LotMotorcycle, LotHeavyVehicle, LotLoadingBay}

// ParseLotCode normalizes a feed lot type. Unknown codes report false.
func ParseLotCode(s string) (LotCode, bool) {
	c := LotCode(strings.ToUpper(strings.TrimSpace(s)))
	for _, known := range LotCodes {
		if c == known {
			return c, true
		}
	}
	return "", false
}

// Label returns a human-readable category name.
func (c LotCode) Label() string {
	switch c {
	case LotCar:
		return "car"
	case LotHeavyVehicle:
		return "heavy vehicle"
	case LotMotorcycle:
		return "motorcycle"
	case LotLoadingBay:
		return "loading bay"
	default:
		return "unknown"
	}
}

// LotCategory is the per-category lot breakdown. Total comes only from the
// info feed and is nil when unknown; Available comes only from the
// availability feed.
type LotCategory struct {
	Code      LotCode `json:"code" yaml:"code"`
	Available int     `json:"available" yaml:"available"`
	Total     *int    `json:"total,omitempty" yaml:"total,omitempty"`
}

// FacilityType classifies a carpark by structure.
type FacilityType string

const (
	TypeMultiStorey FacilityType = "multi_storey"
	TypeSurface     FacilityType = "surface"
	TypeBasement    FacilityType = "basement"
	TypeMechanised  FacilityType = "mechanised"
	TypeOther       FacilityType = "other"
)

// CapType names the daily cap currently in force.
type CapType string

const (
	CapNone     CapType = ""
	CapDay      CapType = "DAY_CAP"
	CapNightNPS CapType = "NPS_NIGHT_CAP"
)

// Rates is the fee schedule for a facility. Amounts are SGD.
type Rates struct {
	HalfHourRate   float64 `json:"half_hour_rate" yaml:"half_hour_rate"`
	HourlyRate     float64 `json:"hourly_rate" yaml:"hourly_rate"`
	DailyCap       float64 `json:"daily_cap" yaml:"daily_cap"`
	EVChargingRate float64 `json:"ev_charging_rate,omitempty" yaml:"ev_charging_rate,omitempty"`
	CurrentRate    float64 `json:"current_rate_30min" yaml:"current_rate_30min"`
	CapType        CapType `json:"cap_type,omitempty" yaml:"cap_type,omitempty"`
	CapAmount      float64 `json:"cap_amount,omitempty" yaml:"cap_amount,omitempty"`
	Central        bool    `json:"central" yaml:"central"`
}

// Facility is a carpark merged from the info and availability feeds.
type Facility struct {
	ID             string        `json:"id" yaml:"id"`
	Name           string        `json:"name" yaml:"name"`
	Address        string        `json:"address" yaml:"address"`
	Lat            float64       `json:"lat" yaml:"lat"`
	Lng            float64       `json:"lng" yaml:"lng"`
	Lots           []LotCategory `json:"lots" yaml:"lots"`
	AvailableLots  int           `json:"available_lots" yaml:"available_lots"`
	TotalLots      int           `json:"total_lots" yaml:"total_lots"`
	Rates          Rates         `json:"rates" yaml:"rates"`
	Features       []string      `json:"features,omitempty" yaml:"features,omitempty"`
	Hours          string        `json:"hours,omitempty" yaml:"hours,omitempty"`
	Payment        []string      `json:"payment,omitempty" yaml:"payment,omitempty"`
	Type           FacilityType  `json:"type" yaml:"type"`
	EVLocation     string        `json:"ev_location,omitempty" yaml:"ev_location,omitempty"`
	UpdatedAt      time.Time     `json:"updated_at,omitzero" yaml:"updated_at,omitempty"`
	DistanceKm     *float64      `json:"distance_km,omitempty" yaml:"distance_km,omitempty"`
	DrivingMinutes *float64      `json:"driving_minutes,omitempty" yaml:"driving_minutes,omitempty"`
}

// Point returns the facility coordinate.
func (f Facility) Point() geo.Point {
	return geo.Point{Lat: f.Lat, Lng: f.Lng}
}

// Lot returns the category with the given code, if present.
func (f Facility) Lot(code LotCode) (LotCategory, bool) {
	for _, l := range f.Lots {
		if l.Code == code {
			return l, true
		}
	}
	return LotCategory{}, false
}

// Recount recomputes the aggregate counts from Lots. Unknown totals count as zero.
func (f *Facility) Recount() {
	f.AvailableLots, f.TotalLots = 0, 0
	for _, l := range f.Lots {
		f.AvailableLots += l.Available
		if l.Total != nil {
			f.TotalLots += *l.Total
		}
	}
}

// TravelSource records where a travel time came from.
type TravelSource string

const (
	SourceRouting  TravelSource = "routing"
	SourceFallback TravelSource = "fallback"
)

// TravelTime is a driving estimate from an origin to one destination.
type TravelTime struct {
	DistanceKm  float64      `json:"distance_km" yaml:"distance_km"`
	DurationMin float64      `json:"duration_min" yaml:"duration_min"`
	Source      TravelSource `json:"source" yaml:"source"`
}
