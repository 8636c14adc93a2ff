// Package pricing derives carpark fees from the HDB rate rules: a central-area
// surcharge during weekday and Saturday daytime, a day cap, and a night cap for
// carparks on the night parking scheme.
package pricing

import (
	"strings"
	"time"

	"github.com/sells-group/carpark-cli/internal/model"
)

// Rate amounts in SGD per 30 minutes, and caps in SGD.
const (
	StandardRate   = 0.6
	CentralRate    = 1.2
	DayCap         = 12.0
	CentralDayCap  = 20.0
	NightCap       = 5.0
	EVChargingRate = 0.55 // per kWh
)

// centralCarparks are the carparks inside the central area.
var centralCarparks = map[string]struct{}{
	"ACB": {}, "BBB": {}, "BRB1": {}, "CY": {}, "DUXM": {}, "HLM": {}, "KAB": {}, "KAM": {},
	"KAS": {}, "PRM": {}, "SLS": {}, "SR1": {}, "SR2": {}, "TPM": {}, "UCS": {}, "WCB": {},
}

// Singapore has no daylight saving, so a fixed zone avoids depending on tzdata.
var sgt = time.FixedZone("SGT", 8*60*60)

// IsCentral reports whether a carpark number is in the central area.
func IsCentral(carparkNo string) bool {
	_, ok := centralCarparks[strings.ToUpper(strings.TrimSpace(carparkNo))]
	return ok
}

// Input is the subset of info-feed fields the rate rules read.
type Input struct {
	CarparkNo    string
	NightParking string
	EVLots       bool
}

// Rates computes the fee schedule for a carpark at instant now. HourlyRate
// is the base half-hour rate doubled; DailyCap is the day cap for the area.
func Rates(in Input, now time.Time) model.Rates {
	central := IsCentral(in.CarparkNo)

	base := StandardRate
	dayCap := DayCap
	if central {
		base = CentralRate
		dayCap = CentralDayCap
	}

	r := model.Rates{
		HalfHourRate: base,
		HourlyRate:   base * 2,
		DailyCap:     dayCap,
		CurrentRate:  CurrentRate(central, now),
		Central:      central,
	}
	if in.EVLots {
		r.EVChargingRate = EVChargingRate
	}
	r.CapType, r.CapAmount = ActiveCap(central, HasNightParking(in.NightParking), now)
	return r
}

// CurrentRate returns the half-hour rate in force at now. The central
// surcharge applies Monday to Saturday, 07:00 to 17:00 Singapore time.
func CurrentRate(central bool, now time.Time) float64 {
	t := now.In(sgt)
	if central && t.Weekday() != time.Sunday && t.Hour() >= 7 && t.Hour() < 17 {
		return CentralRate
	}
	return StandardRate
}

// ActiveCap returns the cap in force at now. Night parking carparks are
// capped between 22:30 and 07:00; every carpark has a day cap from 07:00 to 22:30.
func ActiveCap(central, nightParking bool, now time.Time) (model.CapType, float64) {
	t := now.In(sgt)
	minutes := t.Hour()*60 + t.Minute()
	night := minutes >= 22*60+30 || minutes < 7*60

	switch {
	case night && nightParking:
		return model.CapNightNPS, NightCap
	case !night && central:
		return model.CapDay, CentralDayCap
	case !night:
		return model.CapDay, DayCap
	default:
		return model.CapNone, 0
	}
}

// HasNightParking reports whether the night_parking field opts in.
func HasNightParking(field string) bool {
	return strings.HasPrefix(strings.ToUpper(strings.TrimSpace(field)), "YES")
}
