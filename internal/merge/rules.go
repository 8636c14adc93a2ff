package merge

import (
	"strconv"
	"strings"

	"github.com/sells-group/carpark-cli/internal/feed"
	"github.com/sells-group/carpark-cli/internal/model"
)

// Feature tags.
const (
	FeatureShortTerm   = "short_term_parking"
	FeatureFreeParking = "free_parking"
	FeatureNight       = "night_parking"
	FeatureGantry      = "height_limit"
	FeatureBasement    = "basement"
	FeatureMultiDeck   = "multi_deck"
	FeatureEV          = "ev_charging"
	FeatureElectronic  = "electronic_parking"
)

// Features derives feature tags from the free-text info fields.
func Features(rec feed.InfoRecord, ev bool) []string {
	var out []string
	if yes(rec.ShortTermParking) {
		out = append(out, FeatureShortTerm)
	}
	if yes(rec.FreeParking) {
		out = append(out, FeatureFreeParking)
	}
	if yes(rec.NightParking) {
		out = append(out, FeatureNight)
	}
	if h, err := strconv.ParseFloat(string(rec.GantryHeight), 64); err == nil && h > 0 {
		out = append(out, FeatureGantry)
	}
	if strings.EqualFold(string(rec.CarParkBasement), "Y") {
		out = append(out, FeatureBasement)
	}
	if d, err := strconv.Atoi(string(rec.CarParkDecks)); err == nil && d > 1 {
		out = append(out, FeatureMultiDeck)
	}
	if strings.Contains(strings.ToUpper(string(rec.TypeOfParkingSystem)), "ELECTRONIC") {
		out = append(out, FeatureElectronic)
	}
	if ev {
		out = append(out, FeatureEV)
	}
	return out
}

// Hours renders the operating-hours descriptor from the short-term and free
// parking fields.
func Hours(rec feed.InfoRecord) string {
	short := strings.ToUpper(strings.TrimSpace(string(rec.ShortTermParking)))
	var hours string
	switch {
	case short == "" || short == "NO":
		hours = "Season parking only"
	case short == "WHOLE DAY":
		hours = "24 hours"
	default:
		hours = "Short-term " + short
	}

	if free := strings.TrimSpace(string(rec.FreeParking)); yes(feed.Text(free)) {
		hours += "; free " + strings.ToUpper(free)
	}
	return hours
}

// Payment maps the parking system to accepted payment methods.
func Payment(system string) []string {
	s := strings.ToUpper(system)
	switch {
	case strings.Contains(s, "ELECTRONIC"):
		return []string{"EPS", "CashCard", "Parking.sg"}
	case strings.Contains(s, "COUPON"):
		return []string{"Coupon", "Parking.sg"}
	default:
		return []string{"Parking.sg"}
	}
}

// Classify maps the free-text carpark type onto a FacilityType by substring.
func Classify(carParkType string) model.FacilityType {
	s := strings.ToUpper(carParkType)
	switch {
	case strings.Contains(s, "MECHANISED"):
		return model.TypeMechanised
	case strings.Contains(s, "MULTI-STOREY"), strings.Contains(s, "MULTI STOREY"):
		return model.TypeMultiStorey
	case strings.Contains(s, "BASEMENT"):
		return model.TypeBasement
	case strings.Contains(s, "SURFACE"):
		return model.TypeSurface
	default:
		return model.TypeOther
	}
}

func yes(field feed.Text) bool {
	s := strings.ToUpper(strings.TrimSpace(string(field)))
	return s != "" && s != "NO" && s != "N"
}
