// Package feed fetches and decodes the two carpark open-data feeds (static
// carpark information and live lot availability) and the EV lot-location CSV.
package feed

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

// Text is a JSON string that also accepts bare numbers and null. The
// datastore API returns most fields as strings but not reliably.
type Text string

// UnmarshalJSON implements json.Unmarshaler.
func (t *Text) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*t = ""
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*t = Text(strings.TrimSpace(s))
		return nil
	}
	*t = Text(b)
	return nil
}

// Count is a non-negative lot count that accepts numbers, numeric strings,
// empty strings and null. Valid is false when the value was absent or unparseable.
type Count struct {
	Value int
	Valid bool
}

// UnmarshalJSON implements json.Unmarshaler. Malformed values decode as
// invalid rather than failing the whole payload.
func (c *Count) UnmarshalJSON(b []byte) error {
	var t Text
	if err := t.UnmarshalJSON(b); err != nil {
		*c = Count{}
		return nil
	}
	n, err := strconv.Atoi(string(t))
	if err != nil || n < 0 {
		*c = Count{}
		return nil
	}
	*c = Count{Value: n, Valid: true}
	return nil
}

// MarshalJSON implements json.Marshaler.
func (c Count) MarshalJSON() ([]byte, error) {
	if !c.Valid {
		return []byte("null"), nil
	}
	return []byte(strconv.Itoa(c.Value)), nil
}

// Some returns a valid Count.
func Some(n int) Count { return Count{Value: n, Valid: true} }

// InfoLot is a per-category total from the info feed.
type InfoLot struct {
	LotType   Text  `json:"lot_type"`
	TotalLots Count `json:"total_lots"`
}

// InfoRecord is one row of the carpark information dataset.
type InfoRecord struct {
	CarparkNo           Text      `json:"car_park_no"`
	Name                Text      `json:"name,omitempty"`
	Address             Text      `json:"address"`
	XCoord              Text      `json:"x_coord"`
	YCoord              Text      `json:"y_coord"`
	CarParkType         Text      `json:"car_park_type"`
	TypeOfParkingSystem Text      `json:"type_of_parking_system"`
	ShortTermParking    Text      `json:"short_term_parking"`
	FreeParking         Text      `json:"free_parking"`
	NightParking        Text      `json:"night_parking"`
	CarParkDecks        Text      `json:"car_park_decks"`
	GantryHeight        Text      `json:"gantry_height"`
	CarParkBasement     Text      `json:"car_park_basement"`
	Lots                []InfoLot `json:"lots,omitempty"`
}

// ID returns the normalized join key.
func (r InfoRecord) ID() string { return NormalizeID(string(r.CarparkNo)) }

// AvailabilityLot is a per-category count from the availability feed.
type AvailabilityLot struct {
	LotType       Text  `json:"lot_type"`
	LotsAvailable Count `json:"lots_available"`
	TotalLots     Count `json:"total_lots"`
}

// AvailabilityRecord is one carpark in the availability snapshot. LotsAvailable
// is the legacy single-count shape, read only when CarparkInfo is empty.
type AvailabilityRecord struct {
	CarparkNumber  Text              `json:"carpark_number"`
	UpdateDatetime Text              `json:"update_datetime"`
	CarparkInfo    []AvailabilityLot `json:"carpark_info"`
	LotsAvailable  Count             `json:"lots_available"`
}

// ID returns the normalized join key.
func (r AvailabilityRecord) ID() string { return NormalizeID(string(r.CarparkNumber)) }

// NormalizeID upper-cases and trims a carpark number.
func NormalizeID(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}
