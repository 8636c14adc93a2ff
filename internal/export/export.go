// Package export writes merged facilities to spreadsheet and GIS formats.
package export

import (
	"strconv"
	"strings"

	"github.com/sells-group/carpark-cli/internal/model"
)

// Columns is the tabular layout shared by the spreadsheet and shapefile
// writers.
var Columns = []string{
	"id", "name", "address", "lat", "lng", "type",
	"available_lots", "total_lots", "car_available", "car_total",
	"hourly_rate", "daily_cap", "hours", "features", "updated_at",
}

// row flattens a facility into Columns order. Unknown totals are empty.
func row(f model.Facility) []string {
	var carAvail, carTotal string
	if l, ok := f.Lot(model.LotCar); ok {
		carAvail = strconv.Itoa(l.Available)
		if l.Total != nil {
			carTotal = strconv.Itoa(*l.Total)
		}
	}
	var updated string
	if !f.UpdatedAt.IsZero() {
		updated = f.UpdatedAt.UTC().Format("2006-01-02T15:04:05Z")
	}
	return []string{
		f.ID,
		f.Name,
		f.Address,
		strconv.FormatFloat(f.Lat, 'f', 6, 64),
		strconv.FormatFloat(f.Lng, 'f', 6, 64),
		string(f.Type),
		strconv.Itoa(f.AvailableLots),
		strconv.Itoa(f.TotalLots),
		carAvail,
		carTotal,
		strconv.FormatFloat(f.Rates.HourlyRate, 'f', 2, 64),
		strconv.FormatFloat(f.Rates.DailyCap, 'f', 2, 64),
		f.Hours,
		strings.Join(f.Features, ";"),
		updated,
	}
}
