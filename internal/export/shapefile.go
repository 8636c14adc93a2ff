package export

import (
	"path/filepath"
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"

	"github.com/sells-group/carpark-cli/internal/model"
)

// dBase field names are limited to ten characters.
var shpFields = []shp.Field{
	shp.StringField("ID", 12),
	shp.StringField("NAME", 120),
	shp.StringField("ADDRESS", 120),
	shp.StringField("TYPE", 16),
	shp.NumberField("AVAIL", 8),
	shp.NumberField("TOTAL", 8),
	shp.FloatField("HOURLY", 8, 2),
	shp.FloatField("DAILYCAP", 8, 2),
	shp.StringField("UPDATED", 20),
}

// WriteShapefile writes facilities as a WGS84 point shapefile at path. The
// .shx and .dbf companions are created alongside it.
func WriteShapefile(path string, facilities []model.Facility) error {
	if !strings.EqualFold(filepath.Ext(path), ".shp") {
		return eris.Errorf("shapefile: %s must end in .shp", path)
	}

	w, err := shp.Create(path, shp.POINT)
	if err != nil {
		return eris.Wrapf(err, "shapefile: create %s", path)
	}
	defer w.Close()

	if err := w.SetFields(shpFields); err != nil {
		return eris.Wrap(err, "shapefile: set fields")
	}

	for _, f := range facilities {
		n := int(w.Write(&shp.Point{X: f.Lng, Y: f.Lat}))

		var updated string
		if !f.UpdatedAt.IsZero() {
			updated = f.UpdatedAt.UTC().Format("2006-01-02T15:04:05Z")
		}
		values := []any{
			clip(f.ID, 12),
			clip(f.Name, 120),
			clip(f.Address, 120),
			string(f.Type),
			f.AvailableLots,
			f.TotalLots,
			f.Rates.HourlyRate,
			f.Rates.DailyCap,
			updated,
		}
		for i, v := range values {
			if err := w.WriteAttribute(n, i, v); err != nil {
				return eris.Wrapf(err, "shapefile: write %s field %d", f.ID, i)
			}
		}
	}
	return nil
}

// clip truncates s to n bytes without splitting a rune.
func clip(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !isRuneStart(s[n]) {
		n--
	}
	return s[:n]
}

func isRuneStart(b byte) bool { return b&0xC0 != 0x80 }
