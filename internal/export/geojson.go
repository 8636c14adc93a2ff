package export

import (
	"encoding/json"
	"io"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"

	"github.com/sells-group/carpark-cli/internal/model"
)

// FeatureCollection converts facilities to GeoJSON point features.
func FeatureCollection(facilities []model.Facility) *geojson.FeatureCollection {
	fc := &geojson.FeatureCollection{Features: make([]*geojson.Feature, 0, len(facilities))}
	for _, f := range facilities {
		props := map[string]any{
			"name":           f.Name,
			"address":        f.Address,
			"type":           f.Type,
			"available_lots": f.AvailableLots,
			"total_lots":     f.TotalLots,
			"lots":           f.Lots,
			"rates":          f.Rates,
		}
		if !f.UpdatedAt.IsZero() {
			props["updated_at"] = f.UpdatedAt
		}
		if f.DistanceKm != nil {
			props["distance_km"] = *f.DistanceKm
		}
		if f.DrivingMinutes != nil {
			props["driving_minutes"] = *f.DrivingMinutes
		}
		fc.Features = append(fc.Features, &geojson.Feature{
			ID:         f.ID,
			Geometry:   geom.NewPointFlat(geom.XY, []float64{f.Lng, f.Lat}),
			Properties: props,
		})
	}
	return fc
}

// WriteGeoJSON writes facilities as a GeoJSON FeatureCollection.
func WriteGeoJSON(w io.Writer, facilities []model.Facility) error {
	data, err := json.Marshal(FeatureCollection(facilities))
	if err != nil {
		return eris.Wrap(err, "geojson: encode")
	}
	data = append(data, '\n')
	_, err = w.Write(data)
	return eris.Wrap(err, "geojson: write")
}
