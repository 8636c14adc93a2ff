package feed

import (
	"context"
	"io"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/carpark-cli/internal/fetcher"
)

// NoEVChargers is the location text for carparks without EV lots.
const NoEVChargers = "No EV chargers"

var (
	evIDHeaders       = []string{"hdb_ev", "carpark_number", "car_park_no", "carpark_no"}
	evLocationHeaders = []string{"ev_lot_location", "ev_location", "ev_lots_location"}
)

// ReadEVLocations reads an EV lot-location CSV into carpark number ->
// location text. Header names are matched against known aliases; the first
// non-empty location for a carpark wins. Rows without an identifier are skipped.
func ReadEVLocations(ctx context.Context, r io.Reader) (map[string]string, error) {
	rowCh, errCh := fetcher.StreamCSV(ctx, r, fetcher.CSVOptions{LazyQuotes: true})

	out := make(map[string]string)
	skipped := 0
	for row := range rowCh {
		id := NormalizeID(row.First(evIDHeaders...))
		if id == "" {
			skipped++
			continue
		}
		loc := row.First(evLocationHeaders...)
		if loc == "" {
			continue
		}
		if _, seen := out[id]; !seen {
			out[id] = loc
		}
	}
	if err := <-errCh; err != nil {
		return nil, eris.Wrap(err, "feed: read ev locations")
	}

	if skipped > 0 {
		zap.L().Warn("feed: ev rows without carpark number", zap.Int("skipped", skipped))
	}
	return out, nil
}
