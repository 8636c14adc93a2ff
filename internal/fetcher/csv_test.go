package fetcher

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collectRows(t *testing.T, rowCh <-chan CSVRow, errCh <-chan error) ([]CSVRow, error) {
	t.Helper()
	var rows []CSVRow
	for row := range rowCh {
		rows = append(rows, row)
	}
	for err := range errCh {
		if err != nil {
			return rows, err
		}
	}
	return rows, nil
}

func TestStreamCSV_KeyedByHeader(t *testing.T) {
	input := "Car Park No, EV Lot Location\nACB , Level 1 \nBBB,\n"
	rowCh, errCh := StreamCSV(context.Background(), strings.NewReader(input), CSVOptions{})
	rows, err := collectRows(t, rowCh, errCh)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "ACB", rows[0]["car_park_no"])
	assert.Equal(t, "Level 1", rows[0]["ev_lot_location"])
	assert.Equal(t, "", rows[1]["ev_lot_location"])
}

func TestStreamCSV_PipeDelimited(t *testing.T) {
	input := "a|b\n1|2\n"
	rowCh, errCh := StreamCSV(context.Background(), strings.NewReader(input), CSVOptions{Delimiter: '|'})
	rows, err := collectRows(t, rowCh, errCh)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, CSVRow{"a": "1", "b": "2"}, rows[0])
}

func TestStreamCSV_Empty(t *testing.T) {
	rowCh, errCh := StreamCSV(context.Background(), strings.NewReader(""), CSVOptions{})
	rows, err := collectRows(t, rowCh, errCh)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestStreamCSV_ExtraFieldsIgnored(t *testing.T) {
	input := "a,b\n1,2,3\n"
	rowCh, errCh := StreamCSV(context.Background(), strings.NewReader(input), CSVOptions{})
	rows, err := collectRows(t, rowCh, errCh)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Len(t, rows[0], 2)
}

func TestStreamCSV_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	input := "a\n1\n2\n"
	rowCh, errCh := StreamCSV(ctx, strings.NewReader(input), CSVOptions{})
	_, err := collectRows(t, rowCh, errCh)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "context cancelled")
}

func TestCSVRow_First(t *testing.T) {
	row := CSVRow{"hdb_ev": "", "carpark_number": "ACB"}

	assert.Equal(t, "ACB", row.First("hdb_ev", "Carpark Number", "car_park_no"))
	assert.Equal(t, "", row.First("missing"))
}

func TestNormalizeHeader(t *testing.T) {
	assert.Equal(t, "ev_lot_location", NormalizeHeader(" EV Lot-Location "))
	assert.Equal(t, "car_park_no", NormalizeHeader("\ufeffcar_park_no"))
}
