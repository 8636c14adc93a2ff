package export

import (
	"io"
	"strconv"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/carpark-cli/internal/model"
)

// SheetName is the worksheet the facilities are written to.
const SheetName = "Carparks"

// numeric marks the Columns written as numbers rather than text.
var numeric = map[string]bool{
	"lat": true, "lng": true, "available_lots": true, "total_lots": true,
	"car_available": true, "car_total": true, "hourly_rate": true, "daily_cap": true,
}

// WriteXLSX writes facilities as a single-sheet workbook with a header row.
func WriteXLSX(w io.Writer, facilities []model.Facility) error {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet(SheetName)
	if err != nil {
		return eris.Wrap(err, "xlsx: add sheet")
	}

	header := sheet.AddRow()
	for _, c := range Columns {
		header.AddCell().SetString(c)
	}

	for _, fac := range facilities {
		r := sheet.AddRow()
		for i, v := range row(fac) {
			cell := r.AddCell()
			if numeric[Columns[i]] && v != "" {
				if n, err := strconv.ParseFloat(v, 64); err == nil {
					cell.SetFloat(n)
					continue
				}
			}
			cell.SetString(v)
		}
	}

	if err := f.Write(w); err != nil {
		return eris.Wrap(err, "xlsx: write workbook")
	}
	return nil
}
