package main

import (
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/carpark-cli/internal/export"
)

var (
	exportSnapshot string
	exportFormat   string
	exportOut      string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export a snapshot as a spreadsheet, GeoJSON or shapefile",
	RunE: func(cmd *cobra.Command, args []string) error {
		snap, err := readSnapshot(exportSnapshot)
		if err != nil {
			return err
		}

		format := strings.ToLower(exportFormat)
		switch format {
		case "shp":
			if exportOut == "" || exportOut == "-" {
				return eris.New("shapefile export needs --out ending in .shp")
			}
			err = export.WriteShapefile(exportOut, snap.Facilities)
		case "xlsx", "geojson":
			err = writeExport(cmd, format, snap)
		default:
			return eris.Errorf("unknown export format %q (xlsx, geojson, shp)", exportFormat)
		}
		if err != nil {
			return err
		}

		zap.L().Info("export complete",
			zap.String("format", format),
			zap.String("out", exportOut),
			zap.Int("facilities", len(snap.Facilities)),
		)
		return nil
	},
}

func writeExport(cmd *cobra.Command, format string, snap *snapshot) error {
	w := cmd.OutOrStdout()
	if exportOut != "" && exportOut != "-" {
		f, err := os.Create(exportOut)
		if err != nil {
			return eris.Wrapf(err, "create %s", exportOut)
		}
		defer f.Close() //nolint:errcheck
		w = f
	}
	if format == "xlsx" {
		return export.WriteXLSX(w, snap.Facilities)
	}
	return export.WriteGeoJSON(w, snap.Facilities)
}

func init() {
	exportCmd.Flags().StringVarP(&exportSnapshot, "snapshot", "s", "carparks.json", "snapshot to export")
	exportCmd.Flags().StringVar(&exportFormat, "format", "xlsx", "export format (xlsx, geojson, shp)")
	exportCmd.Flags().StringVarP(&exportOut, "out", "o", "", "output path (- for stdout; required for shp)")
	rootCmd.AddCommand(exportCmd)
}
