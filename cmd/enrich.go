package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/carpark-cli/internal/geo"
)

var (
	enrichSnapshot string
	enrichOut      string
	enrichLat      float64
	enrichLng      float64
)

var enrichCmd = &cobra.Command{
	Use:   "enrich",
	Short: "Annotate a snapshot with driving distance and time from an origin",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		origin := geo.Point{Lat: enrichLat, Lng: enrichLng}
		if !geo.Singapore.Contains(origin.Lat, origin.Lng) {
			return eris.Errorf("origin %.5f,%.5f is outside the service region", origin.Lat, origin.Lng)
		}

		snap, err := readSnapshot(enrichSnapshot)
		if err != nil {
			return err
		}

		env, err := initEnv(ctx, cfg, "enrich")
		if err != nil {
			return err
		}
		defer env.Close()

		env.TravelTime.Annotate(ctx, snap.Facilities, origin)

		out := enrichOut
		if out == "" {
			out = enrichSnapshot
		}
		if err := writeSnapshot(cmd.OutOrStdout(), out, snap); err != nil {
			return err
		}

		stats := env.TravelCache.Stats()
		zap.L().Info("enrich complete",
			zap.Int("facilities", len(snap.Facilities)),
			zap.Float64("origin_lat", origin.Lat),
			zap.Float64("origin_lng", origin.Lng),
			zap.Int("cache_entries", stats.Entries),
			zap.Float64("cache_hit_rate", stats.HitRate),
		)
		return nil
	},
}

func init() {
	enrichCmd.Flags().StringVarP(&enrichSnapshot, "snapshot", "s", "carparks.json", "snapshot to enrich")
	enrichCmd.Flags().StringVarP(&enrichOut, "out", "o", "", "output path (default: overwrite the snapshot, - for stdout)")
	enrichCmd.Flags().Float64Var(&enrichLat, "lat", 0, "origin latitude")
	enrichCmd.Flags().Float64Var(&enrichLng, "lng", 0, "origin longitude")
	_ = enrichCmd.MarkFlagRequired("lat")
	_ = enrichCmd.MarkFlagRequired("lng")
	rootCmd.AddCommand(enrichCmd)
}
