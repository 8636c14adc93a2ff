package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var cacheFormat string

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect and maintain the local cache",
}

var cacheSweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Remove expired travel-time and geocoding entries",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx, cfg, "cache")
		if err != nil {
			return err
		}
		defer env.Close()

		travel, err := env.TravelCache.Sweep(ctx)
		if err != nil {
			return err
		}
		geocoded, err := env.Geocoder.Sweep(ctx)
		if err != nil {
			return err
		}

		zap.L().Info("cache sweep complete",
			zap.Int("travel_time_removed", travel),
			zap.Int("geocode_removed", geocoded),
		)
		return writeOutput(cmd.OutOrStdout(), cacheFormat, map[string]int{
			"travel_time_removed": travel,
			"geocode_removed":     geocoded,
		})
	},
}

var cacheStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show travel-time cache statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := initEnv(cmd.Context(), cfg, "cache")
		if err != nil {
			return err
		}
		defer env.Close()

		return writeOutput(cmd.OutOrStdout(), cacheFormat, env.TravelCache.Stats())
	},
}

func init() {
	cacheCmd.PersistentFlags().StringVar(&cacheFormat, "format", "json", "output format (json, yaml)")
	cacheCmd.AddCommand(cacheSweepCmd, cacheStatsCmd)
	rootCmd.AddCommand(cacheCmd)
}
