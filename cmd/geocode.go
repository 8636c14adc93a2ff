package main

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/carpark-cli/pkg/geocode"
)

var geocodeFormat string

var geocodeCmd = &cobra.Command{
	Use:   "geocode <query>",
	Short: "Resolve an address, place or postal code to a location",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx, cfg, "geocode")
		if err != nil {
			return err
		}
		defer env.Close()

		query := strings.Join(args, " ")
		res, err := env.Geocoder.Search(ctx, query)
		if err != nil {
			kind := geocode.Classify(err)
			zap.L().Debug("geocode failed", zap.String("kind", kind.String()), zap.Error(err))
			return eris.New(geocode.UserMessage(kind))
		}
		return writeOutput(cmd.OutOrStdout(), geocodeFormat, res)
	},
}

func init() {
	geocodeCmd.Flags().StringVar(&geocodeFormat, "format", "json", "output format (json, yaml)")
	rootCmd.AddCommand(geocodeCmd)
}
