package main

import (
	"context"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/carpark-cli/internal/geo"
	"github.com/sells-group/carpark-cli/internal/model"
	"github.com/sells-group/carpark-cli/internal/sampler"
	"github.com/sells-group/carpark-cli/pkg/geocode"
)

var (
	sampleSnapshot  string
	sampleBBox      string
	sampleCap       int
	sampleQuery     string
	sampleLots      []string
	sampleFavorites []string
	sampleFormat    string
)

var sampleCmd = &cobra.Command{
	Use:   "sample",
	Short: "Filter a snapshot and sample it for a map viewport",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		snap, err := readSnapshot(sampleSnapshot)
		if err != nil {
			return err
		}

		bounds := geo.Singapore
		if sampleBBox != "" {
			if bounds, err = parseBBox(sampleBBox); err != nil {
				return err
			}
		}

		lots, err := parseLots(sampleLots)
		if err != nil {
			return err
		}

		limit := sampleCap
		if limit <= 0 {
			limit = cfg.Sampler.Cap
		}

		crit := sampler.Criteria{
			Query:     sampleQuery,
			Lots:      lots,
			Favorites: toSet(sampleFavorites),
			Viewport:  &bounds,
		}

		var search geocode.Client
		if geocode.IsPostalCode(sampleQuery) {
			env, err := initEnv(ctx, cfg, "sample")
			if err != nil {
				return err
			}
			defer env.Close()
			search = env.Geocoder
		}
		if err := resolvePostal(ctx, search, &crit, cfg.Sampler.PostalRadiusKm); err != nil {
			return err
		}

		matched := sampler.Filter(snap.Facilities, crit)
		shown := sampler.Sample(matched, bounds, limit)

		zap.L().Info("sample complete",
			zap.Int("facilities", len(snap.Facilities)),
			zap.Int("matched", len(matched)),
			zap.Int("shown", len(shown)),
			zap.Int("cap", limit),
		)
		return writeOutput(cmd.OutOrStdout(), sampleFormat, shown)
	},
}

// resolvePostal turns a postal-code query into a proximity criterion. Other
// queries are left as text matches, and so is a postal code the geocoder could
// not resolve. Only a query the geocoder rejects as invalid is an error.
func resolvePostal(ctx context.Context, search geocode.Client, crit *sampler.Criteria, radiusKm float64) error {
	if search == nil || !geocode.IsPostalCode(crit.Query) {
		return nil
	}
	res, err := search.Search(ctx, crit.Query)
	if err != nil {
		kind := geocode.Classify(err)
		if kind == geocode.KindInvalidQuery {
			return eris.New(geocode.UserMessage(kind))
		}
		zap.L().Warn("postal lookup failed, matching query as text",
			zap.String("query", crit.Query),
			zap.String("kind", kind.String()),
			zap.Error(err),
		)
		return nil
	}
	crit.Query = ""
	crit.Near = &geo.Point{Lat: res.Lat, Lng: res.Lng}
	crit.RadiusKm = radiusKm
	return nil
}

// parseBBox parses "minLat,minLng,maxLat,maxLng".
func parseBBox(s string) (geo.Bounds, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return geo.Bounds{}, eris.Errorf("bbox %q: want minLat,minLng,maxLat,maxLng", s)
	}
	var v [4]float64
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return geo.Bounds{}, eris.Wrapf(err, "bbox %q", s)
		}
		v[i] = f
	}
	if v[0] > v[2] || v[1] > v[3] {
		return geo.Bounds{}, eris.Errorf("bbox %q: min exceeds max", s)
	}
	return geo.NewBounds(v[0], v[1], v[2], v[3]), nil
}

func parseLots(codes []string) ([]model.LotCode, error) {
	var out []model.LotCode
	for _, c := range codes {
		code, ok := model.ParseLotCode(c)
		if !ok {
			return nil, eris.Errorf("unknown lot type %q", c)
		}
		out = append(out, code)
	}
	return out, nil
}

func toSet(ids []string) map[string]bool {
	if len(ids) == 0 {
		return nil
	}
	out := make(map[string]bool, len(ids))
	for _, id := range ids {
		if id = strings.ToUpper(strings.TrimSpace(id)); id != "" {
			out[id] = true
		}
	}
	return out
}

func init() {
	sampleCmd.Flags().StringVarP(&sampleSnapshot, "snapshot", "s", "carparks.json", "snapshot to sample")
	sampleCmd.Flags().StringVar(&sampleBBox, "bbox", "", "viewport as minLat,minLng,maxLat,maxLng (default: whole region)")
	sampleCmd.Flags().IntVar(&sampleCap, "cap", 0, "maximum facilities returned (default from config)")
	sampleCmd.Flags().StringVarP(&sampleQuery, "query", "q", "", "text or postal code search")
	sampleCmd.Flags().StringSliceVar(&sampleLots, "lots", nil, "lot types to require (C, Y, H, L)")
	sampleCmd.Flags().StringSliceVar(&sampleFavorites, "favorites", nil, "restrict to these carpark numbers")
	sampleCmd.Flags().StringVar(&sampleFormat, "format", "json", "output format (json, yaml)")
	rootCmd.AddCommand(sampleCmd)
}
