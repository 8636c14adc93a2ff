package main

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/carpark-cli/internal/feed"
	"github.com/sells-group/carpark-cli/internal/fetcher"
	"github.com/sells-group/carpark-cli/internal/merge"
	"github.com/sells-group/carpark-cli/internal/model"
	"github.com/sells-group/carpark-cli/internal/monitoring"
)

// snapshot is the merged dataset written by ingest and read by the other
// commands.
type snapshot struct {
	ID          string           `json:"id" yaml:"id"`
	GeneratedAt time.Time        `json:"generated_at" yaml:"generated_at"`
	FetchedAt   time.Time        `json:"fetched_at" yaml:"fetched_at"`
	Stats       merge.Stats      `json:"stats" yaml:"stats"`
	Facilities  []model.Facility `json:"facilities" yaml:"facilities"`
}

// buildSnapshot fetches both feeds and the optional EV lot CSV, then merges
// them. A failure of both feeds is an error, and so is a merge that yields no
// facilities, which happens whenever the info feed is down.
func buildSnapshot(ctx context.Context, env *appEnv, evPath string) (*snapshot, error) {
	raw, err := env.Feeds.FetchAll(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "fetch feeds")
	}
	monitoring.FeedRecordsTotal.WithLabelValues("info").Add(float64(len(raw.Info)))
	monitoring.FeedRecordsTotal.WithLabelValues("availability").Add(float64(len(raw.Availability)))

	var opts []merge.Option
	if evPath != "" {
		ev, err := readEV(ctx, env.Fetcher, evPath)
		if err != nil {
			zap.L().Warn("ev lot locations unavailable", zap.String("source", evPath), zap.Error(err))
		} else {
			monitoring.FeedRecordsTotal.WithLabelValues("ev").Add(float64(len(ev)))
			opts = append(opts, merge.WithEVLocations(ev))
		}
	}

	feed.AttachTotals(raw.Info, raw.Availability)
	facilities, stats := merge.New(opts...).MergeWithStats(raw.Info, raw.Availability)
	if len(facilities) == 0 {
		return nil, eris.Errorf("merge produced no facilities (info records: %d, availability records: %d)",
			len(raw.Info), len(raw.Availability))
	}

	return &snapshot{
		ID:          uuid.NewString(),
		GeneratedAt: time.Now().UTC(),
		FetchedAt:   raw.FetchedAt,
		Stats:       stats,
		Facilities:  facilities,
	}, nil
}

func readEV(ctx context.Context, f fetcher.Fetcher, src string) (map[string]string, error) {
	var r io.ReadCloser
	if strings.HasPrefix(src, "http://") || strings.HasPrefix(src, "https://") {
		body, err := f.Download(ctx, src)
		if err != nil {
			return nil, err
		}
		r = body
	} else {
		file, err := os.Open(src)
		if err != nil {
			return nil, eris.Wrap(err, "open ev csv")
		}
		r = file
	}
	defer r.Close() //nolint:errcheck
	return feed.ReadEVLocations(ctx, r)
}

func readSnapshot(path string) (*snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "read snapshot %s", path)
	}
	var s snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, eris.Wrapf(err, "parse snapshot %s", path)
	}
	return &s, nil
}

// writeSnapshot writes s as indented JSON, atomically when path is a file.
// A path of "-" writes to w.
func writeSnapshot(w io.Writer, path string, s *snapshot) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return eris.Wrap(err, "encode snapshot")
	}
	data = append(data, '\n')

	if path == "" || path == "-" {
		_, err := w.Write(data)
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".snapshot-*")
	if err != nil {
		return eris.Wrap(err, "create snapshot temp file")
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return eris.Wrap(err, "write snapshot")
	}
	if err := tmp.Close(); err != nil {
		return eris.Wrap(err, "close snapshot")
	}
	return eris.Wrap(os.Rename(tmp.Name(), path), "rename snapshot")
}

// writeOutput encodes v as json or yaml.
func writeOutput(w io.Writer, format string, v any) error {
	switch strings.ToLower(format) {
	case "", "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case "yaml", "yml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return eris.Wrap(err, "encode yaml")
		}
		return enc.Close()
	default:
		return eris.Errorf("unknown output format %q (json, yaml)", format)
	}
}
