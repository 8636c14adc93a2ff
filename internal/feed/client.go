package feed

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/carpark-cli/internal/fetcher"
)

// Default endpoints.
const (
	DefaultInfoURL         = "https://data.gov.sg/api/action/datastore_search"
	DefaultInfoResourceID  = "d_23f946fa557947f93a8043bbef41dd09"
	DefaultAvailabilityURL = "https://api.data.gov.sg/v1/transport/carpark-availability"
	DefaultPageSize        = 5000
)

// maxPages bounds pagination against a server that never returns a short page.
const maxPages = 100

// Config selects the feed endpoints.
type Config struct {
	InfoURL         string
	ResourceID      string
	PageSize        int
	AvailabilityURL string
	APIKey          string
}

// Client fetches both feeds.
type Client struct {
	f   fetcher.Fetcher
	cfg Config
}

// NewClient creates a feed client. Empty config fields take the defaults.
func NewClient(f fetcher.Fetcher, cfg Config) *Client {
	if cfg.InfoURL == "" {
		cfg.InfoURL = DefaultInfoURL
	}
	if cfg.ResourceID == "" {
		cfg.ResourceID = DefaultInfoResourceID
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = DefaultPageSize
	}
	if cfg.AvailabilityURL == "" {
		cfg.AvailabilityURL = DefaultAvailabilityURL
	}
	return &Client{f: f, cfg: cfg}
}

type datastoreResponse struct {
	Success bool `json:"success"`
	Result  struct {
		Records []InfoRecord `json:"records"`
		Total   int          `json:"total"`
	} `json:"result"`
}

// FetchInfo pages through the info dataset until a short or empty page.
func (c *Client) FetchInfo(ctx context.Context) ([]InfoRecord, error) {
	var all []InfoRecord
	offset := 0
	for page := 0; page < maxPages; page++ {
		q := url.Values{}
		q.Set("resource_id", c.cfg.ResourceID)
		q.Set("limit", strconv.Itoa(c.cfg.PageSize))
		q.Set("offset", strconv.Itoa(offset))

		resp, err := fetcher.GetJSON[datastoreResponse](ctx, c.f, c.cfg.InfoURL+"?"+q.Encode(), nil)
		if err != nil {
			return nil, eris.Wrapf(err, "feed: fetch info page at offset %d", offset)
		}

		records := resp.Result.Records
		all = append(all, records...)
		zap.L().Debug("feed: info page",
			zap.Int("offset", offset),
			zap.Int("records", len(records)),
		)
		if len(records) < c.cfg.PageSize {
			break
		}
		offset += len(records)
	}
	return all, nil
}

type availabilityResponse struct {
	Items []struct {
		Timestamp   string               `json:"timestamp"`
		CarparkData []AvailabilityRecord `json:"carpark_data"`
	} `json:"items"`
}

// FetchAvailability fetches the latest availability snapshot. The returned
// time is the snapshot timestamp, zero when absent or unparseable.
func (c *Client) FetchAvailability(ctx context.Context) ([]AvailabilityRecord, time.Time, error) {
	var header http.Header
	if c.cfg.APIKey != "" {
		header = http.Header{"X-Api-Key": {c.cfg.APIKey}}
	}

	resp, err := fetcher.GetJSON[availabilityResponse](ctx, c.f, c.cfg.AvailabilityURL, header)
	if err != nil {
		return nil, time.Time{}, eris.Wrap(err, "feed: fetch availability")
	}
	if len(resp.Items) == 0 {
		return nil, time.Time{}, nil
	}

	item := resp.Items[0]
	ts, _ := time.Parse(time.RFC3339, item.Timestamp)
	return item.CarparkData, ts, nil
}

// Snapshot is the pair of raw feeds fetched together.
type Snapshot struct {
	Info         []InfoRecord
	Availability []AvailabilityRecord
	FetchedAt    time.Time
}

// FetchAll fetches both feeds concurrently. A failure of one feed is logged
// and leaves that side empty; only the failure of both is returned.
func (c *Client) FetchAll(ctx context.Context) (*Snapshot, error) {
	snap := &Snapshot{}
	var infoErr, availErr error

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		snap.Info, infoErr = c.FetchInfo(gctx)
		return nil
	})
	g.Go(func() error {
		snap.Availability, snap.FetchedAt, availErr = c.FetchAvailability(gctx)
		return nil
	})
	_ = g.Wait()

	if infoErr != nil && availErr != nil {
		return nil, eris.Wrap(infoErr, "feed: both feeds failed")
	}
	if infoErr != nil {
		zap.L().Error("feed: info feed failed", zap.Error(infoErr))
	}
	if availErr != nil {
		zap.L().Error("feed: availability feed failed", zap.Error(availErr))
	}
	if snap.FetchedAt.IsZero() {
		snap.FetchedAt = time.Now().UTC()
	}
	return snap, nil
}

// AttachTotals fills per-category totals on info records from availability
// records when the info record carries none for that category. Totals already
// present on the info record are kept.
func AttachTotals(info []InfoRecord, avail []AvailabilityRecord) {
	totals := make(map[string][]InfoLot, len(avail))
	for _, a := range avail {
		for _, l := range a.CarparkInfo {
			if l.TotalLots.Valid {
				totals[a.ID()] = append(totals[a.ID()], InfoLot{LotType: l.LotType, TotalLots: l.TotalLots})
			}
		}
	}

	for i := range info {
		extra, ok := totals[info[i].ID()]
		if !ok {
			continue
		}
		have := make(map[string]bool, len(info[i].Lots))
		for _, l := range info[i].Lots {
			if l.TotalLots.Valid {
				have[NormalizeID(string(l.LotType))] = true
			}
		}
		for _, l := range extra {
			code := NormalizeID(string(l.LotType))
			if have[code] {
				continue
			}
			info[i].Lots = append(info[i].Lots, l)
			have[code] = true
		}
	}
}
