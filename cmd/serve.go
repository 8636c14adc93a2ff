package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/carpark-cli/internal/monitoring"
)

const (
	defaultPort     = 8080
	shutdownTimeout = 10 * time.Second
)

var (
	servePort     int
	serveSnapshot string
	serveEVCSV    string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the merged dataset, travel times and geocoding over HTTP",
	Long:  "Loads a snapshot (or fetches the feeds), refreshes availability on an interval, sweeps expired cache entries and exposes the JSON API with prometheus metrics.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		env, err := initEnv(ctx, cfg, "serve")
		if err != nil {
			return err
		}
		defer env.Close()

		evPath := serveEVCSV
		if evPath == "" {
			evPath = cfg.Feeds.EVCSVPath
		}

		ds := newDataset()
		if err := loadInitial(ctx, env, ds, evPath); err != nil {
			return err
		}

		checker := monitoring.NewChecker(
			monitoring.NewCollector(ds, env.TravelCache),
			monitoring.NewAlerter(cfg.Monitoring),
			cfg.Monitoring,
		)

		handler := buildMux(env, ds, muxOptions{
			AllowedOrigins: cfg.Server.AllowedOrigins,
			Sampler:        cfg.Sampler,
			Checker:        checker,
		})

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			checker.Run(gctx)
			return nil
		})
		g.Go(func() error {
			refreshLoop(gctx, time.Duration(cfg.Feeds.RefreshSecs)*time.Second, func(ctx context.Context) error {
				return refreshDataset(ctx, env, ds, evPath)
			})
			return nil
		})
		g.Go(func() error {
			sweepLoop(gctx, cfg.TravelTime.SweepInterval(), env)
			return nil
		})
		g.Go(func() error {
			return startServer(gctx, handler, resolvePort(servePort, cfg.Server.Port))
		})
		return g.Wait()
	},
}

// refreshDataset rebuilds the snapshot from the feeds and swaps it in. On any
// error ds is left untouched.
func refreshDataset(ctx context.Context, env *appEnv, ds *dataset, evPath string) error {
	s, err := buildSnapshot(ctx, env, evPath)
	if err != nil {
		return err
	}
	ds.Replace(s)
	return nil
}

// loadInitial fills ds from --snapshot when given, otherwise from the feeds.
func loadInitial(ctx context.Context, env *appEnv, ds *dataset, evPath string) error {
	if serveSnapshot != "" {
		s, err := readSnapshot(serveSnapshot)
		if err != nil {
			return err
		}
		ds.Replace(s)
		zap.L().Info("loaded snapshot", zap.String("path", serveSnapshot), zap.Int("facilities", len(s.Facilities)))
		return nil
	}

	s, err := buildSnapshot(ctx, env, evPath)
	if err != nil {
		return eris.Wrap(err, "initial load")
	}
	ds.Replace(s)
	zap.L().Info("initial dataset built",
		zap.String("snapshot_id", s.ID),
		zap.Int("facilities", len(s.Facilities)),
	)
	return nil
}

// refreshLoop calls refresh every interval until ctx is done. A failed
// refresh keeps the previous dataset. A non-positive interval disables it.
func refreshLoop(ctx context.Context, interval time.Duration, refresh func(context.Context) error) {
	if interval <= 0 {
		return
	}
	log := zap.L().With(zap.String("component", "refresh"))

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := refresh(ctx); err != nil {
				if ctx.Err() != nil {
					return
				}
				log.Warn("refresh failed, serving previous dataset", zap.Error(err))
				continue
			}
			log.Debug("dataset refreshed")
		}
	}
}

// sweepLoop removes expired cache entries every interval.
func sweepLoop(ctx context.Context, interval time.Duration, env *appEnv) {
	if interval <= 0 {
		return
	}
	log := zap.L().With(zap.String("component", "sweep"))

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			travel, geocoded := sweepCaches(ctx, env)
			log.Debug("cache sweep", zap.Int("traveltime", travel), zap.Int("geocode", geocoded))
		}
	}
}

// sweepCaches sweeps both caches, logging failures. It returns the removal
// counts.
func sweepCaches(ctx context.Context, env *appEnv) (travel, geocoded int) {
	var err error
	if env.TravelCache != nil {
		if travel, err = env.TravelCache.Sweep(ctx); err != nil {
			zap.L().Warn("travel-time cache sweep failed", zap.Error(err))
		}
	}
	if env.Geocoder != nil {
		if geocoded, err = env.Geocoder.Sweep(ctx); err != nil {
			zap.L().Warn("geocode cache sweep failed", zap.Error(err))
		}
	}
	return travel, geocoded
}

// resolvePort picks the flag value, then the configured port, then the default.
func resolvePort(flagPort, cfgPort int) int {
	if flagPort > 0 {
		return flagPort
	}
	if cfgPort > 0 {
		return cfgPort
	}
	return defaultPort
}

// startServer serves handler until ctx is cancelled, then shuts down
// gracefully.
func startServer(ctx context.Context, handler http.Handler, port int) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		zap.L().Info("starting http server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return eris.Wrap(err, "http server")
		}
		return nil
	case <-ctx.Done():
	}

	zap.L().Info("shutting down http server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return eris.Wrap(err, "http server shutdown")
	}
	return nil
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "listen port (default from config, then 8080)")
	serveCmd.Flags().StringVarP(&serveSnapshot, "snapshot", "s", "", "serve this snapshot instead of fetching on start")
	serveCmd.Flags().StringVar(&serveEVCSV, "ev-csv", "", "EV lot location CSV path or URL (default from config)")
	rootCmd.AddCommand(serveCmd)
}
