package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kjstillabower/weather-dashboard/internal/cache"
	"github.com/kjstillabower/weather-dashboard/internal/dashboard"
	"github.com/kjstillabower/weather-dashboard/internal/debounce"
	httphandler "github.com/kjstillabower/weather-dashboard/internal/http"
	"github.com/kjstillabower/weather-dashboard/internal/models"
	"github.com/kjstillabower/weather-dashboard/internal/prefs"
	"github.com/kjstillabower/weather-dashboard/internal/refresh"
	"github.com/kjstillabower/weather-dashboard/internal/validation"
)

// rootOptions are the persistent flags shared by all commands.
type rootOptions struct {
	configPath string
	output     string
	device     string
}

func (o *rootOptions) json() bool {
	return o.output == "json"
}

// newRootCmd builds the command tree. Output goes to cmd.OutOrStdout().
func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "dashboard",
		Short:         "Weather dashboard",
		Long:          "Current conditions, forecasts, air quality and astronomy from Open-Meteo.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			switch opts.output {
			case "text", "json":
				return nil
			}
			return fmt.Errorf("--output must be text or json, got %q", opts.output)
		},
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "config file (default config/{ENV_NAME}.yaml)")
	root.PersistentFlags().StringVarP(&opts.output, "output", "o", "text", "output format (text, json)")
	root.PersistentFlags().StringVar(&opts.device, "device", "", "device position as lat,lon (first geolocation tier)")

	root.AddCommand(
		newForecastCmd(opts),
		newSearchCmd(opts),
		newLocateCmd(opts),
		newWatchCmd(opts),
		newFavoritesCmd(opts),
		newSettingsCmd(opts),
	)
	return root
}

// withApp builds the app for one command run and closes it afterwards.
func withApp(opts *rootOptions, fn func(cmd *cobra.Command, args []string, a *app) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		a, err := newApp(opts)
		if err != nil {
			return err
		}
		defer a.Close()
		return fn(cmd, args, a)
	}
}

// coordFlags binds --lat/--lon on a command.
type coordFlags struct {
	lat, lon float64
}

func (c *coordFlags) bind(cmd *cobra.Command) {
	cmd.Flags().Float64Var(&c.lat, "lat", 0, "latitude")
	cmd.Flags().Float64Var(&c.lon, "lon", 0, "longitude")
	cmd.MarkFlagsRequiredTogether("lat", "lon")
}

func (c *coordFlags) set(cmd *cobra.Command) bool {
	return cmd.Flags().Changed("lat") && cmd.Flags().Changed("lon")
}

// target is the place a forecast is loaded for. An empty name is reverse geocoded.
type target struct {
	coord models.Coordinate
	name  string
}

// resolveTarget picks the forecast location: explicit coordinates, then a
// search query, then the geolocation chain.
func (a *app) resolveTarget(ctx context.Context, cmd *cobra.Command, flags *coordFlags, args []string) (target, error) {
	if flags.set(cmd) {
		if err := validation.Coordinate(flags.lat, flags.lon); err != nil {
			return target{}, err
		}
		return target{coord: models.Coordinate{Latitude: flags.lat, Longitude: flags.lon}}, nil
	}
	if query := strings.TrimSpace(strings.Join(args, " ")); query != "" {
		places, err := a.search.SearchLocations(ctx, query)
		if err != nil {
			return target{}, err
		}
		if len(places) == 0 {
			return target{}, fmt.Errorf("no places match %q", query)
		}
		return target{coord: places[0].Coordinate(), name: places[0].Name}, nil
	}
	loc := a.resolver.Resolve(ctx)
	return target{coord: loc.Coordinate, name: loc.Name}, nil
}

func newForecastCmd(opts *rootOptions) *cobra.Command {
	var flags coordFlags
	cmd := &cobra.Command{
		Use:   "forecast [place]",
		Short: "Show the dashboard for a place, a coordinate, or the current location",
		RunE: withApp(opts, func(cmd *cobra.Command, args []string, a *app) error {
			ctx := cmd.Context()
			t, err := a.resolveTarget(ctx, cmd, &flags, args)
			if err != nil {
				return err
			}
			ctrl := a.controller()
			loadErr := ctrl.Load(ctx, t.coord.Latitude, t.coord.Longitude, t.name)
			view := dashboard.BuildView(ctrl.State(), a.prefs.Settings(), time.Now())
			view.Favorite = a.prefs.IsFavorite(t.coord)
			if err := writeView(cmd.OutOrStdout(), view, opts.json()); err != nil {
				return err
			}
			return loadErr
		}),
	}
	flags.bind(cmd)
	return cmd
}

func newSearchCmd(opts *rootOptions) *cobra.Command {
	var interactive bool
	cmd := &cobra.Command{
		Use:   "search [query]",
		Short: "Find places by name",
		Long:  "Find places by name. With --interactive, each input line is a keystroke burst; only the last line of a burst is searched.",
		RunE: withApp(opts, func(cmd *cobra.Command, args []string, a *app) error {
			if interactive {
				return runInteractiveSearch(cmd.Context(), cmd.InOrStdin(), cmd.OutOrStdout(), a, opts.json())
			}
			if len(args) == 0 {
				return errors.New("search needs a query or --interactive")
			}
			places, err := a.search.SearchLocations(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				return err
			}
			return writePlaces(cmd.OutOrStdout(), places, opts.json())
		}),
	}
	cmd.Flags().BoolVarP(&interactive, "interactive", "i", false, "read queries from stdin, debounced")
	return cmd
}

// runInteractiveSearch debounces stdin lines and prints results for the last
// query of each burst. It waits for the final query before returning.
func runInteractiveSearch(ctx context.Context, in io.Reader, out io.Writer, a *app, asJSON bool) error {
	d := debounce.New(a.cfg.DebounceDelay)
	defer d.Stop()

	var (
		outMu sync.Mutex
		last  chan struct{}
	)
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		query := scanner.Text()
		done := make(chan struct{})
		last = done
		d.Trigger(ctx, func(ctx context.Context) {
			defer close(done)
			places, err := a.search.SearchLocations(ctx, query)
			outMu.Lock()
			defer outMu.Unlock()
			if err != nil {
				fmt.Fprintf(out, "search %q: %v\n", query, err)
				return
			}
			if !asJSON {
				fmt.Fprintf(out, "> %s\n", query)
			}
			_ = writePlaces(out, places, asJSON)
		})
	}
	if err := scanner.Err(); err != nil {
		return err
	}
	if last == nil {
		return nil
	}
	select {
	case <-last:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func newLocateCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "locate",
		Short: "Resolve the current location (device, then IP, then default)",
		Args:  cobra.NoArgs,
		RunE: withApp(opts, func(cmd *cobra.Command, args []string, a *app) error {
			loc := a.resolver.Resolve(cmd.Context())
			if loc.Name == "" {
				loc.Name = a.names.Name(cmd.Context(), loc.Coordinate.Latitude, loc.Coordinate.Longitude)
			}
			return writeLocation(cmd.OutOrStdout(), loc, opts.json())
		}),
	}
}

func newWatchCmd(opts *rootOptions) *cobra.Command {
	var (
		flags  coordFlags
		listen bool
	)
	cmd := &cobra.Command{
		Use:   "watch [place]",
		Short: "Show the dashboard and refresh it in the background",
		RunE: withApp(opts, func(cmd *cobra.Command, args []string, a *app) error {
			ctx := cmd.Context()
			t, err := a.resolveTarget(ctx, cmd, &flags, args)
			if err != nil {
				return err
			}
			return runWatch(ctx, cmd.OutOrStdout(), a, t, listen, opts.json())
		}),
	}
	flags.bind(cmd)
	cmd.Flags().BoolVar(&listen, "listen", true, "serve /health and /metrics on metrics.addr")
	return cmd
}

// runWatch renders the dashboard, refreshes it on the configured interval, and
// blocks until ctx is cancelled.
func runWatch(ctx context.Context, out io.Writer, a *app, t target, listen, asJSON bool) error {
	logger := a.logger
	ctrl := a.controller()

	var outMu sync.Mutex
	render := func() {
		outMu.Lock()
		defer outMu.Unlock()
		view := dashboard.BuildView(ctrl.State(), a.prefs.Settings(), time.Now())
		view.Favorite = a.prefs.IsFavorite(t.coord)
		if err := writeView(out, view, asJSON); err != nil {
			logger.Warn("render", zap.Error(err))
		}
	}

	if err := ctrl.Load(ctx, t.coord.Latitude, t.coord.Longitude, t.name); err != nil {
		logger.Warn("initial load failed; will retry on refresh", zap.Error(err))
	}
	render()

	if a.cfg.WarmFavorites {
		if favs := a.prefs.Favorites(); len(favs) > 0 {
			go func() {
				warmCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
				defer cancel()
				if err := cache.NewWarmer(a.forecasts, logger).Warm(warmCtx, prefs.Coordinates(favs)); err != nil {
					logger.Warn("cache warming failed", zap.Error(err))
				}
			}()
		}
	}

	refresher := refresh.New(refresh.RefreshFunc(func(ctx context.Context) error {
		if err := ctrl.Refresh(ctx); err != nil {
			return err
		}
		render()
		return nil
	}), a.cfg.RefreshInterval, logger)
	if err := refresher.Start(); err != nil {
		return fmt.Errorf("start refresh: %w", err)
	}
	defer refresher.Stop()

	var (
		srv     *http.Server
		handler *httphandler.Handler
	)
	if listen {
		handler = httphandler.NewHandler(a.tracker, &httphandler.HealthConfig{
			DegradedWindow:   a.cfg.DegradedWindow,
			DegradedErrorPct: a.cfg.DegradedErrorPct,
			CachePing:        a.cachePing,
		}, logger)
		srv = &http.Server{
			Addr:         a.cfg.MetricsAddr,
			Handler:      httphandler.NewRouter(handler, logger, a.cfg.UpstreamTimeout),
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
		}
		go func() {
			logger.Info("listener starting", zap.String("addr", a.cfg.MetricsAddr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("listener", zap.Error(err))
			}
		}()
	}

	<-ctx.Done()
	logger.Info("graceful shutdown triggered")
	if handler != nil {
		handler.SetShuttingDown(true)
	}
	refresher.Stop()
	if srv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("listener shutdown", zap.Error(err))
		}
	}
	logger.Info("shutdown complete")
	return nil
}

func newFavoritesCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "favorites",
		Short: "Manage saved places",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List saved places",
		Args:  cobra.NoArgs,
		RunE: withApp(opts, func(cmd *cobra.Command, args []string, a *app) error {
			return writeFavorites(cmd.OutOrStdout(), a.prefs.Favorites(), opts.json())
		}),
	}

	var flags coordFlags
	add := &cobra.Command{
		Use:   "add <name>",
		Short: "Save a place; without --lat/--lon the name is searched",
		Args:  cobra.MinimumNArgs(1),
		RunE: withApp(opts, func(cmd *cobra.Command, args []string, a *app) error {
			name := strings.Join(args, " ")
			fav := models.Favorite{Name: name, Latitude: flags.lat, Longitude: flags.lon}
			if !flags.set(cmd) {
				places, err := a.search.SearchLocations(cmd.Context(), name)
				if err != nil {
					return err
				}
				if len(places) == 0 {
					return fmt.Errorf("no places match %q; pass --lat and --lon", name)
				}
				fav.Latitude, fav.Longitude = places[0].Latitude, places[0].Longitude
			}
			if err := a.prefs.AddFavorite(fav); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "saved %s (%s)\n", strings.TrimSpace(name), models.Coordinate{Latitude: fav.Latitude, Longitude: fav.Longitude}.CacheKey())
			return nil
		}),
	}
	flags.bind(add)

	remove := &cobra.Command{
		Use:   "remove <name>",
		Short: "Delete a saved place",
		Args:  cobra.MinimumNArgs(1),
		RunE: withApp(opts, func(cmd *cobra.Command, args []string, a *app) error {
			name := strings.Join(args, " ")
			if err := a.prefs.RemoveFavorite(name); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "removed %s\n", name)
			return nil
		}),
	}

	cmd.AddCommand(list, add, remove)
	return cmd
}

func newSettingsCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Show or change display settings",
	}
	show := &cobra.Command{
		Use:   "show",
		Short: "Print current settings",
		Args:  cobra.NoArgs,
		RunE: withApp(opts, func(cmd *cobra.Command, args []string, a *app) error {
			return writeSettings(cmd.OutOrStdout(), a.prefs.Settings(), opts.json())
		}),
	}
	set := &cobra.Command{
		Use:       "set <key> <value>",
		Short:     "Change one setting (" + strings.Join(prefs.SettingKeys, ", ") + ")",
		Args:      cobra.ExactArgs(2),
		ValidArgs: prefs.SettingKeys,
		RunE: withApp(opts, func(cmd *cobra.Command, args []string, a *app) error {
			if err := a.prefs.Set(args[0], args[1]); err != nil {
				return err
			}
			return writeSettings(cmd.OutOrStdout(), a.prefs.Settings(), opts.json())
		}),
	}
	cmd.AddCommand(show, set)
	return cmd
}
