package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"

	"swiftroute/internal/api"
	"swiftroute/internal/auth"
	"swiftroute/internal/config"
	"swiftroute/internal/db"
	"swiftroute/internal/forecast"
	"swiftroute/internal/metrics"
	"swiftroute/internal/publisher"
	"swiftroute/internal/route"
	"swiftroute/internal/sim"
)

func runCommand() *cli.Command {
	return &cli.Command{
		Name:  "run",
		Usage: "run the bus simulation and the dashboard API",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "listen",
				Usage: "listen target for the web server (overrides LISTEN_ADDR)",
			},
			&cli.StringFlag{
				Name:  "route-file",
				Usage: "YAML stop table (overrides ROUTE_FILE)",
			},
		},
		Action: func(c *cli.Context) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if v := c.String("listen"); v != "" {
				cfg.ListenAddr = v
			}
			if v := c.String("route-file"); v != "" {
				cfg.RouteFile = v
			}
			return run(c.Context, cfg)
		},
	}
}

func routeCommand() *cli.Command {
	return &cli.Command{
		Name:  "route",
		Usage: "print the stop table",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "route-file", Usage: "YAML stop table"},
		},
		Action: func(c *cli.Context) error {
			r, err := loadRoute(c.String("route-file"))
			if err != nil {
				return err
			}
			for _, s := range r.Stops() {
				log.Info().Int("index", s.Index).Str("name", s.Name).Float64("x", s.X).Float64("y", s.Y).Msg(r.Name)
			}
			return nil
		},
	}
}

func loadRoute(path string) (*route.Route, error) {
	if path == "" {
		return route.Default(), nil
	}
	return route.LoadFile(path)
}

func run(parent context.Context, cfg *config.Config) error {
	// Root context with cancellation on SIGINT/SIGTERM
	ctx, cancel := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	r, err := loadRoute(cfg.RouteFile)
	if err != nil {
		return err
	}

	var mcol *metrics.Collector
	if cfg.MetricsAddr != "" {
		mcol = metrics.NewCollector(cfg.MaxCapacity, cfg.SpeedMultiplier, cfg.Tick)
		srv := mcol.Serve(cfg.MetricsAddr)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	var sinks sim.Sinks
	if cfg.NATSURL != "" {
		pub, err := publisher.NewNATSPublisher(cfg.NATSURL, cfg.NATSSubjectPrefix, cfg.LogNATSSubjects, publisherMetrics(mcol))
		if err != nil {
			return err
		}
		defer pub.Close()
		sinks = append(sinks, sim.NATSSink{Pub: pub})
		log.Info().Str("url", cfg.NATSURL).Str("prefix", cfg.NATSSubjectPrefix).Msg("publishing to nats")
	}

	if cfg.DatabaseURL != "" {
		journal, err := db.OpenJournal(ctx, cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer journal.Close()
		sinks = append(sinks, sim.JournalSink{Journal: journal, Metrics: mcol})
		log.Info().Msg("manifest journal enabled")
	}

	var predictor forecast.Predictor
	if cfg.GeminiAPIKey != "" {
		g, err := forecast.NewGeminiPredictor(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
		if err != nil {
			return err
		}
		predictor = g
	} else {
		log.Warn().Msg("no GEMINI_API_KEY set, forecasts use the manual calculation")
	}
	forecaster := forecast.New(predictor, cfg.ForecastTimeout, forecastMetrics(mcol))

	bus, err := sim.NewBus(sim.Options{
		Route:           r,
		BusName:         cfg.BusName,
		Capacity:        cfg.MaxCapacity,
		Motion:          cfg.Motion(),
		SpeedMultiplier: cfg.SpeedMultiplier,
		PublishInterval: cfg.PublishInterval,
		Sink:            sinks,
		SinkBuffer:      cfg.SinkBuffer,
		Metrics:         mcol,
	})
	if err != nil {
		return err
	}
	bus.Start(ctx)
	defer bus.Stop()

	server := api.NewServer(bus, auth.NewSessions(bus.Name(), auth.WithTTL(cfg.SessionTTL)), forecaster)
	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("listen", cfg.ListenAddr).Msg("dashboard api listening")
		errCh <- server.Listen(cfg.ListenAddr)
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("shutting down")
	case err := <-errCh:
		if err != nil {
			return err
		}
	}

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()
	if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		log.Warn().Err(err).Msg("api shutdown")
	}
	return nil
}

// publisherMetrics avoids handing the publisher a typed-nil interface.
func publisherMetrics(c *metrics.Collector) publisher.Metrics {
	if c == nil {
		return nil
	}
	return c
}

func forecastMetrics(c *metrics.Collector) forecast.Metrics {
	if c == nil {
		return nil
	}
	return c
}
