package main

import (
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"
)

func main() {
	if os.Getenv("SWIFTROUTE_LOG_FORMAT") != "JSON" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339})
	}
	log.Logger = log.Logger.Level(zerolog.InfoLevel)

	app := &cli.App{
		Name:        "swiftroute",
		Description: "Simulated intercity bus with conductor ticketing and occupancy forecasts",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "debug",
				Usage:   "enable debug logging",
				EnvVars: []string{"SWIFTROUTE_DEBUG"},
			},
		},
		Before: func(c *cli.Context) error {
			if c.Bool("debug") {
				log.Logger = log.Logger.Level(zerolog.DebugLevel)
			}
			return nil
		},
		Commands: []*cli.Command{
			runCommand(),
			routeCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal().Err(err).Send()
	}
}
