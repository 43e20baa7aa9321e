package main

import (
	"os"
	"time"

	"github.com/urfave/cli/v2"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		// The logger may not be initialized yet.
		os.Stderr.WriteString("runboard: " + err.Error() + "\n")
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "runboard",
		Usage: "speedrun leaderboard ranking and points engine",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "path to a YAML config file",
				EnvVars: []string{"RUNBOARD_CONFIG"},
			},
		},
		Action: serve,
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "run the HTTP API",
				Action: serve,
			},
			{
				Name:   "migrate",
				Usage:  "apply the postgres schema and job queue migrations",
				Action: migrate,
			},
			{
				Name:  "recalc",
				Usage: "recompute every group and player",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "resume", Usage: "continue from the last checkpoint"},
				},
				Action: recalc,
			},
			{
				Name:   "migrate-thresholds",
				Usage:  "move legacy bonus thresholds onto categories",
				Action: migrateThresholds,
			},
			{
				Name:  "seed",
				Usage: "load generated players and runs, then recalculate",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "players", Value: 50},
					&cli.IntFlag{Name: "runs", Value: 1000},
					&cli.Uint64Flag{Name: "seed", Value: 1},
				},
				Action: seedData,
			},
			{
				Name:  "token",
				Usage: "issue a signed API token",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "subject", Required: true, Usage: "player uid or operator name"},
					&cli.StringFlag{Name: "role", Usage: "admin for moderator access"},
					&cli.DurationFlag{Name: "ttl", Value: 24 * time.Hour},
				},
				Action: issueToken,
			},
		},
	}
}
