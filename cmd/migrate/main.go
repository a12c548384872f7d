package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"

	"github.com/angelmondragon/aquaflow-backend/pkg/config"
	"github.com/angelmondragon/aquaflow-backend/pkg/db"
	"github.com/angelmondragon/aquaflow-backend/pkg/db/models"
	"github.com/angelmondragon/aquaflow-backend/pkg/logger"
	"github.com/angelmondragon/aquaflow-backend/pkg/migrate"
)

var errSQLiteUnsupported = errors.New("only `up` is supported against sqlite; the goose files are Postgres DDL")

func main() {
	cliApp := &cli.App{
		Name:  "migrate",
		Usage: "manage the AquaFlow database schema",
		Commands: []*cli.Command{
			{Name: "up", Usage: "apply pending migrations", Action: withRunner(up)},
			{Name: "down", Usage: "roll back the latest migration", Action: withRunner(down)},
			{Name: "status", Usage: "list migrations and whether they are applied", Action: withRunner(status)},
			{
				Name:  "to",
				Usage: "migrate up or down to an exact version",
				Flags: []cli.Flag{
					&cli.Int64Flag{Name: "version", Usage: "target version (YYYYMMDDHHMMSS)", Required: true},
				},
				Action: withRunner(to),
			},
			{
				Name:  "create",
				Usage: "scaffold a new SQL migration in the source tree",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "name", Required: true},
					&cli.StringFlag{Name: "dir", Value: migrate.SourceDir},
				},
				Action: func(c *cli.Context) error {
					path, err := migrate.Create(c.String("dir"), c.String("name"), time.Now())
					if err != nil {
						return err
					}
					fmt.Println("created", path)
					return nil
				},
			},
			{
				Name:  "validate",
				Usage: "check naming and goose markers; defaults to the embedded set",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "dir", Usage: "validate files on disk instead"},
				},
				Action: func(c *cli.Context) error {
					fsys := migrate.Migrations()
					if dir := c.String("dir"); dir != "" {
						fsys = os.DirFS(dir)
					}
					if err := migrate.Validate(fsys); err != nil {
						return err
					}
					fmt.Println("migrations ok")
					return nil
				},
			},
		},
	}

	if err := cliApp.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type runnerAction func(ctx context.Context, c *cli.Context, r *migrate.Runner) error

// withRunner loads config and opens the database before handing a goose runner
// to action. SQLite gets GORM AutoMigrate for `up` and nothing else.
func withRunner(action runnerAction) cli.ActionFunc {
	return func(c *cli.Context) error {
		_ = godotenv.Load()
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		logg := logger.ForApp("migrate", cfg.App)
		ctx := logg.WithFields(c.Context, map[string]any{"env": cfg.App.Env, "cmd": c.Command.Name})

		client, err := db.New(ctx, cfg.DB, logg)
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		defer client.Close()

		if cfg.DB.IsSQLite() {
			if c.Command.Name != "up" {
				return errSQLiteUnsupported
			}
			if err := client.DB().WithContext(ctx).AutoMigrate(models.All()...); err != nil {
				return fmt.Errorf("sqlite automigrate: %w", err)
			}
			logg.Info(ctx, "sqlite schema migrated")
			return nil
		}

		sqlDB, err := client.DB().DB()
		if err != nil {
			return fmt.Errorf("extract sql.DB: %w", err)
		}
		runner, err := migrate.NewRunner(sqlDB)
		if err != nil {
			return err
		}
		return action(ctx, c, runner)
	}
}

func up(ctx context.Context, _ *cli.Context, r *migrate.Runner) error {
	applied, err := r.Up(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("applied %d migration(s)\n", applied)
	return nil
}

func down(ctx context.Context, _ *cli.Context, r *migrate.Runner) error {
	return r.Down(ctx)
}

func to(ctx context.Context, c *cli.Context, r *migrate.Runner) error {
	return r.To(ctx, c.Int64("version"))
}

func status(ctx context.Context, _ *cli.Context, r *migrate.Runner) error {
	lines, err := r.Status(ctx)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "VERSION\tAPPLIED\tFILE")
	for _, l := range lines {
		fmt.Fprintf(tw, "%d\t%t\t%s\n", l.Version, l.Applied, l.Path)
	}
	return tw.Flush()
}
