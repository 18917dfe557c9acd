package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/querypilot/querypilot/internal/bootstrap"
	"github.com/querypilot/querypilot/internal/config"
	"github.com/querypilot/querypilot/internal/fixture"
	"github.com/querypilot/querypilot/internal/migrations"
	"github.com/querypilot/querypilot/internal/store"
)

func main() {
	action := flag.String("action", "up", "action: up|down|version|seed|publish-fixture|prune-fixture-history|inspect")
	steps := flag.Int("steps", 0, "number of migration steps; 0 means all for up, 1 for down")
	keep := flag.Int("keep", 5, "history publications to keep per table for prune-fixture-history")
	flag.Parse()

	cfg, err := config.LoadFromEnv("querypilot-migrate")
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	switch *action {
	case "publish-fixture":
		if err := publishFixture(ctx, cfg); err != nil {
			fmt.Fprintf(os.Stderr, "publish fixture failed: %v\n", err)
			os.Exit(1)
		}
		return
	case "prune-fixture-history":
		if err := pruneFixtureHistory(ctx, cfg, *keep); err != nil {
			fmt.Fprintf(os.Stderr, "prune fixture history failed: %v\n", err)
			os.Exit(1)
		}
		return
	}

	db, dialect, err := store.Open(ctx, store.ConfigFrom(cfg.Store))
	if err != nil {
		fmt.Fprintf(os.Stderr, "database open error: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = db.Close() }()

	if *action == "inspect" {
		if !dialect.SupportsMigrations() {
			if err := bootstrap.Prepare(ctx, db, dialect, cfg, nil); err != nil {
				fmt.Fprintf(os.Stderr, "materialize failed: %v\n", err)
				os.Exit(1)
			}
		}
		for _, tbl := range fixture.Tables() {
			columns, rows, err := bootstrap.Describe(ctx, db, tbl)
			if err != nil {
				fmt.Fprintf(os.Stderr, "inspect failed: %v\n", err)
				os.Exit(1)
			}
			printTable(tbl.Name, columns, rows)
		}
		return
	}

	if !dialect.SupportsMigrations() {
		fmt.Fprintf(os.Stderr, "action %s is not supported for driver %s\n", *action, dialect.Driver)
		os.Exit(1)
	}
	runner := migrations.NewRunner(dialect.GooseDialect())

	switch *action {
	case "up":
		applied, err := runner.Up(ctx, db, *steps)
		if err != nil {
			fmt.Fprintf(os.Stderr, "migration up failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("applied %d migration(s)\n", applied)
	case "down":
		applied, err := runner.Down(ctx, db, *steps)
		if err != nil {
			fmt.Fprintf(os.Stderr, "migration down failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("rolled back %d migration(s)\n", applied)
	case "version":
		version, err := runner.Version(ctx, db)
		if err != nil {
			fmt.Fprintf(os.Stderr, "migration version failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("schema version %d\n", version)
	case "seed":
		ds, err := bootstrap.Dataset(cfg.Fixture)
		if err != nil {
			fmt.Fprintf(os.Stderr, "fixture load failed: %v\n", err)
			os.Exit(1)
		}
		seeded, err := fixture.Seed(ctx, db, dialect, ds)
		if err != nil {
			fmt.Fprintf(os.Stderr, "seed failed: %v\n", err)
			os.Exit(1)
		}
		if seeded {
			fmt.Printf("seeded %d students, %d courses, %d enrollments\n", len(ds.Students), len(ds.Courses), len(ds.Enrollments))
		} else {
			fmt.Println("students already present; seed skipped")
		}
	default:
		fmt.Fprintf(os.Stderr, "invalid action: %s\n", *action)
		os.Exit(1)
	}
}

func publishFixture(ctx context.Context, cfg config.Config) error {
	ds, err := bootstrap.Dataset(cfg.Fixture)
	if err != nil {
		return err
	}
	objects, err := bootstrap.ObjectStore(ctx, cfg.ObjectStore)
	if err != nil {
		return err
	}
	infos, err := fixture.Publish(ctx, objects, ds, time.Now().UTC())
	if err != nil {
		return err
	}
	for _, info := range infos {
		fmt.Printf("published %s (%d bytes)\n", info.Key, info.Size)
	}
	return nil
}

func pruneFixtureHistory(ctx context.Context, cfg config.Config, keep int) error {
	objects, err := bootstrap.ObjectStore(ctx, cfg.ObjectStore)
	if err != nil {
		return err
	}
	deleted, err := fixture.PruneHistory(ctx, objects, keep)
	if err != nil {
		return err
	}
	for _, key := range deleted {
		fmt.Printf("deleted %s\n", key)
	}
	fmt.Printf("pruned %d history object(s), keeping %d per table\n", len(deleted), keep)
	return nil
}

func printTable(name string, columns []string, rows [][]string) {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetStyle(table.StyleLight)
	t.SetTitle(name)

	header := make(table.Row, len(columns))
	for i, column := range columns {
		header[i] = column
	}
	t.AppendHeader(header)
	for _, row := range rows {
		out := make(table.Row, len(row))
		for i, value := range row {
			out[i] = value
		}
		t.AppendRow(out)
	}
	t.Render()
	fmt.Printf("(%d rows)\n\n", len(rows))
}
