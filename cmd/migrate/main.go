package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/joho/godotenv"
	"github.com/pressly/goose/v3"

	"github.com/angelmondragon/tableorders-backend/pkg/config"
	"github.com/angelmondragon/tableorders-backend/pkg/db"
	"github.com/angelmondragon/tableorders-backend/pkg/logger"
	"github.com/angelmondragon/tableorders-backend/pkg/migrate"
)

func main() {
	cmd := flag.String("cmd", "up", "up | down | status | version | create | validate")
	dir := flag.String("dir", "", "read migrations from this directory instead of the embedded set")
	name := flag.String("name", "", "migration name for -cmd=create")
	target := flag.String("version", "", "target version (YYYYMMDDHHMMSS) for -cmd=version")
	flag.Parse()

	_ = godotenv.Load()

	// File-only commands work without a database or full config.
	switch *cmd {
	case "create":
		if *name == "" {
			fail("missing -name for create")
		}
		path, err := migrate.CreateSQLMigration(orDefault(*dir), *name)
		if err != nil {
			fail("create migration: %v", err)
		}
		fmt.Println("created", path)
		return
	case "validate":
		if err := migrate.ValidateDir(orDefault(*dir)); err != nil {
			fail("validate: %v", err)
		}
		fmt.Println("migrations valid")
		return
	}

	cfg, err := config.Load()
	if err != nil {
		fail("config: %v", err)
	}
	logg := logger.New(logger.Options{
		ServiceName: "migrate",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})
	ctx := logg.WithFields(context.Background(), map[string]any{"env": cfg.App.Env, "cmd": *cmd})

	client, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		logg.Error(ctx, "database unavailable", err)
		os.Exit(1)
	}
	defer client.Close()

	if cfg.DB.IsSQLite() {
		if *cmd != "up" {
			fail("sqlite only supports -cmd=up, got %q", *cmd)
		}
		if err := migrate.SQLiteSchema(ctx, client.DB()); err != nil {
			fail("sqlite schema: %v", err)
		}
		return
	}

	pool, err := client.DB().DB()
	if err != nil {
		fail("sql handle: %v", err)
	}
	source, err := migrate.Source(*dir)
	if err != nil {
		fail("%v", err)
	}
	migrator, err := migrate.NewMigrator(pool, source)
	if err != nil {
		fail("%v", err)
	}

	var results []*goose.MigrationResult
	switch *cmd {
	case "up":
		results, err = migrator.Up(ctx)
	case "down":
		results, err = migrator.Down(ctx)
	case "version":
		if *target == "" {
			fail("missing -version")
		}
		results, err = migrator.To(ctx, *target)
	case "status":
		statuses, statusErr := migrator.Status(ctx)
		if statusErr != nil {
			fail("status: %v", statusErr)
		}
		printStatus(statuses)
		return
	default:
		fail("unknown -cmd %q", *cmd)
	}
	printResults(results)
	if err != nil {
		logg.Error(ctx, "migration failed", err)
		os.Exit(1)
	}
	logg.Info(logg.WithField(ctx, "applied", len(results)), "migrations complete")
}

func orDefault(dir string) string {
	if dir == "" {
		return migrate.DefaultDir
	}
	return dir
}

func printResults(results []*goose.MigrationResult) {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	for _, r := range results {
		status := "OK"
		if r.Error != nil {
			status = "FAILED"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", status, r.Direction, r.Source.Path, r.Duration)
	}
	_ = w.Flush()
}

func printStatus(statuses []*goose.MigrationStatus) {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "STATE\tAPPLIED AT\tMIGRATION")
	for _, s := range statuses {
		applied := "-"
		if !s.AppliedAt.IsZero() {
			applied = s.AppliedAt.UTC().Format("2006-01-02 15:04:05")
		}
		fmt.Fprintf(w, "%s\t%s\t%s\n", s.State, applied, s.Source.Path)
	}
	_ = w.Flush()
}

func fail(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
