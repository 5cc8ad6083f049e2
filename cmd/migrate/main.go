// Command migrate applies or rolls back the schema migrations.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/cloudbday/cloudbday/internal/app"
	"github.com/cloudbday/cloudbday/internal/config"
	"github.com/cloudbday/cloudbday/internal/store/postgres"
)

func main() {
	steps := flag.Int("steps", 1, "migrations to roll back with down")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	dbCfg := app.DatabaseConfig(cfg)
	ctx := context.Background()

	cmd := flag.Arg(0)
	switch cmd {
	case "", "up":
		err = postgres.Migrate(ctx, dbCfg)
	case "down":
		err = postgres.Rollback(ctx, dbCfg, *steps)
	case "status":
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q (want up, down or status)\n", cmd)
		os.Exit(2)
	}
	if err != nil {
		log.Fatalf("Migration %s failed: %v", cmd, err)
	}

	version, err := postgres.MigrationVersion(ctx, dbCfg)
	if err != nil {
		log.Fatalf("Failed to read schema version: %v", err)
	}
	fmt.Printf("schema version %d\n", version)
}
