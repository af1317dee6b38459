package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"

	_ "github.com/lib/pq"

	"github.com/yottachain/mena/internal/persistence"
)

const usage = `Usage: migrate <up|down|status>

  up      apply all pending migrations
  down    roll back the last migration
  status  list applied migrations

Environment:
  MENA_POSTGRES_DSN    Postgres connection string
  MENA_MIGRATIONS_DIR  migrations directory (default: migrations)
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}

	dsn := os.Getenv("MENA_POSTGRES_DSN")
	if dsn == "" {
		dsn = "postgres://localhost:5432/mena?sslmode=disable"
	}
	dir := os.Getenv("MENA_MIGRATIONS_DIR")
	if dir == "" {
		dir = "migrations"
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		log.Fatalf("FATAL: open db: %v", err)
	}
	defer db.Close()

	ctx := context.Background()

	switch os.Args[1] {
	case "up":
		if err := persistence.NewMigrator(db, dir).Up(ctx); err != nil {
			log.Fatalf("FATAL: migrate up: %v", err)
		}
		log.Println("INFO: all migrations applied")

	case "down":
		if err := persistence.NewMigrator(db, dir).Down(ctx); err != nil {
			log.Fatalf("FATAL: migrate down: %v", err)
		}
		log.Println("INFO: last migration rolled back")

	case "status":
		if err := printStatus(ctx, db); err != nil {
			log.Fatalf("FATAL: migrate status: %v", err)
		}

	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n%s", os.Args[1], usage)
		os.Exit(1)
	}
}

func printStatus(ctx context.Context, db *sql.DB) error {
	rows, err := db.QueryContext(ctx, `
		SELECT version, filename, applied_at
		FROM public.schema_migrations
		ORDER BY version ASC
	`)
	if err != nil {
		return err
	}
	defer rows.Close()

	n := 0
	for rows.Next() {
		var version, filename, appliedAt string
		if err := rows.Scan(&version, &filename, &appliedAt); err != nil {
			return err
		}
		fmt.Printf("%s  %s  %s\n", version, appliedAt, filename)
		n++
	}
	if n == 0 {
		fmt.Println("no migrations applied")
	}
	return rows.Err()
}
