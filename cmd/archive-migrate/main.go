// archive-migrate copies archived runs from a SQLite archive into PostgreSQL.
//
// Usage:
//
//	go run ./cmd/archive-migrate \
//	    -sqlite data/terraingen.db \
//	    -pg-host localhost \
//	    -pg-port 5432 \
//	    -pg-user terraingen \
//	    -pg-password terraingen \
//	    -pg-database terraingen
package main

import (
	"flag"
	"log"

	"github.com/lawnchairsociety/terraingen/internal/archive"
)

func main() {
	sqlitePath := flag.String("sqlite", "data/terraingen.db", "Path to SQLite archive")
	pgHost := flag.String("pg-host", "localhost", "PostgreSQL host")
	pgPort := flag.Int("pg-port", 5432, "PostgreSQL port")
	pgUser := flag.String("pg-user", "terraingen", "PostgreSQL user")
	pgPassword := flag.String("pg-password", "terraingen", "PostgreSQL password")
	pgDatabase := flag.String("pg-database", "terraingen", "PostgreSQL database name")
	pgSSLMode := flag.String("pg-sslmode", "disable", "PostgreSQL SSL mode")
	dryRun := flag.Bool("dry-run", false, "Show what would be migrated without making changes")
	flag.Parse()

	log.Println("Archive SQLite to PostgreSQL Migration")
	log.Println("======================================")

	log.Printf("Opening SQLite archive: %s", *sqlitePath)
	src, err := archive.Open(*sqlitePath)
	if err != nil {
		log.Fatalf("Failed to open SQLite archive: %v", err)
	}
	defer src.Close()

	log.Printf("Opening PostgreSQL archive: %s@%s:%d/%s", *pgUser, *pgHost, *pgPort, *pgDatabase)
	dst, err := archive.OpenWithConfig(archive.Config{
		Driver: string(archive.DialectPostgres),
		Postgres: archive.PostgresConfig{
			Host:     *pgHost,
			Port:     *pgPort,
			User:     *pgUser,
			Password: *pgPassword,
			Database: *pgDatabase,
			SSLMode:  *pgSSLMode,
		},
	})
	if err != nil {
		log.Fatalf("Failed to open PostgreSQL archive: %v", err)
	}
	defer dst.Close()

	if *dryRun {
		log.Println("DRY RUN MODE - No changes will be made")
	}

	stats, err := archive.CopyRuns(src, dst, *dryRun)
	if err != nil {
		log.Fatalf("Migration failed after %d runs: %v", stats.Copied, err)
	}

	log.Println("======================================")
	log.Printf("Runs read: %d, copied: %d, already present: %d", stats.Read, stats.Copied, stats.Skipped)
	if *dryRun {
		log.Println("(DRY RUN - No actual changes were made)")
	}
}
