package main

import (
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/liamcoop/scholarships/internal/logger"
	"github.com/liamcoop/scholarships/migrations"
)

func main() {
	var databaseURL string
	var migrationsPath string
	var command string

	flag.StringVar(&databaseURL, "database", "", "Database URL (required)")
	flag.StringVar(&migrationsPath, "path", "", "Path to a migrations directory (default: embedded migrations)")
	flag.StringVar(&command, "command", "up", "Migration command: up, down, version, force")
	flag.Parse()

	log, _ := logger.New(logger.FromEnv())

	// Check for database URL from flag or environment
	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		logger.Fatal(log, "database URL is required; use -database or DATABASE_URL")
	}

	m, err := newMigrate(migrationsPath, databaseURL)
	if err != nil {
		logger.Fatal(log, "failed to create migration instance", "error", err)
	}
	defer m.Close()

	switch command {
	case "up":
		log.Info("running migrations up", "path", sourceName(migrationsPath))
		err = m.Up()
		if errors.Is(err, migrate.ErrNoChange) {
			log.Info("no migrations to run (database is up to date)")
			return
		}
		if err != nil {
			logger.Fatal(log, "failed to run migrations", "error", err)
		}
		log.Info("migrations completed")

	case "down":
		log.Info("rolling back migrations", "path", sourceName(migrationsPath))
		err = m.Down()
		if err != nil && !errors.Is(err, migrate.ErrNoChange) {
			logger.Fatal(log, "failed to rollback migrations", "error", err)
		}
		log.Info("rollback completed")

	case "version":
		version, dirty, err := m.Version()
		if err != nil {
			logger.Fatal(log, "failed to get version", "error", err)
		}
		log.Info("current version", "version", version, "dirty", dirty)

	case "force":
		if len(flag.Args()) < 1 {
			logger.Fatal(log, "force requires a version number: -command force <version>")
		}
		var version int
		if _, err := fmt.Sscanf(flag.Arg(0), "%d", &version); err != nil {
			logger.Fatal(log, "invalid version number", "error", err)
		}
		if err := m.Force(version); err != nil {
			logger.Fatal(log, "failed to force version", "error", err)
		}
		log.Info("forced version", "version", version)

	default:
		logger.Fatal(log, "unknown command (use: up, down, version, force)", "command", command)
	}
}

// newMigrate reads migrations from path when set and from the embedded set otherwise.
func newMigrate(path, databaseURL string) (*migrate.Migrate, error) {
	if path != "" {
		return migrate.New("file://"+path, databaseURL)
	}

	src, err := iofs.New(migrations.FS, ".")
	if err != nil {
		return nil, fmt.Errorf("open embedded migrations: %w", err)
	}
	return migrate.NewWithSourceInstance("iofs", src, databaseURL)
}

func sourceName(path string) string {
	if path == "" {
		return "embedded"
	}
	return path
}
