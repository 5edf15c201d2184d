package main

import (
	"database/sql"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"storefront-be/internal/logger"

	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
)

const schemaTable = `
	CREATE TABLE IF NOT EXISTS schema_migrations (
		version TEXT PRIMARY KEY,
		applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);
`

func main() {
	_ = godotenv.Load()
	logger.Init(os.Getenv("APP_ENV"))
	defer logger.Sync()

	if err := newApp().Run(os.Args); err != nil {
		logger.L().Fatal("migration failed", zap.Error(err))
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "migrate",
		Usage: "apply SQL migrations to the storefront database",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "db-url", EnvVars: []string{"DB_URL"}, Usage: "postgres connection string"},
			&cli.StringFlag{Name: "dir", Value: "./migrations", Usage: "directory holding *.sql migrations"},
		},
		Commands: []*cli.Command{
			{Name: "up", Usage: "apply every pending migration", Action: withDB(migrateUp)},
			{Name: "down", Usage: "roll back the latest migration", Action: withDB(migrateDown)},
			{Name: "status", Usage: "list migrations and whether they are applied", Action: withDB(migrateStatus)},
		},
	}
}

type action func(db *sqlx.DB, files []string, out io.Writer) error

func withDB(fn action) cli.ActionFunc {
	return func(c *cli.Context) error {
		dbURL := c.String("db-url")
		if dbURL == "" {
			return errors.New("DB_URL not set")
		}

		db, err := sqlx.Open("postgres", dbURL)
		if err != nil {
			return errors.Wrap(err, "open database")
		}
		defer db.Close()

		files, err := migrationFiles(c.String("dir"))
		if err != nil {
			return err
		}
		if err := ensureSchemaTable(db); err != nil {
			return err
		}
		return fn(db, files, c.App.Writer)
	}
}

func ensureSchemaTable(db *sqlx.DB) error {
	_, err := db.Exec(schemaTable)
	return errors.Wrap(err, "ensure schema_migrations")
}

// migrationFiles returns the *.sql files in dir in version order.
func migrationFiles(dir string) ([]string, error) {
	files, err := filepath.Glob(filepath.Join(dir, "*.sql"))
	if err != nil {
		return nil, errors.Wrap(err, "read migrations")
	}
	slices.Sort(files)
	return files, nil
}

func appliedVersions(db *sqlx.DB) (map[string]bool, error) {
	var versions []string
	if err := db.Select(&versions, `SELECT version FROM schema_migrations`); err != nil {
		return nil, errors.Wrap(err, "list applied migrations")
	}
	applied := make(map[string]bool, len(versions))
	for _, v := range versions {
		applied[v] = true
	}
	return applied, nil
}

func migrateUp(db *sqlx.DB, files []string, out io.Writer) error {
	log := logger.L().With(zap.String("command", "up"))

	applied, err := appliedVersions(db)
	if err != nil {
		return err
	}

	count := 0
	for _, file := range files {
		version := filepath.Base(file)
		if applied[version] {
			continue
		}

		content, err := os.ReadFile(file)
		if err != nil {
			return errors.Wrapf(err, "read %s", file)
		}

		log.Info("applying migration", zap.String("version", version))
		err = inTx(db, func(tx *sqlx.Tx) error {
			if _, err := tx.Exec(extractMigrationPart(string(content), "Up")); err != nil {
				return err
			}
			_, err := tx.Exec(`INSERT INTO schema_migrations (version) VALUES ($1)`, version)
			return err
		})
		if err != nil {
			return errors.Wrapf(err, "apply %s", version)
		}
		count++
	}

	fmt.Fprintf(out, "applied %d migration(s)\n", count)
	return nil
}

func migrateDown(db *sqlx.DB, files []string, out io.Writer) error {
	var version string
	err := db.Get(&version, `SELECT version FROM schema_migrations ORDER BY applied_at DESC, version DESC LIMIT 1`)
	if errors.Is(err, sql.ErrNoRows) {
		fmt.Fprintln(out, "no migrations to roll back")
		return nil
	}
	if err != nil {
		return errors.Wrap(err, "find latest migration")
	}

	idx := slices.IndexFunc(files, func(f string) bool { return filepath.Base(f) == version })
	if idx < 0 {
		return errors.Errorf("migration file not found for version %s", version)
	}
	content, err := os.ReadFile(files[idx])
	if err != nil {
		return errors.Wrapf(err, "read %s", files[idx])
	}

	logger.L().Info("rolling back migration", zap.String("version", version))
	err = inTx(db, func(tx *sqlx.Tx) error {
		if _, err := tx.Exec(extractMigrationPart(string(content), "Down")); err != nil {
			return err
		}
		_, err := tx.Exec(`DELETE FROM schema_migrations WHERE version = $1`, version)
		return err
	})
	if err != nil {
		return errors.Wrapf(err, "roll back %s", version)
	}

	fmt.Fprintf(out, "rolled back %s\n", version)
	return nil
}

func migrateStatus(db *sqlx.DB, files []string, out io.Writer) error {
	applied, err := appliedVersions(db)
	if err != nil {
		return err
	}
	for _, file := range files {
		version := filepath.Base(file)
		state := "pending"
		if applied[version] {
			state = "applied"
		}
		fmt.Fprintf(out, "%-8s %s\n", state, version)
	}
	return nil
}

func inTx(db *sqlx.DB, fn func(tx *sqlx.Tx) error) error {
	tx, err := db.Beginx()
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// extractMigrationPart returns the statements between "-- +migrate <section>"
// and the next marker.
func extractMigrationPart(content string, section string) string {
	var part strings.Builder
	var inPart bool

	for _, line := range strings.Split(content, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "-- +migrate ") {
			if inPart {
				break
			}
			inPart = strings.TrimSpace(line) == "-- +migrate "+section
			continue
		}
		if inPart {
			part.WriteString(line + "\n")
		}
	}
	return part.String()
}
