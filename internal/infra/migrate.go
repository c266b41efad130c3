package infra

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// RunMigrations applies every .sql file under dir in lexical order, recording
// applied files in _migrations so reruns are no-ops.
func RunMigrations(ctx context.Context, db *pgxpool.Pool, dir string, log *zap.Logger) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return errors.Wrap(err, "read migrations dir")
	}
	var files []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".sql") {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)

	if _, err := db.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS _migrations (
			filename   TEXT PRIMARY KEY,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`); err != nil {
		return errors.Wrap(err, "ensure _migrations table")
	}

	applied := make(map[string]bool)
	rows, err := db.Query(ctx, `SELECT filename FROM _migrations`)
	if err != nil {
		return errors.Wrap(err, "query applied migrations")
	}
	defer rows.Close()
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return err
		}
		applied[name] = true
	}
	if err := rows.Err(); err != nil {
		return err
	}

	for _, name := range files {
		if applied[name] {
			continue
		}
		content, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return errors.Wrapf(err, "read migration %s", name)
		}

		tx, err := db.Begin(ctx)
		if err != nil {
			return errors.Wrap(err, "begin migration tx")
		}
		if _, err := tx.Exec(ctx, string(content)); err != nil {
			_ = tx.Rollback(ctx)
			return errors.Wrapf(err, "apply migration %s", name)
		}
		if _, err := tx.Exec(ctx, `INSERT INTO _migrations (filename) VALUES ($1)`, name); err != nil {
			_ = tx.Rollback(ctx)
			return errors.Wrapf(err, "record migration %s", name)
		}
		if err := tx.Commit(ctx); err != nil {
			return errors.Wrapf(err, "commit migration %s", name)
		}
		log.Info("migration applied", zap.String("file", name))
	}
	return nil
}
