package db

import (
	"context"
	"embed"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
)

//go:embed scripts/*.sql
var bootstrapFS embed.FS

const schemaVersion = 1

// EnsureBootstrapped applies the schema for driver unless the meta table
// already records the current version.
func EnsureBootstrapped(ctx context.Context, db *sqlx.DB, driver string) error {
	ctxBoot, cancel := context.WithTimeout(ctx, 3*time.Minute)
	defer cancel()

	if _, err := db.ExecContext(ctxBoot, `CREATE TABLE IF NOT EXISTS contexta_meta (version INTEGER PRIMARY KEY)`); err != nil {
		return fmt.Errorf("meta table: %w", err)
	}

	var hasVersion bool
	q := db.Rebind(`SELECT EXISTS (SELECT 1 FROM contexta_meta WHERE version = ?)`)
	if err := db.QueryRowContext(ctxBoot, q, schemaVersion).Scan(&hasVersion); err != nil {
		return fmt.Errorf("meta version check failed: %w", err)
	}
	if hasVersion {
		return nil
	}

	return runBootstrap(ctxBoot, db, driver)
}

func runBootstrap(ctx context.Context, db *sqlx.DB, driver string) error {
	name := fmt.Sprintf("scripts/initdb_%s.sql", driver)
	sqlBytes, err := bootstrapFS.ReadFile(name)
	if err != nil {
		return fmt.Errorf("read %s: %w", name, err)
	}

	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	for _, stmt := range splitStatements(string(sqlBytes)) {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("exec bootstrap: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit bootstrap: %w", err)
	}
	return nil
}

// splitStatements splits a script on statement-terminating semicolons. The
// bootstrap scripts never embed a semicolon inside a statement.
func splitStatements(script string) []string {
	var out []string
	for _, s := range strings.Split(script, ";") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
