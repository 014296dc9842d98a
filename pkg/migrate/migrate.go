// Package migrate wraps goose for the SQL migrations under migrations/.
package migrate

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"os"
	"sync"

	"github.com/pressly/goose/v3"
)

const DefaultDir = "pkg/migrate/migrations"

// EmbeddedDir is the directory name inside Embedded.
const EmbeddedDir = "migrations"

//go:embed migrations/*.sql
var Embedded embed.FS

// goose keeps dialect and base FS in package globals.
var gooseMu sync.Mutex

// EmbeddedFS returns the compiled-in migrations rooted at their directory.
func EmbeddedFS() fs.FS {
	sub, err := fs.Sub(Embedded, EmbeddedDir)
	if err != nil {
		panic(fmt.Sprintf("embedded migrations: %v", err))
	}
	return sub
}

// Source picks the compiled-in migrations or the on-disk dir.
func Source(dir string, embedded bool) fs.FS {
	if embedded {
		return EmbeddedFS()
	}
	return os.DirFS(dir)
}

// Run executes a goose command (up, down, status, redo...) against fsys.
func Run(ctx context.Context, db *sql.DB, fsys fs.FS, command string, args ...string) error {
	if db == nil {
		return fmt.Errorf("db is required")
	}
	if fsys == nil {
		return fmt.Errorf("migration source is required")
	}

	gooseMu.Lock()
	defer gooseMu.Unlock()
	goose.SetBaseFS(fsys)
	defer goose.SetBaseFS(nil)
	if err := goose.SetDialect(string(goose.DialectPostgres)); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}
	if err := goose.RunContext(ctx, command, db, ".", args...); err != nil {
		return fmt.Errorf("goose %s: %w", command, err)
	}
	return nil
}

func newProvider(db *sql.DB, fsys fs.FS) (*goose.Provider, error) {
	if db == nil {
		return nil, fmt.Errorf("db is required")
	}
	provider, err := goose.NewProvider(goose.DialectPostgres, db, fsys)
	if err != nil {
		return nil, fmt.Errorf("goose provider: %w", err)
	}
	return provider, nil
}

// MigrateToVersion moves the schema up or down until it sits at version.
func MigrateToVersion(ctx context.Context, db *sql.DB, fsys fs.FS, version string) ([]*goose.MigrationResult, error) {
	target, err := ParseVersion(version)
	if err != nil {
		return nil, err
	}
	provider, err := newProvider(db, fsys)
	if err != nil {
		return nil, err
	}
	current, err := provider.GetDBVersion(ctx)
	if err != nil {
		return nil, fmt.Errorf("current schema version: %w", err)
	}

	var results []*goose.MigrationResult
	switch {
	case target > current:
		results, err = provider.UpTo(ctx, target)
	case target < current:
		results, err = provider.DownTo(ctx, target)
	default:
		return nil, nil
	}
	if err != nil {
		return results, fmt.Errorf("migrate %d -> %d: %w", current, target, err)
	}
	return results, nil
}
