package migrate

import (
	"bufio"
	"bytes"
	"fmt"
	"io/fs"
	"os"
	"path"
	"regexp"
	"strings"

	"go.uber.org/multierr"
)

var migrationNameRe = regexp.MustCompile(`^(\d{14})_[a-z0-9_]+\.sql$`)

// ValidateDir checks the migrations in dir on disk.
func ValidateDir(dir string) error {
	if dir == "" {
		return fmt.Errorf("dir is required")
	}
	if _, err := os.Stat(dir); err != nil {
		return fmt.Errorf("migrations dir %q: %w", dir, err)
	}
	return ValidateFS(os.DirFS(dir))
}

// ValidateFS checks every .sql file at the root of fsys and reports all
// problems at once: bad names, duplicate versions and broken goose annotations.
func ValidateFS(fsys fs.FS) error {
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("read migrations: %w", err)
	}

	var errs error
	versions := map[string]string{}
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || path.Ext(name) != ".sql" {
			continue
		}
		match := migrationNameRe.FindStringSubmatch(name)
		if match == nil {
			errs = multierr.Append(errs, fmt.Errorf("%s: name must look like YYYYMMDDHHMMSS_snake_name.sql", name))
			continue
		}
		if prev, dup := versions[match[1]]; dup {
			errs = multierr.Append(errs, fmt.Errorf("%s: version %s already used by %s", name, match[1], prev))
			continue
		}
		versions[match[1]] = name

		body, err := fs.ReadFile(fsys, name)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("%s: %w", name, err))
			continue
		}
		errs = multierr.Append(errs, checkAnnotations(name, body))
	}
	return errs
}

func checkAnnotations(name string, body []byte) error {
	var (
		upLine, downLine int
		openBlock        int
		errs             error
	)
	scanner := bufio.NewScanner(bytes.NewReader(body))
	for line := 1; scanner.Scan(); line++ {
		text := strings.TrimSpace(scanner.Text())
		switch {
		case strings.HasPrefix(text, "-- +goose Up"):
			upLine = line
		case strings.HasPrefix(text, "-- +goose Down"):
			downLine = line
		case strings.HasPrefix(text, "-- +goose StatementBegin"):
			if openBlock > 0 {
				errs = multierr.Append(errs, fmt.Errorf("%s:%d: nested StatementBegin", name, line))
			}
			openBlock = line
		case strings.HasPrefix(text, "-- +goose StatementEnd"):
			if openBlock == 0 {
				errs = multierr.Append(errs, fmt.Errorf("%s:%d: StatementEnd without StatementBegin", name, line))
			}
			openBlock = 0
		}
	}
	if err := scanner.Err(); err != nil {
		return multierr.Append(errs, fmt.Errorf("%s: %w", name, err))
	}

	if upLine == 0 {
		errs = multierr.Append(errs, fmt.Errorf("%s: missing \"-- +goose Up\"", name))
	}
	if downLine == 0 {
		errs = multierr.Append(errs, fmt.Errorf("%s: missing \"-- +goose Down\"", name))
	}
	if upLine > 0 && downLine > 0 && downLine < upLine {
		errs = multierr.Append(errs, fmt.Errorf("%s: Down section precedes Up", name))
	}
	if openBlock > 0 {
		errs = multierr.Append(errs, fmt.Errorf("%s:%d: StatementBegin never closed", name, openBlock))
	}
	return errs
}
