package migrate

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"
)

const versionLayout = "20060102150405"

var unsafeNameRe = regexp.MustCompile(`[^a-z0-9]+`)

// CreateSQLMigration writes an empty goose migration named
// <version>_<snake_name>.sql into dir and returns its path.
func CreateSQLMigration(dir, name string) (string, error) {
	return createSQLMigration(dir, name, time.Now())
}

func createSQLMigration(dir, name string, now time.Time) (string, error) {
	if dir == "" {
		return "", fmt.Errorf("dir is required")
	}
	slug := strings.Trim(unsafeNameRe.ReplaceAllString(strings.ToLower(name), "_"), "_")
	if slug == "" {
		return "", fmt.Errorf("migration name %q has no usable characters", name)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create migrations dir: %w", err)
	}

	version, err := nextVersion(dir, now.UTC())
	if err != nil {
		return "", err
	}
	target := filepath.Join(dir, version+"_"+slug+".sql")
	body := fmt.Sprintf("-- %s\n\n-- +goose Up\n-- +goose StatementBegin\n\n-- +goose StatementEnd\n\n-- +goose Down\n-- +goose StatementBegin\n\n-- +goose StatementEnd\n", slug)

	f, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("create migration: %w", err)
	}
	if _, err := f.WriteString(body); err != nil {
		f.Close()
		return "", fmt.Errorf("write migration: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close migration: %w", err)
	}
	return target, nil
}

// nextVersion returns the timestamp version for now, bumped past the newest
// existing migration so versions keep increasing when clocks disagree.
func nextVersion(dir string, now time.Time) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("read migrations dir: %w", err)
	}
	var latest time.Time
	for _, entry := range entries {
		match := migrationNameRe.FindStringSubmatch(entry.Name())
		if match == nil {
			continue
		}
		if ts, err := time.Parse(versionLayout, match[1]); err == nil && ts.After(latest) {
			latest = ts
		}
	}
	if !now.After(latest) {
		now = latest.Add(time.Second)
	}
	return now.Format(versionLayout), nil
}

// ParseVersion parses a YYYYMMDDHHMMSS migration version.
func ParseVersion(raw string) (int64, error) {
	raw = strings.TrimSpace(raw)
	if _, err := time.Parse(versionLayout, raw); err != nil {
		return 0, fmt.Errorf("invalid version %q, expected YYYYMMDDHHMMSS", raw)
	}
	return strconv.ParseInt(raw, 10, 64)
}
