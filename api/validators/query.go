package validators

import (
	"net/http"
	"strconv"
	"strings"

	pkgerrors "github.com/clubsphere/clubsphere-backend/pkg/errors"
)

func queryError(key, message string, extra map[string]any) error {
	details := map[string]any{"field": key}
	for k, v := range extra {
		details[k] = v
	}
	return pkgerrors.New(pkgerrors.CodeValidation, message).WithDetails(details)
}

// ParseQueryInt reads an optional integer bounded to [min, max].
func ParseQueryInt(r *http.Request, key string, defaultVal, min, max int) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return defaultVal, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, queryError(key, "query parameter must be numeric", nil)
	}
	if value < min || value > max {
		return 0, queryError(key, "query parameter out of range", map[string]any{"min": min, "max": max})
	}
	return value, nil
}

// ParseQueryBool reads an optional boolean flag; an empty value yields defaultVal.
func ParseQueryBool(r *http.Request, key string, defaultVal bool) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(r.URL.Query().Get(key))) {
	case "":
		return defaultVal, nil
	case "1", "true", "yes":
		return true, nil
	case "0", "false", "no":
		return false, nil
	default:
		return false, queryError(key, "query parameter must be a boolean", nil)
	}
}
