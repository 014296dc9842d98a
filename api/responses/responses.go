// Package responses writes the JSON envelopes every handler answers with:
// {"data": ...} on success and {"error": {...}} otherwise.
package responses

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	pkgerrors "github.com/clubsphere/clubsphere-backend/pkg/errors"
	"github.com/clubsphere/clubsphere-backend/pkg/logger"
	"github.com/clubsphere/clubsphere-backend/pkg/types"
)

const defaultRetryAfter = 2 * time.Second

func WriteSuccess(w http.ResponseWriter, data any) {
	WriteSuccessStatus(w, http.StatusOK, data)
}

func WriteSuccessStatus(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, types.SuccessEnvelope{Data: data})
}

// WriteError maps err onto its code's HTTP status. Client errors keep their
// message; anything that maps to a 5xx is answered with the code's public
// message so internals never leak. Untyped errors become INTERNAL_ERROR.
func WriteError(ctx context.Context, logg *logger.Logger, w http.ResponseWriter, err error) {
	if err == nil {
		err = errors.New("unknown error")
	}

	typed := pkgerrors.As(err)
	if typed == nil {
		typed = pkgerrors.Wrap(pkgerrors.CodeInternal, err, "unexpected error")
	}
	meta := pkgerrors.MetadataFor(typed.Code())

	apiErr := types.APIError{
		Code:      string(typed.Code()),
		Message:   meta.PublicMessage,
		RequestID: logger.RequestIDFromContext(ctx),
	}
	if meta.HTTPStatus < http.StatusInternalServerError && typed.Message() != "" {
		apiErr.Message = typed.Message()
	}
	if meta.DetailsAllowed {
		apiErr.Details = typed.Details()
	}
	if retry := retryAfter(typed, meta); retry > 0 {
		w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(retry.Seconds()))))
	}

	if logg != nil {
		ctx = logg.WithFields(ctx, logFields(pkgerrors.Dump(err), typed.Details()))
		if meta.HTTPStatus >= http.StatusInternalServerError {
			logg.Error(ctx, "request.error", err)
		} else {
			logg.Warn(ctx, "request.rejected")
		}
	}

	writeJSON(w, meta.HTTPStatus, types.ErrorEnvelope{Error: apiErr})
}

// retryAfter is the explicit hint on the error, or a default for retryable
// answers that are not server failures (202 RECONCILIATION_PENDING).
func retryAfter(err *pkgerrors.Error, meta pkgerrors.Metadata) time.Duration {
	if d := err.RetryAfter(); d > 0 {
		return d
	}
	if meta.Retryable && meta.HTTPStatus < http.StatusInternalServerError {
		return defaultRetryAfter
	}
	return 0
}

// logFields flattens the dump, leaving out driver fields the error did not set.
func logFields(dump pkgerrors.ErrorDump, details any) map[string]any {
	fields := map[string]any{
		"error":       dump.TopMessage,
		"error_code":  dump.Code,
		"error_chain": dump.Chain,
	}
	for name, value := range map[string]string{
		"pg_code":       dump.PGCode,
		"pg_constraint": dump.PGConstraint,
		"pg_table":      dump.PGTable,
		"pg_column":     dump.PGColumn,
		"pg_detail":     dump.PGDetail,
		"pg_message":    dump.PGMessage,
	} {
		if value != "" {
			fields[name] = value
		}
	}
	if dm, ok := details.(map[string]any); ok {
		if step, ok := dm["step"]; ok {
			fields["step"] = step
		}
	}
	return fields
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Error().Err(err).Int("status", status).Msg("failed to encode response")
	}
}
