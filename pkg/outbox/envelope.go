package outbox

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/clubsphere/clubsphere-backend/pkg/enums"
)

// EnvelopeVersion is the newest envelope layout this build writes and reads.
const EnvelopeVersion = 1

var (
	ErrEnvelopeVersion = errors.New("unsupported envelope version")
	ErrEmptyPayload    = errors.New("envelope has no data")
)

// ActorRef identifies who produced the event.
type ActorRef struct {
	UserID uuid.UUID  `json:"userId"`
	ClubID *uuid.UUID `json:"clubId,omitempty"`
	Role   enums.Role `json:"role,omitempty"`
}

// PayloadEnvelope wraps every outbox payload. RequestID and TraceID tie the
// event back to the HTTP request or job that wrote it.
type PayloadEnvelope struct {
	Version    int             `json:"version"`
	EventID    string          `json:"eventId"`
	OccurredAt time.Time       `json:"occurredAt"`
	Actor      *ActorRef       `json:"actor,omitempty"`
	RequestID  string          `json:"requestId,omitempty"`
	TraceID    string          `json:"traceId,omitempty"`
	Data       json.RawMessage `json:"data"`
}

// DecodeEnvelope parses a stored payload and rejects versions from the future
// and envelopes without data.
func DecodeEnvelope(raw []byte) (PayloadEnvelope, error) {
	var env PayloadEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return PayloadEnvelope{}, fmt.Errorf("decode envelope: %w", err)
	}
	if env.Version < 1 || env.Version > EnvelopeVersion {
		return PayloadEnvelope{}, fmt.Errorf("%w: %d", ErrEnvelopeVersion, env.Version)
	}
	if data := bytes.TrimSpace(env.Data); len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return PayloadEnvelope{}, ErrEmptyPayload
	}
	return env, nil
}
