package webhooks

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/stripe/stripe-go/v84"
	"github.com/stripe/stripe-go/v84/webhook"

	"github.com/clubsphere/clubsphere-backend/api/responses"
	pkgerrors "github.com/clubsphere/clubsphere-backend/pkg/errors"
	"github.com/clubsphere/clubsphere-backend/pkg/logger"
)

const (
	maxWebhookBodyBytes = 1 << 16
	signatureHeader     = "Stripe-Signature"
)

type StripeWebhookService interface {
	HandleEvent(ctx context.Context, event *stripe.Event) error
}

type stripeWebhookGuard interface {
	CheckAndMark(ctx context.Context, eventID string) (bool, error)
	Delete(ctx context.Context, eventID string) error
}

type stripeClient interface {
	SigningSecret() string
}

type webhookAck struct {
	Received  bool `json:"received"`
	Duplicate bool `json:"duplicate,omitempty"`
}

type stripeWebhook struct {
	svc    StripeWebhookService
	client stripeClient
	guard  stripeWebhookGuard
	logg   *logger.Logger
}

// StripeWebhook verifies and applies payment_intent events. Each event id is
// processed once; a failed attempt releases the id so Stripe can redeliver.
func StripeWebhook(svc StripeWebhookService, client stripeClient, guard stripeWebhookGuard, logg *logger.Logger) http.HandlerFunc {
	h := &stripeWebhook{svc: svc, client: client, guard: guard, logg: logg}
	return h.serve
}

func (h *stripeWebhook) serve(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := h.ready(); err != nil {
		responses.WriteError(ctx, h.logg, w, err)
		return
	}

	event, err := h.verify(w, r)
	if err != nil {
		responses.WriteError(ctx, h.logg, w, err)
		return
	}
	if h.logg != nil {
		ctx = h.logg.WithFields(ctx, map[string]any{
			"stripe_event_id":   event.ID,
			"stripe_event_type": string(event.Type),
		})
	}

	seen, err := h.guard.CheckAndMark(ctx, event.ID)
	if err != nil {
		responses.WriteError(ctx, h.logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check webhook idempotency"))
		return
	}
	if seen {
		h.info(ctx, "stripe.webhook.duplicate")
		responses.WriteSuccess(w, webhookAck{Received: true, Duplicate: true})
		return
	}

	if err := h.svc.HandleEvent(ctx, &event); err != nil {
		if relErr := h.guard.Delete(ctx, event.ID); relErr != nil && h.logg != nil {
			h.logg.Error(ctx, "stripe.webhook.release_failed", relErr)
		}
		responses.WriteError(ctx, h.logg, w, err)
		return
	}

	h.info(ctx, "stripe.webhook.processed")
	responses.WriteSuccess(w, webhookAck{Received: true})
}

func (h *stripeWebhook) ready() error {
	switch {
	case h.svc == nil:
		return pkgerrors.New(pkgerrors.CodeInternal, "webhook service unavailable")
	case h.client == nil || h.client.SigningSecret() == "":
		return pkgerrors.New(pkgerrors.CodeInternal, "stripe webhooks not configured")
	case h.guard == nil:
		return pkgerrors.New(pkgerrors.CodeInternal, "idempotency guard unavailable")
	}
	return nil
}

// verify reads the bounded body and checks its signature. Events pinned to
// another API version are still accepted; the handler only reads fields that
// are stable across versions.
func (h *stripeWebhook) verify(w http.ResponseWriter, r *http.Request) (stripe.Event, error) {
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return stripe.Event{}, pkgerrors.New(pkgerrors.CodeValidation, "webhook payload too large")
		}
		return stripe.Event{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read request body")
	}

	sig := r.Header.Get(signatureHeader)
	if sig == "" {
		return stripe.Event{}, pkgerrors.New(pkgerrors.CodeValidation, "stripe signature missing")
	}

	event, err := webhook.ConstructEventWithOptions(payload, sig, h.client.SigningSecret(), webhook.ConstructEventOptions{
		Tolerance:                webhook.DefaultTolerance,
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return stripe.Event{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid stripe signature")
	}
	return event, nil
}

func (h *stripeWebhook) info(ctx context.Context, msg string) {
	if h.logg != nil {
		h.logg.Info(ctx, msg)
	}
}
