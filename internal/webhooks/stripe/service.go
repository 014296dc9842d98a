package stripewebhook

import (
	"context"
	"encoding/json"

	"github.com/stripe/stripe-go/v84"

	"github.com/clubsphere/clubsphere-backend/internal/payments"
	pkgerrors "github.com/clubsphere/clubsphere-backend/pkg/errors"
	"github.com/clubsphere/clubsphere-backend/pkg/logger"
)

type intentReconciler interface {
	ReconcileIntent(ctx context.Context, intent *payments.Intent, source string) (*payments.ConfirmResult, error)
}

type ServiceParams struct {
	Payments intentReconciler
	Logger   *logger.Logger
}

// Service applies payment_intent webhooks to the payment ledger. It is the
// server-side path for clients that pay but never call confirm.
type Service struct {
	payments intentReconciler
	logg     *logger.Logger
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Payments == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "payment engine required")
	}
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "logger required")
	}
	return &Service{payments: params.Payments, logg: params.Logger}, nil
}

// HandleEvent returns an error only when Stripe should redeliver the event.
// Final outcomes, unknown intents and intents still in flight are acknowledged.
func (s *Service) HandleEvent(ctx context.Context, event *stripe.Event) error {
	if event == nil || event.Data == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "stripe event data required")
	}

	switch event.Type {
	case stripe.EventTypePaymentIntentSucceeded,
		stripe.EventTypePaymentIntentPaymentFailed,
		stripe.EventTypePaymentIntentCanceled:
		var pi stripe.PaymentIntent
		if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode payment intent event")
		}
		return s.reconcile(ctx, string(event.Type), &pi)
	default:
		return nil
	}
}

func (s *Service) reconcile(ctx context.Context, eventType string, pi *stripe.PaymentIntent) error {
	intent := payments.IntentFromStripe(pi)
	logCtx := s.logg.WithFields(ctx, map[string]any{
		"stripe_event": eventType,
		"intent_id":    intent.ID,
		"status":       string(intent.Status),
	})

	_, err := s.payments.ReconcileIntent(ctx, intent, payments.SourceWebhook)
	switch code := pkgerrors.CodeOf(err); {
	case err == nil:
		s.logg.Info(logCtx, "payment intent reconciled")
		return nil
	case payments.IsSettledOutcome(err):
		s.logg.Info(s.logg.WithField(logCtx, "outcome", string(code)), "payment intent reconciled")
		return nil
	case code == pkgerrors.CodeNotFound:
		s.logg.Warn(logCtx, "webhook for unknown payment intent ignored")
		return nil
	case code == pkgerrors.CodeStateConflict:
		s.logg.Info(logCtx, "payment intent not final yet")
		return nil
	case code == pkgerrors.CodeValidation:
		// Redelivery cannot fix these.
		s.logg.Error(logCtx, "payment intent rejected", err)
		return nil
	default:
		return err
	}
}
