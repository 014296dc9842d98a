package payments

import (
	"context"
	"errors"
	"strings"

	"github.com/stripe/stripe-go/v84"

	pkgstripe "github.com/clubsphere/clubsphere-backend/pkg/stripe"
)

type stripeGateway struct {
	api *stripe.Client
}

// NewStripeGateway adapts the shared Stripe client to the Gateway interface.
func NewStripeGateway(client *pkgstripe.Client) (Gateway, error) {
	if client == nil || client.API() == nil {
		return nil, errors.New("stripe client required")
	}
	return &stripeGateway{api: client.API()}, nil
}

func (g *stripeGateway) CreateIntent(ctx context.Context, req CreateIntentRequest) (*Intent, error) {
	params := &stripe.PaymentIntentCreateParams{
		Amount:   stripe.Int64(req.AmountCents),
		Currency: stripe.String(strings.ToLower(req.Currency)),
		AutomaticPaymentMethods: &stripe.PaymentIntentCreateAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	if req.Description != "" {
		params.Description = stripe.String(req.Description)
	}
	for k, v := range req.Metadata {
		params.AddMetadata(k, v)
	}
	if req.IdempotencyKey != "" {
		params.SetIdempotencyKey(req.IdempotencyKey)
	}

	pi, err := g.api.V1PaymentIntents.Create(ctx, params)
	if err != nil {
		return nil, mapStripeError(err)
	}
	return IntentFromStripe(pi), nil
}

func (g *stripeGateway) GetIntent(ctx context.Context, intentID string) (*Intent, error) {
	pi, err := g.api.V1PaymentIntents.Retrieve(ctx, intentID, &stripe.PaymentIntentRetrieveParams{})
	if err != nil {
		return nil, mapStripeError(err)
	}
	return IntentFromStripe(pi), nil
}

// CancelIntent cancels an intent the customer walked away from. Stripe refuses
// once the intent succeeded or is processing.
func (g *stripeGateway) CancelIntent(ctx context.Context, intentID string) (*Intent, error) {
	params := &stripe.PaymentIntentCancelParams{
		CancellationReason: stripe.String(string(stripe.PaymentIntentCancellationReasonAbandoned)),
	}
	pi, err := g.api.V1PaymentIntents.Cancel(ctx, intentID, params)
	if err != nil {
		return nil, mapStripeError(err)
	}
	return IntentFromStripe(pi), nil
}

// IntentFromStripe converts a Stripe payment intent, including ones decoded from webhooks.
func IntentFromStripe(pi *stripe.PaymentIntent) *Intent {
	if pi == nil {
		return nil
	}
	intent := &Intent{
		ID:           pi.ID,
		ClientSecret: pi.ClientSecret,
		AmountCents:  pi.Amount,
		Currency:     string(pi.Currency),
		Status:       IntentStatus(pi.Status),
		Metadata:     pi.Metadata,
	}
	if pi.LastPaymentError != nil {
		intent.FailureMessage = pi.LastPaymentError.Msg
	}
	return intent
}

func mapStripeError(err error) error {
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		if stripeErr.HTTPStatusCode == 404 || stripeErr.Code == stripe.ErrorCodeResourceMissing {
			return errors.Join(ErrIntentNotFound, err)
		}
		if stripeErr.HTTPStatusCode >= 500 || stripeErr.HTTPStatusCode == 429 {
			return errors.Join(ErrGatewayUnavailable, err)
		}
		return err
	}
	return errors.Join(ErrGatewayUnavailable, err)
}
