package payments

import (
	"context"
	"errors"
)

// IntentStatus mirrors the gateway's payment intent lifecycle.
type IntentStatus string

const (
	IntentRequiresPaymentMethod IntentStatus = "requires_payment_method"
	IntentRequiresConfirmation  IntentStatus = "requires_confirmation"
	IntentRequiresAction        IntentStatus = "requires_action"
	IntentProcessing            IntentStatus = "processing"
	IntentRequiresCapture       IntentStatus = "requires_capture"
	IntentCanceled              IntentStatus = "canceled"
	IntentSucceeded             IntentStatus = "succeeded"
)

// Failed reports whether the intent can no longer succeed. A declined card
// puts the intent back to requires_payment_method, and the client may pay
// again on the same intent, so only canceled is final.
func (s IntentStatus) Failed() bool {
	return s == IntentCanceled
}

// Abandonable reports whether the intent is waiting on the customer and can
// be canceled at the gateway.
func (s IntentStatus) Abandonable() bool {
	switch s {
	case IntentRequiresPaymentMethod, IntentRequiresConfirmation, IntentRequiresAction:
		return true
	}
	return false
}

// Intent is the verified gateway view of a payment.
type Intent struct {
	ID             string            `json:"id"`
	ClientSecret   string            `json:"-"`
	AmountCents    int64             `json:"amount"`
	Currency       string            `json:"currency"`
	Status         IntentStatus      `json:"status"`
	Metadata       map[string]string `json:"metadata,omitempty"`
	FailureMessage string            `json:"failureMessage,omitempty"`
}

type CreateIntentRequest struct {
	AmountCents    int64
	Currency       string
	IdempotencyKey string
	Description    string
	Metadata       map[string]string
}

// Gateway is the slice of the payment provider the engine relies on.
type Gateway interface {
	CreateIntent(ctx context.Context, req CreateIntentRequest) (*Intent, error)
	GetIntent(ctx context.Context, intentID string) (*Intent, error)
	CancelIntent(ctx context.Context, intentID string) (*Intent, error)
}

var (
	ErrGatewayUnavailable = errors.New("payment gateway unavailable")
	ErrIntentNotFound     = errors.New("payment intent not found")
)
