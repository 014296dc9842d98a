package controllers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/clubsphere/clubsphere-backend/api/responses"
	"github.com/clubsphere/clubsphere-backend/api/validators"
	"github.com/clubsphere/clubsphere-backend/internal/memberships"
	"github.com/clubsphere/clubsphere-backend/internal/payments"
	"github.com/clubsphere/clubsphere-backend/internal/registrations"
	"github.com/clubsphere/clubsphere-backend/pkg/auth"
	"github.com/clubsphere/clubsphere-backend/pkg/enums"
	pkgerrors "github.com/clubsphere/clubsphere-backend/pkg/errors"
	"github.com/clubsphere/clubsphere-backend/pkg/logger"
)

// PaymentService is the slice of the payment engine the HTTP layer drives.
type PaymentService interface {
	CreateIntent(ctx context.Context, actor auth.Actor, input payments.CreateIntentInput) (*payments.IntentResult, error)
	Confirm(ctx context.Context, actor auth.Actor, intentID, proof string) (*payments.ConfirmResult, error)
}

type paymentIntentRequest struct {
	Kind     string     `json:"kind" validate:"required,oneof=membership event"`
	TargetID uuid.UUID  `json:"targetId" validate:"required"`
	Amount   int64      `json:"amount" validate:"gte=0"`
	UserID   *uuid.UUID `json:"userId,omitempty"`
}

// PaymentIntent opens a gateway intent for a membership or event fee. amount is
// optional and, when sent, must equal the fee in minor units.
func PaymentIntent(svc PaymentService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payment service unavailable"))
			return
		}
		actor, err := requireActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var body paymentIntentRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := ensureSameUser(actor, body.UserID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		kind, err := enums.ParsePaymentKind(body.Kind)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid kind"))
			return
		}
		result, err := svc.CreateIntent(r.Context(), actor, payments.CreateIntentInput{
			Kind:        kind,
			TargetID:    body.TargetID,
			AmountCents: body.Amount,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

type paymentConfirmRequest struct {
	IntentID string     `json:"intentId" validate:"required"`
	Proof    string     `json:"proof" validate:"required"`
	UserID   *uuid.UUID `json:"userId,omitempty"`
}

type paymentConfirmResponse struct {
	Payment      payments.PaymentDTO            `json:"payment"`
	Membership   *memberships.MembershipDTO     `json:"membership,omitempty"`
	Registration *registrations.RegistrationDTO `json:"registration,omitempty"`
}

// PaymentConfirm settles a payment. Replays of a settled payment return the
// same outcome as the first confirmation.
func PaymentConfirm(svc PaymentService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payment service unavailable"))
			return
		}
		actor, err := requireActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var body paymentConfirmRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := ensureSameUser(actor, body.UserID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		result, err := svc.Confirm(r.Context(), actor, body.IntentID, body.Proof)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newPaymentConfirmResponse(result))
	}
}

func newPaymentConfirmResponse(result *payments.ConfirmResult) paymentConfirmResponse {
	out := paymentConfirmResponse{}
	if result == nil {
		return out
	}
	if result.Payment != nil {
		out.Payment = payments.NewPaymentDTO(*result.Payment)
	}
	if result.Membership != nil {
		dto := memberships.NewMembershipDTO(*result.Membership)
		out.Membership = &dto
	}
	if result.Registration != nil {
		dto := registrations.NewRegistrationDTO(*result.Registration)
		out.Registration = &dto
	}
	return out
}
