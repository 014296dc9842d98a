package controllers

import (
	"net/http"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/clubsphere/clubsphere-backend/internal/payments"
	"github.com/clubsphere/clubsphere-backend/pkg/db/models"
	"github.com/clubsphere/clubsphere-backend/pkg/enums"
	pkgerrors "github.com/clubsphere/clubsphere-backend/pkg/errors"
)

func TestPaymentIntent(t *testing.T) {
	svc := &stubPayments{}
	targetID := uuid.New()
	body := map[string]any{"kind": "event", "targetId": targetID, "amount": 2500}

	rec := serve(t, http.MethodPost, "/payments/intent", "/payments/intent", body, memberActor(), PaymentIntent(svc, testLogger()))

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Equal(t, payments.CreateIntentInput{Kind: enums.PaymentKindEvent, TargetID: targetID, AmountCents: 2500}, svc.intentInput)
	var result payments.IntentResult
	decodeData(t, rec, &result)
	require.Equal(t, "pi_1_secret", result.ClientSecret)
}

func TestPaymentIntentValidation(t *testing.T) {
	cases := map[string]map[string]any{
		"unknown kind":    {"kind": "donation", "targetId": uuid.New()},
		"missing target":  {"kind": "membership"},
		"negative amount": {"kind": "membership", "targetId": uuid.New(), "amount": -5},
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			rec := serve(t, http.MethodPost, "/payments/intent", "/payments/intent", body, memberActor(), PaymentIntent(&stubPayments{}, testLogger()))
			require.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
		})
	}
}

func TestPaymentIntentAmountMismatch(t *testing.T) {
	svc := &stubPayments{err: pkgerrors.New(pkgerrors.CodeAmountMismatch, "amount does not match fee").WithDetails(map[string]int64{"expected": 1500})}
	body := map[string]any{"kind": "membership", "targetId": uuid.New(), "amount": 999}

	rec := serve(t, http.MethodPost, "/payments/intent", "/payments/intent", body, memberActor(), PaymentIntent(svc, testLogger()))

	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, string(pkgerrors.CodeAmountMismatch), decodeError(t, rec).Code)
}

func TestPaymentConfirmMembership(t *testing.T) {
	actor := memberActor()
	paymentID := uuid.New()
	svc := &stubPayments{result: &payments.ConfirmResult{
		Payment:    &models.Payment{ID: paymentID, UserID: actor.UserID, Kind: enums.PaymentKindMembership, AmountCents: 1500, Currency: "usd", Status: enums.PaymentStatusSuccess},
		Membership: &models.Membership{ID: uuid.New(), UserID: actor.UserID, Status: enums.MembershipStatusActive, PaymentID: &paymentID},
	}}
	body := map[string]any{"intentId": "pi_1", "proof": "pi_1_secret"}

	rec := serve(t, http.MethodPost, "/payments/confirm", "/payments/confirm", body, actor, PaymentConfirm(svc, testLogger()))

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Equal(t, "pi_1", svc.confirmed)
	var resp paymentConfirmResponse
	decodeData(t, rec, &resp)
	require.Equal(t, paymentID, resp.Payment.ID)
	require.Equal(t, enums.PaymentStatusSuccess, resp.Payment.Status)
	require.NotNil(t, resp.Membership)
	require.Nil(t, resp.Registration)
}

func TestPaymentConfirmOutcomes(t *testing.T) {
	cases := map[pkgerrors.Code]int{
		pkgerrors.CodePaymentFailed:         http.StatusPaymentRequired,
		pkgerrors.CodeReconciliationPending: http.StatusAccepted,
		pkgerrors.CodeAlreadyEnrolled:       http.StatusConflict,
		pkgerrors.CodeDependency:            http.StatusServiceUnavailable,
	}
	for code, status := range cases {
		t.Run(string(code), func(t *testing.T) {
			svc := &stubPayments{err: pkgerrors.New(code, "confirm failed")}
			body := map[string]any{"intentId": "pi_1", "proof": "secret"}
			rec := serve(t, http.MethodPost, "/payments/confirm", "/payments/confirm", body, memberActor(), PaymentConfirm(svc, testLogger()))
			require.Equal(t, status, rec.Code)
			require.Equal(t, string(code), decodeError(t, rec).Code)
		})
	}
}

func TestPaymentConfirmRejectsForeignUserID(t *testing.T) {
	svc := &stubPayments{}
	body := map[string]any{"intentId": "pi_1", "proof": "secret", "userId": uuid.New()}
	rec := serve(t, http.MethodPost, "/payments/confirm", "/payments/confirm", body, memberActor(), PaymentConfirm(svc, testLogger()))

	require.Equal(t, http.StatusForbidden, rec.Code)
	require.Empty(t, svc.confirmed)
}

func TestNewPaymentConfirmResponseHandlesNil(t *testing.T) {
	out := newPaymentConfirmResponse(nil)
	require.Nil(t, out.Membership)
	require.Nil(t, out.Registration)
}
