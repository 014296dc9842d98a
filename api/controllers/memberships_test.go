package controllers

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/clubsphere/clubsphere-backend/internal/memberships"
	"github.com/clubsphere/clubsphere-backend/internal/payments"
	"github.com/clubsphere/clubsphere-backend/pkg/auth"
	"github.com/clubsphere/clubsphere-backend/pkg/enums"
	pkgerrors "github.com/clubsphere/clubsphere-backend/pkg/errors"
)

func TestMembershipJoin(t *testing.T) {
	svc := &stubMemberships{}
	actor := memberActor()
	clubID := uuid.New()

	rec := serve(t, http.MethodPost, "/memberships", "/memberships", map[string]any{"clubId": clubID}, actor, MembershipJoin(svc, testLogger()))

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	require.Equal(t, clubID, svc.joinedClub)
	var dto memberships.MembershipDTO
	decodeData(t, rec, &dto)
	require.Equal(t, actor.UserID, dto.UserID)
	require.Equal(t, enums.MembershipStatusActive, dto.Status)
}

func TestMembershipJoinAcceptsOwnUserID(t *testing.T) {
	actor := memberActor()
	body := map[string]any{"clubId": uuid.New(), "userId": actor.UserID}
	rec := serve(t, http.MethodPost, "/memberships", "/memberships", body, actor, MembershipJoin(&stubMemberships{}, testLogger()))
	require.Equal(t, http.StatusCreated, rec.Code)
}

func TestMembershipJoinRejectsForeignUserID(t *testing.T) {
	svc := &stubMemberships{}
	body := map[string]any{"clubId": uuid.New(), "userId": uuid.New()}
	rec := serve(t, http.MethodPost, "/memberships", "/memberships", body, memberActor(), MembershipJoin(svc, testLogger()))

	require.Equal(t, http.StatusForbidden, rec.Code)
	require.Equal(t, uuid.Nil, svc.joinedClub)
}

func TestMembershipJoinPaidClubReturnsIntent(t *testing.T) {
	intent := &payments.IntentResult{IntentID: "pi_9", ClientSecret: "pi_9_secret", PaymentID: uuid.New(), Amount: 2500, Currency: "usd"}
	svc := &stubMemberships{err: pkgerrors.New(pkgerrors.CodePaymentRequired, "membership fee required").WithDetails(intent)}

	rec := serve(t, http.MethodPost, "/memberships", "/memberships", map[string]any{"clubId": uuid.New()}, memberActor(), MembershipJoin(svc, testLogger()))

	require.Equal(t, http.StatusPaymentRequired, rec.Code)
	apiErr := decodeError(t, rec)
	require.Equal(t, string(pkgerrors.CodePaymentRequired), apiErr.Code)
	raw, err := json.Marshal(apiErr.Details)
	require.NoError(t, err)
	var details payments.IntentResult
	require.NoError(t, json.Unmarshal(raw, &details))
	require.Equal(t, "pi_9", details.IntentID)
	require.EqualValues(t, 2500, details.Amount)
}

func TestMembershipJoinDomainOutcomes(t *testing.T) {
	cases := map[pkgerrors.Code]int{
		pkgerrors.CodeAlreadyMember:   http.StatusConflict,
		pkgerrors.CodeClubNotApproved: http.StatusConflict,
		pkgerrors.CodeNotFound:        http.StatusNotFound,
	}
	for code, status := range cases {
		t.Run(string(code), func(t *testing.T) {
			svc := &stubMemberships{err: pkgerrors.New(code, "join failed")}
			rec := serve(t, http.MethodPost, "/memberships", "/memberships", map[string]any{"clubId": uuid.New()}, memberActor(), MembershipJoin(svc, testLogger()))
			require.Equal(t, status, rec.Code)
			require.Equal(t, string(code), decodeError(t, rec).Code)
		})
	}
}

func TestMembershipChangeStatus(t *testing.T) {
	svc := &stubMemberships{}
	membershipID := uuid.New()
	target := "/memberships/" + membershipID.String() + "/status"
	pattern := "/memberships/{membershipId}/status"
	actor := auth.Actor{UserID: uuid.New(), Role: enums.RoleManager}

	rec := serve(t, http.MethodPatch, pattern, target, map[string]any{"status": "expired"}, actor, MembershipChangeStatus(svc, testLogger()))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Equal(t, membershipID, svc.expired)

	rec = serve(t, http.MethodPatch, pattern, target, map[string]any{"status": "active"}, actor, MembershipChangeStatus(svc, testLogger()))
	require.Equal(t, http.StatusBadRequest, rec.Code)
}
