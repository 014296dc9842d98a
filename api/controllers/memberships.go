package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/clubsphere/clubsphere-backend/api/responses"
	"github.com/clubsphere/clubsphere-backend/api/validators"
	"github.com/clubsphere/clubsphere-backend/internal/memberships"
	"github.com/clubsphere/clubsphere-backend/pkg/enums"
	pkgerrors "github.com/clubsphere/clubsphere-backend/pkg/errors"
	"github.com/clubsphere/clubsphere-backend/pkg/logger"
)

type membershipJoinRequest struct {
	ClubID uuid.UUID  `json:"clubId" validate:"required"`
	UserID *uuid.UUID `json:"userId,omitempty"`
}

// MembershipJoin joins a free club directly. Paid clubs answer 402 with the
// payment intent in the error details.
func MembershipJoin(svc memberships.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "membership service unavailable"))
			return
		}
		actor, err := requireActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var body membershipJoinRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := ensureSameUser(actor, body.UserID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		membership, err := svc.Join(r.Context(), actor, body.ClubID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, memberships.NewMembershipDTO(*membership))
	}
}

type membershipStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=expired"`
}

// MembershipChangeStatus expires a membership. Only expiry can be requested.
func MembershipChangeStatus(svc memberships.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "membership service unavailable"))
			return
		}
		actor, err := requireActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		membershipID, err := validators.ParseUUIDParam(r, "membershipId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var body membershipStatusRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if enums.MembershipStatus(body.Status) != enums.MembershipStatusExpired {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "status must be expired"))
			return
		}
		membership, err := svc.Expire(r.Context(), actor, membershipID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, memberships.NewMembershipDTO(*membership))
	}
}
