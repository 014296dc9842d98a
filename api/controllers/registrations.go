package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/clubsphere/clubsphere-backend/api/responses"
	"github.com/clubsphere/clubsphere-backend/api/validators"
	"github.com/clubsphere/clubsphere-backend/internal/registrations"
	pkgerrors "github.com/clubsphere/clubsphere-backend/pkg/errors"
	"github.com/clubsphere/clubsphere-backend/pkg/logger"
)

type registrationCreateRequest struct {
	EventID uuid.UUID  `json:"eventId" validate:"required"`
	UserID  *uuid.UUID `json:"userId,omitempty"`
}

func RegistrationCreate(svc registrations.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "registration service unavailable"))
			return
		}
		actor, err := requireActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var body registrationCreateRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := ensureSameUser(actor, body.UserID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		registration, err := svc.Register(r.Context(), actor, body.EventID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, registrations.NewRegistrationDTO(*registration))
	}
}

func RegistrationCancel(svc registrations.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "registration service unavailable"))
			return
		}
		actor, err := requireActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		registrationID, err := validators.ParseUUIDParam(r, "registrationId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		registration, err := svc.Cancel(r.Context(), actor, registrationID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, registrations.NewRegistrationDTO(*registration))
	}
}
