package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/clubsphere/clubsphere-backend/api/middleware"
	"github.com/clubsphere/clubsphere-backend/pkg/auth"
	pkgerrors "github.com/clubsphere/clubsphere-backend/pkg/errors"
	"github.com/clubsphere/clubsphere-backend/pkg/logger"
)

func requireActor(r *http.Request) (auth.Actor, error) {
	actor, ok := middleware.ActorFromContext(r.Context())
	if !ok {
		return auth.Actor{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required")
	}
	return actor, nil
}

// withClub tags the request's log entries with the club a mutation targets.
func withClub(r *http.Request, logg *logger.Logger, clubID uuid.UUID) *http.Request {
	if logg == nil {
		return r
	}
	return r.WithContext(logg.WithClubID(r.Context(), clubID.String()))
}

func optionalActor(r *http.Request) *auth.Actor {
	actor, ok := middleware.ActorFromContext(r.Context())
	if !ok {
		return nil
	}
	return &actor
}

// ensureSameUser rejects a body userId that names someone other than the caller.
// Identity always comes from the session; the field is accepted only for
// compatibility with clients that still send it.
func ensureSameUser(actor auth.Actor, userID *uuid.UUID) error {
	if userID == nil || *userID == uuid.Nil || *userID == actor.UserID {
		return nil
	}
	return pkgerrors.New(pkgerrors.CodeForbidden, "userId does not match the authenticated user")
}
