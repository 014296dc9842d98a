package controllers

import (
	"net/http"
	"strings"
	"time"

	"github.com/clubsphere/clubsphere-backend/api/responses"
	"github.com/clubsphere/clubsphere-backend/api/validators"
	"github.com/clubsphere/clubsphere-backend/internal/clubs"
	"github.com/clubsphere/clubsphere-backend/internal/events"
	"github.com/clubsphere/clubsphere-backend/pkg/enums"
	pkgerrors "github.com/clubsphere/clubsphere-backend/pkg/errors"
	"github.com/clubsphere/clubsphere-backend/pkg/logger"
	"github.com/clubsphere/clubsphere-backend/pkg/pagination"
)

const maxSearchLength = 100

// ClubList serves the public catalogue of approved clubs.
func ClubList(svc clubs.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "club service unavailable"))
			return
		}
		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		q := r.URL.Query()
		result, err := svc.List(r.Context(), clubs.ListParams{
			Search:   validators.SanitizeString(q.Get("search"), maxSearchLength),
			Category: strings.TrimSpace(q.Get("category")),
			Sort:     strings.TrimSpace(q.Get("sort")),
			Limit:    limit,
			Cursor:   strings.TrimSpace(q.Get("cursor")),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

// ClubGet returns one club. Pending and rejected clubs are visible only to their
// manager or an admin.
func ClubGet(svc clubs.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "club service unavailable"))
			return
		}
		clubID, err := validators.ParseUUIDParam(r, "clubId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		club, err := svc.Get(r.Context(), optionalActor(r), clubID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, clubs.NewClubDTO(*club))
	}
}

type clubCreateRequest struct {
	Name               string  `json:"name" validate:"required,min=1,max=120"`
	Description        string  `json:"description" validate:"max=4000"`
	Category           string  `json:"category" validate:"required"`
	Location           string  `json:"location" validate:"max=200"`
	BannerImage        *string `json:"bannerImage,omitempty" validate:"omitempty,url"`
	MembershipFeeCents int64   `json:"membershipFeeCents" validate:"gte=0"`
}

// ClubCreate submits a new club for admin review.
func ClubCreate(svc clubs.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "club service unavailable"))
			return
		}
		actor, err := requireActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var body clubCreateRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		category, err := enums.ParseClubCategory(body.Category)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid category"))
			return
		}
		club, err := svc.Create(r.Context(), actor, clubs.CreateClubInput{
			Name:               body.Name,
			Description:        body.Description,
			Category:           category,
			Location:           body.Location,
			BannerImage:        body.BannerImage,
			MembershipFeeCents: body.MembershipFeeCents,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, clubs.NewClubDTO(*club))
	}
}

type clubStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=approved rejected"`
}

func ClubChangeStatus(svc clubs.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "club service unavailable"))
			return
		}
		actor, err := requireActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		clubID, err := validators.ParseUUIDParam(r, "clubId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		r = withClub(r, logg, clubID)
		var body clubStatusRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		club, err := svc.ChangeStatus(r.Context(), actor, clubID, enums.ClubStatus(body.Status))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, clubs.NewClubDTO(*club))
	}
}

// ClubEvents lists an approved club's events; ?upcoming=true hides past ones.
func ClubEvents(svc events.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "event service unavailable"))
			return
		}
		clubID, err := validators.ParseUUIDParam(r, "clubId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		upcoming, err := validators.ParseQueryBool(r, "upcoming", false)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		rows, err := svc.ListByClub(r.Context(), clubID, upcoming)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, events.NewEventDTOs(rows))
	}
}

type eventCreateRequest struct {
	Title         string    `json:"title" validate:"required,min=1,max=200"`
	Description   string    `json:"description" validate:"max=4000"`
	Location      string    `json:"location" validate:"max=200"`
	EventDate     time.Time `json:"eventDate"`
	IsPaid        bool      `json:"isPaid"`
	EventFeeCents int64     `json:"eventFeeCents" validate:"gte=0"`
	MaxAttendees  int       `json:"maxAttendees" validate:"gte=0"`
}

func ClubCreateEvent(svc events.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "event service unavailable"))
			return
		}
		actor, err := requireActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		clubID, err := validators.ParseUUIDParam(r, "clubId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		r = withClub(r, logg, clubID)
		var body eventCreateRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		event, err := svc.Create(r.Context(), actor, clubID, events.CreateEventInput{
			Title:         body.Title,
			Description:   body.Description,
			Location:      body.Location,
			EventDate:     body.EventDate,
			IsPaid:        body.IsPaid,
			EventFeeCents: body.EventFeeCents,
			MaxAttendees:  body.MaxAttendees,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, events.NewEventDTO(*event))
	}
}

// eventUpdateRequest is a partial edit; omitted fields keep their value.
type eventUpdateRequest struct {
	Title         *string    `json:"title" validate:"omitempty,min=1,max=200"`
	Description   *string    `json:"description" validate:"omitempty,max=4000"`
	Location      *string    `json:"location" validate:"omitempty,max=200"`
	EventDate     *time.Time `json:"eventDate"`
	IsPaid        *bool      `json:"isPaid"`
	EventFeeCents *int64     `json:"eventFeeCents" validate:"omitempty,gte=0"`
	MaxAttendees  *int       `json:"maxAttendees" validate:"omitempty,gte=0"`
}

func EventUpdate(svc events.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "event service unavailable"))
			return
		}
		actor, err := requireActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		eventID, err := validators.ParseUUIDParam(r, "eventId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var body eventUpdateRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		event, err := svc.Update(r.Context(), actor, eventID, events.UpdateEventInput{
			Title:         body.Title,
			Description:   body.Description,
			Location:      body.Location,
			EventDate:     body.EventDate,
			IsPaid:        body.IsPaid,
			EventFeeCents: body.EventFeeCents,
			MaxAttendees:  body.MaxAttendees,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, events.NewEventDTO(*event))
	}
}
