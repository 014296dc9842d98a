package controllers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/clubsphere/clubsphere-backend/api/middleware"
	"github.com/clubsphere/clubsphere-backend/internal/clubs"
	"github.com/clubsphere/clubsphere-backend/internal/dashboard"
	"github.com/clubsphere/clubsphere-backend/internal/events"
	"github.com/clubsphere/clubsphere-backend/internal/memberships"
	"github.com/clubsphere/clubsphere-backend/internal/payments"
	"github.com/clubsphere/clubsphere-backend/internal/registrations"
	"github.com/clubsphere/clubsphere-backend/pkg/auth"
	"github.com/clubsphere/clubsphere-backend/pkg/db/models"
	"github.com/clubsphere/clubsphere-backend/pkg/enums"
	"github.com/clubsphere/clubsphere-backend/pkg/logger"
	"github.com/clubsphere/clubsphere-backend/pkg/types"
)

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test-controllers", Level: logger.ParseLevel("debug"), Output: io.Discard})
}

func memberActor() auth.Actor {
	return auth.Actor{UserID: uuid.New(), Role: enums.RoleMember}
}

// serve mounts handler on a single chi route so URL params resolve, attaching
// actor to the request context when it is non-zero.
func serve(t *testing.T, method, pattern, target string, body any, actor auth.Actor, handler http.HandlerFunc) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, target, reader)
	req.Header.Set("Content-Type", "application/json")
	if !actor.IsZero() {
		req = req.WithContext(middleware.WithActor(req.Context(), actor))
	}
	r := chi.NewRouter()
	r.MethodFunc(method, pattern, handler)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) types.APIError {
	t.Helper()
	var env types.ErrorEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return env.Error
}

func decodeData(t *testing.T, rec *httptest.ResponseRecorder, out any) {
	t.Helper()
	var env struct {
		Data json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	require.NoError(t, json.Unmarshal(env.Data, out))
}

type stubClubs struct {
	created    clubs.CreateClubInput
	listParams clubs.ListParams
	getActor   *auth.Actor
	status     enums.ClubStatus
	club       *models.Club
	err        error
}

func (s *stubClubs) Create(_ context.Context, actor auth.Actor, input clubs.CreateClubInput) (*models.Club, error) {
	s.created = input
	if s.err != nil {
		return nil, s.err
	}
	return &models.Club{ID: uuid.New(), Name: input.Name, Category: input.Category, ManagerID: actor.UserID, Status: enums.ClubStatusPending}, nil
}

func (s *stubClubs) Get(_ context.Context, actor *auth.Actor, clubID uuid.UUID) (*models.Club, error) {
	s.getActor = actor
	if s.err != nil {
		return nil, s.err
	}
	return &models.Club{ID: clubID, Name: "Chess", Status: enums.ClubStatusApproved}, nil
}

func (s *stubClubs) List(_ context.Context, params clubs.ListParams) (*clubs.ListResult, error) {
	s.listParams = params
	if s.err != nil {
		return nil, s.err
	}
	return &clubs.ListResult{Items: []clubs.ClubDTO{}}, nil
}

func (s *stubClubs) ChangeStatus(_ context.Context, _ auth.Actor, clubID uuid.UUID, status enums.ClubStatus) (*models.Club, error) {
	s.status = status
	if s.err != nil {
		return nil, s.err
	}
	return &models.Club{ID: clubID, Status: status}, nil
}

type stubEvents struct {
	upcoming bool
	input    events.CreateEventInput
	update   events.UpdateEventInput
	err      error
}

func (s *stubEvents) Create(_ context.Context, _ auth.Actor, clubID uuid.UUID, input events.CreateEventInput) (*models.Event, error) {
	s.input = input
	if s.err != nil {
		return nil, s.err
	}
	return &models.Event{ID: uuid.New(), ClubID: clubID, Title: input.Title, EventDate: input.EventDate}, nil
}

func (s *stubEvents) Update(_ context.Context, _ auth.Actor, eventID uuid.UUID, input events.UpdateEventInput) (*models.Event, error) {
	s.update = input
	if s.err != nil {
		return nil, s.err
	}
	event := &models.Event{ID: eventID, ClubID: uuid.New(), Title: "Open night"}
	if input.MaxAttendees != nil {
		event.MaxAttendees = *input.MaxAttendees
	}
	return event, nil
}

func (s *stubEvents) Get(_ context.Context, eventID uuid.UUID) (*models.Event, error) {
	return &models.Event{ID: eventID}, s.err
}

func (s *stubEvents) ListByClub(_ context.Context, clubID uuid.UUID, upcomingOnly bool) ([]models.Event, error) {
	s.upcoming = upcomingOnly
	if s.err != nil {
		return nil, s.err
	}
	return []models.Event{{ID: uuid.New(), ClubID: clubID, Title: "Open night", EventDate: time.Now().Add(time.Hour)}}, nil
}

type stubMemberships struct {
	joinedClub uuid.UUID
	expired    uuid.UUID
	err        error
}

func (s *stubMemberships) Join(_ context.Context, actor auth.Actor, clubID uuid.UUID) (*models.Membership, error) {
	s.joinedClub = clubID
	if s.err != nil {
		return nil, s.err
	}
	return &models.Membership{ID: uuid.New(), UserID: actor.UserID, ClubID: clubID, Status: enums.MembershipStatusActive}, nil
}

func (s *stubMemberships) Expire(_ context.Context, _ auth.Actor, membershipID uuid.UUID) (*models.Membership, error) {
	s.expired = membershipID
	if s.err != nil {
		return nil, s.err
	}
	return &models.Membership{ID: membershipID, Status: enums.MembershipStatusExpired}, nil
}

func (s *stubMemberships) SweepExpired(context.Context, time.Time, int) (int, error) {
	return 0, s.err
}

func (s *stubMemberships) ListMine(context.Context, auth.Actor, bool) ([]memberships.MembershipWithClub, error) {
	return nil, s.err
}

func (s *stubMemberships) ListClubMembers(context.Context, auth.Actor, uuid.UUID) ([]models.Membership, error) {
	return nil, s.err
}

type stubRegistrations struct {
	event     uuid.UUID
	cancelled uuid.UUID
	listed    uuid.UUID
	err       error
}

func (s *stubRegistrations) Register(_ context.Context, actor auth.Actor, eventID uuid.UUID) (*models.EventRegistration, error) {
	s.event = eventID
	if s.err != nil {
		return nil, s.err
	}
	return &models.EventRegistration{ID: uuid.New(), UserID: actor.UserID, EventID: eventID, Status: enums.RegistrationStatusRegistered}, nil
}

func (s *stubRegistrations) Cancel(_ context.Context, _ auth.Actor, registrationID uuid.UUID) (*models.EventRegistration, error) {
	s.cancelled = registrationID
	if s.err != nil {
		return nil, s.err
	}
	return &models.EventRegistration{ID: registrationID, Status: enums.RegistrationStatusCancelled}, nil
}

func (s *stubRegistrations) ListMine(context.Context, auth.Actor, bool) ([]registrations.RegistrationWithEvent, error) {
	return nil, s.err
}

func (s *stubRegistrations) ListEventRegistrations(_ context.Context, _ auth.Actor, eventID uuid.UUID) ([]models.EventRegistration, error) {
	s.listed = eventID
	return nil, s.err
}

type stubPayments struct {
	intentInput payments.CreateIntentInput
	confirmed   string
	result      *payments.ConfirmResult
	err         error
}

func (s *stubPayments) CreateIntent(_ context.Context, _ auth.Actor, input payments.CreateIntentInput) (*payments.IntentResult, error) {
	s.intentInput = input
	if s.err != nil {
		return nil, s.err
	}
	return &payments.IntentResult{IntentID: "pi_1", ClientSecret: "pi_1_secret", PaymentID: uuid.New(), Amount: 2500, Currency: "usd"}, nil
}

func (s *stubPayments) Confirm(_ context.Context, _ auth.Actor, intentID, _ string) (*payments.ConfirmResult, error) {
	s.confirmed = intentID
	if s.err != nil {
		return nil, s.err
	}
	return s.result, nil
}

type stubDashboard struct {
	role  enums.Role
	page  dashboard.PageRequest
	club  uuid.UUID
	event uuid.UUID
	err   error
}

func (s *stubDashboard) Overview(_ context.Context, _ auth.Actor, role enums.Role) (any, error) {
	s.role = role
	if s.err != nil {
		return nil, s.err
	}
	return map[string]string{"role": string(role)}, nil
}

func (s *stubDashboard) MemberOverview(context.Context, auth.Actor) (*dashboard.MemberOverview, error) {
	return nil, s.err
}

func (s *stubDashboard) ManagerOverview(context.Context, auth.Actor) (*dashboard.ManagerOverview, error) {
	return nil, s.err
}

func (s *stubDashboard) AdminOverview(context.Context, auth.Actor) (*dashboard.AdminOverview, error) {
	return nil, s.err
}

func (s *stubDashboard) MemberClubs(context.Context, auth.Actor) ([]memberships.MembershipWithClub, error) {
	return []memberships.MembershipWithClub{}, s.err
}

func (s *stubDashboard) MemberEvents(context.Context, auth.Actor) ([]registrations.RegistrationWithEvent, error) {
	return []registrations.RegistrationWithEvent{}, s.err
}

func (s *stubDashboard) MemberPayments(_ context.Context, _ auth.Actor, page dashboard.PageRequest) (*dashboard.PaymentPage, error) {
	s.page = page
	return &dashboard.PaymentPage{Items: []payments.PaymentDTO{}}, s.err
}

func (s *stubDashboard) ClubMembers(_ context.Context, _ auth.Actor, clubID uuid.UUID) ([]memberships.MembershipDTO, error) {
	s.club = clubID
	return []memberships.MembershipDTO{}, s.err
}

func (s *stubDashboard) ClubPayments(_ context.Context, _ auth.Actor, clubID uuid.UUID, page dashboard.PageRequest) (*dashboard.PaymentPage, error) {
	s.club = clubID
	s.page = page
	return &dashboard.PaymentPage{Items: []payments.PaymentDTO{}}, s.err
}

func (s *stubDashboard) EventRegistrations(_ context.Context, _ auth.Actor, eventID uuid.UUID) ([]registrations.RegistrationDTO, error) {
	s.event = eventID
	if s.err != nil {
		return nil, s.err
	}
	return []registrations.RegistrationDTO{{ID: uuid.New(), EventID: eventID, Status: enums.RegistrationStatusRegistered}}, nil
}

func (s *stubDashboard) AdminPayments(_ context.Context, _ auth.Actor, page dashboard.PageRequest) (*dashboard.PaymentPage, error) {
	s.page = page
	return &dashboard.PaymentPage{Items: []payments.PaymentDTO{}}, s.err
}
