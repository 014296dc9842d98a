package memberships

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"pgregory.net/rapid"

	"github.com/clubsphere/clubsphere-backend/internal/clubs"
	"github.com/clubsphere/clubsphere-backend/internal/payments"
	"github.com/clubsphere/clubsphere-backend/pkg/auth"
	"github.com/clubsphere/clubsphere-backend/pkg/db/models"
	"github.com/clubsphere/clubsphere-backend/pkg/db/sqlitetest"
	"github.com/clubsphere/clubsphere-backend/pkg/enums"
	pkgerrors "github.com/clubsphere/clubsphere-backend/pkg/errors"
	"github.com/clubsphere/clubsphere-backend/pkg/logger"
	"github.com/clubsphere/clubsphere-backend/pkg/outbox"
)

type stubIntents struct {
	calls int
	err   error
}

func (s *stubIntents) CreateIntent(_ context.Context, actor auth.Actor, input payments.CreateIntentInput) (*payments.IntentResult, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return &payments.IntentResult{
		IntentID:     "pi_test",
		ClientSecret: "pi_test_secret",
		PaymentID:    uuid.New(),
		Amount:       1000,
		Currency:     "usd",
	}, nil
}

type fixture struct {
	svc     Service
	conn    *gorm.DB
	intents *stubIntents
	now     time.Time
}

func newFixture(t *testing.T, term time.Duration) *fixture {
	t.Helper()
	client, conn := sqlitetest.Client(t)
	f := &fixture{conn: conn, intents: &stubIntents{}, now: time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC)}
	svc, err := NewService(ServiceParams{
		Repo:     NewRepository(conn),
		Clubs:    clubs.NewRepository(conn),
		Payments: f.intents,
		Tx:       client,
		Outbox:   outbox.NewService(outbox.NewRepository(conn), nil),
		Logger:   logger.New(logger.Options{ServiceName: "test", Output: io.Discard}),
		Term:     term,
		Now:      func() time.Time { return f.now },
	})
	require.NoError(t, err)
	f.svc = svc
	return f
}

func (f *fixture) club(t *testing.T, fee int64, status enums.ClubStatus) models.Club {
	t.Helper()
	club := models.Club{Name: "Readers", Category: enums.ClubCategoryLiterature, ManagerID: uuid.New(), MembershipFeeCents: fee, Status: status}
	require.NoError(t, f.conn.Create(&club).Error)
	return club
}

func (f *fixture) activeCount(t *testing.T, userID, clubID uuid.UUID) int64 {
	t.Helper()
	var count int64
	require.NoError(t, f.conn.Model(&models.Membership{}).
		Where("user_id = ? AND club_id = ? AND status = ?", userID, clubID, enums.MembershipStatusActive).
		Count(&count).Error)
	return count
}

func member() auth.Actor {
	return auth.Actor{UserID: uuid.New(), Role: enums.RoleMember}
}

func TestJoinFreeClubCreatesActiveMembership(t *testing.T) {
	f := newFixture(t, 0)
	club := f.club(t, 0, enums.ClubStatusApproved)
	actor := member()

	m, err := f.svc.Join(context.Background(), actor, club.ID)
	require.NoError(t, err)
	require.Equal(t, enums.MembershipStatusActive, m.Status)
	require.Nil(t, m.PaymentID)
	require.Nil(t, m.ExpiresAt)
	require.Zero(t, f.intents.calls)

	var payments int64
	require.NoError(t, f.conn.Model(&models.Payment{}).Count(&payments).Error)
	require.Zero(t, payments)
}

func TestJoinTwiceReportsAlreadyMember(t *testing.T) {
	f := newFixture(t, 0)
	club := f.club(t, 0, enums.ClubStatusApproved)
	actor := member()

	_, err := f.svc.Join(context.Background(), actor, club.ID)
	require.NoError(t, err)
	_, err = f.svc.Join(context.Background(), actor, club.ID)
	require.Equal(t, pkgerrors.CodeAlreadyMember, pkgerrors.CodeOf(err))
	require.EqualValues(t, 1, f.activeCount(t, actor.UserID, club.ID))
}

func TestConcurrentJoinsKeepOneActiveMembership(t *testing.T) {
	f := newFixture(t, 0)
	club := f.club(t, 0, enums.ClubStatusApproved)
	actor := member()

	const callers = 10
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		conflicts int
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.Join(context.Background(), actor, club.ID)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case pkgerrors.IsCode(err, pkgerrors.CodeAlreadyMember):
				conflicts++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	require.Equal(t, 1, succeeded)
	require.Equal(t, callers-1, conflicts)
	require.EqualValues(t, 1, f.activeCount(t, actor.UserID, club.ID))
}

func TestJoinPaidClubReturnsPaymentRequired(t *testing.T) {
	f := newFixture(t, 0)
	club := f.club(t, 1000, enums.ClubStatusApproved)

	_, err := f.svc.Join(context.Background(), member(), club.ID)
	require.Equal(t, pkgerrors.CodePaymentRequired, pkgerrors.CodeOf(err))
	details, ok := pkgerrors.As(err).Details().(*payments.IntentResult)
	require.True(t, ok)
	require.Equal(t, "pi_test", details.IntentID)
	require.Equal(t, int64(1000), details.Amount)

	var count int64
	require.NoError(t, f.conn.Model(&models.Membership{}).Count(&count).Error)
	require.Zero(t, count)
}

func TestJoinRejectedClubKeepsExistingMemberships(t *testing.T) {
	f := newFixture(t, 0)
	club := f.club(t, 0, enums.ClubStatusApproved)
	early := member()
	_, err := f.svc.Join(context.Background(), early, club.ID)
	require.NoError(t, err)

	require.NoError(t, f.conn.Model(&models.Club{}).Where("id = ?", club.ID).Update("status", enums.ClubStatusRejected).Error)

	_, err = f.svc.Join(context.Background(), member(), club.ID)
	require.Equal(t, pkgerrors.CodeClubNotApproved, pkgerrors.CodeOf(err))
	require.EqualValues(t, 1, f.activeCount(t, early.UserID, club.ID))

	_, err = f.svc.Join(context.Background(), member(), uuid.New())
	require.Equal(t, pkgerrors.CodeNotFound, pkgerrors.CodeOf(err))
}

func TestExpireByManagerIsIdempotent(t *testing.T) {
	f := newFixture(t, 0)
	club := f.club(t, 0, enums.ClubStatusApproved)
	actor := member()
	m, err := f.svc.Join(context.Background(), actor, club.ID)
	require.NoError(t, err)

	_, err = f.svc.Expire(context.Background(), member(), m.ID)
	require.Equal(t, pkgerrors.CodeForbidden, pkgerrors.CodeOf(err))

	manager := auth.Actor{UserID: club.ManagerID, Role: enums.RoleManager}
	expired, err := f.svc.Expire(context.Background(), manager, m.ID)
	require.NoError(t, err)
	require.Equal(t, enums.MembershipStatusExpired, expired.Status)
	require.NotNil(t, expired.ExpiredAt)

	again, err := f.svc.Expire(context.Background(), auth.Actor{UserID: uuid.New(), Role: enums.RoleAdmin}, m.ID)
	require.NoError(t, err)
	require.Equal(t, expired.ExpiredAt.Unix(), again.ExpiredAt.Unix())

	var events int64
	require.NoError(t, f.conn.Model(&models.OutboxEvent{}).Where("event_type = ?", enums.EventMembershipExpired).Count(&events).Error)
	require.EqualValues(t, 1, events)

	// Expired members can join again.
	_, err = f.svc.Join(context.Background(), actor, club.ID)
	require.NoError(t, err)
}

func TestSweepExpiredOnlyTouchesLapsedTerms(t *testing.T) {
	f := newFixture(t, 30*24*time.Hour)
	club := f.club(t, 0, enums.ClubStatusApproved)

	early, err := f.svc.Join(context.Background(), member(), club.ID)
	require.NoError(t, err)
	require.NotNil(t, early.ExpiresAt)

	f.now = f.now.Add(20 * 24 * time.Hour)
	late, err := f.svc.Join(context.Background(), member(), club.ID)
	require.NoError(t, err)

	n, err := f.svc.SweepExpired(context.Background(), f.now.Add(15*24*time.Hour), 100)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	var stored models.Membership
	require.NoError(t, f.conn.First(&stored, "id = ?", early.ID).Error)
	require.Equal(t, enums.MembershipStatusExpired, stored.Status)
	require.NoError(t, f.conn.First(&stored, "id = ?", late.ID).Error)
	require.Equal(t, enums.MembershipStatusActive, stored.Status)

	n, err = f.svc.SweepExpired(context.Background(), f.now.Add(15*24*time.Hour), 100)
	require.NoError(t, err)
	require.Zero(t, n)
}

func TestListMineAndClubMembers(t *testing.T) {
	f := newFixture(t, 0)
	a := f.club(t, 0, enums.ClubStatusApproved)
	b := f.club(t, 0, enums.ClubStatusApproved)
	actor := member()
	_, err := f.svc.Join(context.Background(), actor, a.ID)
	require.NoError(t, err)
	mb, err := f.svc.Join(context.Background(), actor, b.ID)
	require.NoError(t, err)
	_, err = f.svc.Expire(context.Background(), auth.Actor{UserID: b.ManagerID, Role: enums.RoleManager}, mb.ID)
	require.NoError(t, err)

	all, err := f.svc.ListMine(context.Background(), actor, false)
	require.NoError(t, err)
	require.Len(t, all, 2)
	require.Equal(t, "Readers", all[0].ClubName)

	active, err := f.svc.ListMine(context.Background(), actor, true)
	require.NoError(t, err)
	require.Len(t, active, 1)
	require.Equal(t, a.ID, active[0].ClubID)

	_, err = f.svc.ListClubMembers(context.Background(), actor, a.ID)
	require.Equal(t, pkgerrors.CodeForbidden, pkgerrors.CodeOf(err))
	members, err := f.svc.ListClubMembers(context.Background(), auth.Actor{UserID: a.ManagerID, Role: enums.RoleManager}, a.ID)
	require.NoError(t, err)
	require.Len(t, members, 1)
}

// Any interleaving of joins and expiries leaves at most one active membership per user.
func TestMembershipUniquenessProperty(t *testing.T) {
	f := newFixture(t, 0)
	manager := uuid.New()

	rapid.Check(t, func(rt *rapid.T) {
		club := models.Club{Name: "Prop", Category: enums.ClubCategoryGaming, ManagerID: manager, Status: enums.ClubStatusApproved}
		if err := f.conn.Create(&club).Error; err != nil {
			rt.Fatalf("create club: %v", err)
		}
		users := []auth.Actor{member(), member(), member()}
		owner := auth.Actor{UserID: manager, Role: enums.RoleManager}

		steps := rapid.IntRange(1, 25).Draw(rt, "steps")
		for i := 0; i < steps; i++ {
			user := users[rapid.IntRange(0, len(users)-1).Draw(rt, "user")]
			if rapid.Bool().Draw(rt, "join") {
				_, err := f.svc.Join(context.Background(), user, club.ID)
				if err != nil && !pkgerrors.IsCode(err, pkgerrors.CodeAlreadyMember) {
					rt.Fatalf("join: %v", err)
				}
				continue
			}
			var active models.Membership
			err := f.conn.Where("user_id = ? AND club_id = ? AND status = ?", user.UserID, club.ID, enums.MembershipStatusActive).
				First(&active).Error
			if err != nil {
				continue
			}
			if _, err := f.svc.Expire(context.Background(), owner, active.ID); err != nil {
				rt.Fatalf("expire: %v", err)
			}
		}

		for _, user := range users {
			var count int64
			if err := f.conn.Model(&models.Membership{}).
				Where("user_id = ? AND club_id = ? AND status = ?", user.UserID, club.ID, enums.MembershipStatusActive).
				Count(&count).Error; err != nil {
				rt.Fatalf("count: %v", err)
			}
			if count > 1 {
				rt.Fatalf("user %s has %d active memberships", user.UserID, count)
			}
		}
	})
}
