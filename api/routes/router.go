package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/clubsphere/clubsphere-backend/api/controllers"
	webhookcontrollers "github.com/clubsphere/clubsphere-backend/api/controllers/webhooks"
	"github.com/clubsphere/clubsphere-backend/api/middleware"
	"github.com/clubsphere/clubsphere-backend/internal/clubs"
	"github.com/clubsphere/clubsphere-backend/internal/dashboard"
	"github.com/clubsphere/clubsphere-backend/internal/events"
	"github.com/clubsphere/clubsphere-backend/internal/memberships"
	"github.com/clubsphere/clubsphere-backend/internal/registrations"
	"github.com/clubsphere/clubsphere-backend/pkg/config"
	"github.com/clubsphere/clubsphere-backend/pkg/enums"
	"github.com/clubsphere/clubsphere-backend/pkg/logger"
	"github.com/clubsphere/clubsphere-backend/pkg/metrics"
	pkgredis "github.com/clubsphere/clubsphere-backend/pkg/redis"
)

// CacheStore is the Redis surface the HTTP layer needs: idempotency replay,
// write rate limiting and the readiness ping.
type CacheStore interface {
	pkgredis.IdempotencyStore
	FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error)
	Ping(ctx context.Context) error
}

type stripeSigner interface {
	SigningSecret() string
}

type webhookGuard interface {
	CheckAndMark(ctx context.Context, eventID string) (bool, error)
	Delete(ctx context.Context, eventID string) error
}

// Dependencies carries everything the router mounts. Nil services answer 500
// on their routes instead of panicking.
type Dependencies struct {
	DB            controllers.Pinger
	Cache         CacheStore
	Metrics       *prometheus.Registry
	Clubs         clubs.Service
	Events        events.Service
	Memberships   memberships.Service
	Registrations registrations.Service
	Payments      controllers.PaymentService
	Dashboard     dashboard.Service
	StripeClient  stripeSigner
	StripeWebhook webhookcontrollers.StripeWebhookService
	WebhookGuard  webhookGuard
}

func NewRouter(cfg *config.Config, logg *logger.Logger, deps Dependencies) http.Handler {
	r := chi.NewRouter()

	var httpMetrics *metrics.HTTPMetrics
	if deps.Metrics != nil {
		httpMetrics = metrics.NewHTTPMetrics(deps.Metrics)
	}

	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.Metrics(httpMetrics),
		middleware.CORS(cfg.App.AllowedOrigins()),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, deps.DB, deps.Cache))
	})

	if deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(deps.Metrics, promhttp.HandlerOpts{}))
	}

	r.Route("/webhooks", func(r chi.Router) {
		r.Post("/stripe", webhookcontrollers.StripeWebhook(deps.StripeWebhook, deps.StripeClient, deps.WebhookGuard, logg))
	})

	writePolicy := middleware.NewRateLimitPolicy("write", cfg.RateLimit.Window, cfg.RateLimit.WriteLimit)

	r.Route("/api", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(middleware.OptionalAuth(cfg.JWT, logg))
			r.Get("/clubs", controllers.ClubList(deps.Clubs, logg))
			r.Get("/clubs/{clubId}", controllers.ClubGet(deps.Clubs, logg))
			r.Get("/clubs/{clubId}/events", controllers.ClubEvents(deps.Events, logg))
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(cfg.JWT, logg))
			r.Use(middleware.RateLimit(writePolicy, deps.Cache, logg))
			r.Use(middleware.Idempotency(deps.Cache, cfg.RateLimit.IdempotencyTTL, logg))

			r.With(middleware.RequireRole(logg, enums.RoleManager)).Post("/clubs", controllers.ClubCreate(deps.Clubs, logg))
			r.With(middleware.RequireRole(logg, enums.RoleManager)).Post("/clubs/{clubId}/events", controllers.ClubCreateEvent(deps.Events, logg))
			r.With(middleware.RequireRole(logg, enums.RoleManager)).Patch("/events/{eventId}", controllers.EventUpdate(deps.Events, logg))
			r.With(middleware.RequireRole(logg, enums.RoleAdmin)).Patch("/clubs/{clubId}/status", controllers.ClubChangeStatus(deps.Clubs, logg))

			r.Post("/memberships", controllers.MembershipJoin(deps.Memberships, logg))
			r.Patch("/memberships/{membershipId}/status", controllers.MembershipChangeStatus(deps.Memberships, logg))

			r.Post("/event-registrations", controllers.RegistrationCreate(deps.Registrations, logg))
			r.Put("/event-registrations/{registrationId}/cancel", controllers.RegistrationCancel(deps.Registrations, logg))

			r.Route("/payments", func(r chi.Router) {
				r.Post("/intent", controllers.PaymentIntent(deps.Payments, logg))
				r.Post("/confirm", controllers.PaymentConfirm(deps.Payments, logg))
			})

			r.Route("/dashboard", func(r chi.Router) {
				managerOnly := middleware.RequireRole(logg, enums.RoleManager)
				adminOnly := middleware.RequireRole(logg, enums.RoleAdmin)

				r.Get("/{role}/overview", controllers.DashboardOverview(deps.Dashboard, logg))
				r.Get("/member/clubs", controllers.DashboardMemberClubs(deps.Dashboard, logg))
				r.Get("/member/events", controllers.DashboardMemberEvents(deps.Dashboard, logg))
				r.Get("/member/payments", controllers.DashboardMemberPayments(deps.Dashboard, logg))
				r.With(managerOnly).Get("/manager/clubs/{clubId}/members", controllers.DashboardClubMembers(deps.Dashboard, logg))
				r.With(managerOnly).Get("/manager/clubs/{clubId}/payments", controllers.DashboardClubPayments(deps.Dashboard, logg))
				r.With(managerOnly).Get("/manager/events/{eventId}/registrations", controllers.DashboardEventRegistrations(deps.Dashboard, logg))
				r.With(adminOnly).Get("/admin/payments", controllers.DashboardAdminPayments(deps.Dashboard, logg))
			})
		})
	})

	return r
}
