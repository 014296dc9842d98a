package payments

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/clubsphere/clubsphere-backend/pkg/config"
	"github.com/clubsphere/clubsphere-backend/pkg/metrics"
)

const (
	opCreateIntent   = "create_intent"
	opRetrieveIntent = "retrieve_intent"
	opCancelIntent   = "cancel_intent"
)

// GuardedGateway throttles outbound gateway calls and trips a breaker after
// consecutive unavailability errors so callers fail fast with ErrGatewayUnavailable.
type GuardedGateway struct {
	next    Gateway
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker
	metrics *metrics.PaymentMetrics
}

func NewGuardedGateway(next Gateway, cfg config.PaymentsConfig, m *metrics.PaymentMetrics) (*GuardedGateway, error) {
	if next == nil {
		return nil, errors.New("gateway required")
	}
	rps := cfg.GatewayRatePerSecond
	if rps <= 0 {
		rps = 20
	}
	burst := cfg.GatewayBurst
	if burst <= 0 {
		burst = int(rps)
	}
	failures := cfg.BreakerFailures
	if failures == 0 {
		failures = 5
	}
	openTimeout := cfg.BreakerOpenTimeout
	if openTimeout <= 0 {
		openTimeout = 30 * time.Second
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "payment-gateway",
		Timeout: openTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		IsSuccessful: func(err error) bool {
			// Declines and missing intents are answers, not outages.
			return err == nil || !errors.Is(err, ErrGatewayUnavailable)
		},
	})

	return &GuardedGateway{
		next:    next,
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
		breaker: breaker,
		metrics: m,
	}, nil
}

func (g *GuardedGateway) CreateIntent(ctx context.Context, req CreateIntentRequest) (*Intent, error) {
	return g.call(ctx, opCreateIntent, func() (*Intent, error) {
		return g.next.CreateIntent(ctx, req)
	})
}

func (g *GuardedGateway) GetIntent(ctx context.Context, intentID string) (*Intent, error) {
	return g.call(ctx, opRetrieveIntent, func() (*Intent, error) {
		return g.next.GetIntent(ctx, intentID)
	})
}

func (g *GuardedGateway) CancelIntent(ctx context.Context, intentID string) (*Intent, error) {
	return g.call(ctx, opCancelIntent, func() (*Intent, error) {
		return g.next.CancelIntent(ctx, intentID)
	})
}

// State exposes the breaker state for readiness output.
func (g *GuardedGateway) State() string {
	return g.breaker.State().String()
}

func (g *GuardedGateway) call(ctx context.Context, op string, fn func() (*Intent, error)) (*Intent, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		g.metrics.IncGatewayError(op)
		return nil, errors.Join(ErrGatewayUnavailable, fmt.Errorf("rate limit wait: %w", err))
	}
	res, err := g.breaker.Execute(func() (interface{}, error) {
		return fn()
	})
	if err != nil {
		g.metrics.IncGatewayError(op)
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, errors.Join(ErrGatewayUnavailable, err)
		}
		return nil, err
	}
	intent, _ := res.(*Intent)
	if intent == nil {
		return nil, fmt.Errorf("%s: empty gateway response", op)
	}
	return intent, nil
}
