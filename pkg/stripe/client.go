package stripe

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/stripe/stripe-go/v84"

	"github.com/clubsphere/clubsphere-backend/pkg/config"
	"github.com/clubsphere/clubsphere-backend/pkg/logger"
)

const (
	testEnv = "test"
	liveEnv = "live"

	signingSecretPrefix = "whsec_"
)

// keyPrefixes lists the secret and restricted key prefixes accepted per env.
var keyPrefixes = map[string][]string{
	testEnv: {"sk_test_", "rk_test_"},
	liveEnv: {"sk_live_", "rk_live_"},
}

var (
	errAPIKeyRequired   = errors.New("stripe api key is required")
	errSecretRequired   = errors.New("stripe webhook secret is required")
	errSecretMalformed  = fmt.Errorf("stripe webhook secret must start with %q", signingSecretPrefix)
	errInvalidStripeEnv = fmt.Errorf("stripe environment must be %q or %q", testEnv, liveEnv)
)

// Client carries the Stripe API handle used by the payment gateway and the
// signing secret used to verify webhook deliveries.
type Client struct {
	api           *stripe.Client
	environment   string
	signingSecret string
}

func NewClient(ctx context.Context, cfg config.StripeConfig, logg *logger.Logger) (*Client, error) {
	env := cfg.Environment()
	if _, ok := keyPrefixes[env]; !ok {
		return nil, errInvalidStripeEnv
	}

	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, errAPIKeyRequired
	}
	if err := validateAPIKey(env, apiKey); err != nil {
		return nil, err
	}

	signingSecret := strings.TrimSpace(cfg.Secret)
	switch {
	case signingSecret == "":
		return nil, errSecretRequired
	case !strings.HasPrefix(signingSecret, signingSecretPrefix):
		return nil, errSecretMalformed
	}

	if logg != nil {
		logg.Info(logg.WithFields(ctx, map[string]any{
			"stripe_env": env,
			"stripe_key": redact(apiKey),
		}), "stripe client initialized")
	}

	return &Client{
		api:           stripe.NewClient(apiKey),
		environment:   env,
		signingSecret: signingSecret,
	}, nil
}

func (c *Client) API() *stripe.Client {
	if c == nil {
		return nil
	}
	return c.api
}

// Environment reports "test" or "live".
func (c *Client) Environment() string {
	if c == nil {
		return ""
	}
	return c.environment
}

func (c *Client) SigningSecret() string {
	if c == nil {
		return ""
	}
	return c.signingSecret
}

func validateAPIKey(env, key string) error {
	for _, prefix := range keyPrefixes[env] {
		if strings.HasPrefix(key, prefix) {
			return nil
		}
	}
	return fmt.Errorf("stripe environment %q requires one of %s keys", env, strings.Join(keyPrefixes[env], "/"))
}

// redact keeps the key mode and last four characters for log correlation.
func redact(key string) string {
	if len(key) <= 12 {
		return "****"
	}
	return key[:8] + "****" + key[len(key)-4:]
}
