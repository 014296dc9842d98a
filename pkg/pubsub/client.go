// Package pubsub wraps the Pub/Sub v2 client for the outbox publisher: topic
// checks at startup, one cached publisher per topic and ordered delivery per
// aggregate when enabled.
package pubsub

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	pubsub "cloud.google.com/go/pubsub/v2"
	"cloud.google.com/go/pubsub/v2/apiv1/pubsubpb"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/clubsphere/clubsphere-backend/pkg/config"
	"github.com/clubsphere/clubsphere-backend/pkg/logger"
)

var (
	errProjectIDRequired = errors.New("gcp project id is required")
	errNoTopics          = errors.New("pubsub domain topic is required")
	errNotInitialized    = errors.New("pubsub client not initialized")
)

type Client struct {
	client    *pubsub.Client
	projectID string
	cfg       config.PubSubConfig
	logg      *logger.Logger

	mu         sync.Mutex
	publishers map[string]*pubsub.Publisher
}

// NewClient connects and checks the configured topics. PUBSUB_EMULATOR_HOST
// is honoured by the underlying client.
func NewClient(ctx context.Context, gcp config.GCPConfig, cfg config.PubSubConfig, logg *logger.Logger) (*Client, error) {
	projectID := strings.TrimSpace(gcp.ProjectID)
	if projectID == "" {
		return nil, errProjectIDRequired
	}

	psClient, err := pubsub.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}

	c := &Client{
		client:     psClient,
		projectID:  projectID,
		cfg:        cfg,
		logg:       logg,
		publishers: make(map[string]*pubsub.Publisher),
	}
	if err := c.checkTopics(ctx, cfg.CreateTopics); err != nil {
		_ = psClient.Close()
		return nil, err
	}

	if logg != nil {
		logg.Info(logg.WithFields(ctx, map[string]any{
			"project":  projectID,
			"topics":   topicNames(cfg),
			"ordering": cfg.Ordering,
		}), "pubsub client initialized")
	}
	return c, nil
}

func topicNames(cfg config.PubSubConfig) []string {
	domain := strings.TrimSpace(cfg.DomainTopic)
	if domain == "" {
		return nil
	}
	names := []string{domain}
	if dlq := strings.TrimSpace(cfg.DLQTopic); dlq != "" {
		names = append(names, dlq)
	}
	return names
}

func (c *Client) checkTopics(ctx context.Context, create bool) error {
	names := topicNames(c.cfg)
	if len(names) == 0 {
		return errNoTopics
	}
	for _, name := range names {
		if err := c.checkTopic(ctx, name, create); err != nil {
			return err
		}
	}
	return nil
}

func (c *Client) checkTopic(ctx context.Context, name string, create bool) error {
	fullName := TopicResourceName(c.projectID, name)
	if fullName == "" {
		return fmt.Errorf("topic %q not configured", name)
	}

	_, err := c.client.TopicAdminClient.GetTopic(ctx, &pubsubpb.GetTopicRequest{Topic: fullName})
	switch {
	case err == nil:
		return nil
	case status.Code(err) != codes.NotFound:
		return fmt.Errorf("checking topic %q: %w", name, err)
	case !create:
		return fmt.Errorf("topic %q does not exist", name)
	}

	_, err = c.client.TopicAdminClient.CreateTopic(ctx, &pubsubpb.Topic{Name: fullName})
	if err != nil && status.Code(err) != codes.AlreadyExists {
		return fmt.Errorf("creating topic %q: %w", name, err)
	}
	if c.logg != nil {
		c.logg.Info(c.logg.WithField(ctx, "topic", fullName), "pubsub topic created")
	}
	return nil
}

// Publisher returns the cached publisher for a topic id or resource name.
func (c *Client) Publisher(name string) *pubsub.Publisher {
	if c == nil || c.client == nil {
		return nil
	}
	fullName := TopicResourceName(c.projectID, name)
	if fullName == "" {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	pub, ok := c.publishers[fullName]
	if !ok {
		pub = c.client.Publisher(fullName)
		pub.EnableMessageOrdering = c.cfg.Ordering
		c.publishers[fullName] = pub
	}
	return pub
}

// Ordering reports whether publishers were created with message ordering.
func (c *Client) Ordering() bool {
	return c != nil && c.cfg.Ordering
}

// Ping re-checks the configured topics without creating any.
func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.client == nil {
		return errNotInitialized
	}
	return c.checkTopics(ctx, false)
}

// Close flushes every cached publisher before closing the client.
func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	c.mu.Lock()
	for name, pub := range c.publishers {
		pub.Stop()
		delete(c.publishers, name)
	}
	c.mu.Unlock()
	return c.client.Close()
}

// TopicResourceName expands a short topic id into projects/<p>/topics/<id>.
// Full resource names pass through untouched.
func TopicResourceName(projectID, name string) string {
	n := strings.TrimSpace(name)
	if n == "" {
		return ""
	}
	if strings.HasPrefix(n, "projects/") && strings.Contains(n, "/topics/") {
		return n
	}
	p := strings.TrimSpace(projectID)
	if p == "" {
		return ""
	}
	return "projects/" + p + "/topics/" + n
}
