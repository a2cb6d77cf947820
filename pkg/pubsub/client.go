// Package pubsub wraps the Pub/Sub v2 client with the project's resource
// naming and startup checks.
package pubsub

import (
	"context"
	"errors"
	"fmt"
	"strings"

	pubsub "cloud.google.com/go/pubsub/v2"
	"cloud.google.com/go/pubsub/v2/apiv1/pubsubpb"
	"go.uber.org/multierr"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/foodrescue/rescue-backend/pkg/config"
	"github.com/foodrescue/rescue-backend/pkg/logger"
)

type kind string

const (
	kindTopic        kind = "topics"
	kindSubscription kind = "subscriptions"
)

var errNotInitialized = errors.New("pubsub client not initialized")

type Client struct {
	client   *pubsub.Client
	project  string
	receive  config.PubSubConfig
	required []resource
}

type resource struct {
	kind kind
	name string
}

// NewClient connects to Pub/Sub. Call RequireTopics or RequireSubscriptions
// afterwards for the resources the process depends on.
func NewClient(ctx context.Context, gcp config.GCPConfig, cfg config.PubSubConfig, logg *logger.Logger) (*Client, error) {
	project := strings.TrimSpace(gcp.ProjectID)
	if project == "" {
		return nil, errors.New("gcp project id is required")
	}
	psClient, err := pubsub.NewClient(ctx, project, gcp.ClientOptions()...)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}
	if logg != nil {
		logg.Info(logg.WithField(ctx, "gcp_project", project), "pubsub client initialized")
	}
	return &Client{client: psClient, project: project, receive: cfg}, nil
}

// RequireTopics fails unless every topic exists. The topics are re-checked
// by Ping.
func (c *Client) RequireTopics(ctx context.Context, ids ...string) error {
	return c.require(ctx, kindTopic, ids)
}

// RequireSubscriptions fails unless every subscription exists. The
// subscriptions are re-checked by Ping.
func (c *Client) RequireSubscriptions(ctx context.Context, ids ...string) error {
	return c.require(ctx, kindSubscription, ids)
}

func (c *Client) require(ctx context.Context, k kind, ids []string) error {
	if c == nil || c.client == nil {
		return errNotInitialized
	}
	var errs error
	for _, id := range ids {
		name := resourceName(c.project, k, id)
		if name == "" {
			errs = multierr.Append(errs, fmt.Errorf("%s: blank name", k))
			continue
		}
		r := resource{kind: k, name: name}
		if err := c.exists(ctx, r); err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		c.required = append(c.required, r)
	}
	return errs
}

func (c *Client) exists(ctx context.Context, r resource) error {
	var err error
	if r.kind == kindTopic {
		_, err = c.client.TopicAdminClient.GetTopic(ctx, &pubsubpb.GetTopicRequest{Topic: r.name})
	} else {
		_, err = c.client.SubscriptionAdminClient.GetSubscription(ctx, &pubsubpb.GetSubscriptionRequest{Subscription: r.name})
	}
	switch {
	case err == nil:
		return nil
	case status.Code(err) == codes.NotFound:
		return fmt.Errorf("%s does not exist", r.name)
	default:
		return fmt.Errorf("checking %s: %w", r.name, err)
	}
}

// Ping re-checks every resource registered through Require*.
func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.client == nil {
		return errNotInitialized
	}
	var errs error
	for _, r := range c.required {
		errs = multierr.Append(errs, c.exists(ctx, r))
	}
	return errs
}

// Subscriber returns a receiver for the subscription with the configured
// flow control, or nil for a blank id.
func (c *Client) Subscriber(id string) *pubsub.Subscriber {
	if c == nil || c.client == nil {
		return nil
	}
	name := resourceName(c.project, kindSubscription, id)
	if name == "" {
		return nil
	}
	sub := c.client.Subscriber(name)
	if c.receive.MaxOutstanding > 0 {
		sub.ReceiveSettings.MaxOutstandingMessages = c.receive.MaxOutstanding
	}
	if c.receive.ReceiveGoroutines > 0 {
		sub.ReceiveSettings.NumGoroutines = c.receive.ReceiveGoroutines
	}
	return sub
}

// Publisher returns a publisher for the topic, or nil for a blank id.
func (c *Client) Publisher(id string) *pubsub.Publisher {
	if c == nil || c.client == nil {
		return nil
	}
	name := resourceName(c.project, kindTopic, id)
	if name == "" {
		return nil
	}
	return c.client.Publisher(name)
}

func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

// resourceName expands an ID to projects/<project>/<kind>/<id>. Full
// resource names pass through unchanged.
func resourceName(project string, k kind, id string) string {
	id = strings.TrimSpace(id)
	switch {
	case id == "":
		return ""
	case strings.HasPrefix(id, "projects/") && strings.Contains(id, "/"+string(k)+"/"):
		return id
	case project == "":
		return ""
	default:
		return "projects/" + project + "/" + string(k) + "/" + id
	}
}
