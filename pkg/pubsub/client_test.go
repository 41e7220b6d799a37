package pubsub

import (
	"context"
	"errors"
	"testing"

	"github.com/angelmondragon/tableorders-backend/pkg/config"
)

func TestResourceNames(t *testing.T) {
	c := &Client{projectID: "tables-prod"}

	if got := c.resourceName(kindSubscription, "alerts"); got != "projects/tables-prod/subscriptions/alerts" {
		t.Fatalf("unexpected subscription name %q", got)
	}
	full := "projects/other/subscriptions/alerts"
	if got := c.resourceName(kindSubscription, full); got != full {
		t.Fatalf("full names should pass through, got %q", got)
	}
	if got := c.resourceName(kindTopic, " sessions "); got != "projects/tables-prod/topics/sessions" {
		t.Fatalf("unexpected topic name %q", got)
	}
	if got := c.resourceName(kindTopic, ""); got != "" {
		t.Fatalf("empty topic should resolve to empty, got %q", got)
	}
	if got := (&Client{}).resourceName(kindTopic, "sessions"); got != "" {
		t.Fatalf("missing project should resolve to empty, got %q", got)
	}
}

func TestConfiguredResourcesSkipsBlank(t *testing.T) {
	if res := configuredResources(config.PubSubConfig{AlertsSubscription: "  "}); len(res) != 0 {
		t.Fatalf("expected no resources, got %v", res)
	}
	res := configuredResources(config.PubSubConfig{SessionsTopic: "sessions", AlertsSubscription: "alerts"})
	if len(res) != 2 || res[0] != (resource{kind: kindTopic, name: "sessions"}) || res[1] != (resource{kind: kindSubscription, name: "alerts"}) {
		t.Fatalf("unexpected resources %v", res)
	}
}

func TestNilClientHandles(t *testing.T) {
	var c *Client
	if c.Publisher("sessions") != nil || c.SessionsPublisher() != nil {
		t.Fatal("nil client should not return a publisher")
	}
	if c.Subscription("alerts") != nil || c.AlertsSubscription() != nil {
		t.Fatal("nil client should not return a subscriber")
	}
	if err := c.Ping(context.Background()); !errors.Is(err, errNotInitialized) {
		t.Fatalf("expected errNotInitialized, got %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("close on nil client: %v", err)
	}
}

func TestNewClientRequiresProject(t *testing.T) {
	if _, err := NewClient(context.Background(), config.GCPConfig{ProjectID: " "}, config.PubSubConfig{}, nil); !errors.Is(err, errProjectIDRequired) {
		t.Fatalf("expected errProjectIDRequired, got %v", err)
	}
}
