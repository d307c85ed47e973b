package pubsub

import (
	"context"
	"testing"

	"github.com/angelmondragon/chorepay-backend/pkg/config"
)

func TestTopicResourceName(t *testing.T) {
	c := &Client{projectID: "chorepay-dev"}
	cases := []struct {
		in   string
		want string
	}{
		{in: "ledger-events", want: "projects/chorepay-dev/topics/ledger-events"},
		{in: " projects/other/topics/notification-events", want: "projects/other/topics/notification-events"},
		{in: "  ", want: ""},
	}
	for _, tc := range cases {
		if got := c.topicResourceName(tc.in); got != tc.want {
			t.Fatalf("topicResourceName(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}

	if got := (&Client{}).topicResourceName("ledger-events"); got != "" {
		t.Fatalf("expected empty name without project, got %q", got)
	}
}

func TestTopicNamesSkipsBlanksAndDuplicates(t *testing.T) {
	names := topicNames(config.PubSubConfig{NotificationTopic: "events", LedgerTopic: " events "})
	if len(names) != 1 || names[0] != "events" {
		t.Fatalf("unexpected topics %v", names)
	}
	if names := topicNames(config.PubSubConfig{}); len(names) != 0 {
		t.Fatalf("expected no topics, got %v", names)
	}
}

func TestNilClientGuards(t *testing.T) {
	var c *Client
	if c.Publisher("x") != nil {
		t.Fatal("expected nil publisher from nil client")
	}
	if err := c.Ping(context.Background()); err == nil {
		t.Fatal("expected ping error from nil client")
	}
	if err := c.Close(); err != nil {
		t.Fatalf("close should be a no-op, got %v", err)
	}
}

func TestNewClientRequiresProject(t *testing.T) {
	if _, err := NewClient(context.Background(), config.GCPConfig{}, config.PubSubConfig{}, nil); err != errProjectIDRequired {
		t.Fatalf("expected project id error, got %v", err)
	}
}
