package redis

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/aretw0/stop-on-call/internal/logging"
	"github.com/aretw0/stop-on-call/pkg/lifecycle"
	backend "github.com/redis/go-redis/v9"
)

// Event is the JSON document written to the status key and published on each transition.
type Event struct {
	Instance  string    `json:"instance"`
	State     string    `json:"state"`
	From      string    `json:"from"`
	Source    string    `json:"source,omitempty"`
	At        time.Time `json:"at"`
	ElapsedMs int64     `json:"elapsed_ms,omitempty"`
}

// Notifier mirrors lifecycle transitions into Redis. The latest event is stored under
// "<statusKey>:<instance>" and every event is published on the statusKey channel.
// It implements lifecycle.Observer.
type Notifier struct {
	client    backend.UniversalClient
	statusKey string
	instance  string
	timeout   time.Duration
	logger    *slog.Logger
}

// NotifierOption configures the Notifier.
type NotifierOption func(*Notifier)

// WithInstance names this process in events and in the status key.
func WithInstance(instance string) NotifierOption {
	return func(n *Notifier) {
		n.instance = instance
	}
}

// WithTimeout bounds each status write.
func WithTimeout(d time.Duration) NotifierOption {
	return func(n *Notifier) {
		n.timeout = d
	}
}

// WithNotifierLogger configures the structured logger.
func WithNotifierLogger(logger *slog.Logger) NotifierOption {
	return func(n *Notifier) {
		n.logger = logger
	}
}

// NewNotifier creates a Notifier.
func NewNotifier(client backend.UniversalClient, statusKey string, opts ...NotifierOption) *Notifier {
	n := &Notifier{
		client:    client,
		statusKey: statusKey,
		instance:  "default",
		timeout:   DefaultTimeout,
		logger:    logging.NewNop(),
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Key returns the status key of this instance.
func (n *Notifier) Key() string {
	return n.statusKey + ":" + n.instance
}

// Channel returns the channel events are published on.
func (n *Notifier) Channel() string {
	return n.statusKey
}

// OnTransition implements lifecycle.Observer. Failures are logged, never returned:
// a Redis outage must not hold up the drain.
func (n *Notifier) OnTransition(ctx context.Context, t lifecycle.Transition) {
	evt := Event{
		Instance:  n.instance,
		State:     t.To.String(),
		From:      t.From.String(),
		Source:    string(t.Source),
		At:        t.At.UTC(),
		ElapsedMs: t.Elapsed.Milliseconds(),
	}
	data, err := json.Marshal(evt)
	if err != nil {
		n.logger.Error("Status encode failed", "error", err)
		return
	}

	ctx, cancel := context.WithTimeout(ctx, n.timeout)
	defer cancel()

	pipe := n.client.Pipeline()
	pipe.Set(ctx, n.Key(), data, 0)
	pipe.Publish(ctx, n.Channel(), data)
	if _, err := pipe.Exec(ctx); err != nil {
		n.logger.Warn("Status publish failed", "key", n.Key(), "state", evt.State, "error", err)
	}
}
