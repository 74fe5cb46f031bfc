package redis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/aretw0/stop-on-call/internal/logging"
	"github.com/aretw0/stop-on-call/pkg/domain"
	backend "github.com/redis/go-redis/v9"
)

// ErrNotStarted is returned by Close when Start was never called.
var ErrNotStarted = errors.New("remote trigger not started")

// RemoteTrigger subscribes to a channel and fires the stop trigger when an authorized
// message arrives. The message payload is the candidate secret.
type RemoteTrigger struct {
	client  backend.UniversalClient
	channel string
	secret  string
	trigger domain.Trigger
	logger  *slog.Logger

	mu     sync.Mutex
	pubsub *backend.PubSub
	done   chan struct{}
}

// TriggerOption configures the RemoteTrigger.
type TriggerOption func(*RemoteTrigger)

// WithSecret requires messages to carry this secret.
func WithSecret(secret string) TriggerOption {
	return func(t *RemoteTrigger) {
		t.secret = secret
	}
}

// WithTriggerLogger configures the structured logger.
func WithTriggerLogger(logger *slog.Logger) TriggerOption {
	return func(t *RemoteTrigger) {
		t.logger = logger
	}
}

// NewRemoteTrigger creates an unstarted remote trigger.
func NewRemoteTrigger(client backend.UniversalClient, channel string, trigger domain.Trigger, opts ...TriggerOption) *RemoteTrigger {
	t := &RemoteTrigger{
		client:  client,
		channel: channel,
		trigger: trigger,
		logger:  logging.NewNop(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Start subscribes to the channel and returns once Redis has confirmed the subscription.
// Messages are handled on a background goroutine until ctx is cancelled or Close is called.
func (t *RemoteTrigger) Start(ctx context.Context) error {
	ps := t.client.Subscribe(ctx, t.channel)
	if _, err := ps.Receive(ctx); err != nil {
		ps.Close()
		return fmt.Errorf("subscribe %s: %w", t.channel, err)
	}

	t.mu.Lock()
	t.pubsub = ps
	t.done = make(chan struct{})
	t.mu.Unlock()

	go t.loop(ctx, ps.Channel(), t.done)
	t.logger.Info("Remote trigger subscribed", "channel", t.channel)
	return nil
}

func (t *RemoteTrigger) loop(ctx context.Context, messages <-chan *backend.Message, done chan struct{}) {
	defer close(done)
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-messages:
			if !ok {
				return
			}
			t.Handle(msg.Payload)
		}
	}
}

// Handle applies one message payload and reports whether it was authorized.
func (t *RemoteTrigger) Handle(payload string) bool {
	if !domain.Authorize(domain.NewStopRequest(payload), t.secret) {
		t.logger.Warn("Remote stop rejected", "channel", t.channel)
		return false
	}
	first := t.trigger.Fire()
	t.logger.Info("Remote stop accepted", "channel", t.channel, "first", first)
	return true
}

// Close unsubscribes and waits for the message loop to exit.
func (t *RemoteTrigger) Close() error {
	t.mu.Lock()
	ps, done := t.pubsub, t.done
	t.mu.Unlock()

	if ps == nil {
		return ErrNotStarted
	}
	err := ps.Close()
	<-done
	return err
}
