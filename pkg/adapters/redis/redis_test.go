package redis_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/aretw0/stop-on-call/pkg/adapters/redis"
	"github.com/aretw0/stop-on-call/pkg/lifecycle"
	backend "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setup(t *testing.T) (*miniredis.Miniredis, *backend.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := backend.NewClient(&backend.Options{
		Addr: mr.Addr(),
	})
	t.Cleanup(func() { client.Close() })
	return mr, client
}

func TestRemoteTrigger_FiresOnAuthorizedMessage(t *testing.T) {
	_, client := setup(t)
	ctx := context.Background()
	sig := lifecycle.NewSignal()

	trig := redis.NewRemoteTrigger(client, "stop-on-call:stop", sig, redis.WithSecret("s3cret"))
	require.NoError(t, trig.Start(ctx))
	defer trig.Close()

	require.NoError(t, client.Publish(ctx, "stop-on-call:stop", "wrong").Err())
	assert.Never(t, sig.Fired, 200*time.Millisecond, 20*time.Millisecond, "wrong secret must not fire")

	require.NoError(t, client.Publish(ctx, "stop-on-call:stop", "s3cret").Err())
	assert.Eventually(t, sig.Fired, 2*time.Second, 10*time.Millisecond)
}

func TestRemoteTrigger_WithoutSecretAnyMessageFires(t *testing.T) {
	_, client := setup(t)
	ctx := context.Background()
	sig := lifecycle.NewSignal()

	trig := redis.NewRemoteTrigger(client, "fleet", sig)
	require.NoError(t, trig.Start(ctx))

	require.NoError(t, client.Publish(ctx, "fleet", "").Err())
	assert.Eventually(t, sig.Fired, 2*time.Second, 10*time.Millisecond)
	assert.NoError(t, trig.Close())
}

func TestRemoteTrigger_Handle(t *testing.T) {
	sig := lifecycle.NewSignal()
	trig := redis.NewRemoteTrigger(nil, "unused", sig, redis.WithSecret("s3cret"))

	assert.False(t, trig.Handle("S3CRET"))
	assert.False(t, sig.Fired())

	assert.True(t, trig.Handle("s3cret"))
	assert.True(t, sig.Fired())

	assert.True(t, trig.Handle("s3cret"), "a repeated authorized message is accepted as a no-op")
}

func TestRemoteTrigger_StopsWithContext(t *testing.T) {
	_, client := setup(t)
	ctx, cancel := context.WithCancel(context.Background())
	sig := lifecycle.NewSignal()

	trig := redis.NewRemoteTrigger(client, "fleet", sig)
	require.NoError(t, trig.Start(ctx))

	cancel()
	assert.NoError(t, trig.Close())
	assert.False(t, sig.Fired())
}

func TestRemoteTrigger_CloseBeforeStart(t *testing.T) {
	trig := redis.NewRemoteTrigger(nil, "fleet", lifecycle.NewSignal())
	assert.ErrorIs(t, trig.Close(), redis.ErrNotStarted)
}

func TestRemoteTrigger_StartFailsWhenUnreachable(t *testing.T) {
	mr, client := setup(t)
	mr.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	trig := redis.NewRemoteTrigger(client, "fleet", lifecycle.NewSignal())
	assert.Error(t, trig.Start(ctx))
}

func TestNotifier_PublishesTransitions(t *testing.T) {
	mr, client := setup(t)
	ctx := context.Background()

	n := redis.NewNotifier(client, "stop-on-call:status", redis.WithInstance("sidecar-1"))
	assert.Equal(t, "stop-on-call:status:sidecar-1", n.Key())

	sub := client.Subscribe(ctx, n.Channel())
	defer sub.Close()
	_, err := sub.Receive(ctx)
	require.NoError(t, err)

	n.OnTransition(ctx, lifecycle.Transition{
		From:   lifecycle.Running,
		To:     lifecycle.Draining,
		Source: lifecycle.SourceTrigger,
		At:     time.Now(),
	})

	raw, err := mr.Get(n.Key())
	require.NoError(t, err)

	var stored redis.Event
	require.NoError(t, json.Unmarshal([]byte(raw), &stored))
	assert.Equal(t, "sidecar-1", stored.Instance)
	assert.Equal(t, "draining", stored.State)
	assert.Equal(t, "running", stored.From)
	assert.Equal(t, "trigger", stored.Source)

	select {
	case msg := <-sub.Channel():
		assert.JSONEq(t, raw, msg.Payload)
	case <-time.After(2 * time.Second):
		t.Fatal("no event published")
	}
}

func TestNotifier_SurvivesOutage(t *testing.T) {
	mr, client := setup(t)
	mr.Close()

	n := redis.NewNotifier(client, "stop-on-call:status", redis.WithTimeout(200*time.Millisecond))
	assert.NotPanics(t, func() {
		n.OnTransition(context.Background(), lifecycle.Transition{To: lifecycle.Stopped})
	})
}

func TestConnect(t *testing.T) {
	mr, _ := setup(t)
	ctx := context.Background()

	client, err := redis.Connect(ctx, "redis://"+mr.Addr()+"/0")
	require.NoError(t, err)
	assert.NoError(t, client.Close())

	_, err = redis.Connect(ctx, "http://not-redis")
	assert.Error(t, err)

	addr := mr.Addr()
	mr.Close()
	_, err = redis.Connect(ctx, "redis://"+addr)
	assert.Error(t, err)
}
