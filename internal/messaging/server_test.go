package messaging

import (
	"context"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/pixil98/go-testutil"
	"github.com/stretchr/testify/require"
)

func startTestServer(t *testing.T) *NatsServer {
	t.Helper()

	s, err := NewNatsServer(
		WithPort(-1),
		WithStoreDir(t.TempDir()),
		WithName("test"),
		WithStartTimeout(5*time.Second),
	)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Start(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	select {
	case <-s.Ready():
	case err := <-done:
		t.Fatalf("nats server exited early: %v", err)
	case <-time.After(10 * time.Second):
		t.Fatal("nats server not ready")
	}
	return s
}

func TestNatsServer_PublishSubscribe(t *testing.T) {
	s := startTestServer(t)

	got := make(chan string, 1)
	unsub, err := s.Subscribe("test.subject", func(msg *nats.Msg) {
		got <- string(msg.Data)
	})
	require.NoError(t, err)
	defer unsub()

	require.NoError(t, s.Publish("test.subject", []byte("hello")))

	select {
	case data := <-got:
		testutil.AssertEqual(t, "data", data, "hello")
	case <-time.After(5 * time.Second):
		t.Fatal("message not delivered")
	}
}

func TestNatsServer_NotStarted(t *testing.T) {
	s, err := NewNatsServer(WithPort(-1), WithStoreDir(t.TempDir()))
	require.NoError(t, err)

	_, err = s.Subscribe("x", func(*nats.Msg) {})
	testutil.AssertErrorContains(t, err, "not started")

	err = s.Publish("x", nil)
	testutil.AssertErrorContains(t, err, "not started")

	_, err = s.KeyValue(context.Background(), "bucket", 0)
	testutil.AssertErrorContains(t, err, "not started")
}

func TestNatsServer_KeyValue(t *testing.T) {
	ctx := context.Background()
	s := startTestServer(t)

	kv, err := s.KeyValue(ctx, "test_bucket", time.Minute)
	require.NoError(t, err)

	_, err = kv.Put(ctx, "key", []byte("value"))
	require.NoError(t, err)

	// Opening again returns the same bucket
	again, err := s.KeyValue(ctx, "test_bucket", time.Minute)
	require.NoError(t, err)

	entry, err := again.Get(ctx, "key")
	require.NoError(t, err)
	testutil.AssertEqual(t, "value", string(entry.Value()), "value")
}

func TestNatsServer_External(t *testing.T) {
	embedded := startTestServer(t)

	s, err := NewNatsServer(WithURL(embedded.Conn().ConnectedUrl()))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Start(ctx) }()
	defer func() {
		cancel()
		<-done
	}()

	select {
	case <-s.Ready():
	case <-time.After(10 * time.Second):
		t.Fatal("external connection not ready")
	}

	_, err = s.KeyValue(ctx, "shared", 0)
	require.NoError(t, err)
}
