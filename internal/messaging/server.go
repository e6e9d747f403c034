package messaging

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// NatsServer owns this process's NATS connection. Without a url it runs an
// embedded JetStream server for single-host setups; with one it joins the
// shared cluster every server on the network connects to.
type NatsServer struct {
	ns    *server.Server
	conn  *nats.Conn
	js    jetstream.JetStream
	ready chan struct{}

	startupTimeout time.Duration
	host           string
	port           int
	url            string
	storeDir       string
	name           string
}

func NewNatsServer(opts ...NatsServerOpt) (*NatsServer, error) {
	s := &NatsServer{
		startupTimeout: 10 * time.Second,
		host:           "127.0.0.1",
		ready:          make(chan struct{}),
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.url != "" {
		return s, nil
	}

	ns, err := server.NewServer(&server.Options{
		ServerName: s.name,
		Host:       s.host,
		Port:       s.port,
		NoSigs:     true, // Let the application handle signals
		JetStream:  true,
		StoreDir:   s.storeDir,
	})
	if err != nil {
		return nil, err
	}
	s.ns = ns

	return s, nil
}

func (n *NatsServer) Start(ctx context.Context) error {
	url := n.url
	if n.ns != nil {
		n.ns.Start()

		if !n.ns.ReadyForConnections(n.startupTimeout) {
			return fmt.Errorf("nats server not ready for connections")
		}
		url = n.ns.ClientURL()

		slog.InfoContext(ctx, "nats server listening", "addr", n.ns.Addr())
	}

	conn, err := nats.Connect(url,
		nats.Name(n.name),
		nats.Timeout(n.startupTimeout),
		nats.MaxReconnects(-1),
	)
	if err != nil {
		n.shutdown()
		return fmt.Errorf("creating nats client connection: %w", err)
	}
	n.conn = conn

	js, err := jetstream.New(conn)
	if err != nil {
		n.shutdown()
		return fmt.Errorf("creating jetstream context: %w", err)
	}
	n.js = js

	slog.InfoContext(ctx, "nats connected", "url", conn.ConnectedUrlRedacted())
	close(n.ready)

	<-ctx.Done()
	n.shutdown()

	return nil
}

func (n *NatsServer) shutdown() {
	if n.conn != nil {
		_ = n.conn.Drain()
	}
	if n.ns != nil {
		n.ns.Shutdown()
		n.ns.WaitForShutdown()
	}
}

// Ready is closed once the connection is usable.
func (n *NatsServer) Ready() <-chan struct{} {
	return n.ready
}

func (n *NatsServer) Conn() *nats.Conn {
	return n.conn
}

// KeyValue opens the named bucket, creating it if needed. A ttl of zero keeps
// entries until they are deleted.
func (n *NatsServer) KeyValue(ctx context.Context, bucket string, ttl time.Duration) (jetstream.KeyValue, error) {
	if n.js == nil {
		return nil, fmt.Errorf("nats server not started")
	}
	kv, err := n.js.CreateOrUpdateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket:  bucket,
		TTL:     ttl,
		History: 1,
		Storage: jetstream.FileStorage,
	})
	if err != nil {
		return nil, fmt.Errorf("opening bucket %q: %w", bucket, err)
	}
	return kv, nil
}

// Subscribe creates a subscription on the given subject.
// The handler is called for each message received.
// Returns an unsubscribe function to remove the subscription.
func (n *NatsServer) Subscribe(subject string, handler func(msg *nats.Msg)) (func(), error) {
	if n.conn == nil {
		return nil, fmt.Errorf("nats server not started")
	}
	sub, err := n.conn.Subscribe(subject, handler)
	if err != nil {
		return nil, err
	}
	return func() { _ = sub.Unsubscribe() }, nil
}

// Publish sends a message to the given subject
func (n *NatsServer) Publish(subject string, data []byte) error {
	if n.conn == nil {
		return fmt.Errorf("nats server not started")
	}
	return n.conn.Publish(subject, data)
}
