package servers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go/jetstream"
	"github.com/rakrwi/nextWarp/internal/storage"
)

const (
	DefaultHeartbeat = 10 * time.Second
	DefaultTTL       = 30 * time.Second
)

// Info is what a server announces about itself.
type Info struct {
	Server    string    `json:"server"`
	Worlds    []string  `json:"worlds"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Registry tracks which servers are on the network. Each server refreshes its
// own entry on a heartbeat; the bucket TTL drops servers that stop.
type Registry struct {
	kv        jetstream.KeyValue
	self      func() Info
	heartbeat time.Duration
	ttl       time.Duration
	now       func() time.Time
}

func NewRegistry(kv jetstream.KeyValue, self func() Info, heartbeat time.Duration, ttl time.Duration) *Registry {
	if heartbeat <= 0 {
		heartbeat = DefaultHeartbeat
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Registry{
		kv:        kv,
		self:      self,
		heartbeat: heartbeat,
		ttl:       ttl,
		now:       time.Now,
	}
}

// Start announces this server until ctx is done, then withdraws it.
func (r *Registry) Start(ctx context.Context) error {
	if err := r.Announce(ctx); err != nil {
		return err
	}

	ticker := time.NewTicker(r.heartbeat)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			r.withdraw()
			return nil
		case <-ticker.C:
			if err := r.Announce(ctx); err != nil {
				slog.WarnContext(ctx, "announcing server", "error", err)
			}
		}
	}
}

func (r *Registry) Announce(ctx context.Context) error {
	info := r.self()
	info.UpdatedAt = r.now()

	data, err := json.Marshal(info)
	if err != nil {
		return fmt.Errorf("marshalling server info: %w", err)
	}
	if _, err := r.kv.Put(ctx, storage.EscapeKey(info.Server), data); err != nil {
		return fmt.Errorf("announcing %q: %w", info.Server, err)
	}
	return nil
}

func (r *Registry) withdraw() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	server := r.self().Server
	if err := r.kv.Delete(ctx, storage.EscapeKey(server)); err != nil {
		slog.Warn("withdrawing server", "server", server, "error", err)
	}
}

// Known returns the latest announcement of server.
func (r *Registry) Known(ctx context.Context, server string) (Info, bool) {
	entry, err := r.kv.Get(ctx, storage.EscapeKey(server))
	if err != nil {
		if !errors.Is(err, jetstream.ErrKeyNotFound) {
			slog.WarnContext(ctx, "looking up server", "server", server, "error", err)
		}
		return Info{}, false
	}

	var info Info
	if err := json.Unmarshal(entry.Value(), &info); err != nil {
		slog.WarnContext(ctx, "unreadable server info", "server", server, "error", err)
		return Info{}, false
	}
	if r.now().Sub(info.UpdatedAt) > r.ttl {
		return Info{}, false
	}
	return info, true
}

// Worlds returns the worlds announced by server.
func (r *Registry) Worlds(ctx context.Context, server string) ([]string, bool) {
	info, ok := r.Known(ctx, server)
	if !ok {
		return nil, false
	}
	return info.Worlds, true
}

// List returns every server currently on the network.
func (r *Registry) List(ctx context.Context) ([]Info, error) {
	lister, err := r.kv.ListKeys(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing servers: %w", err)
	}
	defer func() { _ = lister.Stop() }()

	var infos []Info
	for key := range lister.Keys() {
		server, err := storage.UnescapeKey(key)
		if err != nil {
			continue
		}
		if info, ok := r.Known(ctx, server); ok {
			infos = append(infos, info)
		}
	}
	return infos, nil
}
