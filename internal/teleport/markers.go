package teleport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rakrwi/nextWarp/internal/storage"
	"github.com/rakrwi/nextWarp/internal/warp"
)

// DefaultPendingTTL is how long a marker waits for its player to arrive.
const DefaultPendingTTL = 30 * time.Second

type Kind string

const (
	KindWarp   Kind = "warp"
	KindRandom Kind = "random"
	KindSpawn  Kind = "spawn"
)

// Marker records that a player is on the way to Target and where to put them
// once they get there.
type Marker struct {
	ID        uuid.UUID     `json:"id"`
	PlayerID  string        `json:"player_id"`
	Kind      Kind          `json:"kind"`
	Origin    string        `json:"origin"`
	Target    string        `json:"target"`
	Warp      string        `json:"warp,omitempty"`
	Location  warp.Location `json:"location"`
	CreatedAt time.Time     `json:"created_at"`
}

func (m Marker) expired(now time.Time, ttl time.Duration) bool {
	return ttl > 0 && now.Sub(m.CreatedAt) >= ttl
}

// Markers holds at most one pending marker per player.
type Markers interface {
	// Put stores m. It fails with ErrTeleportInProgress if the player
	// already has an unexpired marker.
	Put(ctx context.Context, m Marker) error
	// Take removes and returns the player's marker for server. Exactly one
	// caller gets a given marker; everyone else sees ErrNotFound.
	Take(ctx context.Context, playerID string, server string) (Marker, error)
	// Release removes the player's marker if it is still the one with id.
	Release(ctx context.Context, playerID string, id uuid.UUID) error
	Pending(ctx context.Context, playerID string) (bool, error)
}

// KVMarkers keeps markers in a JetStream key-value bucket shared by every
// server. The bucket's own TTL expires markers for players that never arrive;
// the ttl here covers reads that race the server-side expiry.
type KVMarkers struct {
	kv  jetstream.KeyValue
	ttl time.Duration
	now func() time.Time
}

func NewKVMarkers(kv jetstream.KeyValue, ttl time.Duration) *KVMarkers {
	return &KVMarkers{
		kv:  kv,
		ttl: ttl,
		now: time.Now,
	}
}

func (k *KVMarkers) Put(ctx context.Context, m Marker) error {
	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("marshalling marker: %w", err)
	}

	key := storage.EscapeKey(m.PlayerID)
	for range 2 {
		_, err = k.kv.Create(ctx, key, data)
		if err == nil {
			return nil
		}
		if !errors.Is(err, jetstream.ErrKeyExists) {
			return fmt.Errorf("storing marker: %w", err)
		}

		// A stale marker the bucket has not expired yet does not block.
		existing, rev, err := k.get(ctx, m.PlayerID)
		if errors.Is(err, warp.ErrNotFound) {
			continue
		}
		if err != nil {
			return err
		}
		if !existing.expired(k.now(), k.ttl) {
			return fmt.Errorf("%w: player %s", warp.ErrTeleportInProgress, m.PlayerID)
		}
		if err := k.kv.Delete(ctx, key, jetstream.LastRevision(rev)); err != nil && !wrongRevision(err) {
			return fmt.Errorf("removing stale marker: %w", err)
		}
	}
	return fmt.Errorf("%w: player %s", warp.ErrTeleportInProgress, m.PlayerID)
}

func (k *KVMarkers) Take(ctx context.Context, playerID string, server string) (Marker, error) {
	m, rev, err := k.get(ctx, playerID)
	if err != nil {
		return Marker{}, err
	}
	if m.Target != server {
		return Marker{}, fmt.Errorf("%w: marker for %s targets %s", warp.ErrNotFound, playerID, m.Target)
	}

	err = k.kv.Delete(ctx, storage.EscapeKey(playerID), jetstream.LastRevision(rev))
	if err != nil {
		if wrongRevision(err) {
			return Marker{}, fmt.Errorf("%w: marker for %s already taken", warp.ErrNotFound, playerID)
		}
		return Marker{}, fmt.Errorf("removing marker: %w", err)
	}

	if m.expired(k.now(), k.ttl) {
		return Marker{}, fmt.Errorf("%w: marker for %s expired", warp.ErrNotFound, playerID)
	}
	return m, nil
}

func (k *KVMarkers) Release(ctx context.Context, playerID string, id uuid.UUID) error {
	m, rev, err := k.get(ctx, playerID)
	if err != nil {
		if errors.Is(err, warp.ErrNotFound) {
			return nil
		}
		return err
	}
	if m.ID != id {
		return nil
	}

	err = k.kv.Delete(ctx, storage.EscapeKey(playerID), jetstream.LastRevision(rev))
	if err != nil && !wrongRevision(err) {
		return fmt.Errorf("removing marker: %w", err)
	}
	return nil
}

func (k *KVMarkers) Pending(ctx context.Context, playerID string) (bool, error) {
	m, _, err := k.get(ctx, playerID)
	if err != nil {
		if errors.Is(err, warp.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return !m.expired(k.now(), k.ttl), nil
}

func (k *KVMarkers) get(ctx context.Context, playerID string) (Marker, uint64, error) {
	entry, err := k.kv.Get(ctx, storage.EscapeKey(playerID))
	if err != nil {
		if errors.Is(err, jetstream.ErrKeyNotFound) {
			return Marker{}, 0, fmt.Errorf("%w: no marker for %s", warp.ErrNotFound, playerID)
		}
		return Marker{}, 0, fmt.Errorf("getting marker: %w", err)
	}

	var m Marker
	if err := json.Unmarshal(entry.Value(), &m); err != nil {
		slog.WarnContext(ctx, "discarding unreadable marker", "player", playerID, "error", err)
		_ = k.kv.Delete(ctx, entry.Key(), jetstream.LastRevision(entry.Revision()))
		return Marker{}, 0, fmt.Errorf("%w: no marker for %s", warp.ErrNotFound, playerID)
	}
	return m, entry.Revision(), nil
}

// wrongRevision reports whether a guarded write lost to a concurrent one.
func wrongRevision(err error) bool {
	var apiErr *jetstream.APIError
	return errors.As(err, &apiErr) && apiErr.ErrorCode == jetstream.JSErrCodeStreamWrongLastSequence
}

// MemoryMarkers is the single-process Markers.
type MemoryMarkers struct {
	ttl time.Duration
	now func() time.Time

	mu      sync.Mutex
	markers map[string]Marker
}

func NewMemoryMarkers(ttl time.Duration) *MemoryMarkers {
	return &MemoryMarkers{
		ttl:     ttl,
		now:     time.Now,
		markers: map[string]Marker{},
	}
}

func (mm *MemoryMarkers) Put(_ context.Context, m Marker) error {
	mm.mu.Lock()
	defer mm.mu.Unlock()

	if existing, ok := mm.markers[m.PlayerID]; ok && !existing.expired(mm.now(), mm.ttl) {
		return fmt.Errorf("%w: player %s", warp.ErrTeleportInProgress, m.PlayerID)
	}
	mm.markers[m.PlayerID] = m
	return nil
}

func (mm *MemoryMarkers) Take(_ context.Context, playerID string, server string) (Marker, error) {
	mm.mu.Lock()
	defer mm.mu.Unlock()

	m, ok := mm.markers[playerID]
	if !ok {
		return Marker{}, fmt.Errorf("%w: no marker for %s", warp.ErrNotFound, playerID)
	}
	if m.Target != server {
		return Marker{}, fmt.Errorf("%w: marker for %s targets %s", warp.ErrNotFound, playerID, m.Target)
	}
	delete(mm.markers, playerID)

	if m.expired(mm.now(), mm.ttl) {
		return Marker{}, fmt.Errorf("%w: marker for %s expired", warp.ErrNotFound, playerID)
	}
	return m, nil
}

func (mm *MemoryMarkers) Release(_ context.Context, playerID string, id uuid.UUID) error {
	mm.mu.Lock()
	defer mm.mu.Unlock()

	if m, ok := mm.markers[playerID]; ok && m.ID == id {
		delete(mm.markers, playerID)
	}
	return nil
}

func (mm *MemoryMarkers) Pending(_ context.Context, playerID string) (bool, error) {
	mm.mu.Lock()
	defer mm.mu.Unlock()

	m, ok := mm.markers[playerID]
	return ok && !m.expired(mm.now(), mm.ttl), nil
}

// Tick drops expired markers.
func (mm *MemoryMarkers) Tick(context.Context) error {
	mm.mu.Lock()
	defer mm.mu.Unlock()

	now := mm.now()
	for id, m := range mm.markers {
		if m.expired(now, mm.ttl) {
			delete(mm.markers, id)
		}
	}
	return nil
}
