package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/nats-io/nats.go/jetstream"
)

// KVStore keeps records in a JetStream key-value bucket so every process
// connected to the same NATS cluster reads the same directory.
type KVStore[T ValidatingSpec] struct {
	kv jetstream.KeyValue
}

func NewKVStore[T ValidatingSpec](kv jetstream.KeyValue) *KVStore[T] {
	return &KVStore[T]{kv: kv}
}

func (s *KVStore[T]) Create(ctx context.Context, id string, v T) error {
	asset := newAsset(id, v)
	if err := asset.Validate(); err != nil {
		return fmt.Errorf("validating %q: %w", id, err)
	}

	data, err := json.Marshal(asset)
	if err != nil {
		return fmt.Errorf("marshalling json: %w", err)
	}

	_, err = s.kv.Create(ctx, EscapeKey(id), data)
	if err != nil {
		if errors.Is(err, jetstream.ErrKeyExists) {
			return ErrExists
		}
		return fmt.Errorf("creating %q: %w", id, err)
	}
	return nil
}

func (s *KVStore[T]) Get(ctx context.Context, id string) (T, error) {
	var zero T

	entry, err := s.kv.Get(ctx, EscapeKey(id))
	if err != nil {
		if errors.Is(err, jetstream.ErrKeyNotFound) {
			return zero, ErrNotFound
		}
		return zero, fmt.Errorf("getting %q: %w", id, err)
	}

	asset, err := decodeEntry[T](entry)
	if err != nil {
		return zero, err
	}
	return asset.Spec, nil
}

// Delete removes the record only if it has not changed since it was read, so
// a record recreated by another process in between is left alone.
func (s *KVStore[T]) Delete(ctx context.Context, id string) error {
	key := EscapeKey(id)

	entry, err := s.kv.Get(ctx, key)
	if err != nil {
		if errors.Is(err, jetstream.ErrKeyNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("getting %q: %w", id, err)
	}

	err = s.kv.Delete(ctx, key, jetstream.LastRevision(entry.Revision()))
	if err != nil {
		return fmt.Errorf("deleting %q: %w", id, err)
	}
	return nil
}

func (s *KVStore[T]) GetAll(ctx context.Context) (map[string]T, error) {
	lister, err := s.kv.ListKeys(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing keys: %w", err)
	}
	defer func() { _ = lister.Stop() }()

	vals := map[string]T{}
	for key := range lister.Keys() {
		entry, err := s.kv.Get(ctx, key)
		if err != nil {
			// Deleted after it was listed.
			if errors.Is(err, jetstream.ErrKeyNotFound) {
				continue
			}
			return nil, fmt.Errorf("getting %q: %w", key, err)
		}

		asset, err := decodeEntry[T](entry)
		if err != nil {
			return nil, err
		}
		vals[asset.Id()] = asset.Spec
	}

	return vals, nil
}

func decodeEntry[T ValidatingSpec](entry jetstream.KeyValueEntry) (*Asset[T], error) {
	asset := &Asset[T]{}
	if err := json.Unmarshal(entry.Value(), asset); err != nil {
		return nil, fmt.Errorf("unmarshalling %q: %w", entry.Key(), err)
	}
	if err := asset.Validate(); err != nil {
		return nil, fmt.Errorf("validating %q: %w", entry.Key(), err)
	}
	return asset, nil
}
