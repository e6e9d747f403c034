package warp

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/rakrwi/nextWarp/internal/storage"
)

// Directory is the warp directory of one server process. Every call goes
// straight to the backing store; nothing is cached, so a warp created by any
// process sharing the store is visible on the next lookup.
type Directory struct {
	server string
	store  storage.Store[*Record]
}

func NewDirectory(server string, store storage.Store[*Record]) *Directory {
	return &Directory{
		server: server,
		store:  store,
	}
}

// Server is the identity stamped on warps created through this directory.
func (d *Directory) Server() string {
	return d.server
}

// Create stores a new warp owned by this server.
func (d *Directory) Create(ctx context.Context, name string, loc Location) (Record, error) {
	key := NormalizeName(name)
	if key == "" {
		return Record{}, fmt.Errorf("%w: warp name is required", ErrInvalidArgument)
	}
	if reserved(key) {
		return Record{}, fmt.Errorf("%w: %q", ErrReservedName, name)
	}

	rec, err := d.create(ctx, key, name, loc)
	if err != nil {
		return Record{}, err
	}

	slog.InfoContext(ctx, "warp created", "name", rec.Name, "server", rec.Server, "location", rec.Location)
	return rec, nil
}

func (d *Directory) create(ctx context.Context, key string, name string, loc Location) (Record, error) {
	if loc.World == "" {
		return Record{}, fmt.Errorf("%w: world is required", ErrInvalidArgument)
	}

	rec := Record{
		Name:     name,
		Server:   d.server,
		Location: loc,
	}

	err := d.store.Create(ctx, key, &rec)
	if err != nil {
		if errors.Is(err, storage.ErrExists) {
			return Record{}, fmt.Errorf("%w: warp %q", ErrAlreadyExists, name)
		}
		return Record{}, fmt.Errorf("creating warp %q: %w", name, err)
	}
	return rec, nil
}

func (d *Directory) Delete(ctx context.Context, name string) error {
	key := NormalizeName(name)
	if key == "" {
		return fmt.Errorf("%w: warp name is required", ErrInvalidArgument)
	}
	if reserved(key) {
		return fmt.Errorf("%w: %q", ErrReservedName, name)
	}

	err := d.store.Delete(ctx, key)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("%w: warp %q", ErrNotFound, name)
		}
		return fmt.Errorf("deleting warp %q: %w", name, err)
	}

	slog.InfoContext(ctx, "warp deleted", "name", name)
	return nil
}

// Get returns the named warp or an error wrapping ErrNotFound.
func (d *Directory) Get(ctx context.Context, name string) (Record, error) {
	key := NormalizeName(name)
	if key == "" {
		return Record{}, fmt.Errorf("%w: warp name is required", ErrInvalidArgument)
	}
	if reserved(key) {
		return Record{}, fmt.Errorf("%w: warp %q", ErrNotFound, name)
	}
	return d.get(ctx, key)
}

func (d *Directory) get(ctx context.Context, key string) (Record, error) {
	rec, err := d.store.Get(ctx, key)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return Record{}, fmt.Errorf("%w: warp %q", ErrNotFound, key)
		}
		return Record{}, fmt.Errorf("getting warp %q: %w", key, err)
	}
	return *rec, nil
}

func (d *Directory) Exists(ctx context.Context, name string) (bool, error) {
	_, err := d.Get(ctx, name)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// List returns every user warp ordered by key. The order is stable between
// calls as long as the directory does not change.
func (d *Directory) List(ctx context.Context) ([]Record, error) {
	return d.list(ctx, func(Record) bool { return true })
}

// ListByServer returns the warps owned by server, ordered like List.
func (d *Directory) ListByServer(ctx context.Context, server string) ([]Record, error) {
	return d.list(ctx, func(r Record) bool { return r.Server == server })
}

func (d *Directory) list(ctx context.Context, keep func(Record) bool) ([]Record, error) {
	all, err := d.store.GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing warps: %w", err)
	}

	type keyed struct {
		key string
		rec Record
	}
	entries := make([]keyed, 0, len(all))
	for key, rec := range all {
		if reserved(key) || !keep(*rec) {
			continue
		}
		entries = append(entries, keyed{key: key, rec: *rec})
	}
	slices.SortFunc(entries, func(a, b keyed) int {
		return cmp.Compare(a.key, b.key)
	})

	recs := make([]Record, len(entries))
	for i, e := range entries {
		recs[i] = e.rec
	}
	return recs, nil
}

// SetSpawn replaces the network spawn point with loc on this server.
func (d *Directory) SetSpawn(ctx context.Context, loc Location) (Record, error) {
	// Records are immutable, so a move is delete then create. Another process
	// may recreate the spawn in between; retry a bounded number of times.
	for range 3 {
		err := d.store.Delete(ctx, SpawnKey)
		if err != nil && !errors.Is(err, storage.ErrNotFound) {
			return Record{}, fmt.Errorf("removing spawn: %w", err)
		}

		rec, err := d.create(ctx, SpawnKey, SpawnKey, loc)
		if errors.Is(err, ErrAlreadyExists) {
			continue
		}
		if err != nil {
			return Record{}, err
		}

		slog.InfoContext(ctx, "spawn set", "server", rec.Server, "location", rec.Location)
		return rec, nil
	}
	return Record{}, fmt.Errorf("%w: spawn changed concurrently", ErrAlreadyExists)
}

// Spawn returns the network spawn point or an error wrapping ErrNotFound.
func (d *Directory) Spawn(ctx context.Context) (Record, error) {
	return d.get(ctx, SpawnKey)
}
