package world

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/rakrwi/nextWarp/internal/storage"
	"github.com/rakrwi/nextWarp/internal/warp"
)

// Scheduler runs a function on the main loop and waits for it. Called from
// the main loop, it runs the function in place.
type Scheduler interface {
	Do(ctx context.Context, fn func(context.Context) error) error
}

// ArrivalHook is consulted while a session is being established. If it
// returns true the player starts at the returned location instead of the
// one they joined with.
type ArrivalHook func(ctx context.Context, playerID string) (warp.Location, bool)

type Session struct {
	PlayerID string
	Location warp.Location
	JoinedAt time.Time
}

// WorldState holds the loaded worlds and the live sessions of this server.
// Sessions are only changed on the main loop; reads may come from anywhere.
type WorldState struct {
	worlds    map[string]*World
	scheduler Scheduler

	mu       sync.RWMutex
	sessions map[string]*Session
	arrival  ArrivalHook
}

func NewWorldState(worlds map[string]*World, scheduler Scheduler) *WorldState {
	return &WorldState{
		worlds:    worlds,
		scheduler: scheduler,
		sessions:  map[string]*Session{},
	}
}

// LoadWorlds reads world assets from path.
func LoadWorlds(path string) (map[string]*World, error) {
	worlds, err := storage.LoadAll[*World](path)
	if err != nil {
		return nil, fmt.Errorf("loading worlds: %w", err)
	}
	if len(worlds) == 0 {
		return nil, fmt.Errorf("no worlds found in %q", path)
	}
	return worlds, nil
}

func (w *WorldState) SetArrivalHook(h ArrivalHook) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.arrival = h
}

// Join establishes a session. A pending teleport is resolved first, so the
// session is never visible at its original location.
func (w *WorldState) Join(ctx context.Context, playerID string, loc warp.Location) (Session, error) {
	if playerID == "" {
		return Session{}, fmt.Errorf("%w: player is required", warp.ErrInvalidArgument)
	}

	w.mu.RLock()
	arrival := w.arrival
	w.mu.RUnlock()

	if arrival != nil {
		if dest, ok := arrival(ctx, playerID); ok {
			loc = dest
		}
	}
	if !w.WorldLoaded(loc.World) {
		return Session{}, fmt.Errorf("%w: %q", warp.ErrWorldUnavailable, loc.World)
	}

	s := &Session{
		PlayerID: playerID,
		Location: loc,
		JoinedAt: time.Now(),
	}
	err := w.scheduler.Do(ctx, func(context.Context) error {
		w.mu.Lock()
		defer w.mu.Unlock()
		w.sessions[playerID] = s
		return nil
	})
	if err != nil {
		return Session{}, fmt.Errorf("joining %s: %w", playerID, err)
	}

	slog.InfoContext(ctx, "player joined", "player", playerID, "location", loc)
	return *s, nil
}

func (w *WorldState) Leave(ctx context.Context, playerID string) error {
	err := w.scheduler.Do(ctx, func(context.Context) error {
		w.mu.Lock()
		defer w.mu.Unlock()

		if _, ok := w.sessions[playerID]; !ok {
			return fmt.Errorf("%w: %s", warp.ErrPlayerOffline, playerID)
		}
		delete(w.sessions, playerID)
		return nil
	})
	if err != nil {
		return err
	}

	slog.InfoContext(ctx, "player left", "player", playerID)
	return nil
}

func (w *WorldState) Online(playerID string) bool {
	_, ok := w.Session(playerID)
	return ok
}

func (w *WorldState) Session(playerID string) (Session, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()

	s, ok := w.sessions[playerID]
	if !ok {
		return Session{}, false
	}
	return *s, true
}

func (w *WorldState) WorldLoaded(world string) bool {
	_, ok := w.worlds[world]
	return ok
}

// Worlds returns the names of the loaded worlds, sorted.
func (w *WorldState) Worlds() []string {
	names := make([]string, 0, len(w.worlds))
	for name := range w.worlds {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

func (w *WorldState) Border(world string) (warp.Region, bool) {
	wd, ok := w.worlds[world]
	if !ok {
		return warp.Region{}, false
	}
	return wd.Border, true
}

func (w *WorldState) Safe(_ context.Context, candidate warp.Location) (warp.Location, bool) {
	wd, ok := w.worlds[candidate.World]
	if !ok {
		return warp.Location{}, false
	}
	return wd.Safe(candidate)
}

// Teleport moves a player within this server. The move is applied on the
// main loop; Teleport returns once it has been.
func (w *WorldState) Teleport(ctx context.Context, playerID string, loc warp.Location) error {
	if !w.WorldLoaded(loc.World) {
		return fmt.Errorf("%w: %q", warp.ErrWorldUnavailable, loc.World)
	}

	return w.scheduler.Do(ctx, func(context.Context) error {
		w.mu.Lock()
		defer w.mu.Unlock()

		s, ok := w.sessions[playerID]
		if !ok {
			return fmt.Errorf("%w: %s", warp.ErrPlayerOffline, playerID)
		}
		s.Location = loc
		return nil
	})
}
