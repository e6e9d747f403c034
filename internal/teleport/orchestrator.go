package teleport

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rakrwi/nextWarp/internal/warp"
)

type Outcome int

const (
	// OutcomeAborted means nothing happened: the destination does not exist.
	OutcomeAborted Outcome = iota
	// OutcomeSucceeded means the player was moved on this process.
	OutcomeSucceeded
	// OutcomeDispatched means the proxy accepted the hop. Placement happens
	// on the destination when the player arrives and is not observed here.
	OutcomeDispatched
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeAborted:
		return "aborted"
	case OutcomeSucceeded:
		return "succeeded"
	case OutcomeDispatched:
		return "dispatched"
	case OutcomeFailed:
		return "failed"
	default:
		return fmt.Sprintf("Outcome(%d)", int(o))
	}
}

func (o Outcome) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

// Accepted reports whether the request went through: completed locally or
// handed to the proxy.
func (o Outcome) Accepted() bool {
	return o == OutcomeSucceeded || o == OutcomeDispatched
}

// Result describes how one teleport request ended.
type Result struct {
	PlayerID string        `json:"player_id"`
	Kind     Kind          `json:"kind"`
	Server   string        `json:"server"`
	Warp     string        `json:"warp,omitempty"`
	Location warp.Location `json:"location"`
	Outcome  Outcome       `json:"outcome"`
	Error    string        `json:"error,omitempty"`
}

// Orchestrator runs teleport requests for the players of one server process.
type Orchestrator struct {
	server    string
	directory *warp.Directory
	resolver  *warp.Resolver
	adapter   Adapter
	markers   Markers
	transport Transport
	reporter  Reporter
	now       func() time.Time

	mu       sync.Mutex
	inflight map[string]struct{}
}

func NewOrchestrator(
	directory *warp.Directory,
	resolver *warp.Resolver,
	adapter Adapter,
	markers Markers,
	transport Transport,
	opts ...OrchestratorOpt,
) *Orchestrator {
	o := &Orchestrator{
		server:    resolver.Server(),
		directory: directory,
		resolver:  resolver,
		adapter:   adapter,
		markers:   markers,
		transport: transport,
		reporter:  nopReporter{},
		now:       time.Now,
		inflight:  map[string]struct{}{},
	}

	for _, opt := range opts {
		opt(o)
	}

	return o
}

// Warp sends the player to the named warp.
func (o *Orchestrator) Warp(ctx context.Context, playerID string, name string) (Outcome, error) {
	if playerID == "" {
		return OutcomeFailed, fmt.Errorf("%w: player is required", warp.ErrInvalidArgument)
	}

	rec, err := o.directory.Get(ctx, name)
	if err != nil {
		if errors.Is(err, warp.ErrNotFound) {
			return OutcomeAborted, err
		}
		return OutcomeFailed, err
	}

	return o.teleportRecord(ctx, playerID, KindWarp, rec)
}

// Spawn sends the player to the network spawn point.
func (o *Orchestrator) Spawn(ctx context.Context, playerID string) (Outcome, error) {
	if playerID == "" {
		return OutcomeFailed, fmt.Errorf("%w: player is required", warp.ErrInvalidArgument)
	}

	rec, err := o.directory.Spawn(ctx)
	if err != nil {
		if errors.Is(err, warp.ErrNotFound) {
			return OutcomeAborted, err
		}
		return OutcomeFailed, err
	}

	return o.teleportRecord(ctx, playerID, KindSpawn, rec)
}

func (o *Orchestrator) teleportRecord(ctx context.Context, playerID string, kind Kind, rec warp.Record) (Outcome, error) {
	route, err := o.resolver.Resolve(rec)
	if err != nil {
		o.report(ctx, playerID, kind, warp.Route{Server: rec.Server, Location: rec.Location, Warp: rec.Name}, OutcomeFailed, err)
		return OutcomeFailed, err
	}
	return o.Teleport(ctx, playerID, kind, route)
}

// Teleport executes a resolved route. Requests for the same player never
// overlap: while one is running, or while the player has a pending marker on
// any server, others fail with ErrTeleportInProgress.
func (o *Orchestrator) Teleport(ctx context.Context, playerID string, kind Kind, route warp.Route) (Outcome, error) {
	if playerID == "" {
		return OutcomeFailed, fmt.Errorf("%w: player is required", warp.ErrInvalidArgument)
	}

	outcome, err := o.teleport(ctx, playerID, kind, route)
	o.report(ctx, playerID, kind, route, outcome, err)
	return outcome, err
}

func (o *Orchestrator) teleport(ctx context.Context, playerID string, kind Kind, route warp.Route) (Outcome, error) {
	if !o.acquire(playerID) {
		return OutcomeFailed, fmt.Errorf("%w: player %s", warp.ErrTeleportInProgress, playerID)
	}
	defer o.release(playerID)

	pending, err := o.markers.Pending(ctx, playerID)
	if err != nil {
		return OutcomeFailed, fmt.Errorf("checking pending teleport: %w", err)
	}
	if pending {
		return OutcomeFailed, fmt.Errorf("%w: player %s", warp.ErrTeleportInProgress, playerID)
	}

	if !o.adapter.Online(playerID) {
		return OutcomeFailed, fmt.Errorf("%w: %s", warp.ErrPlayerOffline, playerID)
	}

	switch route.Kind {
	case warp.RouteLocal:
		err := o.adapter.Teleport(ctx, playerID, route.Location)
		if err != nil {
			return OutcomeFailed, fmt.Errorf("teleporting %s: %w", playerID, err)
		}
		return OutcomeSucceeded, nil
	case warp.RouteRemote:
		return o.dispatch(ctx, playerID, kind, route)
	default:
		return OutcomeFailed, fmt.Errorf("%w: unknown route kind %v", warp.ErrInvalidArgument, route.Kind)
	}
}

// dispatch writes the marker the destination will consume and then asks the
// proxy for the hop. The marker is in place before the player can arrive.
func (o *Orchestrator) dispatch(ctx context.Context, playerID string, kind Kind, route warp.Route) (Outcome, error) {
	m := Marker{
		ID:        uuid.New(),
		PlayerID:  playerID,
		Kind:      kind,
		Origin:    o.server,
		Target:    route.Server,
		Warp:      route.Warp,
		Location:  route.Location,
		CreatedAt: o.now(),
	}

	err := o.markers.Put(ctx, m)
	if err != nil {
		return OutcomeFailed, err
	}

	err = o.transport.Transfer(ctx, playerID, route.Server)
	if err != nil {
		// Use a fresh context: the request context may be what failed.
		relCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if relErr := o.markers.Release(relCtx, playerID, m.ID); relErr != nil {
			slog.WarnContext(ctx, "releasing marker after failed transfer", "player", playerID, "marker", m.ID, "error", relErr)
		}
		if errors.Is(err, warp.ErrTransportFailure) {
			return OutcomeFailed, err
		}
		return OutcomeFailed, fmt.Errorf("%w: %w", warp.ErrTransportFailure, err)
	}

	slog.InfoContext(ctx, "teleport dispatched", "player", playerID, "kind", kind, "target", route.Server, "marker", m.ID)
	return OutcomeDispatched, nil
}

// Arrive is called when a player's session is being established on this
// server. If the player came here because of a teleport, it consumes the
// marker and returns where to place them.
func (o *Orchestrator) Arrive(ctx context.Context, playerID string) (warp.Location, bool) {
	m, err := o.markers.Take(ctx, playerID, o.server)
	if err != nil {
		if !errors.Is(err, warp.ErrNotFound) {
			slog.WarnContext(ctx, "reading pending teleport", "player", playerID, "error", err)
		}
		return warp.Location{}, false
	}

	if !o.adapter.WorldLoaded(m.Location.World) {
		slog.WarnContext(ctx, "pending teleport to unavailable world", "player", playerID, "world", m.Location.World, "marker", m.ID)
		return warp.Location{}, false
	}

	slog.InfoContext(ctx, "pending teleport consumed", "player", playerID, "kind", m.Kind, "origin", m.Origin, "marker", m.ID)
	return m.Location, true
}

func (o *Orchestrator) acquire(playerID string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()

	if _, busy := o.inflight[playerID]; busy {
		return false
	}
	o.inflight[playerID] = struct{}{}
	return true
}

func (o *Orchestrator) release(playerID string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.inflight, playerID)
}

func (o *Orchestrator) report(ctx context.Context, playerID string, kind Kind, route warp.Route, outcome Outcome, err error) {
	r := Result{
		PlayerID: playerID,
		Kind:     kind,
		Server:   route.Server,
		Warp:     route.Warp,
		Location: route.Location,
		Outcome:  outcome,
	}
	if err != nil {
		r.Error = err.Error()
		slog.DebugContext(ctx, "teleport ended", "player", playerID, "kind", kind, "outcome", outcome, "error", err)
	}
	o.reporter.Report(ctx, r)
}
