package teleport

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"
	"slices"
	"sync"

	"github.com/rakrwi/nextWarp/internal/warp"
)

const DefaultMaxAttempts = 16

type SelectorConfig struct {
	// Region bounds every candidate. It is narrowed to the world border.
	Region       warp.Region
	DefaultWorld string
	MaxAttempts  int
	// Disabled lists servers random teleport may not target.
	Disabled []string
}

// Selector samples random safe locations in the worlds of this process.
type Selector struct {
	cfg     SelectorConfig
	adapter Adapter

	mu  sync.Mutex
	rnd *rand.Rand
}

func NewSelector(cfg SelectorConfig, adapter Adapter, rnd *rand.Rand) *Selector {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	if rnd == nil {
		rnd = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &Selector{
		cfg:     cfg,
		adapter: adapter,
		rnd:     rnd,
	}
}

func (s *Selector) DefaultWorld() string {
	return s.cfg.DefaultWorld
}

// Disabled reports whether random teleport to server is turned off.
func (s *Selector) Disabled(server string) bool {
	return slices.Contains(s.cfg.Disabled, server)
}

// Sample evaluates up to MaxAttempts candidates in world and returns the
// first the adapter accepts.
func (s *Selector) Sample(ctx context.Context, world string) (warp.Location, error) {
	if world == "" {
		world = s.cfg.DefaultWorld
	}
	if !s.adapter.WorldLoaded(world) {
		return warp.Location{}, fmt.Errorf("%w: %q", warp.ErrWorldUnavailable, world)
	}

	region := s.cfg.Region
	if border, ok := s.adapter.Border(world); ok {
		region, ok = region.Intersect(border)
		if !ok {
			return warp.Location{}, fmt.Errorf("%w: region outside border of %q", warp.ErrNoSafeCandidate, world)
		}
	}

	for attempt := 1; attempt <= s.cfg.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return warp.Location{}, err
		}

		candidate := s.candidate(world, region)
		loc, ok := s.adapter.Safe(ctx, candidate)
		if ok {
			return loc, nil
		}
		slog.DebugContext(ctx, "random teleport candidate rejected", "world", world, "attempt", attempt, "x", candidate.X, "z", candidate.Z)
	}

	slog.InfoContext(ctx, "random teleport exhausted attempts", "world", world, "attempts", s.cfg.MaxAttempts)
	return warp.Location{}, fmt.Errorf("%w: %d attempts in %q", warp.ErrNoSafeCandidate, s.cfg.MaxAttempts, world)
}

// candidate picks a block in region and returns its center, clamped to the
// region where the region ends partway through a block.
func (s *Selector) candidate(world string, region warp.Region) warp.Location {
	s.mu.Lock()
	defer s.mu.Unlock()

	x := region.MinX + s.rnd.Float64()*(region.MaxX-region.MinX)
	z := region.MinZ + s.rnd.Float64()*(region.MaxZ-region.MinZ)

	return warp.Location{
		World:    world,
		Position: warp.Position{X: blockCenter(x, region.MinX, region.MaxX), Z: blockCenter(z, region.MinZ, region.MaxZ)},
		Orientation: warp.Orientation{
			Yaw: float32(s.rnd.IntN(360)) - 180,
		},
	}
}

func blockCenter(v float64, lo float64, hi float64) float64 {
	return min(max(math.Floor(v)+0.5, lo), hi)
}

// RandomTeleporter sends players to random safe locations, here or on
// another server.
type RandomTeleporter struct {
	selector     *Selector
	orchestrator *Orchestrator
	resolver     *warp.Resolver
	remote       RemoteSampler
	servers      Servers
}

func NewRandomTeleporter(selector *Selector, orchestrator *Orchestrator, resolver *warp.Resolver, remote RemoteSampler, servers Servers) *RandomTeleporter {
	return &RandomTeleporter{
		selector:     selector,
		orchestrator: orchestrator,
		resolver:     resolver,
		remote:       remote,
		servers:      servers,
	}
}

// RandomTeleport moves the player to a random location. An empty server is
// this server and an empty world is the configured default world.
func (r *RandomTeleporter) RandomTeleport(ctx context.Context, playerID string, server string, world string) (Outcome, error) {
	if playerID == "" {
		return OutcomeFailed, fmt.Errorf("%w: player is required", warp.ErrInvalidArgument)
	}
	if server == "" {
		server = r.resolver.Server()
	}
	if world == "" {
		world = r.selector.DefaultWorld()
	}

	if r.selector.Disabled(server) {
		return OutcomeAborted, fmt.Errorf("%w: random teleport disabled on %q", warp.ErrNotFound, server)
	}

	var loc warp.Location
	var err error
	if server == r.resolver.Server() {
		loc, err = r.selector.Sample(ctx, world)
	} else {
		loc, err = r.sampleRemote(ctx, server, world)
	}
	if err != nil {
		return OutcomeAborted, err
	}

	route, err := r.resolver.Destination(server, loc)
	if err != nil {
		return OutcomeFailed, err
	}
	return r.orchestrator.Teleport(ctx, playerID, KindRandom, route)
}

func (r *RandomTeleporter) sampleRemote(ctx context.Context, server string, world string) (warp.Location, error) {
	worlds, ok := r.servers.Worlds(ctx, server)
	if !ok {
		return warp.Location{}, fmt.Errorf("%w: server %q", warp.ErrNotFound, server)
	}
	if !slices.Contains(worlds, world) {
		return warp.Location{}, fmt.Errorf("%w: world %q on %q", warp.ErrNotFound, world, server)
	}
	return r.remote.Sample(ctx, server, world)
}
