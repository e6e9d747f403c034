package teleport

import (
	"context"

	"github.com/rakrwi/nextWarp/internal/warp"
)

// Adapter is the in-process view of players and worlds.
type Adapter interface {
	// Online reports whether the player has a live session on this process.
	Online(playerID string) bool
	WorldLoaded(world string) bool
	// Border is the playable area of a world.
	Border(world string) (warp.Region, bool)
	// Safe checks a candidate and returns it adjusted to where a player
	// would actually stand. ok is false when the candidate is unusable.
	Safe(ctx context.Context, candidate warp.Location) (warp.Location, bool)
	// Teleport moves the player. It runs the move on the main loop and
	// returns once it has been applied.
	Teleport(ctx context.Context, playerID string, loc warp.Location) error
}

// Transport asks the proxy to move a player's connection to another server.
type Transport interface {
	Transfer(ctx context.Context, playerID string, server string) error
}

// RemoteSampler picks a random safe location on another server.
type RemoteSampler interface {
	Sample(ctx context.Context, server string, world string) (warp.Location, error)
}

// Servers lists the worlds of the servers currently on the network.
type Servers interface {
	Worlds(ctx context.Context, server string) ([]string, bool)
}

// Reporter receives the terminal outcome of every teleport request.
type Reporter interface {
	Report(ctx context.Context, r Result)
}

type nopReporter struct{}

func (nopReporter) Report(context.Context, Result) {}
