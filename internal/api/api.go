package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/rakrwi/nextWarp/internal/servers"
	"github.com/rakrwi/nextWarp/internal/teleport"
	"github.com/rakrwi/nextWarp/internal/warp"
)

// API is the warp capability of one server process. It is built once at
// startup and handed to whatever needs it.
//
// Expected conditions, like a missing warp or an offline player, come back
// as false or as an absent value. A call missing a required argument is a
// bug in the caller and panics with an error wrapping warp.ErrInvalidArgument.
//
// For a warp on another server, true from WarpPlayer means the proxy accepted
// the hop. The player is placed when they arrive there, which this process
// does not observe.
//
// The synchronous calls are safe on the main loop but wait on store and
// proxy I/O there. Main loop callers should use the Async variants.
type API struct {
	server       string
	directory    *warp.Directory
	orchestrator *teleport.Orchestrator
	random       *teleport.RandomTeleporter
	cooldowns    *teleport.Cooldowns
	scheduler    Scheduler
	serverLister ServerLister
}

func New(
	directory *warp.Directory,
	orchestrator *teleport.Orchestrator,
	random *teleport.RandomTeleporter,
	cooldowns *teleport.Cooldowns,
	opts ...APIOpt,
) *API {
	a := &API{
		server:       directory.Server(),
		directory:    directory,
		orchestrator: orchestrator,
		random:       random,
		cooldowns:    cooldowns,
	}

	for _, opt := range opts {
		opt(a)
	}

	return a
}

func (a *API) WarpPlayer(ctx context.Context, player string, name string) bool {
	requirePlayer(player)
	requireName(name)

	outcome, err := a.orchestrator.Warp(ctx, player, name)
	return accepted(ctx, "warp player", outcome, err)
}

func (a *API) CreateWarp(ctx context.Context, name string, loc warp.Location) bool {
	requireName(name)
	if loc.World == "" {
		panic(fmt.Errorf("%w: location world is required", warp.ErrInvalidArgument))
	}

	_, err := a.directory.Create(ctx, name, loc)
	return ok(ctx, "create warp", err)
}

func (a *API) DeleteWarp(ctx context.Context, name string) bool {
	requireName(name)

	err := a.directory.Delete(ctx, name)
	return ok(ctx, "delete warp", err)
}

func (a *API) WarpExists(ctx context.Context, name string) bool {
	requireName(name)

	exists, err := a.directory.Exists(ctx, name)
	return ok(ctx, "warp exists", err) && exists
}

// GetWarp returns the named warp; false means there is none.
func (a *API) GetWarp(ctx context.Context, name string) (warp.Record, bool) {
	requireName(name)

	rec, err := a.directory.Get(ctx, name)
	if !ok(ctx, "get warp", err) {
		return warp.Record{}, false
	}
	return rec, true
}

func (a *API) GetAllWarps(ctx context.Context) []warp.Record {
	recs, err := a.directory.List(ctx)
	if !ok(ctx, "list warps", err) {
		return []warp.Record{}
	}
	return recs
}

func (a *API) GetWarps(ctx context.Context, server string) []warp.Record {
	if server == "" {
		panic(fmt.Errorf("%w: server is required", warp.ErrInvalidArgument))
	}

	recs, err := a.directory.ListByServer(ctx, server)
	if !ok(ctx, "list warps by server", err) {
		return []warp.Record{}
	}
	return recs
}

// RandomTeleport sends the player somewhere random in the default world of
// this server.
func (a *API) RandomTeleport(ctx context.Context, player string) bool {
	return a.randomTeleport(ctx, player, "", "")
}

// RandomTeleportServer sends the player somewhere random on server.
func (a *API) RandomTeleportServer(ctx context.Context, player string, server string) bool {
	if server == "" {
		panic(fmt.Errorf("%w: server is required", warp.ErrInvalidArgument))
	}
	return a.randomTeleport(ctx, player, server, "")
}

// RandomTeleportWorld sends the player somewhere random in world on server.
func (a *API) RandomTeleportWorld(ctx context.Context, player string, server string, world string) bool {
	if server == "" || world == "" {
		panic(fmt.Errorf("%w: server and world are required", warp.ErrInvalidArgument))
	}
	return a.randomTeleport(ctx, player, server, world)
}

func (a *API) randomTeleport(ctx context.Context, player string, server string, world string) bool {
	requirePlayer(player)

	outcome, err := a.random.RandomTeleport(ctx, player, server, world)
	return accepted(ctx, "random teleport", outcome, err)
}

func (a *API) ServerName() string {
	return a.server
}

// GetServers lists the servers currently on the network, sorted by name.
func (a *API) GetServers(ctx context.Context) []servers.Info {
	if a.serverLister == nil {
		return []servers.Info{}
	}
	infos, err := a.serverLister.List(ctx)
	if !ok(ctx, "list servers", err) {
		return []servers.Info{}
	}
	slices.SortFunc(infos, func(x, y servers.Info) int {
		return strings.Compare(x.Server, y.Server)
	})
	return infos
}

// SetSpawn moves the network spawn point to loc on this server.
func (a *API) SetSpawn(ctx context.Context, loc warp.Location) bool {
	if loc.World == "" {
		panic(fmt.Errorf("%w: location world is required", warp.ErrInvalidArgument))
	}

	_, err := a.directory.SetSpawn(ctx, loc)
	return ok(ctx, "set spawn", err)
}

// GetSpawn returns the network spawn point; false means none is set.
func (a *API) GetSpawn(ctx context.Context) (warp.Record, bool) {
	rec, err := a.directory.Spawn(ctx)
	if !ok(ctx, "get spawn", err) {
		return warp.Record{}, false
	}
	return rec, true
}

// Spawn sends the player to the network spawn point.
func (a *API) Spawn(ctx context.Context, player string) bool {
	requirePlayer(player)

	outcome, err := a.orchestrator.Spawn(ctx, player)
	return accepted(ctx, "spawn", outcome, err)
}

// CooldownRemaining is how long the player must wait before another
// teleport of kind. Enforcing it is up to the caller.
func (a *API) CooldownRemaining(player string, kind teleport.Kind) time.Duration {
	requirePlayer(player)
	return a.cooldowns.Remaining(player, kind)
}

// StartCooldown starts the player's cooldown for kind.
func (a *API) StartCooldown(player string, kind teleport.Kind) {
	requirePlayer(player)
	a.cooldowns.Touch(player, kind)
}

// WarpPlayerAsync is WarpPlayer for main loop callers. The work runs off the
// loop and done receives the result, on the loop when a Scheduler is set.
// Argument checks still panic in the caller.
func (a *API) WarpPlayerAsync(ctx context.Context, player string, name string, done func(bool)) {
	requirePlayer(player)
	requireName(name)

	a.async(ctx, done, func(ctx context.Context) bool {
		return a.WarpPlayer(ctx, player, name)
	})
}

// RandomTeleportAsync is the async form of the random teleport calls. An
// empty server is this server and an empty world is the default world.
func (a *API) RandomTeleportAsync(ctx context.Context, player string, server string, world string, done func(bool)) {
	requirePlayer(player)
	if world != "" && server == "" {
		server = a.server
	}

	a.async(ctx, done, func(ctx context.Context) bool {
		return a.randomTeleport(ctx, player, server, world)
	})
}

// SpawnAsync is the async form of Spawn.
func (a *API) SpawnAsync(ctx context.Context, player string, done func(bool)) {
	requirePlayer(player)

	a.async(ctx, done, func(ctx context.Context) bool {
		return a.Spawn(ctx, player)
	})
}

func (a *API) async(ctx context.Context, done func(bool), fn func(context.Context) bool) {
	go func() {
		result := fn(ctx)
		if done == nil {
			return
		}
		if a.scheduler == nil {
			done(result)
			return
		}
		err := a.scheduler.Schedule(func(context.Context) error {
			done(result)
			return nil
		})
		if err != nil {
			slog.WarnContext(ctx, "delivering result off the main loop", "error", err)
			done(result)
		}
	}()
}

func requirePlayer(player string) {
	if player == "" {
		panic(fmt.Errorf("%w: player is required", warp.ErrInvalidArgument))
	}
}

func requireName(name string) {
	if warp.NormalizeName(name) == "" {
		panic(fmt.Errorf("%w: warp name is required", warp.ErrInvalidArgument))
	}
}

// expected lists the conditions reported as false rather than logged as faults.
var expected = []error{
	warp.ErrNotFound,
	warp.ErrAlreadyExists,
	warp.ErrWorldUnavailable,
	warp.ErrPlayerOffline,
	warp.ErrTransportFailure,
	warp.ErrNoSafeCandidate,
	warp.ErrTeleportInProgress,
	warp.ErrReservedName,
}

func ok(ctx context.Context, op string, err error) bool {
	if err == nil {
		return true
	}
	if errors.Is(err, warp.ErrInvalidArgument) {
		panic(err)
	}
	for _, e := range expected {
		if errors.Is(err, e) {
			slog.DebugContext(ctx, op, "result", false, "reason", err)
			return false
		}
	}
	slog.WarnContext(ctx, op+" failed", "error", err)
	return false
}

func accepted(ctx context.Context, op string, outcome teleport.Outcome, err error) bool {
	return ok(ctx, op, err) && outcome.Accepted()
}
