package api

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/pixil98/go-testutil"
	"github.com/rakrwi/nextWarp/internal/driver"
	"github.com/rakrwi/nextWarp/internal/servers"
	"github.com/rakrwi/nextWarp/internal/storage"
	"github.com/rakrwi/nextWarp/internal/teleport"
	"github.com/rakrwi/nextWarp/internal/warp"
	"github.com/rakrwi/nextWarp/internal/world"
	"github.com/stretchr/testify/require"
)

var lobby = warp.Location{
	World:       "overworld",
	Position:    warp.Position{X: 10, Y: 65, Z: -3},
	Orientation: warp.Orientation{Yaw: 90, Pitch: 0},
}

var spawnPoint = warp.Location{World: "overworld", Position: warp.Position{X: 0.5, Y: 64, Z: 0.5}}

type fakeTransport struct {
	mu   sync.Mutex
	err  error
	sent []string
}

func (f *fakeTransport) Transfer(_ context.Context, playerID string, server string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, playerID+"->"+server)
	return f.err
}

type fakeServers map[string][]string

func (f fakeServers) Worlds(_ context.Context, server string) ([]string, bool) {
	w, ok := f[server]
	return w, ok
}

type fakeRemoteSampler struct{}

func (fakeRemoteSampler) Sample(_ context.Context, _ string, w string) (warp.Location, error) {
	return warp.Location{World: w, Position: warp.Position{X: 7.5, Y: 70, Z: 7.5}}, nil
}

type fakeLister []servers.Info

func (f fakeLister) List(context.Context) ([]servers.Info, error) {
	return append([]servers.Info(nil), f...), nil
}

type process struct {
	api       *API
	driver    *driver.Driver
	world     *world.WorldState
	transport *fakeTransport
	markers   teleport.Markers
}

func testWorlds() map[string]*world.World {
	border := warp.Region{MinX: -1000, MaxX: 1000, MinZ: -1000, MaxZ: 1000}
	return map[string]*world.World{
		"overworld": {MinY: -64, MaxY: 320, SurfaceY: 64, Border: border},
		"barren":    {MinY: -64, MaxY: 320, SurfaceY: 64, Border: border, Hazards: []warp.Region{border}},
	}
}

func newProcess(t *testing.T, name string, store storage.Store[*warp.Record], markers teleport.Markers) *process {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	cooldowns := teleport.NewCooldowns(map[teleport.Kind]time.Duration{teleport.KindWarp: 5 * time.Second})
	d := driver.NewDriver([]driver.Manager{cooldowns}, driver.WithTickLength(time.Millisecond))
	go func() { _ = d.Start(ctx) }()

	ws := world.NewWorldState(testWorlds(), d)
	transport := &fakeTransport{}

	dir := warp.NewDirectory(name, store)
	resolver := warp.NewResolver(name, ws)
	orch := teleport.NewOrchestrator(dir, resolver, ws, markers, transport)
	ws.SetArrivalHook(orch.Arrive)

	selector := teleport.NewSelector(teleport.SelectorConfig{
		Region:       warp.Region{MinX: -5000, MaxX: 5000, MinZ: -5000, MaxZ: 5000},
		DefaultWorld: "overworld",
		MaxAttempts:  8,
		Disabled:     []string{"lobbyonly"},
	}, ws, nil)
	random := teleport.NewRandomTeleporter(selector, orch, resolver, fakeRemoteSampler{}, fakeServers{
		"hub":      {"overworld"},
		"survival": {"overworld", "barren"},
	})

	lister := fakeLister{
		{Server: "survival", Worlds: []string{"overworld", "barren"}},
		{Server: "hub", Worlds: []string{"overworld"}},
	}

	return &process{
		api:       New(dir, orch, random, cooldowns, WithScheduler(d), WithServerLister(lister)),
		driver:    d,
		world:     ws,
		transport: transport,
		markers:   markers,
	}
}

func newNetwork(t *testing.T) (hub *process, survival *process) {
	store := storage.NewMemoryStore[*warp.Record]()
	markers := teleport.NewMemoryMarkers(teleport.DefaultPendingTTL)
	return newProcess(t, "hub", store, markers), newProcess(t, "survival", store, markers)
}

func TestAPI_Directory(t *testing.T) {
	ctx := context.Background()
	hub, survival := newNetwork(t)

	testutil.AssertEqual(t, "create", hub.api.CreateWarp(ctx, "lobby", lobby), true)

	rec, ok := hub.api.GetWarp(ctx, "lobby")
	testutil.AssertEqual(t, "get ok", ok, true)
	testutil.AssertEqual(t, "record", rec, warp.Record{Name: "lobby", Server: "hub", Location: lobby})
	testutil.AssertEqual(t, "exists", hub.api.WarpExists(ctx, "lobby"), true)

	// Visible from the other process immediately
	rec, ok = survival.api.GetWarp(ctx, "lobby")
	testutil.AssertEqual(t, "remote get ok", ok, true)
	testutil.AssertEqual(t, "remote record server", rec.Server, "hub")

	// Duplicate create fails and leaves the record alone
	testutil.AssertEqual(t, "duplicate", survival.api.CreateWarp(ctx, "Lobby", spawnPoint), false)
	rec, _ = hub.api.GetWarp(ctx, "lobby")
	testutil.AssertEqual(t, "unchanged", rec.Location, lobby)

	testutil.AssertEqual(t, "create base", survival.api.CreateWarp(ctx, "base", spawnPoint), true)
	testutil.AssertEqual(t, "all", len(hub.api.GetAllWarps(ctx)), 2)
	testutil.AssertEqual(t, "by server", len(hub.api.GetWarps(ctx, "survival")), 1)
	testutil.AssertEqual(t, "by unknown server", len(hub.api.GetWarps(ctx, "creative")), 0)

	testutil.AssertEqual(t, "delete missing", hub.api.DeleteWarp(ctx, "arena"), false)
	testutil.AssertEqual(t, "delete", survival.api.DeleteWarp(ctx, "lobby"), true)
	testutil.AssertEqual(t, "exists after delete", hub.api.WarpExists(ctx, "lobby"), false)

	_, ok = hub.api.GetWarp(ctx, "lobby")
	testutil.AssertEqual(t, "get after delete", ok, false)

	testutil.AssertEqual(t, "reserved", hub.api.CreateWarp(ctx, warp.SpawnKey, lobby), false)
	testutil.AssertEqual(t, "server name", hub.api.ServerName(), "hub")
}

func TestAPI_WarpPlayer_Local(t *testing.T) {
	ctx := context.Background()
	hub, _ := newNetwork(t)

	_, err := hub.world.Join(ctx, "steve", spawnPoint)
	require.NoError(t, err)
	require.True(t, hub.api.CreateWarp(ctx, "lobby", lobby))

	testutil.AssertEqual(t, "warp", hub.api.WarpPlayer(ctx, "steve", "lobby"), true)

	s, ok := hub.world.Session("steve")
	testutil.AssertEqual(t, "online", ok, true)
	testutil.AssertEqual(t, "location", s.Location, lobby)
	testutil.AssertEqual(t, "transfers", len(hub.transport.sent), 0)
}

func TestAPI_WarpPlayer_Remote(t *testing.T) {
	ctx := context.Background()
	hub, survival := newNetwork(t)

	_, err := survival.world.Join(ctx, "steve", spawnPoint)
	require.NoError(t, err)
	require.True(t, hub.api.CreateWarp(ctx, "lobby", lobby))

	// True on acceptance of the hop, before the player is anywhere near hub
	testutil.AssertEqual(t, "warp", survival.api.WarpPlayer(ctx, "steve", "lobby"), true)
	testutil.AssertEqual(t, "transfers", survival.transport.sent, []string{"steve->hub"})

	s, _ := survival.world.Session("steve")
	testutil.AssertEqual(t, "origin did not move player", s.Location, spawnPoint)
	testutil.AssertEqual(t, "not yet on hub", hub.world.Online("steve"), false)

	// The proxy moves the connection; the player leaves survival and joins hub
	require.NoError(t, survival.world.Leave(ctx, "steve"))
	s, err = hub.world.Join(ctx, "steve", spawnPoint)
	require.NoError(t, err)
	testutil.AssertEqual(t, "placed on arrival", s.Location, lobby)

	// Logging in again later does not teleport a second time
	require.NoError(t, hub.world.Leave(ctx, "steve"))
	s, err = hub.world.Join(ctx, "steve", spawnPoint)
	require.NoError(t, err)
	testutil.AssertEqual(t, "later join", s.Location, spawnPoint)
}

func TestAPI_WarpPlayer_Failures(t *testing.T) {
	ctx := context.Background()
	hub, survival := newNetwork(t)

	_, err := survival.world.Join(ctx, "steve", spawnPoint)
	require.NoError(t, err)
	require.True(t, hub.api.CreateWarp(ctx, "lobby", lobby))

	testutil.AssertEqual(t, "missing warp", survival.api.WarpPlayer(ctx, "steve", "nowhere"), false)
	testutil.AssertEqual(t, "no transfer", len(survival.transport.sent), 0)
	pending, err := survival.markers.Pending(ctx, "steve")
	require.NoError(t, err)
	testutil.AssertEqual(t, "no marker", pending, false)

	testutil.AssertEqual(t, "offline player", survival.api.WarpPlayer(ctx, "alex", "lobby"), false)

	survival.transport.err = errors.New("proxy unreachable")
	testutil.AssertEqual(t, "transport failure", survival.api.WarpPlayer(ctx, "steve", "lobby"), false)
	pending, err = survival.markers.Pending(ctx, "steve")
	require.NoError(t, err)
	testutil.AssertEqual(t, "marker released", pending, false)
}

func TestAPI_RandomTeleport(t *testing.T) {
	ctx := context.Background()
	hub, _ := newNetwork(t)

	_, err := hub.world.Join(ctx, "steve", spawnPoint)
	require.NoError(t, err)

	testutil.AssertEqual(t, "current server", hub.api.RandomTeleport(ctx, "steve"), true)
	s, _ := hub.world.Session("steve")
	testutil.AssertEqual(t, "moved to surface", s.Location.Y, float64(64))
	testutil.AssertEqual(t, "inside border", s.Location.X >= -1000 && s.Location.X <= 1000, true)

	testutil.AssertEqual(t, "unsafe world", hub.api.RandomTeleportWorld(ctx, "steve", "hub", "barren"), false)
	testutil.AssertEqual(t, "unknown server", hub.api.RandomTeleportServer(ctx, "steve", "creative"), false)
	testutil.AssertEqual(t, "unknown world", hub.api.RandomTeleportWorld(ctx, "steve", "survival", "end"), false)
	testutil.AssertEqual(t, "disabled server", hub.api.RandomTeleportServer(ctx, "steve", "lobbyonly"), false)

	testutil.AssertEqual(t, "remote", hub.api.RandomTeleportWorld(ctx, "steve", "survival", "barren"), true)
	testutil.AssertEqual(t, "transfers", len(hub.transport.sent), 1)
}

func TestAPI_Spawn(t *testing.T) {
	ctx := context.Background()
	hub, survival := newNetwork(t)

	_, err := hub.world.Join(ctx, "steve", lobby)
	require.NoError(t, err)

	testutil.AssertEqual(t, "no spawn yet", hub.api.Spawn(ctx, "steve"), false)
	_, ok := hub.api.GetSpawn(ctx)
	testutil.AssertEqual(t, "get spawn", ok, false)

	testutil.AssertEqual(t, "set spawn", survival.api.SetSpawn(ctx, spawnPoint), true)
	rec, ok := hub.api.GetSpawn(ctx)
	testutil.AssertEqual(t, "get spawn after set", ok, true)
	testutil.AssertEqual(t, "spawn server", rec.Server, "survival")

	// The spawn is not a user warp
	testutil.AssertEqual(t, "listed", len(hub.api.GetAllWarps(ctx)), 0)

	testutil.AssertEqual(t, "spawn", hub.api.Spawn(ctx, "steve"), true)
	testutil.AssertEqual(t, "dispatched to survival", hub.transport.sent[0], "steve->survival")
}

func TestAPI_Cooldown(t *testing.T) {
	hub, _ := newNetwork(t)

	testutil.AssertEqual(t, "ready", hub.api.CooldownRemaining("steve", teleport.KindWarp), time.Duration(0))
	hub.api.StartCooldown("steve", teleport.KindWarp)
	remaining := hub.api.CooldownRemaining("steve", teleport.KindWarp)
	testutil.AssertEqual(t, "cooling down", remaining > 0 && remaining <= 5*time.Second, true)
}

func TestAPI_InvalidArgument(t *testing.T) {
	ctx := context.Background()
	hub, _ := newNetwork(t)

	tests := map[string]func(){
		"warp without player":   func() { hub.api.WarpPlayer(ctx, "", "lobby") },
		"warp without name":     func() { hub.api.WarpPlayer(ctx, "steve", "") },
		"create without name":   func() { hub.api.CreateWarp(ctx, " ", lobby) },
		"create without world":  func() { hub.api.CreateWarp(ctx, "lobby", warp.Location{}) },
		"delete without name":   func() { hub.api.DeleteWarp(ctx, "") },
		"exists without name":   func() { hub.api.WarpExists(ctx, "") },
		"get without name":      func() { hub.api.GetWarp(ctx, "") },
		"list without server":   func() { hub.api.GetWarps(ctx, "") },
		"random without player": func() { hub.api.RandomTeleport(ctx, "") },
		"random without server": func() { hub.api.RandomTeleportServer(ctx, "steve", "") },
		"random without world":  func() { hub.api.RandomTeleportWorld(ctx, "steve", "hub", "") },
		"spawn without player":  func() { hub.api.Spawn(ctx, "") },
	}

	for name, call := range tests {
		t.Run(name, func(t *testing.T) {
			defer func() {
				r := recover()
				err, ok := r.(error)
				if !ok || !errors.Is(err, warp.ErrInvalidArgument) {
					t.Errorf("expected panic with ErrInvalidArgument, got %v", r)
				}
			}()
			call()
		})
	}
}

func TestAPI_WarpPlayer_FromMainLoop(t *testing.T) {
	ctx := context.Background()
	hub, _ := newNetwork(t)

	_, err := hub.world.Join(ctx, "steve", spawnPoint)
	require.NoError(t, err)
	require.True(t, hub.api.CreateWarp(ctx, "lobby", lobby))

	callCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	start := time.Now()
	var warped bool
	err = hub.driver.Do(callCtx, func(context.Context) error {
		warped = hub.api.WarpPlayer(callCtx, "steve", "lobby")
		return nil
	})
	require.NoError(t, err)

	testutil.AssertEqual(t, "warp", warped, true)
	testutil.AssertEqual(t, "loop not stalled", time.Since(start) < time.Second, true)
	s, _ := hub.world.Session("steve")
	testutil.AssertEqual(t, "location", s.Location, lobby)
}

func TestAPI_Async(t *testing.T) {
	ctx := context.Background()
	hub, survival := newNetwork(t)

	_, err := hub.world.Join(ctx, "steve", spawnPoint)
	require.NoError(t, err)
	require.True(t, hub.api.CreateWarp(ctx, "lobby", lobby))
	require.True(t, survival.api.SetSpawn(ctx, spawnPoint))

	type result struct {
		ok     bool
		onLoop bool
	}
	call := func(start func(done func(bool))) result {
		t.Helper()
		got := make(chan result, 1)
		err := hub.driver.Do(ctx, func(context.Context) error {
			start(func(ok bool) {
				got <- result{ok: ok, onLoop: hub.driver.OnLoop()}
			})
			return nil
		})
		require.NoError(t, err)

		select {
		case r := <-got:
			return r
		case <-time.After(5 * time.Second):
			t.Fatal("no result delivered")
			return result{}
		}
	}

	r := call(func(done func(bool)) { hub.api.WarpPlayerAsync(ctx, "steve", "lobby", done) })
	testutil.AssertEqual(t, "warp", r, result{ok: true, onLoop: true}, cmp.AllowUnexported(result{}))
	s, _ := hub.world.Session("steve")
	testutil.AssertEqual(t, "location", s.Location, lobby)

	r = call(func(done func(bool)) { hub.api.WarpPlayerAsync(ctx, "steve", "nowhere", done) })
	testutil.AssertEqual(t, "missing warp", r, result{ok: false, onLoop: true}, cmp.AllowUnexported(result{}))

	r = call(func(done func(bool)) { hub.api.RandomTeleportAsync(ctx, "steve", "", "", done) })
	testutil.AssertEqual(t, "random", r, result{ok: true, onLoop: true}, cmp.AllowUnexported(result{}))

	r = call(func(done func(bool)) { hub.api.SpawnAsync(ctx, "steve", done) })
	testutil.AssertEqual(t, "spawn", r, result{ok: true, onLoop: true}, cmp.AllowUnexported(result{}))
	testutil.AssertEqual(t, "spawn dispatched", hub.transport.sent, []string{"steve->survival"})

	defer func() {
		r := recover()
		err, isErr := r.(error)
		if !isErr || !errors.Is(err, warp.ErrInvalidArgument) {
			t.Errorf("expected panic with ErrInvalidArgument, got %v", r)
		}
	}()
	hub.api.WarpPlayerAsync(ctx, "", "lobby", nil)
}

func TestAPI_GetServers(t *testing.T) {
	hub, _ := newNetwork(t)

	infos := hub.api.GetServers(context.Background())
	testutil.AssertEqual(t, "count", len(infos), 2)
	testutil.AssertEqual(t, "sorted", infos[0].Server, "hub")
	testutil.AssertEqual(t, "worlds", infos[1].Worlds, []string{"overworld", "barren"})
}
