package teleport

import (
	"context"
	"sync"

	"github.com/rakrwi/nextWarp/internal/storage"
	"github.com/rakrwi/nextWarp/internal/warp"
)

type teleportCall struct {
	playerID string
	loc      warp.Location
}

type fakeAdapter struct {
	mu        sync.Mutex
	online    map[string]bool
	worlds    map[string]warp.Region
	safe      func(warp.Location) (warp.Location, bool)
	checks    int
	teleports []teleportCall
}

func newFakeAdapter(players ...string) *fakeAdapter {
	a := &fakeAdapter{
		online: map[string]bool{},
		worlds: map[string]warp.Region{
			"overworld": {MinX: -1000, MaxX: 1000, MinZ: -1000, MaxZ: 1000},
		},
		safe: func(l warp.Location) (warp.Location, bool) {
			l.Y = 64
			return l, true
		},
	}
	for _, p := range players {
		a.online[p] = true
	}
	return a
}

func (a *fakeAdapter) Online(playerID string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.online[playerID]
}

func (a *fakeAdapter) WorldLoaded(world string) bool {
	_, ok := a.worlds[world]
	return ok
}

func (a *fakeAdapter) Border(world string) (warp.Region, bool) {
	r, ok := a.worlds[world]
	return r, ok
}

func (a *fakeAdapter) Safe(_ context.Context, candidate warp.Location) (warp.Location, bool) {
	a.mu.Lock()
	a.checks++
	a.mu.Unlock()
	return a.safe(candidate)
}

func (a *fakeAdapter) Teleport(_ context.Context, playerID string, loc warp.Location) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.teleports = append(a.teleports, teleportCall{playerID: playerID, loc: loc})
	return nil
}

func (a *fakeAdapter) calls() []teleportCall {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]teleportCall(nil), a.teleports...)
}

type transferCall struct {
	playerID string
	server   string
}

type fakeTransport struct {
	mu      sync.Mutex
	err     error
	entered chan struct{}
	block   chan struct{}
	sent    []transferCall
}

func (f *fakeTransport) Transfer(ctx context.Context, playerID string, server string) error {
	f.mu.Lock()
	f.sent = append(f.sent, transferCall{playerID: playerID, server: server})
	err := f.err
	f.mu.Unlock()

	if f.entered != nil {
		f.entered <- struct{}{}
	}
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return err
}

func (f *fakeTransport) calls() []transferCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]transferCall(nil), f.sent...)
}

type recordingReporter struct {
	mu      sync.Mutex
	results []Result
}

func (r *recordingReporter) Report(_ context.Context, res Result) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.results = append(r.results, res)
}

func (r *recordingReporter) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.results)
}

type fakeServers map[string][]string

func (f fakeServers) Worlds(_ context.Context, server string) ([]string, bool) {
	w, ok := f[server]
	return w, ok
}

type fakeRemoteSampler struct {
	loc   warp.Location
	err   error
	asked []string
}

func (f *fakeRemoteSampler) Sample(_ context.Context, server string, world string) (warp.Location, error) {
	f.asked = append(f.asked, server+"/"+world)
	if f.err != nil {
		return warp.Location{}, f.err
	}
	loc := f.loc
	loc.World = world
	return loc, nil
}

// network wires orchestrators for several servers over one directory store
// and one marker store, the way separate processes share them.
type network struct {
	store   *storage.MemoryStore[*warp.Record]
	markers *MemoryMarkers
}

func newNetwork() *network {
	return &network{
		store:   storage.NewMemoryStore[*warp.Record](),
		markers: NewMemoryMarkers(DefaultPendingTTL),
	}
}

type node struct {
	directory    *warp.Directory
	resolver     *warp.Resolver
	adapter      *fakeAdapter
	transport    *fakeTransport
	reporter     *recordingReporter
	orchestrator *Orchestrator
}

func (n *network) node(server string, adapter *fakeAdapter) *node {
	nd := &node{
		directory: warp.NewDirectory(server, n.store),
		resolver:  warp.NewResolver(server, adapter),
		adapter:   adapter,
		transport: &fakeTransport{},
		reporter:  &recordingReporter{},
	}
	nd.orchestrator = NewOrchestrator(nd.directory, nd.resolver, adapter, n.markers, nd.transport, WithReporter(nd.reporter))
	return nd
}
