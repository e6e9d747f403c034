package node

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/rakrwi/nextWarp/internal/api"
	"github.com/rakrwi/nextWarp/internal/messaging"
	"github.com/rakrwi/nextWarp/internal/servers"
	"github.com/rakrwi/nextWarp/internal/storage"
	"github.com/rakrwi/nextWarp/internal/teleport"
	"github.com/rakrwi/nextWarp/internal/warp"
	"github.com/rakrwi/nextWarp/internal/world"
)

const (
	WarpsBucket   = "warps"
	PendingBucket = "warp_pending"
	ServersBucket = "warp_servers"
)

// Config is everything a Node needs once NATS is up.
type Config struct {
	Server string
	Worlds map[string]*world.World

	// WarpsPath selects a file directory store shared through the filesystem.
	// When empty the directory lives in the WarpsBucket KV bucket.
	WarpsPath   string
	WarpsBucket string

	PendingTTL      time.Duration
	TransferTimeout time.Duration
	SampleTimeout   time.Duration
	Heartbeat       time.Duration
	PresenceTTL     time.Duration
	Selector        teleport.SelectorConfig

	// Markers overrides the PendingBucket markers, for single-process setups.
	Markers teleport.Markers
}

// Loop is the main loop the node's world state runs on.
type Loop interface {
	world.Scheduler
	api.Scheduler
}

// Node wires the warp system of one server process onto a running NATS
// connection and serves it until the context is done.
type Node struct {
	cfg       Config
	nats      *messaging.NatsServer
	loop      Loop
	cooldowns *teleport.Cooldowns

	ready chan struct{}
	api   *api.API
	world *world.WorldState
}

func New(cfg Config, nats *messaging.NatsServer, loop Loop, cooldowns *teleport.Cooldowns) *Node {
	if cfg.WarpsBucket == "" {
		cfg.WarpsBucket = WarpsBucket
	}
	if cfg.PendingTTL <= 0 {
		cfg.PendingTTL = teleport.DefaultPendingTTL
	}
	if cfg.PresenceTTL <= 0 {
		cfg.PresenceTTL = servers.DefaultTTL
	}
	return &Node{
		cfg:       cfg,
		nats:      nats,
		loop:      loop,
		cooldowns: cooldowns,
		ready:     make(chan struct{}),
	}
}

// Ready is closed once the API is being served.
func (n *Node) Ready() <-chan struct{} {
	return n.ready
}

// API is nil until Ready is closed.
func (n *Node) API() *api.API {
	return n.api
}

func (n *Node) World() *world.WorldState {
	return n.world
}

func (n *Node) Start(ctx context.Context) error {
	select {
	case <-n.nats.Ready():
	case <-ctx.Done():
		return nil
	}

	store, err := n.buildStore(ctx)
	if err != nil {
		return err
	}

	markers, err := n.buildMarkers(ctx)
	if err != nil {
		return err
	}
	serversKV, err := n.nats.KeyValue(ctx, ServersBucket, n.cfg.PresenceTTL)
	if err != nil {
		return fmt.Errorf("opening server registry: %w", err)
	}

	name := n.cfg.Server
	ws := world.NewWorldState(n.cfg.Worlds, n.loop)
	dir := warp.NewDirectory(name, store)
	resolver := warp.NewResolver(name, ws)

	orch := teleport.NewOrchestrator(
		dir,
		resolver,
		ws,
		markers,
		messaging.NewTransport(n.nats.Conn(), name, n.cfg.TransferTimeout),
		teleport.WithReporter(messaging.NewTeleportReporter(n.nats, name)),
	)
	ws.SetArrivalHook(orch.Arrive)

	registry := servers.NewRegistry(serversKV, func() servers.Info {
		return servers.Info{Server: name, Worlds: ws.Worlds()}
	}, n.cfg.Heartbeat, n.cfg.PresenceTTL)

	selector := teleport.NewSelector(n.cfg.Selector, ws, nil)
	random := teleport.NewRandomTeleporter(
		selector,
		orch,
		resolver,
		messaging.NewSampler(n.nats.Conn(), n.cfg.SampleTimeout),
		registry,
	)

	n.world = ws
	n.api = api.New(dir, orch, random, n.cooldowns,
		api.WithScheduler(n.loop),
		api.WithServerLister(registry),
	)

	subscribers := []interface {
		Subscribe(context.Context) (func(), error)
	}{
		messaging.NewSessionEvents(n.nats, name, ws),
		messaging.NewSamplerService(n.nats, name, selector),
		api.NewService(n.api, n.nats),
	}
	for _, s := range subscribers {
		unsub, err := s.Subscribe(ctx)
		if err != nil {
			return fmt.Errorf("subscribing: %w", err)
		}
		defer unsub()
	}

	// Announce before serving so other servers can reach our worlds.
	if err := registry.Announce(ctx); err != nil {
		return fmt.Errorf("announcing server: %w", err)
	}

	slog.InfoContext(ctx, "warp node started", "server", name, "worlds", ws.Worlds())
	close(n.ready)

	return registry.Start(ctx)
}

func (n *Node) buildStore(ctx context.Context) (storage.Store[*warp.Record], error) {
	if n.cfg.WarpsPath != "" {
		fs, err := storage.NewFileStore[*warp.Record](n.cfg.WarpsPath)
		if err != nil {
			return nil, fmt.Errorf("opening warp directory: %w", err)
		}
		return fs, nil
	}

	kv, err := n.nats.KeyValue(ctx, n.cfg.WarpsBucket, 0)
	if err != nil {
		return nil, fmt.Errorf("opening warp directory: %w", err)
	}
	return storage.NewKVStore[*warp.Record](kv), nil
}

func (n *Node) buildMarkers(ctx context.Context) (teleport.Markers, error) {
	if n.cfg.Markers != nil {
		return n.cfg.Markers, nil
	}

	kv, err := n.nats.KeyValue(ctx, PendingBucket, n.cfg.PendingTTL)
	if err != nil {
		return nil, fmt.Errorf("opening pending markers: %w", err)
	}
	return teleport.NewKVMarkers(kv, n.cfg.PendingTTL), nil
}
