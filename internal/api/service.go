package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rakrwi/nextWarp/internal/messaging"
	"github.com/rakrwi/nextWarp/internal/servers"
	"github.com/rakrwi/nextWarp/internal/teleport"
	"github.com/rakrwi/nextWarp/internal/warp"
)

// Request is the body of a call to Service. Which fields matter depends on
// the operation.
type Request struct {
	Player   string         `json:"player,omitempty"`
	Name     string         `json:"name,omitempty"`
	Server   string         `json:"server,omitempty"`
	World    string         `json:"world,omitempty"`
	Kind     teleport.Kind  `json:"kind,omitempty"`
	Location *warp.Location `json:"location,omitempty"`
}

type Reply struct {
	OK       bool           `json:"ok"`
	Record   *warp.Record   `json:"record,omitempty"`
	Records  []warp.Record  `json:"records,omitempty"`
	Server   string         `json:"server,omitempty"`
	Servers  []servers.Info `json:"servers,omitempty"`
	Cooldown string         `json:"cooldown,omitempty"`
	Code     string         `json:"code,omitempty"`
	Error    string         `json:"error,omitempty"`
}

// Subject is where server serves op.
func Subject(server string, op string) string {
	return fmt.Sprintf("nextwarp.api.%s.%s", server, op)
}

// Service exposes an API to other processes over NATS request/reply, one
// subject per operation.
type Service struct {
	api     *API
	server  *messaging.NatsServer
	timeout time.Duration
}

func NewService(api *API, server *messaging.NatsServer) *Service {
	return &Service{
		api:     api,
		server:  server,
		timeout: 30 * time.Second,
	}
}

func (s *Service) Subscribe(ctx context.Context) (func(), error) {
	return s.server.Subscribe(Subject(s.api.ServerName(), "*"), func(msg *nats.Msg) {
		op := msg.Subject[strings.LastIndexByte(msg.Subject, '.')+1:]
		reply := s.handle(ctx, op, msg.Data)
		messaging.Respond(ctx, msg, reply)
	})
}

func (s *Service) handle(ctx context.Context, op string, data []byte) (reply Reply) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	// Contract violations panic in the API; they become error replies here.
	defer func() {
		if r := recover(); r != nil {
			err, isErr := r.(error)
			if !isErr {
				err = fmt.Errorf("%v", r)
			}
			slog.WarnContext(ctx, "api call rejected", "op", op, "error", err)
			reply = Reply{Code: messaging.ErrorCode(err), Error: err.Error()}
		}
	}()

	var req Request
	if len(data) > 0 {
		if err := json.Unmarshal(data, &req); err != nil {
			return Reply{Code: messaging.ErrorCode(warp.ErrInvalidArgument), Error: err.Error()}
		}
	}

	a := s.api
	switch op {
	case "warp":
		return Reply{OK: a.WarpPlayer(ctx, req.Player, req.Name)}
	case "create":
		return Reply{OK: a.CreateWarp(ctx, req.Name, location(req))}
	case "delete":
		return Reply{OK: a.DeleteWarp(ctx, req.Name)}
	case "exists":
		return Reply{OK: a.WarpExists(ctx, req.Name)}
	case "get":
		rec, ok := a.GetWarp(ctx, req.Name)
		return recordReply(rec, ok)
	case "list":
		if req.Server != "" {
			return Reply{OK: true, Records: a.GetWarps(ctx, req.Server)}
		}
		return Reply{OK: true, Records: a.GetAllWarps(ctx)}
	case "random":
		switch {
		case req.World != "":
			server := req.Server
			if server == "" {
				server = a.ServerName()
			}
			return Reply{OK: a.RandomTeleportWorld(ctx, req.Player, server, req.World)}
		case req.Server != "":
			return Reply{OK: a.RandomTeleportServer(ctx, req.Player, req.Server)}
		default:
			return Reply{OK: a.RandomTeleport(ctx, req.Player)}
		}
	case "server":
		return Reply{OK: true, Server: a.ServerName()}
	case "servers":
		return Reply{OK: true, Servers: a.GetServers(ctx)}
	case "spawn":
		return Reply{OK: a.Spawn(ctx, req.Player)}
	case "get_spawn":
		rec, ok := a.GetSpawn(ctx)
		return recordReply(rec, ok)
	case "set_spawn":
		return Reply{OK: a.SetSpawn(ctx, location(req))}
	case "cooldown":
		return Reply{OK: true, Cooldown: a.CooldownRemaining(req.Player, req.Kind).String()}
	case "start_cooldown":
		a.StartCooldown(req.Player, req.Kind)
		return Reply{OK: true}
	default:
		return Reply{Code: messaging.ErrorCode(warp.ErrNotFound), Error: fmt.Sprintf("unknown operation %q", op)}
	}
}

func location(req Request) warp.Location {
	if req.Location == nil {
		return warp.Location{}
	}
	return *req.Location
}

func recordReply(rec warp.Record, ok bool) Reply {
	if !ok {
		return Reply{}
	}
	return Reply{OK: true, Record: &rec}
}
