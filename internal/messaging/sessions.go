package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rakrwi/nextWarp/internal/warp"
	"github.com/rakrwi/nextWarp/internal/world"
)

type SessionEvent struct {
	PlayerID string        `json:"player_id"`
	Location warp.Location `json:"location"`
}

type SessionReply struct {
	Location warp.Location `json:"location"`
	Code     string        `json:"code,omitempty"`
	Error    string        `json:"error,omitempty"`
}

// SessionHandler is what the proxy's join and leave events drive.
type SessionHandler interface {
	Join(ctx context.Context, playerID string, loc warp.Location) (world.Session, error)
	Leave(ctx context.Context, playerID string) error
}

// SessionEvents feeds the proxy's session events for one server into its
// world state. A join reply carries where the player was placed, which
// differs from the requested location when a teleport was pending.
type SessionEvents struct {
	server  *NatsServer
	name    string
	handler SessionHandler
	timeout time.Duration
}

func NewSessionEvents(server *NatsServer, name string, handler SessionHandler) *SessionEvents {
	return &SessionEvents{
		server:  server,
		name:    name,
		handler: handler,
		timeout: 10 * time.Second,
	}
}

// Subscribe starts handling events. The returned function stops it.
func (s *SessionEvents) Subscribe(ctx context.Context) (func(), error) {
	unsubJoin, err := s.server.Subscribe(SessionSubject(s.name, "join"), func(msg *nats.Msg) {
		s.handle(ctx, msg, s.join)
	})
	if err != nil {
		return nil, fmt.Errorf("subscribing to joins: %w", err)
	}

	unsubLeave, err := s.server.Subscribe(SessionSubject(s.name, "leave"), func(msg *nats.Msg) {
		s.handle(ctx, msg, s.leave)
	})
	if err != nil {
		unsubJoin()
		return nil, fmt.Errorf("subscribing to leaves: %w", err)
	}

	return func() {
		unsubJoin()
		unsubLeave()
	}, nil
}

func (s *SessionEvents) handle(ctx context.Context, msg *nats.Msg, fn func(context.Context, SessionEvent) (warp.Location, error)) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var reply SessionReply
	var ev SessionEvent
	if err := json.Unmarshal(msg.Data, &ev); err != nil {
		reply.Code = ErrorCode(warp.ErrInvalidArgument)
		reply.Error = err.Error()
	} else if loc, err := fn(ctx, ev); err != nil {
		slog.WarnContext(ctx, "session event failed", "subject", msg.Subject, "player", ev.PlayerID, "error", err)
		reply.Code = ErrorCode(err)
		reply.Error = err.Error()
	} else {
		reply.Location = loc
	}

	Respond(ctx, msg, reply)
}

func (s *SessionEvents) join(ctx context.Context, ev SessionEvent) (warp.Location, error) {
	sess, err := s.handler.Join(ctx, ev.PlayerID, ev.Location)
	if err != nil {
		return warp.Location{}, err
	}
	return sess.Location, nil
}

func (s *SessionEvents) leave(ctx context.Context, ev SessionEvent) (warp.Location, error) {
	return warp.Location{}, s.handler.Leave(ctx, ev.PlayerID)
}

// Respond replies to msg when the sender asked for one.
func Respond(ctx context.Context, msg *nats.Msg, v any) {
	if msg.Reply == "" {
		return
	}
	data, err := json.Marshal(v)
	if err != nil {
		slog.ErrorContext(ctx, "marshalling reply", "subject", msg.Subject, "error", err)
		return
	}
	if err := msg.Respond(data); err != nil {
		slog.WarnContext(ctx, "sending reply", "subject", msg.Subject, "error", err)
	}
}
