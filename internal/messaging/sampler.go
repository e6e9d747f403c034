package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rakrwi/nextWarp/internal/warp"
)

const DefaultSampleTimeout = 5 * time.Second

type SampleRequest struct {
	World string `json:"world"`
}

type SampleReply struct {
	Location warp.Location `json:"location"`
	Code     string        `json:"code,omitempty"`
	Error    string        `json:"error,omitempty"`
}

// Sampler asks another server for a random safe location in one of its
// worlds. Only that server knows its terrain.
type Sampler struct {
	conn    *nats.Conn
	timeout time.Duration
}

func NewSampler(conn *nats.Conn, timeout time.Duration) *Sampler {
	if timeout <= 0 {
		timeout = DefaultSampleTimeout
	}
	return &Sampler{
		conn:    conn,
		timeout: timeout,
	}
}

func (s *Sampler) Sample(ctx context.Context, server string, world string) (warp.Location, error) {
	data, err := json.Marshal(SampleRequest{World: world})
	if err != nil {
		return warp.Location{}, fmt.Errorf("marshalling sample request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	msg, err := s.conn.RequestWithContext(ctx, SampleSubject(server), data)
	if err != nil {
		return warp.Location{}, fmt.Errorf("%w: sampling %s/%s: %w", warp.ErrTransportFailure, server, world, err)
	}

	var reply SampleReply
	if err := json.Unmarshal(msg.Data, &reply); err != nil {
		return warp.Location{}, fmt.Errorf("%w: unreadable sample reply: %w", warp.ErrTransportFailure, err)
	}
	if err := CodeError(reply.Code, reply.Error); err != nil {
		return warp.Location{}, err
	}
	return reply.Location, nil
}

// LocalSampler picks random safe locations in this server's worlds.
type LocalSampler interface {
	Sample(ctx context.Context, world string) (warp.Location, error)
}

// SamplerService answers other servers' Sampler requests.
type SamplerService struct {
	server  *NatsServer
	name    string
	sampler LocalSampler
}

func NewSamplerService(server *NatsServer, name string, sampler LocalSampler) *SamplerService {
	return &SamplerService{
		server:  server,
		name:    name,
		sampler: sampler,
	}
}

func (s *SamplerService) Subscribe(ctx context.Context) (func(), error) {
	return s.server.Subscribe(SampleSubject(s.name), func(msg *nats.Msg) {
		var req SampleRequest
		var reply SampleReply
		if err := json.Unmarshal(msg.Data, &req); err != nil {
			reply.Code = ErrorCode(warp.ErrInvalidArgument)
			reply.Error = err.Error()
			Respond(ctx, msg, reply)
			return
		}

		loc, err := s.sampler.Sample(ctx, req.World)
		if err != nil {
			reply.Code = ErrorCode(err)
			reply.Error = err.Error()
		} else {
			reply.Location = loc
		}
		Respond(ctx, msg, reply)
	})
}
