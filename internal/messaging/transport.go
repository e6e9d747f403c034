package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rakrwi/nextWarp/internal/warp"
)

const DefaultTransferTimeout = 5 * time.Second

type TransferRequest struct {
	PlayerID     string `json:"player_id"`
	TargetServer string `json:"target_server"`
	Origin       string `json:"origin"`
}

type TransferReply struct {
	Accepted bool   `json:"accepted"`
	Reason   string `json:"reason,omitempty"`
}

// Transport asks the proxy to move a player's connection to another server.
// The proxy answers once it has accepted or rejected the hop; it never
// reports the arrival.
type Transport struct {
	conn    *nats.Conn
	origin  string
	timeout time.Duration
}

func NewTransport(conn *nats.Conn, origin string, timeout time.Duration) *Transport {
	if timeout <= 0 {
		timeout = DefaultTransferTimeout
	}
	return &Transport{
		conn:    conn,
		origin:  origin,
		timeout: timeout,
	}
}

func (t *Transport) Transfer(ctx context.Context, playerID string, server string) error {
	data, err := json.Marshal(TransferRequest{
		PlayerID:     playerID,
		TargetServer: server,
		Origin:       t.origin,
	})
	if err != nil {
		return fmt.Errorf("marshalling transfer: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	msg, err := t.conn.RequestWithContext(ctx, SubjectTransfer, data)
	if err != nil {
		return fmt.Errorf("%w: requesting transfer of %s to %s: %w", warp.ErrTransportFailure, playerID, server, err)
	}

	var reply TransferReply
	if err := json.Unmarshal(msg.Data, &reply); err != nil {
		return fmt.Errorf("%w: unreadable transfer reply: %w", warp.ErrTransportFailure, err)
	}
	if !reply.Accepted {
		return fmt.Errorf("%w: transfer of %s to %s rejected: %s", warp.ErrTransportFailure, playerID, server, reply.Reason)
	}
	return nil
}
