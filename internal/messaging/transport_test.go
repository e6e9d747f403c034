package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/pixil98/go-testutil"
	"github.com/rakrwi/nextWarp/internal/warp"
	"github.com/stretchr/testify/require"
)

// fakeProxy answers transfer requests the way the proxy would.
func fakeProxy(t *testing.T, s *NatsServer, reply func(TransferRequest) TransferReply) <-chan TransferRequest {
	t.Helper()

	seen := make(chan TransferRequest, 10)
	unsub, err := s.Subscribe(SubjectTransfer, func(msg *nats.Msg) {
		var req TransferRequest
		if err := json.Unmarshal(msg.Data, &req); err != nil {
			t.Errorf("bad transfer request: %v", err)
			return
		}
		seen <- req
		data, _ := json.Marshal(reply(req))
		_ = msg.Respond(data)
	})
	require.NoError(t, err)
	t.Cleanup(unsub)
	return seen
}

func TestTransport_Transfer(t *testing.T) {
	s := startTestServer(t)
	seen := fakeProxy(t, s, func(req TransferRequest) TransferReply {
		if req.TargetServer == "full" {
			return TransferReply{Accepted: false, Reason: "server full"}
		}
		return TransferReply{Accepted: true}
	})

	tr := NewTransport(s.Conn(), "survival", time.Second)

	err := tr.Transfer(context.Background(), "steve", "hub")
	require.NoError(t, err)

	req := <-seen
	testutil.AssertEqual(t, "request", req, TransferRequest{PlayerID: "steve", TargetServer: "hub", Origin: "survival"})

	err = tr.Transfer(context.Background(), "steve", "full")
	if !errors.Is(err, warp.ErrTransportFailure) {
		t.Errorf("expected ErrTransportFailure, got %v", err)
	}
	testutil.AssertErrorContains(t, err, "server full")
}

func TestTransport_Transfer_NoProxy(t *testing.T) {
	s := startTestServer(t)
	tr := NewTransport(s.Conn(), "survival", 100*time.Millisecond)

	err := tr.Transfer(context.Background(), "steve", "hub")
	if !errors.Is(err, warp.ErrTransportFailure) {
		t.Errorf("expected ErrTransportFailure, got %v", err)
	}
}
