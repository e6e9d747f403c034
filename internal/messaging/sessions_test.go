package messaging

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/pixil98/go-testutil"
	"github.com/rakrwi/nextWarp/internal/driver"
	"github.com/rakrwi/nextWarp/internal/warp"
	"github.com/rakrwi/nextWarp/internal/world"
	"github.com/stretchr/testify/require"
)

func TestSessionEvents(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s := startTestServer(t)

	d := driver.NewDriver(nil, driver.WithTickLength(time.Millisecond))
	go func() { _ = d.Start(ctx) }()

	ws := world.NewWorldState(map[string]*world.World{
		"overworld": {MinY: 0, MaxY: 256, SurfaceY: 64, Border: warp.Region{MinX: -100, MaxX: 100, MinZ: -100, MaxZ: 100}},
	}, d)

	lobby := warp.Location{World: "overworld", Position: warp.Position{X: 10, Y: 65, Z: -3}, Orientation: warp.Orientation{Yaw: 90}}
	ws.SetArrivalHook(func(_ context.Context, playerID string) (warp.Location, bool) {
		return lobby, playerID == "steve"
	})

	unsub, err := NewSessionEvents(s, "hub", ws).Subscribe(ctx)
	require.NoError(t, err)
	defer unsub()

	request := func(event string, ev SessionEvent) SessionReply {
		t.Helper()
		data, err := json.Marshal(ev)
		require.NoError(t, err)
		msg, err := s.Conn().Request(SessionSubject("hub", event), data, 5*time.Second)
		require.NoError(t, err)
		var reply SessionReply
		require.NoError(t, json.Unmarshal(msg.Data, &reply))
		return reply
	}

	spawn := warp.Location{World: "overworld", Position: warp.Position{Y: 64}}

	reply := request("join", SessionEvent{PlayerID: "steve", Location: spawn})
	testutil.AssertEqual(t, "code", reply.Code, "")
	testutil.AssertEqual(t, "placed at pending destination", reply.Location, lobby)
	testutil.AssertEqual(t, "online", ws.Online("steve"), true)

	reply = request("join", SessionEvent{PlayerID: "alex", Location: spawn})
	testutil.AssertEqual(t, "placed at join location", reply.Location, spawn)

	reply = request("join", SessionEvent{PlayerID: "notch", Location: warp.Location{World: "end"}})
	testutil.AssertEqual(t, "unknown world", reply.Code, "world_unavailable")

	reply = request("leave", SessionEvent{PlayerID: "steve"})
	testutil.AssertEqual(t, "leave code", reply.Code, "")
	testutil.AssertEqual(t, "online after leave", ws.Online("steve"), false)

	reply = request("leave", SessionEvent{PlayerID: "steve"})
	testutil.AssertEqual(t, "second leave", reply.Code, "player_offline")
}
