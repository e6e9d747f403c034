package messaging

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/rakrwi/nextWarp/internal/teleport"
)

// TeleportReporter publishes teleport outcomes so other processes, such as a
// chat or command front-end, can tell players what happened.
type TeleportReporter struct {
	server *NatsServer
	name   string
}

func NewTeleportReporter(server *NatsServer, name string) *TeleportReporter {
	return &TeleportReporter{
		server: server,
		name:   name,
	}
}

func (p *TeleportReporter) Report(ctx context.Context, r teleport.Result) {
	data, err := json.Marshal(r)
	if err != nil {
		slog.ErrorContext(ctx, "marshalling teleport result", "error", err)
		return
	}
	if err := p.server.Publish(TeleportSubject(p.name, r.Outcome.String()), data); err != nil {
		slog.WarnContext(ctx, "publishing teleport result", "player", r.PlayerID, "error", err)
	}
}
