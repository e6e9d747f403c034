package messaging

import (
	"errors"
	"fmt"

	"github.com/rakrwi/nextWarp/internal/warp"
)

const (
	// SubjectTransfer is served by the proxy: move a player to a server.
	SubjectTransfer = "nextwarp.transfer"
)

// SessionSubject is where the proxy announces a player joining or leaving
// server. event is "join" or "leave".
func SessionSubject(server string, event string) string {
	return fmt.Sprintf("nextwarp.session.%s.%s", server, event)
}

// SampleSubject is where server answers random location requests.
func SampleSubject(server string) string {
	return fmt.Sprintf("nextwarp.rtp.%s", server)
}

// TeleportSubject carries the outcome of teleports started on server.
func TeleportSubject(server string, outcome string) string {
	return fmt.Sprintf("nextwarp.teleport.%s.%s", server, outcome)
}

var errorCodes = []struct {
	code string
	err  error
}{
	{"not_found", warp.ErrNotFound},
	{"already_exists", warp.ErrAlreadyExists},
	{"world_unavailable", warp.ErrWorldUnavailable},
	{"player_offline", warp.ErrPlayerOffline},
	{"transport_failure", warp.ErrTransportFailure},
	{"no_safe_candidate", warp.ErrNoSafeCandidate},
	{"in_progress", warp.ErrTeleportInProgress},
	{"reserved_name", warp.ErrReservedName},
	{"invalid_argument", warp.ErrInvalidArgument},
}

// ErrorCode maps an error onto the code sent in replies so the other side
// can rebuild a matching sentinel.
func ErrorCode(err error) string {
	if err == nil {
		return ""
	}
	for _, c := range errorCodes {
		if errors.Is(err, c.err) {
			return c.code
		}
	}
	return "internal"
}

// CodeError rebuilds an error from a reply code and message.
func CodeError(code string, msg string) error {
	if code == "" {
		return nil
	}
	for _, c := range errorCodes {
		if c.code == code {
			return fmt.Errorf("%w: %s", c.err, msg)
		}
	}
	return fmt.Errorf("remote error: %s", msg)
}
