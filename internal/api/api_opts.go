package api

import (
	"context"

	"github.com/rakrwi/nextWarp/internal/servers"
)

// Scheduler queues work onto the main loop without waiting for it.
type Scheduler interface {
	Schedule(fn func(context.Context) error) error
}

// ServerLister lists the servers currently on the network.
type ServerLister interface {
	List(ctx context.Context) ([]servers.Info, error)
}

type APIOpt func(*API)

// WithScheduler delivers the callbacks of the async calls on the main loop.
func WithScheduler(s Scheduler) APIOpt {
	return func(a *API) {
		a.scheduler = s
	}
}

// WithServerLister enables GetServers.
func WithServerLister(l ServerLister) APIOpt {
	return func(a *API) {
		a.serverLister = l
	}
}
