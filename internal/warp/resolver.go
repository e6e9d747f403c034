package warp

import (
	"fmt"
)

type RouteKind int

const (
	RouteLocal RouteKind = iota
	RouteRemote
)

func (k RouteKind) String() string {
	switch k {
	case RouteLocal:
		return "local"
	case RouteRemote:
		return "remote"
	default:
		return fmt.Sprintf("RouteKind(%d)", int(k))
	}
}

// Route is where a teleport goes. Warp is empty for ad-hoc destinations
// that do not come from the directory.
type Route struct {
	Kind     RouteKind
	Server   string
	Location Location
	Warp     string
}

// Classify compares the record's server with current. It depends on nothing
// else: equal strings are local, anything else is remote.
func Classify(rec Record, current string) (Route, error) {
	if current == "" {
		return Route{}, fmt.Errorf("%w: current server is not set", ErrInvalidArgument)
	}

	kind := RouteRemote
	if rec.Server == current {
		kind = RouteLocal
	}

	return Route{
		Kind:     kind,
		Server:   rec.Server,
		Location: rec.Location,
		Warp:     rec.Name,
	}, nil
}

type WorldChecker interface {
	WorldLoaded(world string) bool
}

// Resolver classifies destinations for one server process and checks that
// local ones point at a loaded world.
type Resolver struct {
	server string
	worlds WorldChecker
}

func NewResolver(server string, worlds WorldChecker) *Resolver {
	return &Resolver{
		server: server,
		worlds: worlds,
	}
}

func (r *Resolver) Server() string {
	return r.server
}

func (r *Resolver) Resolve(rec Record) (Route, error) {
	route, err := Classify(rec, r.server)
	if err != nil {
		return Route{}, err
	}
	return r.check(route)
}

// Destination routes an ad-hoc location on server.
func (r *Resolver) Destination(server string, loc Location) (Route, error) {
	if server == "" {
		return Route{}, fmt.Errorf("%w: server is required", ErrInvalidArgument)
	}
	return r.Resolve(Record{Server: server, Location: loc})
}

func (r *Resolver) check(route Route) (Route, error) {
	if route.Kind == RouteLocal && !r.worlds.WorldLoaded(route.Location.World) {
		return Route{}, fmt.Errorf("%w: %q", ErrWorldUnavailable, route.Location.World)
	}
	return route, nil
}
