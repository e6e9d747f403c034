package messaging

import "time"

type NatsServerOpt func(*NatsServer)

// WithStartTimeout sets the startup timeout for the nats server
func WithStartTimeout(d time.Duration) NatsServerOpt {
	return func(n *NatsServer) {
		n.startupTimeout = d
	}
}

// WithHost sets the host for the nats server
func WithHost(host string) NatsServerOpt {
	return func(n *NatsServer) {
		n.host = host
	}
}

// WithPort sets the port for the nats server. -1 picks a free port.
func WithPort(port int) NatsServerOpt {
	return func(n *NatsServer) {
		n.port = port
	}
}

// WithURL connects to an existing cluster instead of starting a server.
func WithURL(url string) NatsServerOpt {
	return func(n *NatsServer) {
		n.url = url
	}
}

// WithStoreDir sets where the embedded server keeps JetStream data.
func WithStoreDir(dir string) NatsServerOpt {
	return func(n *NatsServer) {
		n.storeDir = dir
	}
}

// WithName sets the connection name, normally the game server's name.
func WithName(name string) NatsServerOpt {
	return func(n *NatsServer) {
		n.name = name
	}
}
