package command

import (
	"fmt"

	"github.com/pixil98/go-errors"
	"github.com/rakrwi/nextWarp/internal/messaging"
)

// NatsConfig selects the broker. With a url the process joins the shared
// NATS every server connects to; without one it runs an embedded server.
type NatsConfig struct {
	Host         string `json:"host"`
	Port         int    `json:"port"`
	URL          string `json:"url"`
	StartTimeout string `json:"start_timeout"`
	StoreDir     string `json:"store_dir"`
}

func (c *NatsConfig) validate() error {
	el := errors.NewErrorList()

	if c.StartTimeout != "" {
		d, err := parseDuration("nats.start_timeout", c.StartTimeout, 0)
		if err != nil {
			el.Add(err)
		} else if d <= 0 {
			el.Add(fmt.Errorf("nats.start_timeout must be positive"))
		}
	}
	if c.Port < -1 || c.Port > 65535 {
		el.Add(fmt.Errorf("nats.port %d is out of range", c.Port))
	}
	if c.URL != "" && (c.Host != "" || c.Port != 0 || c.StoreDir != "") {
		el.Add(fmt.Errorf("nats.url cannot be combined with host, port or store_dir"))
	}

	return el.Err()
}

func (c *NatsConfig) buildNatsServer(name string) (*messaging.NatsServer, error) {
	opts := []messaging.NatsServerOpt{messaging.WithName(name)}
	if c.StartTimeout != "" {
		d, err := parseDuration("nats.start_timeout", c.StartTimeout, 0)
		if err != nil {
			return nil, err
		}
		opts = append(opts, messaging.WithStartTimeout(d))
	}
	if c.URL != "" {
		opts = append(opts, messaging.WithURL(c.URL))
	}
	if c.Host != "" {
		opts = append(opts, messaging.WithHost(c.Host))
	}
	if c.Port != 0 {
		opts = append(opts, messaging.WithPort(c.Port))
	}
	if c.StoreDir != "" {
		opts = append(opts, messaging.WithStoreDir(c.StoreDir))
	}

	s, err := messaging.NewNatsServer(opts...)
	if err != nil {
		return nil, err
	}

	return s, nil
}
