package command

import (
	"fmt"
	"time"

	"github.com/pixil98/go-errors"
	"github.com/rakrwi/nextWarp/internal/driver"
	"github.com/rakrwi/nextWarp/internal/node"
	"github.com/rakrwi/nextWarp/internal/servers"
	"github.com/rakrwi/nextWarp/internal/world"
)

type Config struct {
	ServerName   string         `json:"server_name"`
	TickInterval string         `json:"tick_interval"`
	Nats         NatsConfig     `json:"nats"`
	Storage      StorageConfig  `json:"storage"`
	Worlds       WorldsConfig   `json:"worlds"`
	Teleport     TeleportConfig `json:"teleport"`
	RandomTp     RandomTpConfig `json:"random_tp"`
	Cooldown     CooldownConfig `json:"cooldown"`
	Presence     PresenceConfig `json:"presence"`
}

func (c *Config) Validate() error {
	el := errors.NewErrorList()

	if c.ServerName == "" {
		el.Add(fmt.Errorf("server_name is required"))
	}

	d, err := parseDuration("tick_interval", c.TickInterval, driver.DefaultTickLength)
	if err != nil {
		el.Add(err)
	} else if d <= 0 {
		el.Add(fmt.Errorf("tick_interval must be positive"))
	}

	el.Add(c.Nats.validate())
	el.Add(c.Storage.validate())
	el.Add(c.Worlds.validate())
	el.Add(c.Teleport.validate())
	el.Add(c.RandomTp.validate())
	el.Add(c.Cooldown.validate())
	el.Add(c.Presence.validate())

	return el.Err()
}

func (c *Config) tickLength() time.Duration {
	d, _ := parseDuration("tick_interval", c.TickInterval, driver.DefaultTickLength)
	return d
}

func (c *Config) nodeConfig(worlds map[string]*world.World) node.Config {
	return node.Config{
		Server:          c.ServerName,
		Worlds:          worlds,
		WarpsPath:       c.Storage.warpsPath(),
		WarpsBucket:     c.Storage.Bucket,
		PendingTTL:      c.Teleport.pendingTTL(),
		TransferTimeout: c.Teleport.transferTimeout(),
		SampleTimeout:   c.Teleport.sampleTimeout(),
		Heartbeat:       c.Presence.heartbeat(),
		PresenceTTL:     c.Presence.ttl(),
		Selector:        c.RandomTp.selectorConfig(),
	}
}

type WorldsConfig struct {
	Path string `json:"path"`
}

func (c *WorldsConfig) validate() error {
	if c.Path == "" {
		return fmt.Errorf("worlds: path is required")
	}
	return nil
}

func (c *WorldsConfig) load() (map[string]*world.World, error) {
	return world.LoadWorlds(c.Path)
}

type PresenceConfig struct {
	Heartbeat string `json:"heartbeat"`
	TTL       string `json:"ttl"`
}

func (c *PresenceConfig) validate() error {
	el := errors.NewErrorList()

	hb, err := parseDuration("presence.heartbeat", c.Heartbeat, servers.DefaultHeartbeat)
	el.Add(err)
	ttl, err := parseDuration("presence.ttl", c.TTL, servers.DefaultTTL)
	el.Add(err)

	if el.Err() == nil && ttl <= hb {
		el.Add(fmt.Errorf("presence.ttl must be longer than presence.heartbeat"))
	}

	return el.Err()
}

func (c *PresenceConfig) heartbeat() time.Duration {
	d, _ := parseDuration("presence.heartbeat", c.Heartbeat, servers.DefaultHeartbeat)
	return d
}

func (c *PresenceConfig) ttl() time.Duration {
	d, _ := parseDuration("presence.ttl", c.TTL, servers.DefaultTTL)
	return d
}

// parseDuration reads an optional duration setting. Empty means def.
func parseDuration(field string, s string, def time.Duration) (time.Duration, error) {
	if s == "" {
		return def, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return def, fmt.Errorf("parsing %s: %w", field, err)
	}
	return d, nil
}
