package command

import (
	"fmt"
	"time"

	"github.com/pixil98/go-errors"
	"github.com/rakrwi/nextWarp/internal/messaging"
	"github.com/rakrwi/nextWarp/internal/teleport"
	"github.com/rakrwi/nextWarp/internal/warp"
)

type MarkerBackend string

const (
	MarkerBackendKV MarkerBackend = "kv"
	// MarkerBackendMemory keeps pending teleports in this process only. It
	// suits a single server; arrivals on other processes never see them.
	MarkerBackendMemory MarkerBackend = "memory"
)

type TeleportConfig struct {
	PendingTTL      string        `json:"pending_ttl"`
	TransferTimeout string        `json:"transfer_timeout"`
	SampleTimeout   string        `json:"sample_timeout"`
	Markers         MarkerBackend `json:"markers"`
}

func (c *TeleportConfig) validate() error {
	el := errors.NewErrorList()

	switch c.Markers {
	case "", MarkerBackendKV, MarkerBackendMemory:
	default:
		el.Add(fmt.Errorf("teleport.markers: unknown backend %q", c.Markers))
	}

	for field, v := range map[string]string{
		"teleport.pending_ttl":      c.PendingTTL,
		"teleport.transfer_timeout": c.TransferTimeout,
		"teleport.sample_timeout":   c.SampleTimeout,
	} {
		d, err := parseDuration(field, v, time.Second)
		if err != nil {
			el.Add(err)
		} else if d <= 0 {
			el.Add(fmt.Errorf("%s must be positive", field))
		}
	}

	return el.Err()
}

// memoryMarkers returns the in-process marker store, or nil when markers
// live in NATS.
func (c *TeleportConfig) memoryMarkers() *teleport.MemoryMarkers {
	if c.Markers != MarkerBackendMemory {
		return nil
	}
	return teleport.NewMemoryMarkers(c.pendingTTL())
}

func (c *TeleportConfig) pendingTTL() time.Duration {
	d, _ := parseDuration("teleport.pending_ttl", c.PendingTTL, teleport.DefaultPendingTTL)
	return d
}

func (c *TeleportConfig) transferTimeout() time.Duration {
	d, _ := parseDuration("teleport.transfer_timeout", c.TransferTimeout, messaging.DefaultTransferTimeout)
	return d
}

func (c *TeleportConfig) sampleTimeout() time.Duration {
	d, _ := parseDuration("teleport.sample_timeout", c.SampleTimeout, messaging.DefaultSampleTimeout)
	return d
}

type RandomTpConfig struct {
	MinX            float64  `json:"min_x"`
	MaxX            float64  `json:"max_x"`
	MinZ            float64  `json:"min_z"`
	MaxZ            float64  `json:"max_z"`
	DefaultWorld    string   `json:"default_world"`
	MaxAttempts     int      `json:"max_attempts"`
	DisabledServers []string `json:"disabled_servers"`
}

func (c *RandomTpConfig) region() warp.Region {
	return warp.Region{MinX: c.MinX, MaxX: c.MaxX, MinZ: c.MinZ, MaxZ: c.MaxZ}
}

func (c *RandomTpConfig) validate() error {
	el := errors.NewErrorList()

	if c.DefaultWorld == "" {
		el.Add(fmt.Errorf("random_tp.default_world is required"))
	}
	if c.MaxAttempts < 0 {
		el.Add(fmt.Errorf("random_tp.max_attempts must not be negative"))
	}
	if err := c.region().Validate(); err != nil {
		el.Add(fmt.Errorf("random_tp: %w", err))
	}

	return el.Err()
}

func (c *RandomTpConfig) selectorConfig() teleport.SelectorConfig {
	return teleport.SelectorConfig{
		Region:       c.region(),
		DefaultWorld: c.DefaultWorld,
		MaxAttempts:  c.MaxAttempts,
		Disabled:     c.DisabledServers,
	}
}

type CooldownSetting struct {
	Enabled bool `json:"enabled"`
	Seconds int  `json:"seconds"`
}

type CooldownConfig struct {
	Warp     CooldownSetting `json:"warp"`
	RandomTp CooldownSetting `json:"random_tp"`
	Spawn    CooldownSetting `json:"spawn"`
}

func (c *CooldownConfig) validate() error {
	el := errors.NewErrorList()

	for name, s := range map[string]CooldownSetting{
		"warp":      c.Warp,
		"random_tp": c.RandomTp,
		"spawn":     c.Spawn,
	} {
		if s.Seconds < 0 {
			el.Add(fmt.Errorf("cooldown.%s.seconds must not be negative", name))
		}
	}

	return el.Err()
}

func (c *CooldownConfig) durations() map[teleport.Kind]time.Duration {
	durations := map[teleport.Kind]time.Duration{}
	for kind, s := range map[teleport.Kind]CooldownSetting{
		teleport.KindWarp:   c.Warp,
		teleport.KindRandom: c.RandomTp,
		teleport.KindSpawn:  c.Spawn,
	} {
		if s.Enabled && s.Seconds > 0 {
			durations[kind] = time.Duration(s.Seconds) * time.Second
		}
	}
	return durations
}
