package teleport

import (
	"context"
	"sync"
	"time"
)

// Cooldowns tracks per-player waiting periods between teleports of a kind.
// A kind with no configured duration never cools down.
type Cooldowns struct {
	durations map[Kind]time.Duration
	now       func() time.Time

	mu    sync.Mutex
	until map[cooldownKey]time.Time
}

type cooldownKey struct {
	player string
	kind   Kind
}

func NewCooldowns(durations map[Kind]time.Duration) *Cooldowns {
	return &Cooldowns{
		durations: durations,
		now:       time.Now,
		until:     map[cooldownKey]time.Time{},
	}
}

// Remaining is how long the player must still wait. Zero means ready.
func (c *Cooldowns) Remaining(playerID string, kind Kind) time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()

	until, ok := c.until[cooldownKey{player: playerID, kind: kind}]
	if !ok {
		return 0
	}
	return max(until.Sub(c.now()), 0)
}

// Touch starts the cooldown of kind for the player.
func (c *Cooldowns) Touch(playerID string, kind Kind) {
	d := c.durations[kind]
	if d <= 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.until[cooldownKey{player: playerID, kind: kind}] = c.now().Add(d)
}

// Tick forgets cooldowns that have run out.
func (c *Cooldowns) Tick(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	for k, until := range c.until {
		if !until.After(now) {
			delete(c.until, k)
		}
	}
	return nil
}
