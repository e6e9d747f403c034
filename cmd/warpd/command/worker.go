package command

import (
	"fmt"

	"github.com/pixil98/go-service"
	"github.com/rakrwi/nextWarp/internal/driver"
	"github.com/rakrwi/nextWarp/internal/node"
	"github.com/rakrwi/nextWarp/internal/teleport"
)

func BuildWorkers(config interface{}) (service.WorkerList, error) {
	cfg, ok := config.(*Config)
	if !ok {
		return nil, fmt.Errorf("unable to cast config")
	}

	natsServer, err := cfg.Nats.buildNatsServer(cfg.ServerName)
	if err != nil {
		return nil, fmt.Errorf("creating nats server: %w", err)
	}

	worlds, err := cfg.Worlds.load()
	if err != nil {
		return nil, fmt.Errorf("loading worlds: %w", err)
	}

	cooldowns := teleport.NewCooldowns(cfg.Cooldown.durations())
	managers := []driver.Manager{cooldowns}

	nodeCfg := cfg.nodeConfig(worlds)
	if markers := cfg.Teleport.memoryMarkers(); markers != nil {
		nodeCfg.Markers = markers
		managers = append(managers, markers)
	}

	// The driver is the main thread every world mutation runs on
	d := driver.NewDriver(managers, driver.WithTickLength(cfg.tickLength()))

	n := node.New(nodeCfg, natsServer, d, cooldowns)

	return service.WorkerList{
		"nats":   natsServer,
		"driver": d,
		"node":   n,
	}, nil
}
