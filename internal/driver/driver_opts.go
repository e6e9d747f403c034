package driver

import "time"

type DriverOpt func(*Driver)

func WithTickLength(tickLength time.Duration) DriverOpt {
	return func(d *Driver) {
		d.tickLength = tickLength
	}
}

// WithQueueSize bounds how many tasks may wait for the next tick.
func WithQueueSize(size int) DriverOpt {
	return func(d *Driver) {
		d.queueSize = size
	}
}
