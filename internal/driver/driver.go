package driver

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"strconv"
	"sync/atomic"
	"time"
)

const (
	DefaultTickLength = 50 * time.Millisecond
	DefaultQueueSize  = 1024
)

var ErrQueueFull = errors.New("task queue full")

type Manager interface {
	Tick(context.Context) error
}

type task struct {
	ctx  context.Context
	fn   func(context.Context) error
	done chan error
}

// Driver is the main loop of a server process. Managers tick on it and
// anything that mutates in-world state is queued onto it with Schedule or Do,
// so that state is only ever touched from the loop goroutine.
type Driver struct {
	tickLength time.Duration
	queueSize  int
	managers   []Manager
	tasks      chan task

	// loop is the id of the goroutine running Tick, zero between ticks.
	loop atomic.Uint64
}

func NewDriver(managers []Manager, opts ...DriverOpt) *Driver {
	d := &Driver{
		tickLength: DefaultTickLength,
		queueSize:  DefaultQueueSize,
		managers:   managers,
	}

	for _, opt := range opts {
		opt(d)
	}
	d.tasks = make(chan task, d.queueSize)

	return d
}

func (d *Driver) Start(ctx context.Context) error {
	slog.InfoContext(ctx, "driver started", "tick", d.tickLength)

	ticker := time.NewTicker(d.tickLength)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			err := d.Tick(ctx)
			if err != nil {
				return err
			}
		}
	}
}

// Tick runs the tasks queued since the last tick, then every manager.
func (d *Driver) Tick(ctx context.Context) error {
	d.loop.Store(goroutineID())
	defer d.loop.Store(0)

	for n := len(d.tasks); n > 0; n-- {
		t := <-d.tasks
		t.done <- d.run(t)
	}

	for _, m := range d.managers {
		if err := m.Tick(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (d *Driver) run(t task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("task panicked: %v", r)
			slog.ErrorContext(t.ctx, "driver task panicked", "panic", r)
		}
	}()

	if err := t.ctx.Err(); err != nil {
		return err
	}
	return t.fn(t.ctx)
}

// Schedule queues fn for the next tick without waiting for it.
func (d *Driver) Schedule(fn func(context.Context) error) error {
	select {
	case d.tasks <- task{ctx: context.Background(), fn: fn, done: make(chan error, 1)}:
		return nil
	default:
		return ErrQueueFull
	}
}

// Do queues fn for the next tick and waits for its result. Only the caller
// waits; the loop never blocks on it. A task whose ctx is done before its
// turn is skipped. Called from the loop itself, Do runs fn immediately.
func (d *Driver) Do(ctx context.Context, fn func(context.Context) error) error {
	t := task{ctx: ctx, fn: fn, done: make(chan error, 1)}
	if d.OnLoop() {
		return d.run(t)
	}

	select {
	case d.tasks <- t:
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-t.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// OnLoop reports whether the caller is running on the loop goroutine, inside
// a task or a manager tick.
func (d *Driver) OnLoop() bool {
	id := d.loop.Load()
	return id != 0 && id == goroutineID()
}

// goroutineID reads the current goroutine's id from its stack header,
// "goroutine 42 [running]:".
func goroutineID() uint64 {
	var buf [64]byte
	b := buf[:runtime.Stack(buf[:], false)]
	b = bytes.TrimPrefix(b, []byte("goroutine "))
	if i := bytes.IndexByte(b, ' '); i >= 0 {
		b = b[:i]
	}
	id, _ := strconv.ParseUint(string(b), 10, 64)
	return id
}
