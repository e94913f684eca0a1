// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package notify

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// reportTimeout bounds a single ResultFunc call
const reportTimeout = 10 * time.Second

// ResultFunc receives the outcome of every job, on the worker goroutine
type ResultFunc func(ctx context.Context, res Result)

type Config struct {
	Workers   int
	QueueSize int
	Timeout   time.Duration // per job, across all channels
}

// Dispatcher delivers codes in the background. Submit never waits for
// delivery; outcomes are reported through the ResultFunc.
type Dispatcher struct {
	cfg      Config
	channels []Channel
	logger   *slog.Logger
	onResult ResultFunc

	jobs    chan Job
	wg      sync.WaitGroup
	mu      sync.RWMutex
	started bool
	closed  bool
}

func NewDispatcher(cfg Config, logger *slog.Logger, channels ...Channel) *Dispatcher {
	if cfg.Workers <= 0 {
		cfg.Workers = 2
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 100
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	return &Dispatcher{
		cfg:      cfg,
		channels: channels,
		logger:   logger,
		jobs:     make(chan Job, cfg.QueueSize),
	}
}

// OnResult sets the result hook. Must be called before Start.
func (d *Dispatcher) OnResult(fn ResultFunc) {
	d.onResult = fn
}

// Start launches the worker goroutines
func (d *Dispatcher) Start() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.started || d.closed {
		return
	}
	d.started = true
	for i := 0; i < d.cfg.Workers; i++ {
		d.wg.Add(1)
		go d.worker()
	}
}

// Close stops accepting jobs, drains the queue and waits for workers
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	close(d.jobs)
	started := d.started
	d.mu.Unlock()

	if started {
		d.wg.Wait()
	}
}

// Reachable lists the names of channels able to reach r
func (d *Dispatcher) Reachable(r Recipient) []string {
	names := []string{}
	for _, ch := range d.channels {
		if ch.CanReach(r) {
			names = append(names, ch.Name())
		}
	}
	return names
}

// Submit queues job without blocking
func (d *Dispatcher) Submit(job Job) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return ErrClosed
	}
	if len(job.Channels) == 0 {
		return ErrNoChannel
	}

	select {
	case d.jobs <- job:
		return nil
	default:
		return ErrQueueFull
	}
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()
	for job := range d.jobs {
		ctx, cancel := context.WithTimeout(context.Background(), d.cfg.Timeout)
		res := d.Deliver(ctx, job)
		cancel()
		if d.onResult == nil {
			continue
		}
		// The delivery deadline may already have passed; the hook gets its own.
		rctx, rcancel := context.WithTimeout(context.Background(), reportTimeout)
		d.safeReport(rctx, res)
		rcancel()
	}
}

// safeReport keeps a panicking hook from killing the worker
func (d *Dispatcher) safeReport(ctx context.Context, res Result) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("delivery result hook panicked", "panic", fmt.Sprint(r))
		}
	}()
	d.onResult(ctx, res)
}

// Deliver sends job over each of its channels concurrently and waits
func (d *Dispatcher) Deliver(ctx context.Context, job Job) Result {
	res := Result{Job: job, Failed: map[string]error{}}

	var mu sync.Mutex
	var g errgroup.Group
	for _, name := range job.Channels {
		ch := d.channel(name)
		if ch == nil {
			res.Failed[name] = fmt.Errorf("unknown channel %q", name)
			continue
		}
		g.Go(func() error {
			err := d.send(ctx, ch, job)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				res.Failed[ch.Name()] = err
			} else {
				res.Delivered = append(res.Delivered, ch.Name())
			}
			// Channels fail independently
			return nil
		})
	}
	_ = g.Wait()

	for name, err := range res.Failed {
		d.logger.Warn("otp delivery failed",
			"channel", name,
			"verification_id", job.VerificationID,
			"error", err,
		)
	}
	return res
}

func (d *Dispatcher) send(ctx context.Context, ch Channel, job Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("channel %s panicked: %v", ch.Name(), r)
		}
	}()
	return ch.Send(ctx, job.Recipient, job.Message)
}

func (d *Dispatcher) channel(name string) Channel {
	for _, ch := range d.channels {
		if ch.Name() == name {
			return ch
		}
	}
	return nil
}
