package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jobrunner/leafsync/internal/domain"
	"github.com/jobrunner/leafsync/internal/ports/output"
)

// call is one queued runtime invocation.
type call struct {
	method  string
	layerID string
	args    []any
	query   bool
	result  any
	barrier bool

	// ctx and done are set for calls the caller waits on.
	ctx  context.Context
	done chan error
}

func (c *call) finish(err error) {
	if c.done != nil {
		c.done <- err
	}
}

// dispatcher executes the runtime calls of one map strictly in the order
// they were posted, on a single goroutine.
type dispatcher struct {
	mapID       string
	runtime     output.MapRuntime
	metrics     output.MetricsCollector
	logger      *slog.Logger
	callTimeout time.Duration
	onError     func(error)

	mu     sync.Mutex
	cond   *sync.Cond
	queue  []*call
	closed bool
	wg     sync.WaitGroup
}

func newDispatcher(
	mapID string,
	runtime output.MapRuntime,
	metrics output.MetricsCollector,
	logger *slog.Logger,
	callTimeout time.Duration,
	onError func(error),
) *dispatcher {
	d := &dispatcher{
		mapID:       mapID,
		runtime:     runtime,
		metrics:     metrics,
		logger:      logger,
		callTimeout: callTimeout,
		onError:     onError,
	}
	d.cond = sync.NewCond(&d.mu)

	d.wg.Add(1)
	go d.loop()
	return d
}

func (d *dispatcher) post(c *call) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return domain.ErrMapDisposed
	}
	d.queue = append(d.queue, c)
	d.cond.Signal()
	return nil
}

// detach queues a call whose failure is reported through onError.
func (d *dispatcher) detach(method, layerID string, args ...any) error {
	return d.post(&call{method: method, layerID: layerID, args: args})
}

// await queues a call and waits for it to complete. result, if not nil,
// receives the runtime's reply.
func (d *dispatcher) await(ctx context.Context, method, layerID string, result any, args ...any) error {
	c := &call{
		method:  method,
		layerID: layerID,
		args:    args,
		query:   result != nil,
		result:  result,
		ctx:     ctx,
		done:    make(chan error, 1),
	}
	if err := d.post(c); err != nil {
		return err
	}
	select {
	case err := <-c.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// flush waits until every call posted before it has been executed.
func (d *dispatcher) flush(ctx context.Context) error {
	c := &call{barrier: true, ctx: ctx, done: make(chan error, 1)}
	if err := d.post(c); err != nil {
		return err
	}
	select {
	case err := <-c.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// stop rejects new calls, drains the queue and waits for the loop to exit.
func (d *dispatcher) stop() {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		d.cond.Broadcast()
	}
	d.mu.Unlock()
	d.wg.Wait()
}

func (d *dispatcher) pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.queue)
}

func (d *dispatcher) loop() {
	defer d.wg.Done()
	for {
		d.mu.Lock()
		for len(d.queue) == 0 && !d.closed {
			d.cond.Wait()
		}
		if len(d.queue) == 0 {
			d.mu.Unlock()
			return
		}
		c := d.queue[0]
		d.queue[0] = nil
		d.queue = d.queue[1:]
		d.mu.Unlock()

		d.execute(c)
	}
}

func (d *dispatcher) execute(c *call) {
	if c.barrier {
		c.finish(nil)
		return
	}

	ctx := c.ctx
	if ctx == nil {
		ctx = context.Background()
	}
	if err := ctx.Err(); err != nil {
		c.finish(err)
		return
	}
	if d.callTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.callTimeout)
		defer cancel()
	}

	start := time.Now()
	var err error
	if c.query {
		err = d.runtime.Query(ctx, c.method, c.result, c.args...)
	} else {
		err = d.runtime.Call(ctx, c.method, c.args...)
	}
	d.metrics.ObserveBoundaryDuration(c.method, time.Since(start))
	d.metrics.IncBoundaryCalls(c.method, err == nil)

	if err != nil {
		err = d.wrap(c, err)
		d.logger.Debug("runtime call failed",
			"map", d.mapID, "method", c.method, "layer", c.layerID, "error", err)
	}

	if c.done != nil {
		c.finish(err)
		return
	}
	if err != nil && d.onError != nil {
		d.onError(err)
	}
}

func (d *dispatcher) wrap(c *call, err error) error {
	var be *domain.BoundaryError
	if errors.As(err, &be) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, domain.ErrCallTimeout) {
		err = fmt.Errorf("%w: %v", domain.ErrCallTimeout, err)
	}
	return &domain.BoundaryError{
		Method:  c.method,
		MapID:   d.mapID,
		LayerID: c.layerID,
		Err:     err,
	}
}
