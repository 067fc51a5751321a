package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/eapache/queue"
	"github.com/guillermoBallester/querytap/internal/core/domain"
	"github.com/guillermoBallester/querytap/internal/core/port"
)

// DefaultQueueCapacity bounds each sink's pending records when the sink
// config leaves it unset.
const DefaultQueueCapacity = 256

var (
	ErrQueueFull        = errors.New("sink queue full")
	ErrDispatcherClosed = errors.New("dispatcher closed")
)

// SinkConfig controls which records a sink receives and how many may wait
// for it.
type SinkConfig struct {
	// MinLevel is the lowest record level the sink receives. Nil accepts
	// every level.
	MinLevel slog.Leveler
	// Ignore lists event names the sink never receives. A nil slice means
	// domain.DefaultIgnoreNames; an empty non-nil slice ignores nothing.
	Ignore        []string
	QueueCapacity int
}

// Registration pairs a sink with its config.
type Registration struct {
	Sink   port.Sink
	Config SinkConfig
}

// SinkStats is a point-in-time view of one sink's queue.
type SinkStats struct {
	Name      string `json:"name"`
	Queued    int    `json:"queued"`
	Delivered uint64 `json:"delivered"`
	Dropped   uint64 `json:"dropped"`
	Failed    uint64 `json:"failed"`
}

// Dispatcher fans records out to sinks. Every sink has its own bounded
// queue and delivery goroutine: Emit never blocks, a full queue evicts its
// oldest record, and a failing or slow sink never affects the others.
type Dispatcher struct {
	workers []*sinkWorker
	diag    port.Diagnostics
	inst    port.Instrumentation
	logger  *slog.Logger

	startOnce sync.Once
	stopOnce  sync.Once
	closeOnce sync.Once
	closed    atomic.Bool
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
}

func NewDispatcher(diag port.Diagnostics, inst port.Instrumentation, logger *slog.Logger, regs ...Registration) *Dispatcher {
	if diag == nil {
		diag = port.NoopDiagnostics{}
	}
	if inst == nil {
		inst = port.NoopInstrumentation{}
	}
	ctx, cancel := context.WithCancel(context.Background())
	d := &Dispatcher{
		diag:   diag,
		inst:   inst,
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
	}
	for _, reg := range regs {
		if reg.Sink == nil {
			continue
		}
		d.workers = append(d.workers, newSinkWorker(reg))
	}
	return d
}

// Start launches one delivery goroutine per sink. Records emitted before
// Start wait in their queues.
func (d *Dispatcher) Start() {
	d.startOnce.Do(func() {
		for _, w := range d.workers {
			d.wg.Add(1)
			go func(w *sinkWorker) {
				defer d.wg.Done()
				w.run(d)
			}(w)
		}
	})
}

// Emit queues rec for every enabled sink whose level threshold it meets.
func (d *Dispatcher) Emit(ctx context.Context, rec port.Record) {
	if d.closed.Load() {
		return
	}
	for _, w := range d.workers {
		if !w.accepts(rec) {
			continue
		}
		if err := w.enqueue(rec); err != nil {
			if errors.Is(err, ErrQueueFull) {
				d.inst.IncrementSinkDropped(ctx, w.name)
			}
		}
	}
}

// Dropped returns how many records the named sink has lost to queue
// overflow or shutdown.
func (d *Dispatcher) Dropped(name string) uint64 {
	for _, w := range d.workers {
		if w.name == name {
			return w.dropped.Load()
		}
	}
	return 0
}

func (d *Dispatcher) Stats() []SinkStats {
	out := make([]SinkStats, 0, len(d.workers))
	for _, w := range d.workers {
		out = append(out, w.stats())
	}
	return out
}

// Shutdown stops accepting records and waits for the sinks to drain their
// queues. When ctx expires first, the remaining records are discarded and
// counted as dropped before it returns, in-flight writes see a cancelled
// context, and ctx.Err() is returned without waiting further. Sinks are
// closed on the first call only; later calls are safe.
func (d *Dispatcher) Shutdown(ctx context.Context) error {
	d.closed.Store(true)
	d.Start() // a never-started dispatcher still drains
	d.stopOnce.Do(func() {
		for _, w := range d.workers {
			w.close()
		}
	})

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	var err error
	select {
	case <-done:
	case <-ctx.Done():
		d.cancel()
		for _, w := range d.workers {
			w.discard()
		}
		err = ctx.Err()
		if d.logger != nil {
			d.logger.Warn("sink shutdown grace period elapsed; pending records discarded",
				slog.String("error", err.Error()),
			)
		}
	}

	d.closeOnce.Do(func() {
		for _, w := range d.workers {
			if c, ok := w.sink.(port.Closer); ok {
				if cerr := c.Close(); cerr != nil {
					d.diag.Report(context.WithoutCancel(ctx), fmt.Errorf("closing sink %s: %w", w.name, cerr))
				}
			}
		}
	})
	if err == nil {
		d.cancel()
	}
	return err
}

type sinkWorker struct {
	name     string
	sink     port.Sink
	minLevel slog.Leveler
	ignore   map[string]struct{}
	capacity int

	mu      sync.Mutex
	pending *queue.Queue
	closed  bool
	notify  chan struct{}

	delivered atomic.Uint64
	dropped   atomic.Uint64
	failed    atomic.Uint64
}

func newSinkWorker(reg Registration) *sinkWorker {
	ignoreNames := reg.Config.IgnoreNames()
	ignore := make(map[string]struct{}, len(ignoreNames))
	for _, n := range ignoreNames {
		ignore[n] = struct{}{}
	}
	capacity := reg.Config.QueueCapacity
	if capacity <= 0 {
		capacity = DefaultQueueCapacity
	}
	return &sinkWorker{
		name:     reg.Sink.Name(),
		sink:     reg.Sink,
		minLevel: reg.Config.MinLevel,
		ignore:   ignore,
		capacity: capacity,
		pending:  queue.New(),
		notify:   make(chan struct{}, 1),
	}
}

func (w *sinkWorker) accepts(rec port.Record) bool {
	if w.minLevel != nil && rec.Level < w.minLevel.Level() {
		return false
	}
	_, ignored := w.ignore[rec.Event.Name]
	return !ignored
}

// enqueue appends rec, evicting the oldest pending record when full. It
// returns ErrQueueFull when an eviction happened; rec itself is queued.
func (w *sinkWorker) enqueue(rec port.Record) error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return ErrDispatcherClosed
	}
	var err error
	if w.pending.Length() >= w.capacity {
		w.pending.Remove()
		w.dropped.Add(1)
		err = ErrQueueFull
	}
	w.pending.Add(rec)
	w.mu.Unlock()

	select {
	case w.notify <- struct{}{}:
	default:
	}
	return err
}

func (w *sinkWorker) pop() (port.Record, bool, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.pending.Length() == 0 {
		return port.Record{}, false, w.closed
	}
	return w.pending.Remove().(port.Record), true, w.closed
}

func (w *sinkWorker) close() {
	w.mu.Lock()
	w.closed = true
	w.mu.Unlock()
	select {
	case w.notify <- struct{}{}:
	default:
	}
}

// discard empties the queue after the shutdown grace period expired.
func (w *sinkWorker) discard() {
	w.mu.Lock()
	defer w.mu.Unlock()
	n := w.pending.Length()
	for w.pending.Length() > 0 {
		w.pending.Remove()
	}
	w.dropped.Add(uint64(n))
}

func (w *sinkWorker) run(d *Dispatcher) {
	for {
		if d.ctx.Err() != nil {
			w.discard()
			return
		}
		rec, ok, closed := w.pop()
		if ok {
			w.deliver(d, rec)
			continue
		}
		if closed {
			return
		}
		select {
		case <-w.notify:
		case <-d.ctx.Done():
		}
	}
}

func (w *sinkWorker) deliver(d *Dispatcher, rec port.Record) {
	err := w.write(d.ctx, rec)
	if err == nil {
		w.delivered.Add(1)
		return
	}
	w.failed.Add(1)
	d.inst.IncrementSinkErrors(d.ctx, w.name)
	d.diag.Report(d.ctx, &port.SinkWriteError{Sink: w.name, Err: err})
}

func (w *sinkWorker) write(ctx context.Context, rec port.Record) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return w.sink.Write(ctx, rec)
}

func (w *sinkWorker) stats() SinkStats {
	w.mu.Lock()
	queued := w.pending.Length()
	w.mu.Unlock()
	return SinkStats{
		Name:      w.name,
		Queued:    queued,
		Delivered: w.delivered.Load(),
		Dropped:   w.dropped.Load(),
		Failed:    w.failed.Load(),
	}
}

// IgnoreNames returns the names a sink config ignores, resolving the nil
// default.
func (c SinkConfig) IgnoreNames() []string {
	if c.Ignore == nil {
		return slices.Clone(domain.DefaultIgnoreNames)
	}
	return slices.Clone(c.Ignore)
}
