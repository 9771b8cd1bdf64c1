package aggregator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"batchwatch/internal/logger"
	"batchwatch/internal/model"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Aggregator buffers raw change events from a Source and delivers them to
// its subscribers in one batch per debounce window.
//
// At most one flush runs at a time and at most one timer is pending. Events
// arriving while a flush delivers are kept for the next batch, which is
// scheduled with zero delay once the running flush completes.
type Aggregator struct {
	ctx    context.Context
	cancel context.CancelFunc

	source  Source
	targets []string
	opts    Options

	mu          sync.Mutex
	handle      Handle
	stopped     bool
	subscribers []Subscriber
	ready       bool
	readyQueue  []ReadyFunc
	events      []model.ChangeEvent
	timer       *time.Timer
	flushing    bool
	flushWG     sync.WaitGroup

	startedAt time.Time
	lastFlush *time.Time
	flushes   uint64
	delivered uint64
	failures  uint64
}

// New creates an Aggregator. An unset timeout, error policy or delivery mode
// falls back to DefaultOptions. Subscriber entries are normalised with NormalizeSubscribers. When opts.Autostart is set the source is started
// before New returns.
func New(ctx context.Context, source Source, targets []string, subscribers []any, opts Options) (*Aggregator, error) {
	if source == nil {
		return nil, fmt.Errorf("watch source is required")
	}

	if opts.Timeout == 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.ErrorPolicy == "" {
		opts.ErrorPolicy = FailFast
	}
	if opts.Delivery == "" {
		opts.Delivery = Sequential
	}
	if err := opts.validate(); err != nil {
		return nil, err
	}

	subs, err := NormalizeSubscribers(opts.StrictSubscribers, subscribers...)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(ctx)
	a := &Aggregator{
		ctx:         ctx,
		cancel:      cancel,
		source:      source,
		targets:     append([]string(nil), targets...),
		opts:        opts,
		subscribers: subs,
		readyQueue:  append([]ReadyFunc(nil), opts.OnReady...),
	}

	if opts.Autostart {
		if err := a.Start(); err != nil {
			cancel()
			return nil, err
		}
	}

	return a, nil
}

// Start begins watching. Calling it on a running aggregator does nothing.
func (a *Aggregator) Start() error {
	a.mu.Lock()
	if a.stopped {
		a.mu.Unlock()
		return ErrStopped
	}
	if a.handle != nil {
		a.mu.Unlock()
		return nil
	}

	handle, err := a.source.Watch(a.targets, a.opts.SourceOptions)
	if err != nil {
		a.mu.Unlock()
		return fmt.Errorf("failed to start watch source: %w", err)
	}

	a.handle = handle
	a.startedAt = time.Now()
	subs := len(a.subscribers)
	a.mu.Unlock()

	logger.Log.Info("aggregator started",
		zap.Strings("targets", a.targets),
		zap.Duration("timeout", a.opts.Timeout),
		zap.Int("subscribers", subs))

	// a source may report readiness from inside OnReady, so no lock is held here
	handle.OnReady(func() {
		a.handleReady(handle)
	})

	return nil
}

func (a *Aggregator) handleReady(handle Handle) {
	a.mu.Lock()
	if a.ready || a.stopped {
		a.mu.Unlock()
		return
	}
	a.ready = true
	queue := a.readyQueue
	a.readyQueue = nil
	a.mu.Unlock()

	handle.OnEvent(a.handleEvent)

	logger.Log.Debug("watch source ready",
		zap.Int("ready_callbacks", len(queue)))

	go a.drainReady(queue)
}

func (a *Aggregator) drainReady(queue []ReadyFunc) {
	for i, fn := range queue {
		if err := fn(a.ctx); err != nil {
			logger.Log.Warn("ready callback failed",
				zap.Int("index", i),
				zap.Error(err))
		}
	}
}

func (a *Aggregator) handleEvent(kind, path string) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.stopped {
		return
	}

	a.events = append(a.events, model.ChangeEvent{
		Kind: model.EventKind(kind),
		Path: path,
	})

	if a.timer == nil && !a.flushing {
		a.scheduleLocked(a.opts.Timeout)
	}
}

func (a *Aggregator) scheduleLocked(delay time.Duration) {
	a.flushWG.Add(1)
	a.timer = time.AfterFunc(delay, func() {
		defer a.flushWG.Done()
		a.runCallbacks()
	})
}

func (a *Aggregator) runCallbacks() {
	a.mu.Lock()
	a.timer = nil
	if a.stopped || a.flushing || len(a.events) == 0 {
		a.mu.Unlock()
		return
	}

	batch := a.events
	a.events = nil
	a.flushing = true
	subs := append([]Subscriber(nil), a.subscribers...)
	a.mu.Unlock()

	err := a.deliver(batch, subs)

	a.mu.Lock()
	a.flushing = false
	now := time.Now()
	a.lastFlush = &now
	a.flushes++
	a.delivered += uint64(len(batch))
	if err != nil {
		a.failures++
	}
	if len(a.events) > 0 && !a.stopped && a.timer == nil {
		a.scheduleLocked(0)
	}
	a.mu.Unlock()

	logger.Log.Debug("batch flushed",
		zap.Int("events", len(batch)),
		zap.Int("subscribers", len(subs)))

	if err != nil {
		a.reportError(err)
	}
}

func (a *Aggregator) deliver(batch []model.ChangeEvent, subs []Subscriber) error {
	if a.opts.Delivery == Concurrent {
		return a.deliverConcurrent(batch, subs)
	}

	var errs error
	for i, sub := range subs {
		if err := a.invoke(a.ctx, i, sub, batch); err != nil {
			if a.opts.ErrorPolicy == FailFast {
				return err
			}
			errs = multierr.Append(errs, err)
		}
	}

	return errs
}

func (a *Aggregator) deliverConcurrent(batch []model.ChangeEvent, subs []Subscriber) error {
	if a.opts.ErrorPolicy == FailFast {
		g, ctx := errgroup.WithContext(a.ctx)
		for i, sub := range subs {
			i, sub := i, sub
			g.Go(func() error {
				return a.invoke(ctx, i, sub, batch)
			})
		}
		return g.Wait()
	}

	var (
		mu   sync.Mutex
		errs error
		g    errgroup.Group
	)
	for i, sub := range subs {
		i, sub := i, sub
		g.Go(func() error {
			if err := a.invoke(a.ctx, i, sub, batch); err != nil {
				mu.Lock()
				errs = multierr.Append(errs, err)
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	return errs
}

// invoke hands sub its own copy of batch and converts a panic into an error.
func (a *Aggregator) invoke(ctx context.Context, index int, sub Subscriber, batch []model.ChangeEvent) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &SubscriberError{Index: index, Err: fmt.Errorf("panic: %v", r)}
		}
	}()

	params := mergeParams(a.opts.CallbackParams, sub.Params)
	if cbErr := sub.Callback(ctx, model.CloneEvents(batch), params); cbErr != nil {
		return &SubscriberError{Index: index, Err: cbErr}
	}

	return nil
}

func (a *Aggregator) reportError(err error) {
	if a.opts.OnError != nil {
		a.opts.OnError(err)
		return
	}

	logger.Log.Error("subscriber delivery failed",
		zap.String("policy", string(a.opts.ErrorPolicy)),
		zap.Error(err))
}

// AddCallback registers another subscriber. It takes part in every flush
// that starts after the call.
func (a *Aggregator) AddCallback(callback Callback, params Params) {
	if callback == nil {
		return
	}

	a.mu.Lock()
	a.subscribers = append(a.subscribers, Subscriber{Callback: callback, Params: params})
	a.mu.Unlock()
}

// OnReady queues fn until the source is ready. Once ready, fn is started
// right away on its own goroutine.
func (a *Aggregator) OnReady(fn ReadyFunc) {
	if fn == nil {
		return
	}

	a.mu.Lock()
	if !a.ready {
		a.readyQueue = append(a.readyQueue, fn)
		a.mu.Unlock()
		return
	}
	a.mu.Unlock()

	go func() {
		if err := fn(a.ctx); err != nil {
			logger.Log.Warn("ready callback failed",
				zap.Error(err))
		}
	}()
}

// Stop closes the watch source, drops the pending timer and waits for an
// in-flight flush to finish. Buffered events that were never flushed are
// discarded. Stop must not be called from a subscriber.
func (a *Aggregator) Stop() error {
	a.mu.Lock()
	if a.stopped {
		a.mu.Unlock()
		return nil
	}
	a.stopped = true

	if a.timer != nil && a.timer.Stop() {
		a.flushWG.Done()
	}
	a.timer = nil
	pending := len(a.events)
	a.events = nil

	handle := a.handle
	a.mu.Unlock()

	var err error
	if handle != nil {
		err = handle.Close()
	}

	a.flushWG.Wait()
	a.cancel()

	logger.Log.Info("aggregator stopped",
		zap.Int("discarded", pending))

	return err
}

func (a *Aggregator) Ready() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.ready
}

func (a *Aggregator) Snapshot() model.AggregatorSnapshot {
	a.mu.Lock()
	defer a.mu.Unlock()

	return model.AggregatorSnapshot{
		Targets:         append([]string(nil), a.targets...),
		Ready:           a.ready,
		Watching:        a.handle != nil && !a.stopped,
		Flushing:        a.flushing,
		Pending:         len(a.events),
		Subscribers:     len(a.subscribers),
		Flushes:         a.flushes,
		EventsDelivered: a.delivered,
		Failures:        a.failures,
		StartedAt:       a.startedAt,
		LastFlush:       a.lastFlush,
	}
}
