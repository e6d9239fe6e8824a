package devkit

import (
	"context"
	"maps"
	"sync"
	"time"
)

const (
	DefaultWatchInterval = 5 * time.Second
	DefaultPollWait      = 5 * time.Second
)

// WatchOptions tunes a Watcher. PollWait is how long the service may hold
// a poll open; keep it below the transport timeout.
type WatchOptions struct {
	Interval time.Duration
	PollWait time.Duration
}

// Watcher keeps the configuration entries of one environment fresh by
// long-polling the service and overwriting the Resolver's cache whenever
// something changed.
type Watcher struct {
	r    *Resolver
	env  string
	opts WatchOptions

	mu         sync.Mutex
	cancel     context.CancelFunc
	done       chan struct{}
	onUpdate   func(map[string]string)
	notifying  int
	lastUpdate int64
}

// Watch returns a stopped Watcher for environmentID.
func (r *Resolver) Watch(environmentID string, opts WatchOptions) *Watcher {
	if opts.Interval <= 0 {
		opts.Interval = DefaultWatchInterval
	}
	if opts.PollWait <= 0 {
		opts.PollWait = DefaultPollWait
	}
	return &Watcher{r: r, env: environmentID, opts: opts}
}

// Start loads the current configuration map, hands it to onUpdate and then
// polls in the background until ctx is done or Stop is called. onUpdate may
// be nil and always receives a copy. Starting a Watcher that is running or
// still starting is a no-op. If the initial load fails the Watcher stays
// stopped and the error is returned.
func (w *Watcher) Start(ctx context.Context, onUpdate func(map[string]string)) error {
	w.mu.Lock()
	if w.cancel != nil {
		w.mu.Unlock()
		return nil
	}
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	w.cancel, w.done = cancel, done
	w.onUpdate = onUpdate
	w.mu.Unlock()

	err := w.Refresh(ctx)
	if err == nil && ctx.Err() == nil {
		go w.loop(ctx, done)
		w.r.log.Info("configuration watcher started",
			"environment_id", w.env,
			"interval", w.opts.Interval,
		)
		return nil
	}

	w.release(done)
	cancel()
	close(done)
	return err
}

// Stop cancels polling and waits for the background goroutine to exit.
// Called from the listener, Stop returns without waiting; the loop exits
// once the listener returns.
func (w *Watcher) Stop() {
	w.mu.Lock()
	cancel, done := w.cancel, w.done
	w.cancel, w.done = nil, nil
	wait := w.notifying == 0
	w.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	if wait {
		<-done
	}
	w.r.log.Info("configuration watcher stopped", "environment_id", w.env)
}

// release clears the running state if it still belongs to done.
func (w *Watcher) release(done chan struct{}) {
	w.mu.Lock()
	if w.done == done {
		w.cancel, w.done = nil, nil
	}
	w.mu.Unlock()
}

// Running reports whether the Watcher is starting or polling. It turns
// false after Stop and once the context given to Start is done.
func (w *Watcher) Running() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.cancel != nil
}

// LastUpdate is the service timestamp (Unix ms) of the newest change seen,
// or zero before the first poll reported one.
func (w *Watcher) LastUpdate() int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastUpdate
}

// Refresh bypasses the cache, refetches the whole map, stores it and
// notifies the listener.
func (w *Watcher) Refresh(ctx context.Context) error {
	w.r.InvalidateCache(ConfigMapCacheKey(w.env))
	m, err := w.r.GetConfigMap(ctx, w.env)
	if err != nil {
		return err
	}
	w.apply(m)
	return nil
}

func (w *Watcher) loop(ctx context.Context, done chan struct{}) {
	defer close(done)
	defer w.release(done)
	t := time.NewTicker(w.opts.Interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			w.poll(ctx)
		}
	}
}

func (w *Watcher) poll(ctx context.Context) {
	start := time.Now()
	resp, err := w.r.backend.PollConfigs(ctx, w.env, w.LastUpdate(), w.opts.PollWait)
	w.r.metrics.fetchDone(ctx, "poll", start, err)
	if err != nil {
		if ctx.Err() == nil {
			w.r.log.Warn("configuration poll failed", "environment_id", w.env, "error", err)
		}
		return
	}
	if !resp.HasUpdates {
		return
	}

	m, err := w.r.decryptConfigs(ctx, resp.Configurations)
	if err != nil {
		w.r.log.Warn("configuration update rejected", "environment_id", w.env, "error", err)
		return
	}
	w.mu.Lock()
	w.lastUpdate = resp.LastUpdate
	w.mu.Unlock()
	w.apply(m)
	w.r.log.Debug("configuration updated",
		"environment_id", w.env,
		"count", len(m),
		"last_update", resp.LastUpdate,
	)
}

// apply overwrites the map entry and every per-key entry, then notifies.
func (w *Watcher) apply(m map[string]string) {
	w.r.store(ConfigMapCacheKey(w.env), mapValue(maps.Clone(m)))
	for k, v := range m {
		w.r.store(ConfigCacheKey(w.env, k), stringValue(v))
	}
	w.mu.Lock()
	fn := w.onUpdate
	if fn == nil {
		w.mu.Unlock()
		return
	}
	w.notifying++
	w.mu.Unlock()
	defer func() {
		w.mu.Lock()
		w.notifying--
		w.mu.Unlock()
	}()
	fn(maps.Clone(m))
}
