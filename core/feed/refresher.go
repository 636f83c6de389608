package feed

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/facebookgo/clock"
	"github.com/pkg/errors"

	"github.com/hoopdesk/hoopdesk/core"
)

// DefaultDebounce coalesces bursts of notifications into one refetch.
const DefaultDebounce = 100 * time.Millisecond

// Fetcher loads the full current state of a view.
type Fetcher[T any] func(ctx context.Context) (T, error)

type RefresherOption func(*refresherOptions)

type refresherOptions struct {
	debounce time.Duration
	clock    clock.Clock
	logger   core.Logger
	onError  func(error)
}

func WithDebounce(d time.Duration) RefresherOption {
	return func(o *refresherOptions) { o.debounce = d }
}

func WithClock(c clock.Clock) RefresherOption {
	return func(o *refresherOptions) { o.clock = c }
}

func WithLogger(l core.Logger) RefresherOption {
	return func(o *refresherOptions) { o.logger = l }
}

// OnError observes failed refreshes. Canceled and superseded refreshes are never reported.
func OnError(fn func(error)) RefresherOption {
	return func(o *refresherOptions) { o.onError = fn }
}

// Refresher keeps a view fresh: it fetches once, then refetches everything
// whenever one of its topics changes. Only the newest refresh may publish.
type Refresher[T any] struct {
	subscriber Subscriber
	fetch      Fetcher[T]
	topics     []Topic
	opts       refresherOptions

	mu       sync.Mutex
	seq      uint64
	cancel   context.CancelFunc
	timer    *clock.Timer
	latest   T
	hasValue bool
	degraded bool
	stopped  bool

	// deliverMu is taken before mu.
	deliverMu sync.Mutex
	deliver   func(T)
}

func NewRefresher[T any](subscriber Subscriber, fetch Fetcher[T], topics []Topic, opts ...RefresherOption) *Refresher[T] {
	o := refresherOptions{debounce: DefaultDebounce, clock: clock.New(), logger: core.NopLogger{}}
	for _, opt := range opts {
		opt(&o)
	}
	return &Refresher[T]{subscriber: subscriber, fetch: fetch, topics: dedupTopics(topics), opts: o}
}

// Run publishes the initial state and every refreshed state to deliver until ctx is done.
// Subscriptions are released and deliver is never called again once Run returns.
// A Refresher runs once.
func (r *Refresher[T]) Run(ctx context.Context, deliver func(T)) error {
	r.deliver = deliver

	subs, err := r.subscribe()
	if err != nil {
		// known gap: the view will not update until it is reopened
		r.opts.logger.Warn(fmt.Sprintf("live updates unavailable for %v, serving a single fetch: %v", r.topics, err))
		r.mu.Lock()
		r.degraded = true
		r.mu.Unlock()
	}
	defer func() {
		for _, s := range subs {
			s.Close()
		}
	}()

	runCtx, stop := context.WithCancel(ctx)
	defer stop()
	defer r.stopPending()

	r.refresh(runCtx)

	notify := make(chan struct{}, 1)
	var wg sync.WaitGroup
	for _, s := range subs {
		wg.Add(1)
		go func(s *Subscription) {
			defer wg.Done()
			for {
				select {
				case _, ok := <-s.C:
					if !ok {
						return
					}
					select {
					case notify <- struct{}{}:
					default:
					}
				case <-runCtx.Done():
					return
				}
			}
		}(s)
	}
	defer wg.Wait()

	for {
		select {
		case <-notify:
			r.schedule(runCtx)
		case <-runCtx.Done():
			return nil
		}
	}
}

// Latest returns the last published state.
func (r *Refresher[T]) Latest() (T, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.latest, r.hasValue
}

// Degraded reports whether the refresher could not subscribe and serves a single fetch.
func (r *Refresher[T]) Degraded() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.degraded
}

func (r *Refresher[T]) subscribe() ([]*Subscription, error) {
	subs := make([]*Subscription, 0, len(r.topics))
	for _, t := range r.topics {
		s, err := r.subscriber.Subscribe(t)
		if err != nil {
			for _, open := range subs {
				open.Close()
			}
			return nil, errors.Wrapf(err, "subscribing to %s", t)
		}
		subs = append(subs, s)
	}
	return subs, nil
}

// schedule (re)starts the debounce window.
func (r *Refresher[T]) schedule(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.timer != nil {
		r.timer.Stop()
	}
	r.timer = r.opts.clock.AfterFunc(r.opts.debounce, func() {
		if ctx.Err() == nil {
			r.refresh(ctx)
		}
	})
}

// refresh starts a new fetch, canceling any fetch still in flight.
func (r *Refresher[T]) refresh(ctx context.Context) {
	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		return
	}
	r.seq++
	seq := r.seq
	if r.cancel != nil {
		r.cancel()
	}
	fctx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.mu.Unlock()

	go func() {
		defer cancel()
		v, err := r.fetch(fctx)

		r.deliverMu.Lock()
		defer r.deliverMu.Unlock()

		r.mu.Lock()
		stale := seq != r.seq || fctx.Err() != nil
		if !stale && err == nil {
			r.latest, r.hasValue = v, true
		}
		r.mu.Unlock()

		if stale || errors.Is(err, context.Canceled) {
			return
		}
		if err != nil {
			r.opts.logger.Error(fmt.Sprintf("refreshing %v: %v", r.topics, err), err)
			if r.opts.onError != nil {
				r.opts.onError(err)
			}
			return
		}
		if r.deliver != nil {
			r.deliver(v)
		}
	}()
}

// stopPending waits out a delivery in progress, then turns every later one stale.
func (r *Refresher[T]) stopPending() {
	r.deliverMu.Lock()
	defer r.deliverMu.Unlock()
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stopped = true
	if r.timer != nil {
		r.timer.Stop()
	}
	if r.cancel != nil {
		r.cancel()
	}
	r.seq++ // fetches still running are now stale
}

func dedupTopics(topics []Topic) []Topic {
	seen := make(map[Topic]struct{}, len(topics))
	out := make([]Topic, 0, len(topics))
	for _, t := range topics {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}
