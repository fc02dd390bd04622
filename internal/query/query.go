// Package query keeps the latest result of a remote resource in step with
// its dependencies.
//
// A Query moves through idle, loading, fetched and error. Every dependency
// change starts a new generation; a response that arrives for an older
// generation is dropped, so the state always reflects the newest request.
package query

import (
	"context"
	"log/slog"
	"sync"

	"github.com/starford/scribe/internal/apperr"
	"github.com/starford/scribe/internal/auth"
	"github.com/starford/scribe/internal/resource"
)

// Status is the lifecycle tag of a State.
type Status int

const (
	Idle Status = iota
	Loading
	Fetched
	Error
)

func (s Status) String() string {
	switch s {
	case Idle:
		return "idle"
	case Loading:
		return "loading"
	case Fetched:
		return "fetched"
	case Error:
		return "error"
	default:
		return "unknown"
	}
}

// State is a snapshot of a query. Data is set only when Status is Fetched,
// Err only when Status is Error.
type State[T any] struct {
	Status Status
	Data   T
	Err    error
}

// Pending reports whether the query has not produced a result yet.
func (s State[T]) Pending() bool { return s.Status == Idle || s.Status == Loading }

// Failed reports whether the query has no data to show.
func (s State[T]) Failed() bool { return s.Status != Fetched }

// Fetcher loads url with the given bearer token.
type Fetcher[T any] func(ctx context.Context, url, token string) (T, error)

// JSON returns a Fetcher that GETs url through c and decodes it into T.
func JSON[T any](c *resource.Client) Fetcher[T] {
	return func(ctx context.Context, url, token string) (T, error) {
		return resource.GetJSON[T](ctx, c, url, token)
	}
}

type settings struct {
	logger *slog.Logger
}

// Option configures a Query.
type Option func(*settings)

// WithLogger sets the logger used for discarded responses and failures.
func WithLogger(l *slog.Logger) Option {
	return func(s *settings) { s.logger = l }
}

// Query tracks one remote resource.
type Query[T any] struct {
	fetch  Fetcher[T]
	tokens auth.TokenSource
	logger *slog.Logger

	mu      sync.Mutex
	gen     uint64
	cancel  context.CancelFunc
	state   State[T]
	url     string
	enabled bool
	started bool
	closed  bool
	changed chan struct{}
	subs    map[chan State[T]]struct{}

	wg sync.WaitGroup
}

// New creates an idle Query. No request is made until Update enables it.
func New[T any](fetch Fetcher[T], tokens auth.TokenSource, opts ...Option) *Query[T] {
	s := settings{logger: slog.Default()}
	for _, opt := range opts {
		opt(&s)
	}
	return &Query[T]{
		fetch:   fetch,
		tokens:  tokens,
		logger:  s.logger,
		changed: make(chan struct{}),
		subs:    make(map[chan State[T]]struct{}),
	}
}

// Update applies new dependencies. Unchanged dependencies are a no-op.
// A disabled query goes idle without touching the network; an enabled one
// starts a fresh fetch and abandons any request still in flight.
func (q *Query[T]) Update(ctx context.Context, url string, enabled bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed || (q.started && q.url == url && q.enabled == enabled) {
		return
	}
	q.started = true
	q.url = url
	q.enabled = enabled
	q.startLocked(ctx)
}

// Refetch repeats the request for the current dependencies.
func (q *Query[T]) Refetch(ctx context.Context) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed || !q.started {
		return
	}
	q.startLocked(ctx)
}

func (q *Query[T]) startLocked(ctx context.Context) {
	q.gen++
	if q.cancel != nil {
		q.cancel()
		q.cancel = nil
	}
	if !q.enabled {
		q.setLocked(State[T]{Status: Idle})
		return
	}

	fctx, cancel := context.WithCancel(ctx)
	q.cancel = cancel
	q.setLocked(State[T]{Status: Loading})

	gen, url := q.gen, q.url
	q.wg.Add(1)
	go func() {
		defer q.wg.Done()
		defer cancel()
		q.finish(gen, q.load(fctx, url))
	}()
}

func (q *Query[T]) load(ctx context.Context, url string) State[T] {
	token, err := q.tokens.Token(ctx)
	if err != nil {
		return State[T]{Status: Error, Err: err}
	}
	if token == "" {
		return State[T]{Status: Error, Err: apperr.ErrNoToken}
	}
	data, err := q.fetch(ctx, url, token)
	if err != nil {
		return State[T]{Status: Error, Err: err}
	}
	return State[T]{Status: Fetched, Data: data}
}

func (q *Query[T]) finish(gen uint64, st State[T]) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if gen != q.gen || q.closed {
		q.logger.Debug("query: discarding stale response",
			slog.String("url", q.url),
			slog.Uint64("generation", gen))
		return
	}
	if st.Status == Error {
		q.logger.Warn("query: fetch failed",
			slog.String("url", q.url),
			slog.Int("status", apperr.StatusCode(st.Err)),
			slog.String("error", st.Err.Error()))
	}
	q.cancel = nil
	q.setLocked(st)
}

func (q *Query[T]) setLocked(st State[T]) {
	q.state = st
	close(q.changed)
	q.changed = make(chan struct{})
	for ch := range q.subs {
		// Subscribers only need the newest state; replace an unread one.
		select {
		case ch <- st:
		default:
			select {
			case <-ch:
			default:
			}
			ch <- st
		}
	}
}

// State returns the current snapshot.
func (q *Query[T]) State() State[T] {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.state
}

// Await blocks until the query is no longer loading and returns its state.
func (q *Query[T]) Await(ctx context.Context) (State[T], error) {
	for {
		q.mu.Lock()
		st, ch := q.state, q.changed
		q.mu.Unlock()
		if st.Status != Loading {
			return st, nil
		}
		select {
		case <-ch:
		case <-ctx.Done():
			return st, ctx.Err()
		}
	}
}

// Subscribe returns a channel that receives the newest state after each
// transition, and a function that ends the subscription.
func (q *Query[T]) Subscribe() (<-chan State[T], func()) {
	ch := make(chan State[T], 1)
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		close(ch)
		return ch, func() {}
	}
	q.subs[ch] = struct{}{}
	var once sync.Once
	return ch, func() {
		once.Do(func() {
			q.mu.Lock()
			defer q.mu.Unlock()
			if _, ok := q.subs[ch]; ok {
				delete(q.subs, ch)
				close(ch)
			}
		})
	}
}

// Close cancels any request in flight, closes subscriptions and waits for
// background work to stop.
func (q *Query[T]) Close() {
	q.mu.Lock()
	if !q.closed {
		q.closed = true
		q.gen++
		if q.cancel != nil {
			q.cancel()
			q.cancel = nil
		}
		for ch := range q.subs {
			delete(q.subs, ch)
			close(ch)
		}
	}
	q.mu.Unlock()
	q.wg.Wait()
}
