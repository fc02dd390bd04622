// Package autosave implements a debounced editable field that mirrors its
// value to a parent and persists it in the background.
//
// Every input restarts a quiet timer. When the timer fires the value is
// settled: it is handed to Mirror synchronously and, if it differs from what
// was last sent to the server, written through Persist. The field reports
// clean once the write is issued and unsaved if it is skipped or fails.
// Writes are issued one
// at a time in settle order; a value that settles while a write is in flight
// waits for it and replaces any value already waiting.
package autosave

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/starford/scribe/internal/apperr"
	"github.com/starford/scribe/internal/auth"
)

// Status describes where a field is in its save cycle.
type Status int

const (
	Clean Status = iota
	Pending
	Settled
	Unsaved
)

func (s Status) String() string {
	switch s {
	case Clean:
		return "clean"
	case Pending:
		return "dirty-pending"
	case Settled:
		return "dirty-settled"
	case Unsaved:
		return "unsaved"
	default:
		return "unknown"
	}
}

// PersistFunc writes value to the server with token.
type PersistFunc func(ctx context.Context, token, value string) error

// Config configures a Field. Only Persist and Tokens are required.
type Config struct {
	Name    string
	Delay   time.Duration
	Tokens  auth.TokenSource
	Persist PersistFunc

	// Mirror receives every settled value, before any write is attempted.
	Mirror func(value string)
	// OnSaved is called after a successful write.
	OnSaved func(value string)
	// OnSkip is called when a write is skipped because no token is available.
	OnSkip func(value string)
	// OnError is called when a write fails.
	OnError func(value string, err error)

	Logger *slog.Logger
}

// Snapshot is the observable state of a Field.
type Snapshot struct {
	Value     string
	Committed string
	Status    Status
}

type writeResult struct {
	value   string
	err     error
	skipped bool
}

// Field is a debounced, autosaving value. All state is owned by a single
// event loop goroutine.
type Field struct {
	cfg Config
	ctx context.Context

	inputCh  chan string
	flushCh  chan chan struct{}
	snapCh   chan chan Snapshot
	resultCh chan writeResult

	stopCh  chan struct{}
	stopped chan struct{}
	closed  atomic.Bool
	writes  sync.WaitGroup
}

// New starts a field seeded with seed. The seed counts as committed, so
// settling back to it does not write. ctx bounds background writes.
func New(ctx context.Context, seed string, cfg Config) *Field {
	if cfg.Delay <= 0 {
		cfg.Delay = 200 * time.Millisecond
	}
	if cfg.Tokens == nil {
		cfg.Tokens = auth.Disabled()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	f := &Field{
		cfg:      cfg,
		ctx:      ctx,
		inputCh:  make(chan string),
		flushCh:  make(chan chan struct{}),
		snapCh:   make(chan chan Snapshot),
		resultCh: make(chan writeResult),
		stopCh:   make(chan struct{}),
		stopped:  make(chan struct{}),
	}
	go f.run(seed)
	return f
}

func (f *Field) run(seed string) {
	defer close(f.stopped)

	var (
		value     = seed
		committed = seed
		want      = seed // last value handed to Persist
		status    = Clean
		timer     *time.Timer
		timerC    <-chan time.Time
		inflight  bool
		queued    *string
		waiters   []chan struct{}
	)

	stopTimer := func() {
		if timer != nil {
			timer.Stop()
		}
		timer, timerC = nil, nil
	}

	startWrite := func(v string) {
		inflight = true
		want = v
		status = Clean
		f.writes.Add(1)
		go f.write(v)
	}

	releaseWaiters := func() {
		if inflight || queued != nil || timerC != nil {
			return
		}
		for _, w := range waiters {
			close(w)
		}
		waiters = nil
	}

	settle := func() {
		stopTimer()
		status = Settled
		if f.cfg.Mirror != nil {
			f.cfg.Mirror(value)
		}
		if value == want {
			// Back to the value already sent; anything queued behind it is stale.
			queued = nil
			status = Clean
			return
		}
		if inflight {
			v := value
			queued = &v
			return
		}
		startWrite(value)
	}

	for {
		select {
		case <-f.stopCh:
			stopTimer()
			for _, w := range waiters {
				close(w)
			}
			return

		case v := <-f.inputCh:
			value = v
			status = Pending
			stopTimer()
			timer = time.NewTimer(f.cfg.Delay)
			timerC = timer.C

		case <-timerC:
			timer, timerC = nil, nil
			settle()

		case res := <-f.resultCh:
			inflight = false
			if res.skipped || res.err != nil {
				want = committed
				status = Unsaved
			} else {
				committed = res.value
			}
			if queued != nil {
				next := *queued
				queued = nil
				if next != want {
					startWrite(next)
				} else if value == committed {
					status = Clean
				}
			}
			if timerC != nil {
				status = Pending
			}
			releaseWaiters()

		case done := <-f.flushCh:
			if timerC != nil {
				settle()
			} else if status == Unsaved && !inflight && value != committed {
				startWrite(value)
			}
			waiters = append(waiters, done)
			releaseWaiters()

		case resp := <-f.snapCh:
			resp <- Snapshot{Value: value, Committed: committed, Status: status}
		}
	}
}

// write resolves a token and persists v, reporting back to the loop.
func (f *Field) write(v string) {
	defer f.writes.Done()
	res := writeResult{value: v}

	token, err := f.cfg.Tokens.Token(f.ctx)
	switch {
	case err != nil:
		res.err = err
	case token == "":
		res.skipped = true
	default:
		res.err = f.cfg.Persist(f.ctx, token, v)
	}

	log := f.cfg.Logger.With(slog.String("field", f.cfg.Name))
	switch {
	case res.skipped:
		log.Warn("autosave: no token, write skipped", slog.String("error", apperr.ErrNoToken.Error()))
		if f.cfg.OnSkip != nil {
			f.cfg.OnSkip(v)
		}
	case res.err != nil:
		log.Error("autosave: write failed",
			slog.Int("status", apperr.StatusCode(res.err)),
			slog.String("error", res.err.Error()))
		if f.cfg.OnError != nil {
			f.cfg.OnError(v, res.err)
		}
	default:
		log.Debug("autosave: saved", slog.Int("bytes", len(v)))
		if f.cfg.OnSaved != nil {
			f.cfg.OnSaved(v)
		}
	}

	select {
	case f.resultCh <- res:
	case <-f.stopped:
	}
}

// Input records a new value and restarts the quiet timer.
func (f *Field) Input(v string) {
	if f.closed.Load() {
		return
	}
	select {
	case f.inputCh <- v:
	case <-f.stopped:
	}
}

// Snapshot returns the current value, committed value and status.
func (f *Field) Snapshot() Snapshot {
	resp := make(chan Snapshot, 1)
	select {
	case f.snapCh <- resp:
	case <-f.stopped:
		return Snapshot{Status: Clean}
	}
	select {
	case s := <-resp:
		return s
	case <-f.stopped:
		return Snapshot{Status: Clean}
	}
}

// Value returns the latest input.
func (f *Field) Value() string { return f.Snapshot().Value }

// Committed returns the last value the server acknowledged. It lags Value
// while a write is in flight even though the field already reports clean.
func (f *Field) Committed() string { return f.Snapshot().Committed }

// Status returns the current save status.
func (f *Field) Status() Status { return f.Snapshot().Status }

// Flush settles a pending value immediately, retries an unsaved one, and
// waits until no write is outstanding.
func (f *Field) Flush(ctx context.Context) error {
	done := make(chan struct{})
	select {
	case f.flushCh <- done:
	case <-f.stopped:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops the field. A pending timer is dropped without settling; a
// write already in flight is allowed to finish.
func (f *Field) Close() {
	if f.closed.CompareAndSwap(false, true) {
		close(f.stopCh)
	}
	<-f.stopped
	f.writes.Wait()
}
