package query

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/starford/scribe/internal/apperr"
	"github.com/starford/scribe/internal/auth"
	"github.com/starford/scribe/internal/resource"
	"github.com/starford/scribe/internal/testutil"
)

// fakeFetcher records calls and lets a test hold individual URLs open.
type fakeFetcher struct {
	mu      sync.Mutex
	calls   []string
	tokens  []string
	hold    map[string]chan struct{}
	aborted atomic.Int32
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{hold: make(map[string]chan struct{})}
}

func (f *fakeFetcher) block(url string) chan struct{} {
	ch := make(chan struct{})
	f.mu.Lock()
	f.hold[url] = ch
	f.mu.Unlock()
	return ch
}

func (f *fakeFetcher) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakeFetcher) fetch(ctx context.Context, url, token string) (string, error) {
	f.mu.Lock()
	f.calls = append(f.calls, url)
	f.tokens = append(f.tokens, token)
	hold := f.hold[url]
	f.mu.Unlock()
	if hold != nil {
		select {
		case <-hold:
		case <-ctx.Done():
			f.aborted.Add(1)
			return "", ctx.Err()
		}
	}
	if url == "/fail" {
		return "", &apperr.HTTPError{Status: 401, Body: "unauthorized"}
	}
	return "data:" + url, nil
}

func newQuery(t *testing.T, f *fakeFetcher, tokens auth.TokenSource) *Query[string] {
	t.Helper()
	q := New(f.fetch, tokens, WithLogger(testutil.QuietLogger()))
	t.Cleanup(q.Close)
	return q
}

func await(t *testing.T, q *Query[string]) State[string] {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	st, err := q.Await(ctx)
	if err != nil {
		t.Fatalf("Await: %v", err)
	}
	return st
}

func TestQuery_StartsIdle(t *testing.T) {
	q := newQuery(t, newFakeFetcher(), auth.Static("t"))
	st := q.State()
	if st.Status != Idle || !st.Pending() || !st.Failed() {
		t.Errorf("initial state = %+v", st)
	}
}

func TestQuery_DisabledMakesNoRequest(t *testing.T) {
	f := newFakeFetcher()
	q := newQuery(t, f, auth.Static("t"))

	q.Update(context.Background(), "/notes", false)
	if st := await(t, q); st.Status != Idle {
		t.Errorf("status = %v, want idle", st.Status)
	}
	if f.count() != 0 {
		t.Errorf("fetch called %d times", f.count())
	}
}

func TestQuery_Fetched(t *testing.T) {
	f := newFakeFetcher()
	q := newQuery(t, f, auth.Static("validtoken"))

	q.Update(context.Background(), "/notes", true)
	st := await(t, q)
	if st.Status != Fetched || st.Data != "data:/notes" {
		t.Fatalf("state = %+v", st)
	}
	if st.Pending() || st.Failed() {
		t.Error("fetched state should be neither pending nor failed")
	}
	if f.tokens[0] != "validtoken" {
		t.Errorf("token = %q", f.tokens[0])
	}
}

func TestQuery_NoTokenSkipsNetwork(t *testing.T) {
	f := newFakeFetcher()
	q := newQuery(t, f, auth.Disabled())

	q.Update(context.Background(), "/notes", true)
	st := await(t, q)
	if st.Status != Error || !errors.Is(st.Err, apperr.ErrNoToken) {
		t.Fatalf("state = %+v, want no-token error", st)
	}
	if st.Err.Error() != "No token" {
		t.Errorf("message = %q", st.Err.Error())
	}
	if f.count() != 0 {
		t.Errorf("fetch called %d times", f.count())
	}
}

func TestQuery_TokenSourceError(t *testing.T) {
	boom := errors.New("provider down")
	q := newQuery(t, newFakeFetcher(), auth.TokenFunc(func(context.Context) (string, error) {
		return "", boom
	}))
	q.Update(context.Background(), "/notes", true)
	if st := await(t, q); !errors.Is(st.Err, boom) {
		t.Errorf("err = %v", st.Err)
	}
}

func TestQuery_HTTPError(t *testing.T) {
	q := newQuery(t, newFakeFetcher(), auth.Static("expired"))
	q.Update(context.Background(), "/fail", true)
	st := await(t, q)
	if !st.Failed() || apperr.StatusCode(st.Err) != 401 {
		t.Errorf("state = %+v", st)
	}
}

func TestQuery_UnchangedDependenciesDoNotRefetch(t *testing.T) {
	f := newFakeFetcher()
	q := newQuery(t, f, auth.Static("t"))

	q.Update(context.Background(), "/notes", true)
	await(t, q)
	q.Update(context.Background(), "/notes", true)
	await(t, q)
	if f.count() != 1 {
		t.Errorf("fetch called %d times, want 1", f.count())
	}

	q.Refetch(context.Background())
	await(t, q)
	if f.count() != 2 {
		t.Errorf("after Refetch: %d calls, want 2", f.count())
	}
}

func TestQuery_LatestRequestWins(t *testing.T) {
	f := newFakeFetcher()
	release := f.block("/weather?lat=1")
	q := newQuery(t, f, auth.Static("t"))

	q.Update(context.Background(), "/weather?lat=1", true)
	testutil.Eventually(t, time.Second, 5*time.Millisecond, func() bool { return f.count() == 1 }, "first request not issued")

	q.Update(context.Background(), "/weather?lat=2", true)
	await(t, q)
	close(release)
	q.wg.Wait()

	st := q.State()
	if st.Data != "data:/weather?lat=2" {
		t.Errorf("data = %q, want the newer response", st.Data)
	}
	if f.aborted.Load() != 1 {
		t.Errorf("superseded request not cancelled")
	}
}

func TestQuery_DisableAbandonsInFlight(t *testing.T) {
	f := newFakeFetcher()
	f.block("/notes")
	q := newQuery(t, f, auth.Static("t"))

	q.Update(context.Background(), "/notes", true)
	testutil.Eventually(t, time.Second, 5*time.Millisecond, func() bool { return f.count() == 1 }, "request not issued")
	q.Update(context.Background(), "/notes", false)
	q.wg.Wait()

	if st := q.State(); st.Status != Idle {
		t.Errorf("status = %v, want idle", st.Status)
	}
}

func TestQuery_Subscribe(t *testing.T) {
	q := newQuery(t, newFakeFetcher(), auth.Static("t"))
	ch, unsubscribe := q.Subscribe()
	defer unsubscribe()

	q.Update(context.Background(), "/notes", true)
	deadline := time.After(2 * time.Second)
	for {
		select {
		case st := <-ch:
			if st.Status == Fetched {
				return
			}
		case <-deadline:
			t.Fatal("no fetched state delivered")
		}
	}
}

func TestQuery_CloseEndsSubscriptions(t *testing.T) {
	q := New(newFakeFetcher().fetch, auth.Static("t"))
	ch, _ := q.Subscribe()
	q.Close()
	if _, ok := <-ch; ok {
		t.Error("channel should be closed")
	}
	q.Update(context.Background(), "/notes", true)
	if q.State().Status != Idle {
		t.Error("closed query should ignore updates")
	}
}

type item struct {
	ID string `json:"id"`
}

func TestJSONFetcher(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer abc" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte(`[{"id":"1"},{"id":"2"}]`))
	}))
	defer srv.Close()
	c, err := resource.New(srv.URL)
	if err != nil {
		t.Fatal(err)
	}

	q := New(JSON[[]item](c), auth.Static("abc"), WithLogger(testutil.QuietLogger()))
	defer q.Close()
	q.Update(context.Background(), "/notes", true)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	st, err := q.Await(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if st.Status != Fetched || len(st.Data) != 2 {
		t.Errorf("state = %+v", st)
	}
}
