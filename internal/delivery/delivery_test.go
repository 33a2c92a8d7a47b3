package delivery

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/zeronotes/client-go/internal/api"
)

func fastConfig(client *api.Client) Config {
	return Config{
		APIClient:              client,
		PollingInitialInterval: 5 * time.Millisecond,
		PollingMaxBackoff:      20 * time.Millisecond,
		SSEConnectionTimeout:   200 * time.Millisecond,
	}
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestPollingStrategy_DeliversHintOnVersionChange(t *testing.T) {
	var version atomic.Uint64
	version.Store(3)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/sync/status" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		json.NewEncoder(w).Encode(api.SyncStatusResponse{CurrentSyncVersion: version.Load()})
	}))
	defer srv.Close()

	client, err := api.New(srv.URL)
	if err != nil {
		t.Fatal(err)
	}

	var hints atomic.Int32
	var lastHint atomic.Uint64
	p := NewPollingStrategy(fastConfig(client))
	err = p.Start(context.Background(), func(ctx context.Context, h Hint) {
		hints.Add(1)
		lastHint.Store(h.SyncVersion)
	})
	if err != nil {
		t.Fatal(err)
	}
	defer p.Stop()

	// The baseline poll must not produce a hint.
	time.Sleep(50 * time.Millisecond)
	if got := hints.Load(); got != 0 {
		t.Fatalf("hints before any change = %d, want 0", got)
	}

	version.Store(7)
	waitFor(t, 2*time.Second, func() bool { return hints.Load() > 0 })
	if got := lastHint.Load(); got != 7 {
		t.Errorf("hint version = %d, want 7", got)
	}
}

func TestPollingStrategy_BacksOffWhenQuiet(t *testing.T) {
	var polls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		polls.Add(1)
		json.NewEncoder(w).Encode(api.SyncStatusResponse{CurrentSyncVersion: 1})
	}))
	defer srv.Close()

	client, err := api.New(srv.URL)
	if err != nil {
		t.Fatal(err)
	}

	cfg := fastConfig(client)
	p := NewPollingStrategy(cfg)
	if err := p.Start(context.Background(), func(context.Context, Hint) {}); err != nil {
		t.Fatal(err)
	}
	defer p.Stop()

	time.Sleep(100 * time.Millisecond)

	// With pure 5ms polling we'd see ~20 polls; backoff to the 20ms cap
	// keeps it well under that.
	if got := polls.Load(); got > 15 {
		t.Errorf("polls = %d, backoff apparently not applied", got)
	}
}

func TestSSEStrategy_DeliversStreamedHints(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/sync/events" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		flusher := w.(http.Flusher)
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		flusher.Flush()

		fmt.Fprint(w, ": keepalive\n\n")
		fmt.Fprint(w, "data: {\"syncVersion\":4}\n\n")
		fmt.Fprint(w, "data: not-json\n\n")
		fmt.Fprint(w, "data: {\"syncVersion\":5}\n\n")
		flusher.Flush()

		<-r.Context().Done()
	}))
	defer srv.Close()

	client, err := api.New(srv.URL)
	if err != nil {
		t.Fatal(err)
	}

	var hints atomic.Int32
	var lastHint atomic.Uint64
	s := NewSSEStrategy(fastConfig(client))
	err = s.Start(context.Background(), func(ctx context.Context, h Hint) {
		hints.Add(1)
		lastHint.Store(h.SyncVersion)
	})
	if err != nil {
		t.Fatal(err)
	}
	defer s.Stop()

	select {
	case <-s.Connected():
	case <-time.After(2 * time.Second):
		t.Fatal("SSE never connected")
	}

	// Malformed events are skipped, well-formed ones delivered in order.
	waitFor(t, 2*time.Second, func() bool { return hints.Load() == 2 })
	if got := lastHint.Load(); got != 5 {
		t.Errorf("last hint version = %d, want 5", got)
	}
}

func TestAutoStrategy_PrefersSSE(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/sync/events" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		w.(http.Flusher).Flush()
		<-r.Context().Done()
	}))
	defer srv.Close()

	client, err := api.New(srv.URL)
	if err != nil {
		t.Fatal(err)
	}

	a := NewAutoStrategy(fastConfig(client))
	if err := a.Start(context.Background(), func(context.Context, Hint) {}); err != nil {
		t.Fatal(err)
	}
	defer a.Stop()

	if a.Name() != "auto:sse" {
		t.Errorf("strategy = %s, want auto:sse", a.Name())
	}
}

func TestAutoStrategy_FallsBackToPolling(t *testing.T) {
	// No SSE endpoint; stream requests fail immediately.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/sync/status" {
			json.NewEncoder(w).Encode(api.SyncStatusResponse{CurrentSyncVersion: 1})
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	client, err := api.New(srv.URL)
	if err != nil {
		t.Fatal(err)
	}

	cfg := fastConfig(client)
	cfg.SSEConnectionTimeout = 50 * time.Millisecond
	a := NewAutoStrategy(cfg)
	if err := a.Start(context.Background(), func(context.Context, Hint) {}); err != nil {
		t.Fatal(err)
	}
	defer a.Stop()

	if a.Name() != "auto:polling" {
		t.Errorf("strategy = %s, want auto:polling", a.Name())
	}
}
