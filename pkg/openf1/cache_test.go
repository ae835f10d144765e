package openf1

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestCacheCoalescesConcurrentCallers(t *testing.T) {
	var calls int32
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		<-release
		w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	c := NewCache(30 * time.Second)
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := c.Fetch(context.Background(), srv.URL+"/v1/laps"); err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	// let all four goroutines pile up on the same key, then let the
	// single upstream request complete
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Errorf("expected exactly 1 upstream call, got %d", got)
	}
}

func TestCacheServesWithinFreshnessWindow(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Write([]byte(`[{"lap_number":1}]`))
	}))
	defer srv.Close()

	c := NewCache(30 * time.Second)
	for i := 0; i < 3; i++ {
		if _, err := c.Fetch(context.Background(), srv.URL); err != nil {
			t.Fatalf("fetch %d: %v", i, err)
		}
	}
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Errorf("expected 1 upstream call within the window, got %d", got)
	}
}

func TestCacheRefetchesAfterFreshnessExpires(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	c := NewCache(30 * time.Second)
	if _, err := c.Fetch(context.Background(), srv.URL); err != nil {
		t.Fatal(err)
	}

	// move the logical clock past the window instead of sleeping
	base := time.Now()
	c.now = func() time.Time { return base.Add(31 * time.Second) }

	if _, err := c.Fetch(context.Background(), srv.URL); err != nil {
		t.Fatal(err)
	}
	if got := atomic.LoadInt32(&calls); got != 2 {
		t.Errorf("expected a second upstream call after expiry, got %d", got)
	}
}

func TestCacheEvictsFailuresImmediately(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&calls, 1)
		if n == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	c := NewCache(30 * time.Second)
	if _, err := c.Fetch(context.Background(), srv.URL); err == nil {
		t.Fatal("expected the first fetch to fail")
	}
	body, err := c.Fetch(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("expected the retry to succeed, got %v", err)
	}
	if string(body) != `[]` {
		t.Errorf("unexpected body %q", body)
	}
	if got := atomic.LoadInt32(&calls); got != 2 {
		t.Errorf("expected 2 upstream calls, got %d", got)
	}
}
