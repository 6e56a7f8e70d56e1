package connectivity_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/firealert/firealert/internal/connectivity"
)

func TestManualMonitor_EdgeNotificationsOnly(t *testing.T) {
	m := connectivity.NewManualMonitor(false)

	var mu sync.Mutex
	var notifications []bool
	m.Subscribe(func(reachable bool) {
		mu.Lock()
		notifications = append(notifications, reachable)
		mu.Unlock()
	})

	m.SetReachable(false) // no edge
	m.SetReachable(true)  // edge
	m.SetReachable(true)  // no edge
	m.SetReachable(true)  // no edge
	m.SetReachable(false) // edge

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []bool{true, false}, notifications, "observers fire once per transition, not per observation")
}

func TestManualMonitor_Unsubscribe(t *testing.T) {
	m := connectivity.NewManualMonitor(false)

	var count atomic.Int32
	unsubscribe := m.Subscribe(func(bool) { count.Add(1) })

	m.SetReachable(true)
	unsubscribe()
	m.SetReachable(false)
	m.SetReachable(true)

	assert.Equal(t, int32(1), count.Load())
}

func TestManualMonitor_MultipleObservers(t *testing.T) {
	m := connectivity.NewManualMonitor(false)

	var first, second atomic.Int32
	m.Subscribe(func(bool) { first.Add(1) })
	m.Subscribe(func(bool) { second.Add(1) })

	m.SetReachable(true)

	assert.Equal(t, int32(1), first.Load())
	assert.Equal(t, int32(1), second.Load())
	assert.True(t, m.Reachable())
}

func TestProber_ReportsReachable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	p := connectivity.NewProber(connectivity.ProberConfig{
		URL:      server.URL,
		Interval: 10 * time.Millisecond,
		Timeout:  time.Second,
		Logger:   zerolog.Nop(),
	})

	// Pessimistic before the first probe
	assert.False(t, p.Reachable())

	p.Start(context.Background())
	defer p.Stop()

	require.Eventually(t, p.Reachable, time.Second, 5*time.Millisecond)
}

func TestProber_ServerErrorsCountAsUnreachable(t *testing.T) {
	var healthy atomic.Bool

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if healthy.Load() {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	p := connectivity.NewProber(connectivity.ProberConfig{
		URL:      server.URL,
		Interval: 10 * time.Millisecond,
		Timeout:  time.Second,
		Logger:   zerolog.Nop(),
	})

	var transitions atomic.Int32
	p.Subscribe(func(reachable bool) {
		if reachable {
			transitions.Add(1)
		}
	})

	p.Start(context.Background())
	defer p.Stop()

	// 5xx keeps the judgment at unreachable
	time.Sleep(50 * time.Millisecond)
	assert.False(t, p.Reachable())
	assert.Zero(t, transitions.Load())

	healthy.Store(true)
	require.Eventually(t, p.Reachable, time.Second, 5*time.Millisecond)
	assert.Equal(t, int32(1), transitions.Load())
}

func TestProber_UnreachableHost(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	server.Close()

	p := connectivity.NewProber(connectivity.ProberConfig{
		URL:      server.URL,
		Interval: 10 * time.Millisecond,
		Timeout:  200 * time.Millisecond,
		Logger:   zerolog.Nop(),
	})

	p.Start(context.Background())
	defer p.Stop()

	time.Sleep(50 * time.Millisecond)
	assert.False(t, p.Reachable())
}

func TestProber_ClientErrorsStillReachable(t *testing.T) {
	// A 404 means the network path works even if the probe path is wrong
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	p := connectivity.NewProber(connectivity.ProberConfig{
		URL:      server.URL,
		Interval: 10 * time.Millisecond,
		Timeout:  time.Second,
		Logger:   zerolog.Nop(),
	})

	p.Start(context.Background())
	defer p.Stop()

	require.Eventually(t, p.Reachable, time.Second, 5*time.Millisecond)
}
