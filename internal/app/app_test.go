package app

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jkaberg/devdash/internal/config"
	"github.com/jkaberg/devdash/internal/domain"
	"github.com/jkaberg/devdash/internal/indicator"
	"github.com/jkaberg/devdash/internal/updater"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

type recordingTx struct {
	mu      sync.Mutex
	snaps   []*domain.Snapshot
	offline atomic.Bool
}

func (r *recordingTx) Transmit(s *domain.Snapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snaps = append(r.snaps, s)
	return nil
}

func (r *recordingTx) IsConnected() bool { return !r.offline.Load() }

func (r *recordingTx) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.snaps)
}

func testLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func testSetup(endpoint string) (*config.Config, *indicator.Page, *indicator.Board) {
	cfg := config.GetDefaultConfig()
	cfg.Endpoint = endpoint
	cfg.Rate = 10 * time.Millisecond
	cfg.MQTTInterval = time.Millisecond
	cfg.IgnoreKeys = []string{"uptime"}

	page := indicator.NewPage("eth")
	board := indicator.NewBoard(page, []indicator.Binding{{ID: "eth", Path: "eth.up"}}, testLogger())
	return cfg, page, board
}

func TestRunAppliesUpdatesAndTransmitsChanges(t *testing.T) {
	var uptime atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := uptime.Add(1)
		_, _ = io.WriteString(w, `{"eth":{"up":true},"uptime":`+strconv.FormatInt(n, 10)+`}`)
	}))
	defer srv.Close()

	cfg, page, board := testSetup(srv.URL)
	tx := &recordingTx{}
	up := updater.New(srv.Client(), testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- Run(ctx, cfg, up, board, tx, testLogger()) }()

	require.Eventually(t, func() bool {
		return page.Style("eth", "color") == indicator.ColorLimeGreen
	}, 2*time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool { return tx.count() >= 1 }, 2*time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool { return uptime.Load() >= 5 }, 2*time.Second, 5*time.Millisecond)

	// Only uptime moves, and it is ignored, so nothing else is sent.
	assert.Equal(t, 1, tx.count())

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	assert.False(t, up.Running())
}

func TestRunHaltsOnFetchError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	cfg, _, board := testSetup(srv.URL)
	up := updater.New(srv.Client(), testLogger())

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	err := Run(ctx, cfg, up, board, nil, testLogger())
	require.ErrorIs(t, err, ErrPollingHalted)
	assert.False(t, up.Running())
}

func TestRunKeepPollingIgnoresErrors(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_, _ = io.WriteString(w, `not json`)
	}))
	defer srv.Close()

	cfg, _, board := testSetup(srv.URL)
	cfg.KeepPolling = true
	up := updater.New(srv.Client(), testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- Run(ctx, cfg, up, board, nil, testLogger()) }()

	require.Eventually(t, func() bool { return hits.Load() >= 3 }, 2*time.Second, 5*time.Millisecond)
	assert.True(t, up.Running())

	cancel()
	assert.NoError(t, <-done)
}

func TestScheduleWaitsForConnection(t *testing.T) {
	cfg := config.GetDefaultConfig()
	cfg.MQTTInterval = time.Millisecond

	tx := &recordingTx{}
	tx.offline.Store(true)

	sub := make(chan *domain.Snapshot)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- schedule(ctx, cfg, sub, tx, testLogger()) }()

	snap := func() *domain.Snapshot {
		return &domain.Snapshot{
			Timestamp: time.Now(),
			Data:      gjson.Parse(`{"eth":{"up":true}}`),
			States:    map[string]string{"eth": indicator.StateGreen},
		}
	}

	sub <- snap()
	sub <- snap()
	assert.Equal(t, 0, tx.count(), "nothing is sent while disconnected")

	// The unsent change is still pending once the broker is back.
	tx.offline.Store(false)
	sub <- snap()
	require.Eventually(t, func() bool { return tx.count() == 1 }, time.Second, 5*time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}
