package updater

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"
)

// DefaultRate is used when Start is given a non-positive rate.
const DefaultRate = time.Second

// maxBodySize caps how much of a response is read; device status documents
// are a few KiB at most.
const maxBodySize = 1 << 20

// Callback receives every successfully parsed document.
type Callback func(data gjson.Result)

// ErrorCallback receives every failed poll. The error is a *FetchError.
type ErrorCallback func(err error)

// Updater repeatedly fetches a JSON endpoint and hands the result to a
// callback. Each Updater owns its own timer, so independent pollers can run
// side by side. The zero value is not usable; construct with New.
type Updater struct {
	client *http.Client
	logger *logrus.Logger

	mu       sync.Mutex
	endpoint string
	callback Callback
	rate     time.Duration
	onError  ErrorCallback
	stop     chan struct{} // nil when no timer is active
}

// New creates an Updater using client for requests. A nil client falls back
// to http.DefaultClient.
func New(client *http.Client, logger *logrus.Logger) *Updater {
	if client == nil {
		client = http.DefaultClient
	}
	return &Updater{
		client: client,
		logger: logger,
	}
}

// Start begins polling endpoint every rate and dispatches results to
// callback. A nil onError selects the default handler, which logs the
// failure and stops polling.
//
// If the updater is already running the timer is left untouched and only
// endpoint, callback, rate and onError are replaced; the new rate then only
// affects the request timeout.
func (u *Updater) Start(endpoint string, callback Callback, rate time.Duration, onError ErrorCallback) {
	if rate <= 0 {
		rate = DefaultRate
	}
	if onError == nil {
		onError = u.defaultOnError
	}

	u.mu.Lock()
	defer u.mu.Unlock()

	u.logger.WithFields(logrus.Fields{
		"endpoint": endpoint,
		"rate":     rate,
	}).Info("starting updater")

	u.endpoint = endpoint
	u.callback = callback
	u.rate = rate
	u.onError = onError

	if u.stop != nil {
		u.logger.Debug("updater already running; timer unchanged")
		return
	}
	u.stop = make(chan struct{})
	go u.loop(u.stop, rate)
}

// Stop halts the timer. A request already in flight is not aborted and its
// result is still dispatched. Calling Stop on a stopped Updater is a no-op.
func (u *Updater) Stop() {
	u.mu.Lock()
	defer u.mu.Unlock()

	u.logger.Info("stopping updater")
	if u.stop != nil {
		close(u.stop)
		u.stop = nil
	}
}

// Running reports whether a timer is active.
func (u *Updater) Running() bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.stop != nil
}

func (u *Updater) loop(stop <-chan struct{}, rate time.Duration) {
	ticker := time.NewTicker(rate)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			// select picks randomly when both are ready; a stop wins.
			select {
			case <-stop:
				return
			default:
			}
			u.tick()
		}
	}
}

// tick performs one poll with the settings current at the time it fires.
func (u *Updater) tick() {
	u.mu.Lock()
	endpoint, callback, rate, onError := u.endpoint, u.callback, u.rate, u.onError
	u.mu.Unlock()

	// Not derived from the stop channel: Stop must not abort the request.
	data, err := u.Fetch(context.Background(), endpoint, rate)
	if err != nil {
		onError(err)
		return
	}
	if callback != nil {
		callback(data)
	}
}

// Fetch performs a single GET of endpoint bounded by timeout (none when
// timeout <= 0) and returns the parsed document. All failures are returned
// as *FetchError.
func (u *Updater) Fetch(ctx context.Context, endpoint string, timeout time.Duration) (gjson.Result, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return gjson.Result{}, &FetchError{Endpoint: endpoint, TextStatus: StatusError, Err: err}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := u.client.Do(req)
	if err != nil {
		return gjson.Result{}, &FetchError{Endpoint: endpoint, TextStatus: transportStatus(err), Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return gjson.Result{}, &FetchError{
			Endpoint:   endpoint,
			TextStatus: StatusError,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("unexpected status %s", resp.Status),
		}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize+1))
	if err != nil {
		return gjson.Result{}, &FetchError{
			Endpoint:   endpoint,
			TextStatus: transportStatus(err),
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("failed to read response body: %w", err),
		}
	}
	if len(body) > maxBodySize {
		return gjson.Result{}, &FetchError{
			Endpoint:   endpoint,
			TextStatus: StatusError,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("response exceeds %d bytes", maxBodySize),
		}
	}

	if !gjson.ValidBytes(body) {
		return gjson.Result{}, &FetchError{
			Endpoint:   endpoint,
			TextStatus: StatusParserError,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("invalid JSON in %d byte response", len(body)),
		}
	}

	u.logger.WithFields(logrus.Fields{
		"status_code":   resp.StatusCode,
		"response_size": len(body),
	}).Debug("Received update")

	return gjson.ParseBytes(body), nil
}

// defaultOnError logs the failure and stops polling.
func (u *Updater) defaultOnError(err error) {
	u.logger.WithError(err).Warnf("update error: %s", TextStatus(err))
	u.Stop()
}
