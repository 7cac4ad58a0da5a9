package app

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"time"

	"github.com/jkaberg/devdash/internal/bus"
	"github.com/jkaberg/devdash/internal/config"
	"github.com/jkaberg/devdash/internal/domain"
	"github.com/jkaberg/devdash/internal/indicator"
	"github.com/jkaberg/devdash/internal/transmission"
	"github.com/jkaberg/devdash/internal/updater"
	"github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"
	"golang.org/x/sync/errgroup"
)

// ErrPollingHalted is returned by Run when a fetch failure stopped polling.
var ErrPollingHalted = errors.New("polling halted")

// Run polls the device, applies every update to the board and forwards
// changed snapshots to tx (may be nil). It blocks until ctx is cancelled, in
// which case it returns nil, or until a fetch fails while cfg.KeepPolling is
// false, in which case it returns an error wrapping ErrPollingHalted.
func Run(
	ctx context.Context,
	cfg *config.Config,
	up *updater.Updater,
	board *indicator.Board,
	tx transmission.Transmitter,
	logger *logrus.Logger,
) error {
	messageBus := bus.New()
	defer messageBus.Close()
	sub := messageBus.Subscribe()

	grp, ctx := errgroup.WithContext(ctx)

	// Collector -----------------------------------------------------------
	halted := make(chan error, 1)
	onError := func(err error) {
		logger.WithError(err).WithField("status", updater.TextStatus(err)).Warn("collector: update failed")
	}
	if !cfg.KeepPolling {
		onError = func(err error) {
			up.Stop()
			select {
			case halted <- err:
			default:
			}
		}
	}

	onUpdate := func(data gjson.Result) {
		messageBus.Publish(&domain.Snapshot{
			Timestamp: time.Now(),
			Endpoint:  cfg.Endpoint,
			Data:      data,
			States:    board.Apply(data),
		})
	}

	grp.Go(func() error {
		up.Start(cfg.Endpoint, onUpdate, cfg.Rate, onError)
		defer up.Stop()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-halted:
			logger.WithError(err).Errorf("update error: %s", updater.TextStatus(err))
			return fmt.Errorf("%w: %v", ErrPollingHalted, err)
		}
	})

	// Scheduler -----------------------------------------------------------
	grp.Go(func() error {
		return schedule(ctx, cfg, sub, tx, logger)
	})

	if err := grp.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// schedule logs indicator changes and forwards snapshots to tx no more often
// than cfg.MQTTInterval, and only when something changed.
func schedule(ctx context.Context, cfg *config.Config, sub <-chan *domain.Snapshot, tx transmission.Transmitter, logger *logrus.Logger) error {
	var (
		latest    *domain.Snapshot
		lastSnap  *domain.Snapshot
		lastSent  time.Time
		lastState map[string]string
	)

	ticker := time.NewTicker(config.SchedulerTick)
	defer ticker.Stop()

	send := func(now time.Time) {
		if tx == nil || latest == nil {
			return
		}
		if now.Sub(lastSent) < cfg.MQTTInterval {
			return
		}
		if !domain.Changed(lastSnap, latest, cfg.IgnoreKeys) {
			return
		}
		// Retried on the next tick once paho has reconnected.
		if !tx.IsConnected() {
			logger.Debug("MQTT not connected; deferring transmit")
			return
		}
		if err := tx.Transmit(latest); err != nil {
			logger.WithError(err).Warn("MQTT transmit failed")
			// Force a resend on the next interval even if nothing changes.
			lastSnap = nil
		} else {
			lastSnap = latest
		}
		lastSent = now
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case snap, ok := <-sub:
			if !ok {
				return nil
			}
			latest = snap
			if !reflect.DeepEqual(lastState, snap.States) {
				logger.WithField("indicators", snap.States).Info("Indicator state changed")
				lastState = snap.States
			}
			send(time.Now())
		case now := <-ticker.C:
			send(now)
		}
	}
}
