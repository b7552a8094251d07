package push

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/samber/lo"
	"github.com/sourcegraph/conc/pool"

	"github.com/docease/docease/internal/platform/eventbus"
)

// Device is a push target as seen by the dispatcher.
type Device struct {
	ID          string
	UserID      string
	DeviceToken string
	IsDisabled  bool
}

// DeviceDirectory lists a user's registered devices.
type DeviceDirectory interface {
	DevicesForUser(ctx context.Context, userID string) ([]Device, error)
}

// Result summarises one dispatch.
type Result struct {
	Attempted int
	Failed    int
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithTimeout bounds each gateway call.
func WithTimeout(d time.Duration) Option {
	return func(p *Dispatcher) {
		if d > 0 {
			p.timeout = d
		}
	}
}

// WithMaxConcurrency bounds how many devices are pushed at once.
func WithMaxConcurrency(n int) Option {
	return func(p *Dispatcher) {
		if n > 0 {
			p.maxConcurrency = n
		}
	}
}

// Dispatcher fans a notification out to every enabled device of its user.
// A failure on one device is logged and does not affect the others.
type Dispatcher struct {
	devices        DeviceDirectory
	gateway        Gateway
	logger         zerolog.Logger
	timeout        time.Duration
	maxConcurrency int
}

func NewDispatcher(devices DeviceDirectory, gateway Gateway, logger zerolog.Logger, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		devices:        devices,
		gateway:        gateway,
		logger:         logger.With().Str("component", "push").Logger(),
		timeout:        10 * time.Second,
		maxConcurrency: 8,
	}
	for _, o := range opts {
		o(d)
	}
	return d
}

// Dispatch sends n to each enabled device and waits for the attempts to
// finish. Callers that must not wait run it on their own goroutine.
func (d *Dispatcher) Dispatch(ctx context.Context, n eventbus.Notification) Result {
	devices, err := d.devices.DevicesForUser(ctx, n.UserID)
	if err != nil {
		d.logger.Error().Err(err).Str("user_id", n.UserID).Msg("list devices")
		return Result{}
	}

	enabled := lo.Filter(devices, func(dev Device, _ int) bool {
		return !dev.IsDisabled
	})
	if len(enabled) == 0 {
		return Result{}
	}

	body := n.Body
	if body == "" {
		body = n.Message
	}

	var failed atomic.Int64
	p := pool.New().WithMaxGoroutines(d.maxConcurrency)
	for _, dev := range enabled {
		dev := dev
		p.Go(func() {
			if err := d.sendOne(ctx, dev, Request{
				UserID:      n.UserID,
				Message:     n.Message,
				DeviceToken: dev.DeviceToken,
				Title:       string(n.Title),
				Body:        body,
			}); err != nil {
				failed.Add(1)
				d.logger.Warn().Err(err).
					Str("user_id", n.UserID).
					Str("device_id", dev.ID).
					Msg("push delivery failed")
			}
		})
	}
	p.Wait()

	return Result{Attempted: len(enabled), Failed: int(failed.Load())}
}

func (d *Dispatcher) sendOne(ctx context.Context, dev Device, req Request) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("push gateway panic: %v", r)
		}
	}()

	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()
	return d.gateway.Send(ctx, req)
}
