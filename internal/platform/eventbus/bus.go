// Package eventbus is the in-process publish/subscribe channel that decouples
// request handlers (producers) from real-time delivery (subscribers).
//
// Each category owns a bounded queue drained by a single dispatcher
// goroutine. Publish never waits on subscribers: a full queue drops the event
// and reports ErrQueueFull. Within a category events are handled in publish
// order and, for each event, subscribers run in subscription order. A
// subscriber that returns an error or panics is logged and skipped; the
// remaining subscribers still run.
package eventbus

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
)

var (
	ErrClosed    = errors.New("eventbus: closed")
	ErrQueueFull = errors.New("eventbus: queue full")
	ErrNilEvent  = errors.New("eventbus: nil event")
)

// DefaultBufferSize is the per-category queue capacity.
const DefaultBufferSize = 1024

var validate = validator.New()

// Handler consumes one event. Errors are logged by the bus, never returned to
// the producer.
type Handler func(ctx context.Context, ev Event) error

// Publisher is the producer side of the bus.
type Publisher interface {
	Publish(ev Event) error
}

// Option configures a Bus.
type Option func(*Bus)

// WithBufferSize sets the per-category queue capacity.
func WithBufferSize(n int) Option {
	return func(b *Bus) {
		if n > 0 {
			b.bufferSize = n
		}
	}
}

type subscription struct {
	id      uint64
	handler Handler
}

type lane struct {
	category Category
	queue    chan Event

	mu   sync.RWMutex
	subs []*subscription
}

// Bus fans events out to the subscribers of their category.
type Bus struct {
	logger     zerolog.Logger
	bufferSize int

	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.RWMutex
	lanes  map[Category]*lane
	nextID uint64
	closed bool
	wg     sync.WaitGroup
}

// New creates a Bus. Lanes are created lazily on first Subscribe or Publish.
func New(logger zerolog.Logger, opts ...Option) *Bus {
	ctx, cancel := context.WithCancel(context.Background())
	b := &Bus{
		logger:     logger.With().Str("component", "eventbus").Logger(),
		bufferSize: DefaultBufferSize,
		ctx:        ctx,
		cancel:     cancel,
		lanes:      make(map[Category]*lane),
	}
	for _, o := range opts {
		o(b)
	}
	return b
}

// laneFor returns the lane for a category, starting its dispatcher on first
// use. Returns nil once the bus is closed.
func (b *Bus) laneFor(c Category) *lane {
	b.mu.RLock()
	l, ok := b.lanes[c]
	closed := b.closed
	b.mu.RUnlock()
	if ok || closed {
		return l
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	if l, ok := b.lanes[c]; ok {
		return l
	}
	l = &lane{category: c, queue: make(chan Event, b.bufferSize)}
	b.lanes[c] = l
	b.wg.Add(1)
	go b.dispatch(l)
	return l
}

// Subscribe registers h for every future event of category c. The returned
// function removes the subscription; calling it more than once is a no-op.
func (b *Bus) Subscribe(c Category, h Handler) (unsubscribe func()) {
	l := b.laneFor(c)
	if l == nil {
		return func() {}
	}

	b.mu.Lock()
	b.nextID++
	sub := &subscription{id: b.nextID, handler: h}
	b.mu.Unlock()

	l.mu.Lock()
	l.subs = append(l.subs, sub)
	l.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			defer l.mu.Unlock()
			for i, s := range l.subs {
				if s.id == sub.id {
					l.subs = append(l.subs[:i:i], l.subs[i+1:]...)
					return
				}
			}
		})
	}
}

// Publish enqueues ev for asynchronous delivery. It returns an error only for
// malformed events, a closed bus, or a full queue; subscriber outcomes are
// never reported here.
func (b *Bus) Publish(ev Event) error {
	if ev == nil {
		return ErrNilEvent
	}
	if err := validate.Struct(ev); err != nil {
		return fmt.Errorf("eventbus: invalid %s event: %w", ev.Category(), err)
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return ErrClosed
	}
	l, ok := b.lanes[ev.Category()]
	if !ok {
		// Nobody ever subscribed; nothing would observe the event.
		return nil
	}

	select {
	case l.queue <- ev:
		return nil
	default:
		b.logger.Warn().
			Str("category", string(ev.Category())).
			Str("user_id", ev.Target()).
			Msg("event dropped: queue full")
		return ErrQueueFull
	}
}

// Close stops accepting events, lets every dispatcher drain what is already
// queued, and waits for them to exit.
func (b *Bus) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	for _, l := range b.lanes {
		close(l.queue)
	}
	b.mu.Unlock()

	b.wg.Wait()
	b.cancel()
}

// subscriberCount reports the number of handlers attached to a category.
func (b *Bus) subscriberCount(c Category) int {
	b.mu.RLock()
	l, ok := b.lanes[c]
	b.mu.RUnlock()
	if !ok {
		return 0
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.subs)
}

func (b *Bus) dispatch(l *lane) {
	defer b.wg.Done()
	for ev := range l.queue {
		l.mu.RLock()
		subs := make([]*subscription, len(l.subs))
		copy(subs, l.subs)
		l.mu.RUnlock()

		for _, s := range subs {
			b.invoke(s, ev)
		}
	}
}

func (b *Bus) invoke(s *subscription, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			var stack [4096]byte
			n := runtime.Stack(stack[:], false)
			b.logger.Error().
				Str("category", string(ev.Category())).
				Str("user_id", ev.Target()).
				Uint64("subscription", s.id).
				Str("panic", fmt.Sprintf("%v", r)).
				Str("stack", string(stack[:n])).
				Msg("subscriber panic recovered")
		}
	}()

	if err := s.handler(b.ctx, ev); err != nil {
		b.logger.Error().Err(err).
			Str("category", string(ev.Category())).
			Str("user_id", ev.Target()).
			Uint64("subscription", s.id).
			Msg("subscriber failed")
	}
}
