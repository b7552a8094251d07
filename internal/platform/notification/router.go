package notification

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/docease/docease/internal/platform/eventbus"
	"github.com/docease/docease/internal/platform/livestream"
	"github.com/docease/docease/internal/platform/push"
)

// Recorder persists a notification to the user's inbox.
type Recorder interface {
	RecordNotification(ctx context.Context, n eventbus.Notification) error
}

// Pusher fans a notification out to the user's devices.
type Pusher interface {
	Dispatch(ctx context.Context, n eventbus.Notification) push.Result
}

// Subscriber is the part of the event bus the router listens on.
type Subscriber interface {
	Subscribe(c eventbus.Category, h eventbus.Handler) (unsubscribe func())
}

// RouterOption configures a Router.
type RouterOption func(*Router)

// WithPersistTimeout bounds each inbox write.
func WithPersistTimeout(d time.Duration) RouterOption {
	return func(r *Router) {
		if d > 0 {
			r.persistTimeout = d
		}
	}
}

// Router is the single bus listener that delivers events to their target
// user. For a notification the live write, the device push and the inbox
// write are independent: a failure in one never blocks the others.
type Router struct {
	notifications  *livestream.Registry
	chats          *livestream.Registry
	recorder       Recorder
	pusher         Pusher
	logger         zerolog.Logger
	persistTimeout time.Duration

	pushes sync.WaitGroup
}

// NewRouter creates a Router. recorder and pusher may be nil.
func NewRouter(notifications, chats *livestream.Registry, recorder Recorder, pusher Pusher, logger zerolog.Logger, opts ...RouterOption) *Router {
	r := &Router{
		notifications:  notifications,
		chats:          chats,
		recorder:       recorder,
		pusher:         pusher,
		logger:         logger.With().Str("component", "router").Logger(),
		persistTimeout: 5 * time.Second,
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Attach subscribes the router to every event category. The returned
// function detaches it again.
func (r *Router) Attach(bus Subscriber) (detach func()) {
	unsubs := []func(){
		bus.Subscribe(eventbus.CategoryNotification, r.Handle),
		bus.Subscribe(eventbus.CategoryChat, r.Handle),
		bus.Subscribe(eventbus.CategoryConference, r.Handle),
	}
	return func() {
		for _, u := range unsubs {
			u()
		}
	}
}

// Wait blocks until every push started by the router has finished.
func (r *Router) Wait() {
	r.pushes.Wait()
}

// Handle routes one event. It is an eventbus.Handler.
func (r *Router) Handle(ctx context.Context, ev eventbus.Event) error {
	switch e := ev.(type) {
	case eventbus.Notification:
		return r.handleNotification(ctx, e)
	case eventbus.ChatMessage:
		r.chats.Deliver(e.RecipientID, livestream.Frame{Message: e, RecipientID: e.RecipientID})
		return nil
	case eventbus.ConferenceInvite:
		r.notifications.Deliver(e.UserID, livestream.Frame{Message: e, UserID: e.UserID})
		return nil
	default:
		return fmt.Errorf("router: unsupported event %T", ev)
	}
}

func (r *Router) handleNotification(ctx context.Context, n eventbus.Notification) error {
	if !r.notifications.Deliver(n.UserID, livestream.Frame{Message: n, UserID: n.UserID}) {
		r.logger.Debug().Str("user_id", n.UserID).Msg("no live notification stream")
	}

	if r.pusher != nil {
		r.pushes.Add(1)
		go func() {
			defer r.pushes.Done()
			defer func() {
				if p := recover(); p != nil {
					r.logger.Error().Str("user_id", n.UserID).Interface("panic", p).Msg("push dispatch panic recovered")
				}
			}()
			res := r.pusher.Dispatch(context.WithoutCancel(ctx), n)
			if res.Failed > 0 {
				r.logger.Warn().
					Str("user_id", n.UserID).
					Int("attempted", res.Attempted).
					Int("failed", res.Failed).
					Msg("push partially failed")
			}
		}()
	}

	if r.recorder != nil {
		pctx, cancel := context.WithTimeout(ctx, r.persistTimeout)
		defer cancel()
		if err := r.recorder.RecordNotification(pctx, n); err != nil {
			r.logger.Error().Err(err).Str("user_id", n.UserID).Msg("persist notification")
		}
	}
	return nil
}
