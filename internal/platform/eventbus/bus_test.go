package eventbus

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

func newTestBus(opts ...Option) *Bus {
	return New(zerolog.New(io.Discard), opts...)
}

type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) handle(_ context.Context, ev Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

func (r *recorder) all() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

func notif(user, msg string) Notification {
	return Notification{UserID: user, Message: msg, Title: TitleAppointment}
}

func TestBus_FanOutToAllSubscribers(t *testing.T) {
	bus := newTestBus()
	var a, b recorder
	bus.Subscribe(CategoryNotification, a.handle)
	bus.Subscribe(CategoryNotification, b.handle)

	if err := bus.Publish(notif("u1", "hello")); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	bus.Close()

	if len(a.all()) != 1 || len(b.all()) != 1 {
		t.Fatalf("expected each subscriber to see 1 event, got %d and %d", len(a.all()), len(b.all()))
	}
}

func TestBus_CategoriesAreIsolated(t *testing.T) {
	bus := newTestBus()
	var notifications, chats recorder
	bus.Subscribe(CategoryNotification, notifications.handle)
	bus.Subscribe(CategoryChat, chats.handle)

	bus.Publish(ChatMessage{MessageID: uuid.New(), SenderID: "a", RecipientID: "b", ChatRoomID: "r", Message: "hi"})
	bus.Close()

	if len(notifications.all()) != 0 {
		t.Errorf("notification subscriber received %d chat events", len(notifications.all()))
	}
	if len(chats.all()) != 1 {
		t.Errorf("chat subscriber received %d events, want 1", len(chats.all()))
	}
}

func TestBus_PreservesPublishOrder(t *testing.T) {
	bus := newTestBus()
	var rec recorder
	bus.Subscribe(CategoryNotification, rec.handle)

	msgs := []string{"one", "two", "three", "four", "five"}
	for _, m := range msgs {
		if err := bus.Publish(notif("u1", m)); err != nil {
			t.Fatalf("Publish(%s): %v", m, err)
		}
	}
	bus.Close()

	got := rec.all()
	if len(got) != len(msgs) {
		t.Fatalf("got %d events, want %d", len(got), len(msgs))
	}
	for i, ev := range got {
		if ev.(Notification).Message != msgs[i] {
			t.Errorf("event %d = %q, want %q", i, ev.(Notification).Message, msgs[i])
		}
	}
}

func TestBus_SubscribersRunInSubscriptionOrder(t *testing.T) {
	bus := newTestBus()
	var mu sync.Mutex
	var order []int
	for i := 0; i < 3; i++ {
		i := i
		bus.Subscribe(CategoryNotification, func(context.Context, Event) error {
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
			return nil
		})
	}

	bus.Publish(notif("u1", "x"))
	bus.Close()

	if len(order) != 3 || order[0] != 0 || order[1] != 1 || order[2] != 2 {
		t.Errorf("order = %v, want [0 1 2]", order)
	}
}

func TestBus_PanicIsIsolated(t *testing.T) {
	bus := newTestBus()
	var after recorder
	bus.Subscribe(CategoryNotification, func(context.Context, Event) error {
		panic("boom")
	})
	bus.Subscribe(CategoryNotification, after.handle)

	bus.Publish(notif("u1", "first"))
	bus.Publish(notif("u1", "second"))
	bus.Close()

	if len(after.all()) != 2 {
		t.Fatalf("expected the second subscriber to see 2 events, got %d", len(after.all()))
	}
}

func TestBus_ErrorIsIsolated(t *testing.T) {
	bus := newTestBus()
	var after recorder
	bus.Subscribe(CategoryNotification, func(context.Context, Event) error {
		return errors.New("subscriber failure")
	})
	bus.Subscribe(CategoryNotification, after.handle)

	if err := bus.Publish(notif("u1", "x")); err != nil {
		t.Fatalf("Publish returned subscriber error: %v", err)
	}
	bus.Close()

	if len(after.all()) != 1 {
		t.Fatalf("expected 1 event after failing subscriber, got %d", len(after.all()))
	}
}

func TestBus_Unsubscribe(t *testing.T) {
	bus := newTestBus()
	var rec recorder
	unsub := bus.Subscribe(CategoryNotification, rec.handle)
	if bus.subscriberCount(CategoryNotification) != 1 {
		t.Fatalf("subscriberCount = %d, want 1", bus.subscriberCount(CategoryNotification))
	}

	unsub()
	unsub()

	if bus.subscriberCount(CategoryNotification) != 0 {
		t.Fatalf("subscriberCount = %d, want 0", bus.subscriberCount(CategoryNotification))
	}
	bus.Publish(notif("u1", "x"))
	bus.Close()

	if len(rec.all()) != 0 {
		t.Errorf("unsubscribed handler received %d events", len(rec.all()))
	}
}

func TestBus_PublishRejectsInvalidEvents(t *testing.T) {
	bus := newTestBus()
	defer bus.Close()
	bus.Subscribe(CategoryNotification, func(context.Context, Event) error { return nil })

	if err := bus.Publish(nil); !errors.Is(err, ErrNilEvent) {
		t.Errorf("Publish(nil) = %v, want ErrNilEvent", err)
	}
	if err := bus.Publish(Notification{Message: "no target", Title: TitleMessage}); err == nil {
		t.Error("expected error for notification without user")
	}
	if err := bus.Publish(Notification{UserID: "u1", Message: "x", Title: "BOGUS"}); err == nil {
		t.Error("expected error for unknown title")
	}
	if err := bus.Publish(ConferenceInvite{UserID: "u1", Message: "join"}); err == nil {
		t.Error("expected error for invite without conference id")
	}
}

func TestBus_PublishDoesNotBlockWhenQueueFull(t *testing.T) {
	bus := newTestBus(WithBufferSize(1))
	release := make(chan struct{})
	started := make(chan struct{}, 1)
	bus.Subscribe(CategoryNotification, func(context.Context, Event) error {
		select {
		case started <- struct{}{}:
		default:
		}
		<-release
		return nil
	})

	// First event occupies the dispatcher, second fills the queue.
	bus.Publish(notif("u1", "1"))
	<-started
	bus.Publish(notif("u1", "2"))

	if err := bus.Publish(notif("u1", "3")); !errors.Is(err, ErrQueueFull) {
		t.Errorf("Publish on full queue = %v, want ErrQueueFull", err)
	}
	close(release)
	bus.Close()
}

func TestBus_PublishAfterClose(t *testing.T) {
	bus := newTestBus()
	bus.Subscribe(CategoryNotification, func(context.Context, Event) error { return nil })
	bus.Close()
	bus.Close()

	if err := bus.Publish(notif("u1", "x")); !errors.Is(err, ErrClosed) {
		t.Errorf("Publish after Close = %v, want ErrClosed", err)
	}
}

func TestEvents_TargetAndCategory(t *testing.T) {
	tests := []struct {
		ev       Event
		category Category
		target   string
	}{
		{ChatMessage{RecipientID: "r1", SenderID: "s1"}, CategoryChat, "r1"},
		{Notification{UserID: "u1"}, CategoryNotification, "u1"},
		{ConferenceInvite{UserID: "u2"}, CategoryConference, "u2"},
	}
	for _, tt := range tests {
		if tt.ev.Category() != tt.category {
			t.Errorf("%T.Category() = %s, want %s", tt.ev, tt.ev.Category(), tt.category)
		}
		if tt.ev.Target() != tt.target {
			t.Errorf("%T.Target() = %s, want %s", tt.ev, tt.ev.Target(), tt.target)
		}
	}
}
