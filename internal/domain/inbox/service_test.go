package inbox

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/docease/docease/internal/platform/eventbus"
	"github.com/docease/docease/internal/platform/notification"
)

// -- Mock Repository --

type mockNotificationRepo struct {
	mu    sync.Mutex
	items map[uuid.UUID]*Notification
	err   error
}

func newMockNotificationRepo() *mockNotificationRepo {
	return &mockNotificationRepo{items: make(map[uuid.UUID]*Notification)}
}

func (m *mockNotificationRepo) Create(_ context.Context, n *Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	n.ID = uuid.New()
	n.CreatedAt = time.Now()
	m.items[n.ID] = n
	return nil
}

func (m *mockNotificationRepo) GetByID(_ context.Context, id uuid.UUID) (*Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.items[id]
	if !ok {
		return nil, ErrNotFound
	}
	return n, nil
}

func (m *mockNotificationRepo) ListByUser(_ context.Context, userID string, limit, offset int) ([]*Notification, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []*Notification
	for _, n := range m.items {
		if n.UserID == userID {
			result = append(result, n)
		}
	}
	return result, len(result), nil
}

// -- Mock Publisher --

type mockPublisher struct {
	events []eventbus.Event
	err    error
}

func (m *mockPublisher) Publish(ev eventbus.Event) error {
	if m.err != nil {
		return m.err
	}
	m.events = append(m.events, ev)
	return nil
}

func newTestService() (*Service, *mockNotificationRepo, *mockPublisher) {
	repo := newMockNotificationRepo()
	pub := &mockPublisher{}
	return NewService(repo, notification.NewTemplateEngine(), pub), repo, pub
}

// -- Service Tests --

func TestRecordNotification(t *testing.T) {
	svc, repo, _ := newTestService()
	err := svc.RecordNotification(context.Background(), eventbus.Notification{
		UserID:  "u1",
		Message: "Appointment approved",
		Title:   eventbus.TitleAppointment,
		Body:    "Doctor has approved your appointment",
		Link:    "/appointments?id=a1",
	})
	if err != nil {
		t.Fatalf("RecordNotification: %v", err)
	}
	items, total, _ := repo.ListByUser(context.Background(), "u1", 20, 0)
	if total != 1 {
		t.Fatalf("total = %d, want 1", total)
	}
	got := items[0]
	if got.Title != "APPOINTMENT" || got.Message != "Appointment approved" || got.Link != "/appointments?id=a1" {
		t.Errorf("record = %+v", got)
	}
}

func TestRecordNotification_RepoError(t *testing.T) {
	svc, repo, _ := newTestService()
	repo.err = errors.New("connection refused")
	err := svc.RecordNotification(context.Background(), eventbus.Notification{UserID: "u1", Message: "m", Title: eventbus.TitleMessage})
	if err == nil {
		t.Fatal("expected error")
	}
}

func TestGetNotification_Ownership(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()
	svc.RecordNotification(ctx, eventbus.Notification{UserID: "u1", Message: "m", Title: eventbus.TitleMessage})
	items, _, _ := svc.ListNotifications(ctx, "u1", 20, 0)
	id := items[0].ID

	if _, err := svc.GetNotification(ctx, "u1", id); err != nil {
		t.Errorf("owner lookup failed: %v", err)
	}
	if _, err := svc.GetNotification(ctx, "u2", id); !errors.Is(err, ErrForbidden) {
		t.Errorf("err = %v, want ErrForbidden", err)
	}
	if _, err := svc.GetNotification(ctx, "u1", uuid.New()); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestEmit_Explicit(t *testing.T) {
	svc, _, pub := newTestService()
	n, err := svc.Emit(context.Background(), EmitRequest{
		UserID:  "u1",
		Title:   "APPOINTMENT",
		Message: "Your appointment was moved",
		Link:    "/appointments?id=a1",
	})
	if err != nil {
		t.Fatalf("Emit: %v", err)
	}
	if len(pub.events) != 1 {
		t.Fatalf("published %d events, want 1", len(pub.events))
	}
	if pub.events[0] != eventbus.Event(n) {
		t.Errorf("published %+v, returned %+v", pub.events[0], n)
	}
}

func TestEmit_Template(t *testing.T) {
	svc, _, pub := newTestService()
	n, err := svc.Emit(context.Background(), EmitRequest{
		UserID:   "u1",
		Template: notification.TemplateAppointmentApproved,
		Data:     map[string]string{"doctor_name": "Dr. Jane Doe", "starts_at": "09:00", "ends_at": "09:30"},
		Link:     "/appointments?id=a1",
	})
	if err != nil {
		t.Fatalf("Emit: %v", err)
	}
	if n.Title != eventbus.TitleAppointment {
		t.Errorf("title = %q", n.Title)
	}
	want := "Dr. Jane Doe has approved your appointment scheduled from 09:00 to 09:30."
	if n.Message != want {
		t.Errorf("message = %q, want %q", n.Message, want)
	}
	if n.Body != "Doctor has approved your appointment" {
		t.Errorf("body = %q", n.Body)
	}
	if len(pub.events) != 1 {
		t.Errorf("published %d events", len(pub.events))
	}
}

func TestEmit_Invalid(t *testing.T) {
	svc, _, pub := newTestService()
	cases := []EmitRequest{
		{Title: "APPOINTMENT", Message: "no user"},
		{UserID: "u1", Title: "BOGUS", Message: "m"},
		{UserID: "u1", Title: "MESSAGE"},
		{UserID: "u1", Template: "no-such-template"},
	}
	for _, req := range cases {
		if _, err := svc.Emit(context.Background(), req); !errors.Is(err, ErrInvalid) {
			t.Errorf("Emit(%+v) err = %v, want ErrInvalid", req, err)
		}
	}
	if len(pub.events) != 0 {
		t.Errorf("invalid requests published %d events", len(pub.events))
	}
}

func TestEmit_QueueFull(t *testing.T) {
	svc, _, pub := newTestService()
	pub.err = eventbus.ErrQueueFull
	_, err := svc.Emit(context.Background(), EmitRequest{UserID: "u1", Title: "MESSAGE", Message: "m"})
	if !errors.Is(err, eventbus.ErrQueueFull) {
		t.Errorf("err = %v, want ErrQueueFull", err)
	}
}
