package push

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/docease/docease/internal/platform/eventbus"
)

type mockDirectory struct {
	devices map[string][]Device
	err     error
}

func (m *mockDirectory) DevicesForUser(_ context.Context, userID string) ([]Device, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.devices[userID], nil
}

// mockGateway records requests and fails for tokens listed in failFor.
type mockGateway struct {
	mu       sync.Mutex
	requests []Request
	failFor  map[string]bool
	panicFor map[string]bool
	delay    time.Duration
}

func (m *mockGateway) Send(ctx context.Context, req Request) error {
	if m.delay > 0 {
		select {
		case <-time.After(m.delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if m.panicFor[req.DeviceToken] {
		panic("gateway bug")
	}
	m.mu.Lock()
	m.requests = append(m.requests, req)
	m.mu.Unlock()
	if m.failFor[req.DeviceToken] {
		return errors.New("gateway rejected token")
	}
	return nil
}

func (m *mockGateway) tokens() map[string]Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]Request, len(m.requests))
	for _, r := range m.requests {
		out[r.DeviceToken] = r
	}
	return out
}

func testNotification() eventbus.Notification {
	return eventbus.Notification{
		UserID:  "u1",
		Message: "Your appointment was approved",
		Title:   eventbus.TitleAppointment,
	}
}

func TestDispatch_SkipsDisabledDevices(t *testing.T) {
	dir := &mockDirectory{devices: map[string][]Device{
		"u1": {
			{ID: "d1", UserID: "u1", DeviceToken: "t1"},
			{ID: "d2", UserID: "u1", DeviceToken: "t2", IsDisabled: true},
			{ID: "d3", UserID: "u1", DeviceToken: "t3"},
			{ID: "d4", UserID: "u1", DeviceToken: "t4", IsDisabled: true},
		},
	}}
	gw := &mockGateway{}
	d := NewDispatcher(dir, gw, zerolog.Nop())

	res := d.Dispatch(context.Background(), testNotification())

	if res.Attempted != 2 || res.Failed != 0 {
		t.Fatalf("result = %+v, want 2 attempted, 0 failed", res)
	}
	got := gw.tokens()
	if _, ok := got["t2"]; ok {
		t.Error("disabled device t2 was pushed")
	}
	if _, ok := got["t4"]; ok {
		t.Error("disabled device t4 was pushed")
	}
	req, ok := got["t1"]
	if !ok {
		t.Fatal("device t1 was not pushed")
	}
	if req.UserID != "u1" || req.Title != "APPOINTMENT" || req.Message != "Your appointment was approved" {
		t.Errorf("request = %+v", req)
	}
	if req.Body != req.Message {
		t.Errorf("body should default to message, got %q", req.Body)
	}
}

func TestDispatch_FiltersOnDisabledFlagOnly(t *testing.T) {
	dir := &mockDirectory{devices: map[string][]Device{
		"u1": {
			{ID: "d1", UserID: "u1"},
			{ID: "d2", UserID: "u1", DeviceToken: "t2"},
			{ID: "d3", UserID: "u1", DeviceToken: "t3", IsDisabled: true},
		},
	}}
	d := NewDispatcher(dir, &mockGateway{}, zerolog.Nop())

	res := d.Dispatch(context.Background(), testNotification())
	if res.Attempted != 2 {
		t.Errorf("attempted = %d, want 2 (every enabled device)", res.Attempted)
	}
}

func TestDispatch_FailureIsIsolatedPerDevice(t *testing.T) {
	dir := &mockDirectory{devices: map[string][]Device{
		"u1": {
			{ID: "d1", DeviceToken: "t1"},
			{ID: "d2", DeviceToken: "t2"},
			{ID: "d3", DeviceToken: "t3"},
		},
	}}
	gw := &mockGateway{failFor: map[string]bool{"t2": true}}
	d := NewDispatcher(dir, gw, zerolog.Nop())

	res := d.Dispatch(context.Background(), testNotification())

	if res.Attempted != 3 || res.Failed != 1 {
		t.Fatalf("result = %+v, want 3 attempted, 1 failed", res)
	}
	if len(gw.tokens()) != 3 {
		t.Errorf("expected all 3 devices to be attempted, got %d", len(gw.tokens()))
	}
}

func TestDispatch_PanicIsIsolated(t *testing.T) {
	dir := &mockDirectory{devices: map[string][]Device{
		"u1": {{ID: "d1", DeviceToken: "boom"}, {ID: "d2", DeviceToken: "ok"}},
	}}
	gw := &mockGateway{panicFor: map[string]bool{"boom": true}}
	d := NewDispatcher(dir, gw, zerolog.Nop())

	res := d.Dispatch(context.Background(), testNotification())

	if res.Failed != 1 {
		t.Errorf("Failed = %d, want 1", res.Failed)
	}
	if _, ok := gw.tokens()["ok"]; !ok {
		t.Error("healthy device was not pushed")
	}
}

func TestDispatch_NoDevices(t *testing.T) {
	gw := &mockGateway{}
	d := NewDispatcher(&mockDirectory{}, gw, zerolog.Nop())

	res := d.Dispatch(context.Background(), testNotification())
	if res.Attempted != 0 || len(gw.tokens()) != 0 {
		t.Errorf("expected no-op, got %+v", res)
	}
}

func TestDispatch_DirectoryError(t *testing.T) {
	gw := &mockGateway{}
	d := NewDispatcher(&mockDirectory{err: errors.New("db down")}, gw, zerolog.Nop())

	res := d.Dispatch(context.Background(), testNotification())
	if res.Attempted != 0 || len(gw.tokens()) != 0 {
		t.Errorf("expected no sends on directory error, got %+v", res)
	}
}

func TestDispatch_PerDeviceTimeout(t *testing.T) {
	dir := &mockDirectory{devices: map[string][]Device{
		"u1": {{ID: "d1", DeviceToken: "slow"}},
	}}
	gw := &mockGateway{delay: time.Second}
	d := NewDispatcher(dir, gw, zerolog.Nop(), WithTimeout(20*time.Millisecond))

	start := time.Now()
	res := d.Dispatch(context.Background(), testNotification())
	if res.Failed != 1 {
		t.Errorf("Failed = %d, want 1", res.Failed)
	}
	if time.Since(start) > 500*time.Millisecond {
		t.Error("timeout was not applied")
	}
}

func TestDispatch_ExplicitBody(t *testing.T) {
	dir := &mockDirectory{devices: map[string][]Device{"u1": {{ID: "d1", DeviceToken: "t1"}}}}
	gw := &mockGateway{}
	d := NewDispatcher(dir, gw, zerolog.Nop(), WithMaxConcurrency(1))

	n := testNotification()
	n.Body = "Tap to view"
	d.Dispatch(context.Background(), n)

	if gw.tokens()["t1"].Body != "Tap to view" {
		t.Errorf("body = %q", gw.tokens()["t1"].Body)
	}
}
