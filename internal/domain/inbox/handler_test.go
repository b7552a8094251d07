package inbox

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/docease/docease/internal/platform/auth"
	"github.com/docease/docease/internal/platform/eventbus"
)

func newTestHandler() (*Handler, *mockPublisher, *echo.Echo) {
	svc, _, pub := newTestService()
	return NewHandler(svc), pub, echo.New()
}

func newAuthedContext(e *echo.Echo, method, body, userID string) (echo.Context, *httptest.ResponseRecorder) {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, "/", strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, "/", nil)
	}
	req = req.WithContext(auth.WithUser(req.Context(), userID, auth.RoleDoctor))
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func httpStatus(t *testing.T, err error) int {
	t.Helper()
	var he *echo.HTTPError
	if !errors.As(err, &he) {
		t.Fatalf("expected *echo.HTTPError, got %v", err)
	}
	return he.Code
}

func TestListNotifications_Handler(t *testing.T) {
	h, _, e := newTestHandler()
	ctx := context.Background()
	h.svc.RecordNotification(ctx, eventbus.Notification{UserID: "u1", Message: "a", Title: eventbus.TitleMessage})
	h.svc.RecordNotification(ctx, eventbus.Notification{UserID: "u1", Message: "b", Title: eventbus.TitleMessage})
	h.svc.RecordNotification(ctx, eventbus.Notification{UserID: "u2", Message: "c", Title: eventbus.TitleMessage})

	c, rec := newAuthedContext(e, http.MethodGet, "", "u1")
	if err := h.ListNotifications(c); err != nil {
		t.Fatal(err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
	var resp struct {
		Data  []Notification `json:"data"`
		Total int            `json:"total"`
	}
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp.Total != 2 || len(resp.Data) != 2 {
		t.Errorf("got %d/%d, want 2", len(resp.Data), resp.Total)
	}
}

func TestGetNotification_Handler(t *testing.T) {
	h, _, e := newTestHandler()
	ctx := context.Background()
	h.svc.RecordNotification(ctx, eventbus.Notification{UserID: "u1", Message: "a", Title: eventbus.TitleMessage})
	items, _, _ := h.svc.ListNotifications(ctx, "u1", 20, 0)

	c, rec := newAuthedContext(e, http.MethodGet, "", "u1")
	c.SetParamNames("id")
	c.SetParamValues(items[0].ID.String())
	if err := h.GetNotification(c); err != nil {
		t.Fatal(err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}

	c, _ = newAuthedContext(e, http.MethodGet, "", "u2")
	c.SetParamNames("id")
	c.SetParamValues(items[0].ID.String())
	if code := httpStatus(t, h.GetNotification(c)); code != http.StatusForbidden {
		t.Errorf("expected 403, got %d", code)
	}

	c, _ = newAuthedContext(e, http.MethodGet, "", "u1")
	c.SetParamNames("id")
	c.SetParamValues("bad")
	if code := httpStatus(t, h.GetNotification(c)); code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", code)
	}
}

func TestEmitNotification_Handler(t *testing.T) {
	h, pub, e := newTestHandler()
	body := `{"userId":"u2","title":"APPOINTMENT","message":"Appointment created","link":"/appointments?id=1"}`
	c, rec := newAuthedContext(e, http.MethodPost, body, "doc-1")
	if err := h.EmitNotification(c); err != nil {
		t.Fatal(err)
	}
	if rec.Code != http.StatusAccepted {
		t.Errorf("expected 202, got %d", rec.Code)
	}
	if len(pub.events) != 1 || pub.events[0].Target() != "u2" {
		t.Errorf("events = %+v", pub.events)
	}
}

func TestEmitNotification_Errors(t *testing.T) {
	h, pub, e := newTestHandler()
	c, _ := newAuthedContext(e, http.MethodPost, `{"title":"APPOINTMENT","message":"x"}`, "doc-1")
	if code := httpStatus(t, h.EmitNotification(c)); code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", code)
	}

	pub.err = eventbus.ErrQueueFull
	c, _ = newAuthedContext(e, http.MethodPost, `{"userId":"u2","title":"MESSAGE","message":"x"}`, "doc-1")
	if code := httpStatus(t, h.EmitNotification(c)); code != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", code)
	}
}
