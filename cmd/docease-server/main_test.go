package main

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/docease/docease/internal/config"
	"github.com/docease/docease/internal/domain/device"
	"github.com/docease/docease/internal/platform/auth"
	"github.com/docease/docease/internal/platform/push"
)

type stubDevices struct {
	devices []*device.Device
	err     error
}

func (s stubDevices) DevicesForUser(_ context.Context, _ string) ([]*device.Device, error) {
	return s.devices, s.err
}

func TestDeviceDirectoryAdapter(t *testing.T) {
	id := uuid.New()
	a := deviceDirectoryAdapter{devices: stubDevices{devices: []*device.Device{
		{ID: id, UserID: "u1", DeviceToken: "tok-1"},
		{ID: uuid.New(), UserID: "u1", DeviceToken: "tok-2", IsDisabled: true},
	}}}

	got, err := a.DevicesForUser(context.Background(), "u1")
	if err != nil {
		t.Fatalf("DevicesForUser: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 devices, got %d", len(got))
	}
	want := push.Device{ID: id.String(), UserID: "u1", DeviceToken: "tok-1"}
	if got[0] != want {
		t.Errorf("got %+v, want %+v", got[0], want)
	}
	if !got[1].IsDisabled {
		t.Error("expected disabled flag to carry over")
	}
}

func TestDeviceDirectoryAdapter_Error(t *testing.T) {
	a := deviceDirectoryAdapter{devices: stubDevices{err: errors.New("db down")}}
	if _, err := a.DevicesForUser(context.Background(), "u1"); err == nil {
		t.Fatal("expected error")
	}
}

func TestMigrationTarget(t *testing.T) {
	cfg := &config.Config{DBSchema: "public", MigrationsDir: "./migrations"}

	cmd := &cobra.Command{}
	cmd.Flags().String("schema", "", "")
	cmd.Flags().String("dir", "", "")
	schema, dir := migrationTarget(cmd, cfg)
	if schema != "public" || dir != "./migrations" {
		t.Errorf("defaults: got %q %q", schema, dir)
	}

	cmd.Flags().Set("schema", "staging")
	cmd.Flags().Set("dir", "/srv/migrations")
	schema, dir = migrationTarget(cmd, cfg)
	if schema != "staging" || dir != "/srv/migrations" {
		t.Errorf("flags: got %q %q", schema, dir)
	}
}

func TestNewPushGateway(t *testing.T) {
	if _, ok := newPushGateway(&config.Config{}, zerolog.Nop()).(*push.LogGateway); !ok {
		t.Error("expected log gateway without a URL")
	}
	if _, ok := newPushGateway(&config.Config{PushGatewayURL: "http://push.local"}, zerolog.Nop()).(*push.HTTPGateway); !ok {
		t.Error("expected HTTP gateway with a URL")
	}
}

func TestAuthMiddleware_DevAcceptsHeaderIdentity(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-User-ID", "doc-1")
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	var userID string
	h := authMiddleware(&config.Config{Env: "development"})(func(c echo.Context) error {
		userID = auth.UserIDFromContext(c.Request().Context())
		return nil
	})
	if err := h(c); err != nil {
		t.Fatal(err)
	}
	if userID != "doc-1" {
		t.Errorf("user = %q", userID)
	}
}

func TestAuthMiddleware_ProductionRequiresToken(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	cfg := &config.Config{Env: "production", JWTSecret: "0123456789abcdef0123456789abcdef"}
	err := authMiddleware(cfg)(func(c echo.Context) error { return nil })(c)
	var he *echo.HTTPError
	if !errors.As(err, &he) || he.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %v", err)
	}
}
