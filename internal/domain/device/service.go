package device

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

var ErrInvalid = errors.New("invalid device")

var validate = validator.New()

type Service struct {
	devices DeviceRepository
}

func NewService(devices DeviceRepository) *Service {
	return &Service{devices: devices}
}

// Register stores the caller's device token, or refreshes it when the
// token is already registered.
func (s *Service) Register(ctx context.Context, userID string, req RegisterRequest) (*Device, error) {
	req.DeviceToken = strings.TrimSpace(req.DeviceToken)
	if err := validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if req.Platform == "" {
		req.Platform = "web"
	}
	d := &Device{UserID: userID, DeviceToken: req.DeviceToken, Platform: req.Platform}
	if err := s.devices.Upsert(ctx, d); err != nil {
		return nil, fmt.Errorf("register device: %w", err)
	}
	return d, nil
}

func (s *Service) ListDevices(ctx context.Context, userID string, limit, offset int) ([]*Device, int, error) {
	return s.devices.ListByUser(ctx, userID, limit, offset)
}

// DevicesForUser returns every device of userID, enabled or not.
func (s *Service) DevicesForUser(ctx context.Context, userID string) ([]*Device, error) {
	return s.devices.ListAllByUser(ctx, userID)
}

func (s *Service) Disable(ctx context.Context, userID string, id uuid.UUID) (*Device, error) {
	return s.setDisabled(ctx, userID, id, true)
}

func (s *Service) Enable(ctx context.Context, userID string, id uuid.UUID) (*Device, error) {
	return s.setDisabled(ctx, userID, id, false)
}

func (s *Service) setDisabled(ctx context.Context, userID string, id uuid.UUID, disabled bool) (*Device, error) {
	d, err := s.owned(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if d.IsDisabled == disabled {
		return d, nil
	}
	if err := s.devices.SetDisabled(ctx, id, disabled); err != nil {
		return nil, err
	}
	d.IsDisabled = disabled
	return d, nil
}

func (s *Service) Delete(ctx context.Context, userID string, id uuid.UUID) error {
	if _, err := s.owned(ctx, userID, id); err != nil {
		return err
	}
	return s.devices.Delete(ctx, id)
}

func (s *Service) owned(ctx context.Context, userID string, id uuid.UUID) (*Device, error) {
	d, err := s.devices.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if d.UserID != userID {
		return nil, ErrForbidden
	}
	return d, nil
}
