package inbox

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/docease/docease/internal/platform/eventbus"
	"github.com/docease/docease/internal/platform/notification"
)

var validate = validator.New()

type Service struct {
	notifications NotificationRepository
	templates     *notification.TemplateEngine
	bus           eventbus.Publisher
}

func NewService(notifications NotificationRepository, templates *notification.TemplateEngine, bus eventbus.Publisher) *Service {
	return &Service{
		notifications: notifications,
		templates:     templates,
		bus:           bus,
	}
}

// RecordNotification appends n to its user's inbox. The delivery router
// calls it for every notification, whether or not the user is connected.
func (s *Service) RecordNotification(ctx context.Context, n eventbus.Notification) error {
	rec := &Notification{
		UserID:  n.UserID,
		Message: n.Message,
		Title:   string(n.Title),
		Link:    n.Link,
	}
	if err := s.notifications.Create(ctx, rec); err != nil {
		return fmt.Errorf("record notification for %s: %w", n.UserID, err)
	}
	return nil
}

func (s *Service) ListNotifications(ctx context.Context, userID string, limit, offset int) ([]*Notification, int, error) {
	return s.notifications.ListByUser(ctx, userID, limit, offset)
}

// GetNotification returns a record owned by userID.
func (s *Service) GetNotification(ctx context.Context, userID string, id uuid.UUID) (*Notification, error) {
	n, err := s.notifications.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if n.UserID != userID {
		return nil, ErrForbidden
	}
	return n, nil
}

// Emit builds a notification from req and publishes it on the bus. Delivery
// happens asynchronously; the returned event is what was published.
func (s *Service) Emit(ctx context.Context, req EmitRequest) (eventbus.Notification, error) {
	req.UserID = strings.TrimSpace(req.UserID)
	if err := validate.Struct(req); err != nil {
		return eventbus.Notification{}, fmt.Errorf("%w: %v", ErrInvalid, err)
	}

	var n eventbus.Notification
	if req.Template != "" {
		if !s.templates.Has(req.Template) {
			return eventbus.Notification{}, fmt.Errorf("%w: unknown template %q", ErrInvalid, req.Template)
		}
		rendered, err := s.templates.Notification(req.Template, req.UserID, req.Link, req.Data)
		if err != nil {
			return eventbus.Notification{}, err
		}
		n = rendered
		if req.Body != "" {
			n.Body = req.Body
		}
	} else {
		if req.Title == "" || strings.TrimSpace(req.Message) == "" {
			return eventbus.Notification{}, fmt.Errorf("%w: title and message are required without a template", ErrInvalid)
		}
		n = eventbus.Notification{
			UserID:  req.UserID,
			Message: req.Message,
			Title:   eventbus.Title(req.Title),
			Body:    req.Body,
			Link:    req.Link,
		}
	}

	if err := s.bus.Publish(n); err != nil {
		return eventbus.Notification{}, fmt.Errorf("publish notification: %w", err)
	}
	return n, nil
}
