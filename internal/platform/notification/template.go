// Package notification turns bus events into deliveries: live stream
// frames, persisted inbox records and device pushes. It also holds the
// templates producers use for user-facing text.
package notification

import (
	"fmt"
	"strings"
	"sync"

	"github.com/docease/docease/internal/platform/eventbus"
)

// Template IDs shipped with the engine.
const (
	TemplateChatMessage            = "chat-message"
	TemplateConferenceInvite       = "conference-invite"
	TemplateConferenceRejoin       = "conference-rejoin"
	TemplateAppointmentCreated     = "appointment-created"
	TemplateAppointmentApproved    = "appointment-approved"
	TemplateAppointmentCancelled   = "appointment-cancelled"
	TemplateAppointmentRescheduled = "appointment-rescheduled"
	TemplateAppointmentDone        = "appointment-done"
)

// Template is a reusable notification text. Message is what the inbox and
// the live stream show; Body is the shorter push body.
type Template struct {
	ID      string         `json:"id"`
	Title   eventbus.Title `json:"title"`
	Message string         `json:"message"`
	Body    string         `json:"body"`
}

// Rendered is a template with its placeholders filled in.
type Rendered struct {
	Title   eventbus.Title
	Message string
	Body    string
}

// TemplateEngine manages templates and renders them with data.
type TemplateEngine struct {
	mu        sync.RWMutex
	templates map[string]*Template
}

// NewTemplateEngine creates a TemplateEngine with the built-in templates
// pre-registered.
func NewTemplateEngine() *TemplateEngine {
	e := &TemplateEngine{
		templates: make(map[string]*Template),
	}
	e.registerBuiltIn()
	return e
}

func (e *TemplateEngine) registerBuiltIn() {
	builtIn := []Template{
		{
			ID:      TemplateChatMessage,
			Title:   eventbus.TitleMessage,
			Message: "New Chat Message: You have received a new message from {{sender_name}}. Please check your inbox to respond promptly. Thank you.",
			Body:    "New message from {{sender_name}}",
		},
		{
			ID:      TemplateConferenceInvite,
			Title:   eventbus.TitleConference,
			Message: "Join Video Call with {{caller_name}}",
			Body:    "{{caller_name}} is calling you",
		},
		{
			ID:      TemplateConferenceRejoin,
			Title:   eventbus.TitleConference,
			Message: "Please Join a Call with {{caller_name}}",
			Body:    "{{caller_name}} is waiting in the call",
		},
		{
			ID:      TemplateAppointmentCreated,
			Title:   eventbus.TitleAppointment,
			Message: "{{patient_name}} has scheduled an appointment with you from {{starts_at}} to {{ends_at}}.",
			Body:    "New appointment from patient",
		},
		{
			ID:      TemplateAppointmentApproved,
			Title:   eventbus.TitleAppointment,
			Message: "{{doctor_name}} has approved your appointment scheduled from {{starts_at}} to {{ends_at}}.",
			Body:    "Doctor has approved your appointment",
		},
		{
			ID:      TemplateAppointmentCancelled,
			Title:   eventbus.TitleAppointment,
			Message: "{{actor_name}} has cancelled the appointment scheduled from {{starts_at}} to {{ends_at}}.",
			Body:    "Appointment cancelled",
		},
		{
			ID:      TemplateAppointmentRescheduled,
			Title:   eventbus.TitleAppointment,
			Message: "{{actor_name}} has rescheduled the appointment to {{starts_at}} - {{ends_at}}.",
			Body:    "Appointment rescheduled",
		},
		{
			ID:      TemplateAppointmentDone,
			Title:   eventbus.TitleAppointment,
			Message: "Your appointment with {{doctor_name}} from {{starts_at}} to {{ends_at}} is complete.",
			Body:    "Appointment completed",
		},
	}
	for i := range builtIn {
		t := builtIn[i]
		e.templates[t.ID] = &t
	}
}

// RegisterTemplate adds or replaces a template in the engine.
func (e *TemplateEngine) RegisterTemplate(t Template) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.templates[t.ID] = &t
}

// Has reports whether templateID is registered.
func (e *TemplateEngine) Has(templateID string) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	_, ok := e.templates[templateID]
	return ok
}

// Render looks up a template by ID and performs {{key}} replacement using
// the supplied data map. Keys present in the template but absent from data
// are left as-is.
func (e *TemplateEngine) Render(templateID string, data map[string]string) (Rendered, error) {
	e.mu.RLock()
	t, ok := e.templates[templateID]
	e.mu.RUnlock()
	if !ok {
		return Rendered{}, fmt.Errorf("template %q not found", templateID)
	}

	out := Rendered{Title: t.Title, Message: t.Message, Body: t.Body}
	for k, v := range data {
		placeholder := "{{" + k + "}}"
		out.Message = strings.ReplaceAll(out.Message, placeholder, v)
		out.Body = strings.ReplaceAll(out.Body, placeholder, v)
	}
	return out, nil
}

// Notification renders templateID into a Notification addressed to userID.
func (e *TemplateEngine) Notification(templateID, userID, link string, data map[string]string) (eventbus.Notification, error) {
	r, err := e.Render(templateID, data)
	if err != nil {
		return eventbus.Notification{}, err
	}
	return eventbus.Notification{
		UserID:  userID,
		Message: r.Message,
		Title:   r.Title,
		Body:    r.Body,
		Link:    link,
	}, nil
}
