package notification

import (
	"strings"
	"testing"

	"github.com/docease/docease/internal/platform/eventbus"
)

func TestTemplateEngine_RegisterAndRender(t *testing.T) {
	eng := NewTemplateEngine()
	eng.RegisterTemplate(Template{
		ID:      "test-tpl",
		Title:   eventbus.TitleMessage,
		Message: "Hello {{name}}, your code is {{code}}.",
		Body:    "Code {{code}}",
	})

	r, err := eng.Render("test-tpl", map[string]string{
		"name": "Alice",
		"code": "1234",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Message != "Hello Alice, your code is 1234." {
		t.Errorf("message = %q", r.Message)
	}
	if r.Body != "Code 1234" {
		t.Errorf("body = %q", r.Body)
	}
	if r.Title != eventbus.TitleMessage {
		t.Errorf("title = %q", r.Title)
	}
}

func TestTemplateEngine_RenderMissing(t *testing.T) {
	eng := NewTemplateEngine()
	if _, err := eng.Render("nonexistent", nil); err == nil {
		t.Fatal("expected error for missing template, got nil")
	}
	if eng.Has("nonexistent") {
		t.Error("Has reported a missing template")
	}
}

func TestTemplateEngine_BuiltInTemplates(t *testing.T) {
	eng := NewTemplateEngine()
	builtIn := []string{
		TemplateChatMessage,
		TemplateConferenceInvite,
		TemplateConferenceRejoin,
		TemplateAppointmentCreated,
		TemplateAppointmentApproved,
		TemplateAppointmentCancelled,
		TemplateAppointmentRescheduled,
		TemplateAppointmentDone,
	}
	for _, id := range builtIn {
		if !eng.Has(id) {
			t.Errorf("built-in template %q missing", id)
			continue
		}
		r, err := eng.Render(id, nil)
		if err != nil {
			t.Errorf("Render(%q): %v", id, err)
		}
		if r.Message == "" || r.Title == "" {
			t.Errorf("template %q has empty message or title", id)
		}
	}
}

func TestTemplateEngine_UnknownKeysLeftAsIs(t *testing.T) {
	eng := NewTemplateEngine()
	r, err := eng.Render(TemplateConferenceInvite, map[string]string{"other": "x"})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(r.Message, "{{caller_name}}") {
		t.Errorf("message = %q, placeholder should remain", r.Message)
	}
}

func TestTemplateEngine_Notification(t *testing.T) {
	eng := NewTemplateEngine()
	n, err := eng.Notification(TemplateChatMessage, "u2", "/messages?id=m1", map[string]string{
		"sender_name": "Dr. Jane Doe",
	})
	if err != nil {
		t.Fatal(err)
	}
	if n.UserID != "u2" || n.Title != eventbus.TitleMessage || n.Link != "/messages?id=m1" {
		t.Errorf("notification = %+v", n)
	}
	if !strings.Contains(n.Message, "from Dr. Jane Doe.") {
		t.Errorf("message = %q", n.Message)
	}
	if n.Body != "New message from Dr. Jane Doe" {
		t.Errorf("body = %q", n.Body)
	}
}
