// Package user reads the account profiles needed to address people by name
// in chat and conference messages. Accounts themselves are managed elsewhere.
package user

import (
	"errors"
	"strings"
	"time"
)

var ErrNotFound = errors.New("user not found")

const (
	RoleDoctor  = "doctor"
	RolePatient = "patient"
)

// Profile maps to the users table.
type Profile struct {
	ID        string    `json:"userId"`
	FirstName string    `json:"firstName"`
	LastName  string    `json:"lastName"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"createdAt"`
}

// Honorific is "Dr." for doctors and "Pt." for everyone else.
func (p *Profile) Honorific() string {
	if p.Role == RoleDoctor {
		return "Dr."
	}
	return "Pt."
}

// DisplayName renders the name shown in notifications, e.g. "Dr. Jane Doe".
func (p *Profile) DisplayName() string {
	name := strings.TrimSpace(p.FirstName + " " + p.LastName)
	if name == "" {
		name = p.ID
	}
	return p.Honorific() + " " + name
}
