package user

import "testing"

func TestProfile_DisplayName(t *testing.T) {
	tests := []struct {
		p    Profile
		want string
	}{
		{Profile{ID: "d1", FirstName: "Jane", LastName: "Doe", Role: RoleDoctor}, "Dr. Jane Doe"},
		{Profile{ID: "p1", FirstName: "John", LastName: "Roe", Role: RolePatient}, "Pt. John Roe"},
		{Profile{ID: "a1", FirstName: "Ann", Role: "admin"}, "Pt. Ann"},
		{Profile{ID: "x1", Role: RoleDoctor}, "Dr. x1"},
	}
	for _, tt := range tests {
		if got := tt.p.DisplayName(); got != tt.want {
			t.Errorf("DisplayName(%+v) = %q, want %q", tt.p, got, tt.want)
		}
	}
}
