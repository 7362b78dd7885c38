package roles

import "testing"

func TestHasPermission(t *testing.T) {
	tests := []struct {
		name     string
		role     Role
		required Role
		expected bool
	}{
		{"admin acts as admin", Admin, Admin, true},
		{"admin acts as staff", Admin, Staff, true},
		{"staff acts as staff", Staff, Staff, true},
		{"staff cannot act as admin", Staff, Admin, false},
		{"unknown role has nothing", Role("guest"), Staff, false},
		{"unknown requirement is denied", Admin, Role("root"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.role.HasPermission(tt.required); got != tt.expected {
				t.Errorf("HasPermission() = %v, want %v", got, tt.expected)
			}
		})
	}
}
