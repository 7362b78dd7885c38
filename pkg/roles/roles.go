package roles

// Role is the permission level carried in the access token.
type Role string

const (
	Staff Role = "staff"
	Admin Role = "admin"
)

type HierarchyLevel int

const (
	StaffLevel HierarchyLevel = 1
	AdminLevel HierarchyLevel = 2
)

func (r Role) GetHierarchyLevel() HierarchyLevel {
	switch r {
	case Staff:
		return StaffLevel
	case Admin:
		return AdminLevel
	default:
		return 0
	}
}

// HasPermission reports whether r is at least requiredRole. Unknown roles
// have no permissions.
func (r Role) HasPermission(requiredRole Role) bool {
	if !r.IsValid() || !requiredRole.IsValid() {
		return false
	}
	return r.GetHierarchyLevel() >= requiredRole.GetHierarchyLevel()
}

func (r Role) IsValid() bool {
	switch r {
	case Staff, Admin:
		return true
	default:
		return false
	}
}

func (r Role) String() string {
	return string(r)
}
