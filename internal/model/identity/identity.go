package identity

// Role is the coarse access tier assigned by the credential system.
type Role string

const (
	RoleVisitor Role = "visitor"
	RoleUser    Role = "user"
	RoleParent  Role = "parent"
	RoleStaff   Role = "staff"
	RoleAdmin   Role = "admin"
)

// Valid reports whether the role is one this service understands.
func (r Role) Valid() bool {
	switch r {
	case RoleVisitor, RoleUser, RoleParent, RoleStaff, RoleAdmin:
		return true
	}
	return false
}

// Identity is a pre-validated caller. It is produced by the external
// credential system and only referenced here; GuardianOf is populated only
// for RoleParent.
type Identity struct {
	UserID     string   `json:"userId"`
	Role       Role     `json:"role"`
	GuardianOf []string `json:"guardianOf,omitempty"`
}

// Guards reports whether the identity is a parent of the given user.
func (id Identity) Guards(userID string) bool {
	if id.Role != RoleParent {
		return false
	}
	for _, child := range id.GuardianOf {
		if child == userID {
			return true
		}
	}
	return false
}
