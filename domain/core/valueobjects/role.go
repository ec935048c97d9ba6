package valueobjects

import pkgerrors "loom-backend/pkg/errors"

// Role identifies who authored a message. Immutable after creation.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// NewRole validates and returns a Role
func NewRole(s string) (Role, error) {
	switch Role(s) {
	case RoleUser, RoleAssistant, RoleSystem:
		return Role(s), nil
	default:
		return "", pkgerrors.NewValidationError("role must be one of: user, assistant, system")
	}
}

// String returns the string representation
func (r Role) String() string {
	return string(r)
}
