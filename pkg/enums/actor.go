package enums

import "slices"

// ActorRole identifies the caller class carried in access tokens.
type ActorRole string

const (
	ActorRoleUser     ActorRole = "user"
	ActorRoleBusiness ActorRole = "business"
	ActorRoleAdmin    ActorRole = "admin"
	ActorRoleSystem   ActorRole = "system"
)

var validActorRoles = []ActorRole{
	ActorRoleUser,
	ActorRoleBusiness,
	ActorRoleAdmin,
	ActorRoleSystem,
}

// String implements fmt.Stringer.
func (r ActorRole) String() string {
	return string(r)
}

// IsValid reports whether the value is a known ActorRole.
func (r ActorRole) IsValid() bool {
	return slices.Contains(validActorRoles, r)
}

// ParseActorRole converts raw input into an ActorRole.
func ParseActorRole(value string) (ActorRole, error) {
	return parseOneOf("actor role", validActorRoles, value)
}

// CancelledBy records which party cancelled a reservation.
type CancelledBy string

const (
	CancelledByUser     CancelledBy = "user"
	CancelledByBusiness CancelledBy = "business"
	CancelledBySystem   CancelledBy = "system"
)

// IsValid reports whether the value is a known CancelledBy.
func (c CancelledBy) IsValid() bool {
	switch c {
	case CancelledByUser, CancelledByBusiness, CancelledBySystem:
		return true
	default:
		return false
	}
}
