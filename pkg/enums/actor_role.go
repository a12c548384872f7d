package enums

import (
	"fmt"
	"slices"
)

// ActorRole is the role of the caller performing an operation.
type ActorRole string

const (
	ActorRoleCustomer ActorRole = "customer"
	ActorRoleAdmin    ActorRole = "admin"
	ActorRoleStaff    ActorRole = "staff"
	ActorRoleDelivery ActorRole = "delivery"
	ActorRoleSystem   ActorRole = "system"
)

var validActorRoles = []ActorRole{
	ActorRoleCustomer,
	ActorRoleAdmin,
	ActorRoleStaff,
	ActorRoleDelivery,
	ActorRoleSystem,
}

// String implements fmt.Stringer.
func (a ActorRole) String() string {
	return string(a)
}

// IsValid reports whether the value is a known ActorRole.
func (a ActorRole) IsValid() bool {
	return slices.Contains(validActorRoles, a)
}

// ParseActorRole converts raw input into a ActorRole.
func ParseActorRole(value string) (ActorRole, error) {
	if v := ActorRole(value); v.IsValid() {
		return v, nil
	}
	return "", fmt.Errorf("invalid actor role %q", value)
}

// IsOperator reports whether the role acts on behalf of the business.
func (a ActorRole) IsOperator() bool {
	return a == ActorRoleAdmin || a == ActorRoleStaff || a == ActorRoleSystem
}
