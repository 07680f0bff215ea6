// Package domain holds the resolved caller identity consumed by the booking
// core. Authentication itself happens outside the core; handlers receive a
// Principal that is already resolved.
package domain

import "github.com/google/uuid"

// Role is the access level of a principal.
type Role string

const (
	RolePublic Role = "PUBLIC"
	RoleWorker Role = "WORKER"
	RoleStaff  Role = "STAFF"
	RoleAdmin  Role = "ADMIN"
)

// ParseRole normalizes a role string, defaulting to PUBLIC.
func ParseRole(s string) Role {
	switch Role(s) {
	case RoleWorker, RoleStaff, RoleAdmin:
		return Role(s)
	default:
		return RolePublic
	}
}

// Principal is the already-authenticated caller of a core operation.
type Principal struct {
	UserID   uuid.UUID
	Role     Role
	WorkerID *uuid.UUID
}

// Anonymous is the principal for unauthenticated public requests.
func Anonymous() Principal {
	return Principal{Role: RolePublic}
}

// IsStaff reports whether the principal can perform staff operations.
func (p Principal) IsStaff() bool {
	return p.Role == RoleStaff || p.Role == RoleAdmin
}

// IsWorker reports whether the principal is bound to a worker record.
func (p Principal) IsWorker() bool {
	return p.Role == RoleWorker && p.WorkerID != nil
}
