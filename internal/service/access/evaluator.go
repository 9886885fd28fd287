// Package access holds the pure decision procedure governing who may read
// whose conversation history. Every history read goes through CanView; the
// store is never queried on behalf of a caller without it.
package access

import (
	"fmt"

	"github.com/zooconnect/ambassador-chat/internal/model/identity"
)

// Code is the machine-readable reason attached to every decision.
type Code string

const (
	NoAccessVisitor Code = "NO_ACCESS_VISITOR"
	AdminFullAccess Code = "ADMIN_FULL_ACCESS"
	StaffReadAccess Code = "STAFF_READ_ACCESS"
	SelfAccess      Code = "SELF_ACCESS"
	GuardianAccess  Code = "GUARDIAN_ACCESS"
	NotAuthorized   Code = "NOT_AUTHORIZED"
)

// Decision is the outcome of one access check. It is computed per request
// and never persisted.
type Decision struct {
	Allow  bool
	Reason Code
}

// CanView decides whether the requester may read the target user's history.
// Rules are evaluated top to bottom; the first match wins:
//
//  1. visitors are always denied
//  2. admins see everything
//  3. staff have read access to everything
//  4. everyone sees their own history
//  5. parents see their children's history
//  6. everything else is denied
func CanView(requester identity.Identity, targetUserID string) Decision {
	switch {
	case requester.Role == identity.RoleVisitor:
		return Decision{Allow: false, Reason: NoAccessVisitor}
	case requester.Role == identity.RoleAdmin:
		return Decision{Allow: true, Reason: AdminFullAccess}
	case requester.Role == identity.RoleStaff:
		return Decision{Allow: true, Reason: StaffReadAccess}
	case requester.UserID == targetUserID:
		return Decision{Allow: true, Reason: SelfAccess}
	case requester.Guards(targetUserID):
		return Decision{Allow: true, Reason: GuardianAccess}
	default:
		return Decision{Allow: false, Reason: NotAuthorized}
	}
}

// ForbiddenError carries the denial reason to transport layers.
type ForbiddenError struct {
	Reason Code
}

func (e *ForbiddenError) Error() string {
	return fmt.Sprintf("access denied: %s", e.Reason)
}

// Forbidden wraps a deny decision into an error.
func Forbidden(d Decision) error {
	return &ForbiddenError{Reason: d.Reason}
}
