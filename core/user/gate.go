package user

// Access is the outcome of the approval/role gate.
type Access string

const (
	AccessGranted  Access = "granted"
	AccessPending  Access = "pending"
	AccessRejected Access = "rejected"
	AccessDenied   Access = "denied"
)

// Authorize decides whether auth may reach a resource requiring any of required.
//
// Approval comes first: a pending or rejected account is refused whatever its
// roles, super admins included. An approved super admin passes every check.
func Authorize(auth AuthData, required ...Role) Access {
	switch auth.ApprovalStatus {
	case StatusApproved:
	case StatusRejected:
		return AccessRejected
	default:
		return AccessPending
	}

	if auth.HasActiveRole(RoleSuperAdmin) || len(required) == 0 {
		return AccessGranted
	}
	if auth.HasActiveRole(required...) {
		return AccessGranted
	}
	return AccessDenied
}
