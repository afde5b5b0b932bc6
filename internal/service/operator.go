package service

// Operator roles as resolved by the authentication layer.
const (
	RoleAdmin = "admin"
	RoleStaff = "staff"
)

// Operator is the already-authenticated actor performing an operation.
// Resolving credentials into an Operator is the caller's concern.
type Operator struct {
	// Ref is the operator's tracker user reference.
	Ref  string
	Name string
	Role string
}

// IsAdmin reports whether the operator may perform privileged transitions.
func (o Operator) IsAdmin() bool {
	return o.Role == RoleAdmin
}
