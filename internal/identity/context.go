package identity

import "context"

// Role is the portal role carried by the user's token.
type Role string

const (
	RoleAdmin        Role = "admin"
	RolePhysician    Role = "physician"
	RoleNurse        Role = "nurse"
	RoleReceptionist Role = "receptionist"
	RoleBilling      Role = "billing"
)

// Valid reports whether the role is one the portal knows about.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RolePhysician, RoleNurse, RoleReceptionist, RoleBilling:
		return true
	}
	return false
}

// User identifies the authenticated portal user.
type User struct {
	Subject string
	Name    string
	Role    Role
}

type ctxKey string

const userKey ctxKey = "portal.user"

// WithUser stores the authenticated user in context.
func WithUser(ctx context.Context, user User) context.Context {
	return context.WithValue(ctx, userKey, user)
}

// UserFromContext extracts the authenticated user if present.
func UserFromContext(ctx context.Context) (User, bool) {
	val := ctx.Value(userKey)
	if val == nil {
		return User{}, false
	}
	user, ok := val.(User)
	return user, ok && user.Subject != ""
}
