package identity

import (
	"context"
	"testing"
)

func TestUserRoundTrip(t *testing.T) {
	ctx := WithUser(context.Background(), User{Subject: "user-1", Role: RoleNurse})
	user, ok := UserFromContext(ctx)
	if !ok {
		t.Fatalf("expected user in context")
	}
	if user.Subject != "user-1" || user.Role != RoleNurse {
		t.Fatalf("unexpected user: %+v", user)
	}
}

func TestUserFromEmptyContext(t *testing.T) {
	if _, ok := UserFromContext(context.Background()); ok {
		t.Fatalf("expected no user in empty context")
	}
}

func TestRoleValid(t *testing.T) {
	for _, role := range []Role{RoleAdmin, RolePhysician, RoleNurse, RoleReceptionist, RoleBilling} {
		if !role.Valid() {
			t.Fatalf("expected %s to be valid", role)
		}
	}
	if Role("janitor").Valid() {
		t.Fatalf("expected unknown role to be invalid")
	}
}
