package identity

import "context"

// Role is the principal type supplied by the upstream identity provider.
type Role string

const (
	RolePatient Role = "patient"
	RoleClinic  Role = "clinic"
	RoleAdmin   Role = "admin"
)

// Identity is the authenticated principal attached to every request. The
// service trusts it as-is; token verification happens upstream.
type Identity struct {
	ID   string
	Role Role
}

// IsAdmin is the single authorization predicate gating configuration and
// season mutations.
func (i Identity) IsAdmin() bool {
	return i.Role == RoleAdmin
}

func (i Identity) IsClinic() bool {
	return i.Role == RoleClinic
}

func (i Identity) IsPatient() bool {
	return i.Role == RolePatient
}

type contextKey struct{}

func NewContext(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, contextKey{}, id)
}

func FromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(contextKey{}).(Identity)
	return id, ok
}
