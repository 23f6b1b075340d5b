package auth

import "context"

type ctxKey string

// ContextUserKey is where AuthMiddleware stores the authenticated principal.
const ContextUserKey ctxKey = "user"

// Principal is the authenticated caller attached to the request context,
// carrying the flags and effective permission codenames guards decide on.
type Principal struct {
	ID          string   `json:"id"`
	Email       string   `json:"email"`
	Username    *string  `json:"username,omitempty"`
	IsActive    bool     `json:"is_active"`
	IsVerified  bool     `json:"is_verified"`
	IsSuperuser bool     `json:"is_superuser"`
	Roles       []string `json:"roles,omitempty"`
	Permissions []string `json:"permissions,omitempty"`
}

// HasPermission reports whether the principal holds the codename. Superusers
// hold every permission implicitly.
func (p *Principal) HasPermission(codename string) bool {
	if p.IsSuperuser {
		return true
	}
	for _, perm := range p.Permissions {
		if perm == codename {
			return true
		}
	}
	return false
}

func (p *Principal) HasAnyPermission(codenames ...string) bool {
	if p.IsSuperuser {
		return true
	}
	for _, codename := range codenames {
		for _, perm := range p.Permissions {
			if perm == codename {
				return true
			}
		}
	}
	return false
}

// MissingPermissions returns the codenames the principal does not hold, in
// the order requested. Superusers are never missing anything.
func (p *Principal) MissingPermissions(codenames ...string) []string {
	if p.IsSuperuser {
		return nil
	}

	var missing []string
	for _, codename := range codenames {
		if !p.HasPermission(codename) {
			missing = append(missing, codename)
		}
	}
	return missing
}

func (p *Principal) HasRole(name string) bool {
	for _, role := range p.Roles {
		if role == name {
			return true
		}
	}
	return false
}

func (p *Principal) HasAnyRole(names ...string) bool {
	for _, name := range names {
		if p.HasRole(name) {
			return true
		}
	}
	return false
}

// PrincipalFromContext retrieves the authenticated principal stored by
// AuthMiddleware.
func PrincipalFromContext(ctx context.Context) (*Principal, bool) {
	principal, ok := ctx.Value(ContextUserKey).(*Principal)
	return principal, ok
}

// ContextWithPrincipal returns a context carrying the principal.
func ContextWithPrincipal(ctx context.Context, principal *Principal) context.Context {
	return context.WithValue(ctx, ContextUserKey, principal)
}
