package rbac

import "hospital-frontend/internal/session"

// Policy describes who may use a route. Chain turns it into guards in a
// fixed order: login, role, hide, ownership, read-only.
type Policy struct {
	// Roles admitted; empty admits any signed-in user.
	Roles    []session.Role
	Hide     []HideListForRole
	OwnData  []OwnData
	ReadOnly []session.Role
}

func (p Policy) Chain() Chain {
	ch := Chain{LoginRequired{}}
	if len(p.Roles) > 0 {
		ch = append(ch, RoleRequired{Allowed: p.Roles})
	}
	for _, h := range p.Hide {
		ch = append(ch, h)
	}
	for _, o := range p.OwnData {
		ch = append(ch, o)
	}
	if len(p.ReadOnly) > 0 {
		ch = append(ch, ReadOnlyForRole{Roles: p.ReadOnly})
	}
	return ch
}
