package domain

import "strings"

// RolePrincipal is the role tag of a school administrator account.
const RolePrincipal = "principal"

// Principal is the administrative user of one school. The record exists twice:
// in the global registry, which is the source of truth, and as a copy inside
// the school's users collection.
type Principal struct {
	UID      string
	Name     string
	Email    string
	Contact  string
	Role     string
	TenantID string
}

// PrincipalFields holds the operator-supplied attributes of a principal.
type PrincipalFields struct {
	Name    string
	Email   string
	Contact string
}

// NormalizeEmail lowercases and trims a login identifier.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ResolvePrincipal picks the principal record to display or act on. The global
// record wins when it exists and carries an email; blank name and contact are
// then filled from the scoped copy, which older records used to hold alone.
// Otherwise the scoped copy is used. ok is false when neither record exists.
func ResolvePrincipal(global, scoped *Principal) (p Principal, ok bool) {
	if global != nil && global.Email != "" {
		p = *global
		if scoped != nil {
			if p.Name == "" {
				p.Name = scoped.Name
			}
			if p.Contact == "" {
				p.Contact = scoped.Contact
			}
		}
		return p, true
	}
	if scoped != nil {
		return *scoped, true
	}
	if global != nil {
		return *global, true
	}
	return Principal{}, false
}

// ScopedCopy returns the tenant-scoped record rebuilt from the global one.
func (p Principal) ScopedCopy() Principal {
	p.Role = RolePrincipal
	return p
}
