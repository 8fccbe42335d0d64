// Package identity normalizes identity-provider claims into typed values.
//
// The identity provider attaches loosely-typed string claims to each verified
// caller. Everything the rest of the application knows about a caller's
// organization context comes through this package, so the claim key aliases and
// the role classification rule live here and nowhere else.
package identity

import "strings"

// Role represents a member's standing within one organization.
type Role string

const (
	RoleAdmin     Role = "admin"     // Full control over the organization
	RoleRecruiter Role = "recruiter" // Can post jobs and manage applicants
	RoleViewer    Role = "viewer"    // Read-only access
)

// rolePriority defines the total order viewer < recruiter < admin.
var rolePriority = map[Role]int{
	RoleViewer:    1,
	RoleRecruiter: 2,
	RoleAdmin:     3,
}

// Priority returns the role's rank in the viewer < recruiter < admin order.
// Unknown roles rank below viewer.
func (r Role) Priority() int {
	return rolePriority[r]
}

// Valid reports whether r is one of the three recognized roles.
func (r Role) Valid() bool {
	_, ok := rolePriority[r]
	return ok
}

// AtLeast reports whether r satisfies the given minimum role.
func (r Role) AtLeast(minimum Role) bool {
	return r.Priority() >= minimum.Priority()
}

// Recognized claim keys. The provider migrated key names at some point, so both
// the current key and its legacy alias are honored, current key first.
const (
	ClaimOrgID         = "org_id"
	ClaimOrgIDLegacy   = "organization_id"
	ClaimOrgRole       = "org_role"
	ClaimOrgRoleLegacy = "organization_role"
)

// Identity is a verified caller as reported by the identity provider.
// Claims carry whatever organization context the provider attached; they are
// signature-checked upstream but not otherwise trusted (see pkg/orgs.Guard).
type Identity struct {
	// Subject uniquely identifies the caller across requests.
	Subject string

	// Claims holds the raw string claims from the provider's token.
	Claims map[string]string
}

// claim returns the first present, non-empty claim among the given keys.
func (id *Identity) claim(keys ...string) string {
	for _, key := range keys {
		if v, ok := id.Claims[key]; ok && v != "" {
			return v
		}
	}
	return ""
}

// ExternalOrgID returns the organization id the provider currently scopes the
// caller to, or "" when no organization claim is present.
func (id *Identity) ExternalOrgID() string {
	return id.claim(ClaimOrgID, ClaimOrgIDLegacy)
}

// RoleClaim classifies the caller's role claim, or returns ("", false) when no
// role claim is present or it matches no known role.
func (id *Identity) RoleClaim() (Role, bool) {
	return ParseRoleClaim(id.claim(ClaimOrgRole, ClaimOrgRoleLegacy))
}

// ParseRoleClaim classifies a free-text role claim value by substring.
//
// Provider role strings are not a closed enum ("org:admin", "admin",
// "basic_member", ...), so classification is containment-based. The check order
// matters: admin wins over recruiter wins over viewer for values matching more
// than one substring.
func ParseRoleClaim(value string) (Role, bool) {
	if value == "" {
		return "", false
	}
	normalized := strings.ToLower(value)
	switch {
	case strings.Contains(normalized, "admin"):
		return RoleAdmin, true
	case strings.Contains(normalized, "recruiter"), strings.Contains(normalized, "member"):
		return RoleRecruiter, true
	case strings.Contains(normalized, "viewer"):
		return RoleViewer, true
	default:
		return "", false
	}
}
