package orgs

import (
	"context"
	"errors"

	"github.com/hiredeck/hiredeck/pkg/identity"
	"github.com/hiredeck/hiredeck/pkg/observability"
)

// Guard answers "may this caller act on this organization" for every
// org-scoped operation. It performs reads only; it never writes.
//
// Trust rule: when a stored membership exists its role is authoritative and
// identity-provider claims are not consulted. Claims are only used as a
// fallback for callers with no membership yet, and only when the provider
// actively scopes them to the requested organization. That fallback is weaker
// trust than the rest of the model and is logged so its use can be measured.
type Guard struct {
	store   Store
	logger  *observability.Logger
	metrics *observability.Metrics
}

// NewGuard creates an access guard over the given store.
func NewGuard(store Store, logger *observability.Logger, metrics *observability.Metrics) *Guard {
	return &Guard{store: store, logger: logger, metrics: metrics}
}

// Authorize resolves the caller's role for the organization and checks it
// against the minimum. It returns ErrNotAuthenticated, ErrOrganizationNotFound
// or ErrForbidden; any other error is a store failure.
func (g *Guard) Authorize(ctx context.Context, ident *identity.Identity, externalOrgID string, minimum identity.Role) (*Access, error) {
	if ident == nil || ident.Subject == "" {
		g.metrics.RecordAuthorize("not_authenticated")
		return nil, ErrNotAuthenticated
	}

	org, err := g.store.FindOrganizationByExternalID(ctx, externalOrgID)
	if err != nil {
		if errors.Is(err, ErrOrganizationNotFound) {
			g.metrics.RecordAuthorize("org_not_found")
		}
		return nil, err
	}

	var role identity.Role
	membership, err := g.store.FindMembership(ctx, org.ID, ident.Subject)
	switch {
	case err == nil:
		role = membership.Role
	case errors.Is(err, ErrMembershipNotFound):
		claimRole, ok := ident.RoleClaim()
		if !ok || ident.ExternalOrgID() != externalOrgID {
			g.metrics.RecordAuthorize("forbidden")
			return nil, ErrForbidden
		}
		role = claimRole
		g.metrics.RecordAuthorize("claim_fallback")
		g.logger.WithFields(map[string]interface{}{
			"external_org_id": externalOrgID,
			"user_id":         ident.Subject,
			"claim_fallback":  true,
		}).Warn("authorized from claims with no stored membership")
	default:
		return nil, err
	}

	if !role.AtLeast(minimum) {
		g.metrics.RecordAuthorize("forbidden")
		return nil, ErrForbidden
	}

	g.metrics.RecordAuthorize("granted")
	return &Access{
		Organization:   org,
		Role:           role,
		ExternalUserID: ident.Subject,
	}, nil
}
