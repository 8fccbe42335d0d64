package orgs

import (
	"context"
	"errors"

	"github.com/hiredeck/hiredeck/pkg/identity"
	"github.com/hiredeck/hiredeck/pkg/observability"
)

// Reconciler keeps the durable organization and membership rows in agreement
// with what the identity provider reports. It is the only writer of those
// rows besides the explicit upsert operation.
//
// Bootstrap is the re-sync point: it may create both rows and, unlike the
// guard's steady-state check, trusts a fresh role claim enough to overwrite an
// existing membership's role. Repair is the narrow steady-state correction:
// escalation-only, never creates anything.
type Reconciler struct {
	store   Store
	logger  *observability.Logger
	metrics *observability.Metrics
}

// NewReconciler creates a reconciler over the given store.
func NewReconciler(store Store, logger *observability.Logger, metrics *observability.Metrics) *Reconciler {
	return &Reconciler{store: store, logger: logger, metrics: metrics}
}

// Bootstrap materializes the organization and the caller's membership on first
// contact. It is idempotent in steady state: with unchanged claims, repeated
// calls return the same (organization, role) and write nothing new.
//
// Two concurrent first calls may both reach the membership insert; the store
// resolves that on the unique index and both callers get the surviving row.
func (r *Reconciler) Bootstrap(ctx context.Context, ident *identity.Identity, externalOrgID, name string) (*BootstrapResult, error) {
	if ident == nil || ident.Subject == "" {
		return nil, ErrNotAuthenticated
	}

	// A caller scoped to a different organization by the provider cannot
	// bootstrap into this one.
	if claimed := ident.ExternalOrgID(); claimed != "" && claimed != externalOrgID {
		return nil, ErrForbidden
	}

	org, err := r.store.EnsureOrganization(ctx, externalOrgID, name)
	if err != nil {
		return nil, err
	}

	claimRole, hasClaim := ident.RoleClaim()

	membership, err := r.store.FindMembership(ctx, org.ID, ident.Subject)
	switch {
	case err == nil:
		role := membership.Role
		if hasClaim && claimRole != membership.Role {
			if err := r.store.PatchMembershipRole(ctx, membership.ID, claimRole); err != nil {
				return nil, err
			}
			r.logger.WithFields(map[string]interface{}{
				"external_org_id": externalOrgID,
				"user_id":         ident.Subject,
				"old_role":        string(membership.Role),
				"new_role":        string(claimRole),
			}).Info("bootstrap re-synced membership role from claims")
			role = claimRole
		}
		r.metrics.RecordBootstrap("existing")
		return &BootstrapResult{OrganizationID: org.ID, Role: role}, nil

	case errors.Is(err, ErrMembershipNotFound):
		var role identity.Role
		switch {
		case hasClaim:
			role = claimRole
		case ident.ExternalOrgID() == externalOrgID:
			// Actively scoped to this org but no explicit role claim:
			// grant the conservative non-admin default.
			role = identity.RoleRecruiter
		default:
			return nil, ErrForbidden
		}

		inserted, err := r.store.InsertMembership(ctx, org.ID, ident.Subject, role)
		if err != nil {
			return nil, err
		}
		r.metrics.RecordBootstrap("created")
		// inserted.Role may differ from role when a concurrent bootstrap won
		// the insert; the durable row is the answer either way.
		return &BootstrapResult{OrganizationID: org.ID, Role: inserted.Role}, nil

	default:
		return nil, err
	}
}

// Repair raises the stored role to match a freshly observed, higher-priority
// claim. It never lowers a role and never creates rows: an unknown
// organization is ErrOrganizationNotFound, a missing membership is
// ErrForbidden, and a claim at or below the stored role's priority is a no-op
// reported as Repaired=false.
func (r *Reconciler) Repair(ctx context.Context, ident *identity.Identity, externalOrgID string) (*RepairResult, error) {
	if ident == nil || ident.Subject == "" {
		return nil, ErrNotAuthenticated
	}

	org, err := r.store.FindOrganizationByExternalID(ctx, externalOrgID)
	if err != nil {
		return nil, err
	}

	if claimed := ident.ExternalOrgID(); claimed != "" && claimed != externalOrgID {
		return nil, ErrForbidden
	}

	membership, err := r.store.FindMembership(ctx, org.ID, ident.Subject)
	if err != nil {
		if errors.Is(err, ErrMembershipNotFound) {
			return nil, ErrForbidden
		}
		return nil, err
	}

	oldRole := membership.Role
	claimRole, hasClaim := ident.RoleClaim()
	if !hasClaim || claimRole.Priority() <= oldRole.Priority() {
		r.metrics.RecordRepair(false)
		return &RepairResult{OldRole: oldRole, NewRole: oldRole, Repaired: false}, nil
	}

	if err := r.store.PatchMembershipRole(ctx, membership.ID, claimRole); err != nil {
		return nil, err
	}
	r.metrics.RecordRepair(true)
	r.logger.WithFields(map[string]interface{}{
		"external_org_id": externalOrgID,
		"user_id":         ident.Subject,
		"old_role":        string(oldRole),
		"new_role":        string(claimRole),
	}).Info("repaired membership role from claims")
	return &RepairResult{OldRole: oldRole, NewRole: claimRole, Repaired: true}, nil
}

// UpsertMembership is the explicit administrative variant of bootstrap: it
// ensures the organization exists and pins the user's membership to the given
// role, creating or overwriting as needed. No claims are involved.
func (r *Reconciler) UpsertMembership(ctx context.Context, externalOrgID, name, externalUserID string, role identity.Role) (*BootstrapResult, error) {
	if !role.Valid() {
		return nil, ErrForbidden
	}

	org, err := r.store.EnsureOrganization(ctx, externalOrgID, name)
	if err != nil {
		return nil, err
	}

	membership, err := r.store.FindMembership(ctx, org.ID, externalUserID)
	switch {
	case err == nil:
		if membership.Role != role {
			if err := r.store.PatchMembershipRole(ctx, membership.ID, role); err != nil {
				return nil, err
			}
		}
		return &BootstrapResult{OrganizationID: org.ID, Role: role}, nil
	case errors.Is(err, ErrMembershipNotFound):
		inserted, err := r.store.InsertMembership(ctx, org.ID, externalUserID, role)
		if err != nil {
			return nil, err
		}
		if inserted.Role != role {
			// Lost an insert race against a different role; pin to the
			// requested one, matching the overwrite semantics above.
			if err := r.store.PatchMembershipRole(ctx, inserted.ID, role); err != nil {
				return nil, err
			}
		}
		return &BootstrapResult{OrganizationID: org.ID, Role: role}, nil
	default:
		return nil, err
	}
}
