package orgs

import (
	"context"
	"errors"
	"time"

	"github.com/hiredeck/hiredeck/pkg/identity"
)

// PlanTier represents subscription plan tiers
type PlanTier string

const (
	PlanFree       PlanTier = "free"
	PlanPro        PlanTier = "pro"
	PlanEnterprise PlanTier = "enterprise"
)

// BillingStatus represents an organization's billing state
type BillingStatus string

const (
	BillingActive   BillingStatus = "active"
	BillingTrialing BillingStatus = "trialing"
	BillingPastDue  BillingStatus = "past_due"
	BillingCanceled BillingStatus = "canceled"
	BillingInactive BillingStatus = "inactive"
)

// Organization represents one employer tenant, mirrored lazily from the
// identity provider's organization directory. ExternalID is the provider's
// organization id and is immutable once set.
type Organization struct {
	ID            int64         `json:"id"`
	ExternalID    string        `json:"external_id"`
	Name          string        `json:"name"`
	PlanTier      PlanTier      `json:"plan_tier"`
	BillingStatus BillingStatus `json:"billing_status"`
	TrialEndsAt   *time.Time    `json:"trial_ends_at,omitempty"`
	CreatedAt     time.Time     `json:"created_at"`
}

// Membership is the durable record of one user's role in one organization.
// Exactly one row exists per (organization, external user) pair. Once a
// membership exists it is the sole authority for authorization decisions;
// identity-provider claims only influence it through the reconcilers.
type Membership struct {
	ID             int64         `json:"id"`
	OrganizationID int64         `json:"organization_id"`
	ExternalUserID string        `json:"external_user_id"`
	Role           identity.Role `json:"role"`
	CreatedAt      time.Time     `json:"created_at"`
}

// Access is the result of a successful authorization check.
type Access struct {
	Organization   *Organization `json:"organization"`
	Role           identity.Role `json:"role"`
	ExternalUserID string        `json:"external_user_id"`
}

// BootstrapResult is returned by Reconciler.Bootstrap.
type BootstrapResult struct {
	OrganizationID int64         `json:"organization_id"`
	Role           identity.Role `json:"role"`
}

// RepairResult is returned by Reconciler.Repair.
type RepairResult struct {
	OldRole  identity.Role `json:"old_role"`
	NewRole  identity.Role `json:"new_role"`
	Repaired bool          `json:"repaired"`
}

// Error taxonomy for the guard and reconcilers. These are terminal for the
// call: retrying with the same identity and arguments produces the same
// outcome, so none of them are retried internally.
var (
	// ErrNotAuthenticated means no verifiable caller identity was present.
	ErrNotAuthenticated = errors.New("not authenticated")

	// ErrOrganizationNotFound means the external org id has no record yet.
	ErrOrganizationNotFound = errors.New("organization not found")

	// ErrForbidden means the caller is authenticated but has no path to a
	// sufficient role: the stored role is too low, the claims are scoped to a
	// different organization, or no role could be resolved at all.
	ErrForbidden = errors.New("forbidden")

	// ErrMembershipNotFound is returned by store lookups when no membership
	// row exists for the (organization, user) pair.
	ErrMembershipNotFound = errors.New("membership not found")
)

// Store defines the persistence primitives available to the guard and
// reconcilers. Each call is individually atomic; the store offers no
// cross-call transactions, so callers must tolerate interleaving (see
// EnsureOrganization and InsertMembership for the insert-race handling).
type Store interface {
	FindOrganizationByExternalID(ctx context.Context, externalID string) (*Organization, error)
	EnsureOrganization(ctx context.Context, externalID, name string) (*Organization, error)
	FindMembership(ctx context.Context, orgID int64, externalUserID string) (*Membership, error)
	InsertMembership(ctx context.Context, orgID int64, externalUserID string, role identity.Role) (*Membership, error)
	PatchMembershipRole(ctx context.Context, membershipID int64, role identity.Role) error
}
