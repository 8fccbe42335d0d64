// Package orgs provides multi-tenant authorization reconciliation for
// hiredeck: the durable Organization and Membership records, the access guard
// consulted by every org-scoped operation, and the reconcilers that keep those
// records in agreement with the external identity provider.
//
// # Trust model
//
// The identity provider asserts (organization, role) claims about each caller.
// Those claims are signature-verified upstream but are not authoritative here:
// once a Membership row exists, its stored role is the only input to
// authorization decisions. Claims re-enter the picture at exactly three
// points:
//
//   - Guard.Authorize falls back to claims when no membership exists yet, so a
//     brand-new member can act before bootstrap has run.
//   - Reconciler.Bootstrap, the explicit re-sync point, trusts a fresh role
//     claim to create or overwrite a membership.
//   - Reconciler.Repair raises (never lowers) a stored role to match a
//     higher-priority claim.
//
// # Concurrency
//
// The store offers per-call atomicity only. Concurrent bootstraps for the same
// (organization, user) pair both race to insert; the unique indexes on
// organizations.external_id and memberships(organization_id, external_user_id)
// pick a winner and the losing call re-reads the surviving row. Repeated
// bootstrap calls are therefore safe and idempotent in steady state.
//
// # Errors
//
// Authorization failures are branchable sentinels: ErrNotAuthenticated,
// ErrOrganizationNotFound and ErrForbidden. All are terminal for the call.
//
// # Related packages
//
//   - pkg/identity: claim parsing and the role priority order
//   - pkg/billing: plan tiers and the active-job quota
//   - pkg/jobs: job posting operations gated by the guard
package orgs
