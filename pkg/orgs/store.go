package orgs

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hiredeck/hiredeck/pkg/identity"
)

// SQLStore implements Store over database/sql. Statements are written to run
// unchanged on PostgreSQL (lib/pq) and on the in-memory sqlite3 engine used by
// the store tests: timestamps are bound from Go rather than generated in SQL,
// and inserts rely on ON CONFLICT DO NOTHING against the unique indexes.
type SQLStore struct {
	db *sql.DB
}

// NewSQLStore creates a store backed by the given database handle.
func NewSQLStore(db *sql.DB) *SQLStore {
	return &SQLStore{db: db}
}

// FindOrganizationByExternalID looks up an organization by provider org id.
// Returns ErrOrganizationNotFound when no row exists.
func (s *SQLStore) FindOrganizationByExternalID(ctx context.Context, externalID string) (*Organization, error) {
	query := `
		SELECT id, external_id, name, plan_tier, billing_status, trial_ends_at, created_at
		FROM organizations
		WHERE external_id = $1
	`
	org := &Organization{}
	var trialEndsAt sql.NullTime
	err := s.db.QueryRowContext(ctx, query, externalID).Scan(
		&org.ID, &org.ExternalID, &org.Name, &org.PlanTier, &org.BillingStatus,
		&trialEndsAt, &org.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrOrganizationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find organization: %w", err)
	}
	if trialEndsAt.Valid {
		t := trialEndsAt.Time
		org.TrialEndsAt = &t
	}
	return org, nil
}

// EnsureOrganization inserts the organization if absent and returns the
// durable row either way. Two concurrent calls for the same external id both
// attempt the insert; the unique index makes the loser's insert a no-op and
// the follow-up read returns the winner's row, so callers always converge on
// one organization per external id.
func (s *SQLStore) EnsureOrganization(ctx context.Context, externalID, name string) (*Organization, error) {
	insert := `
		INSERT INTO organizations (external_id, name, plan_tier, billing_status, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (external_id) DO NOTHING
	`
	if _, err := s.db.ExecContext(ctx, insert, externalID, name, PlanFree, BillingInactive, time.Now().UTC()); err != nil {
		return nil, fmt.Errorf("failed to ensure organization: %w", err)
	}
	return s.FindOrganizationByExternalID(ctx, externalID)
}

// FindMembership looks up the caller's membership in an organization.
// Returns ErrMembershipNotFound when no row exists.
func (s *SQLStore) FindMembership(ctx context.Context, orgID int64, externalUserID string) (*Membership, error) {
	query := `
		SELECT id, organization_id, external_user_id, role, created_at
		FROM memberships
		WHERE organization_id = $1 AND external_user_id = $2
	`
	m := &Membership{}
	err := s.db.QueryRowContext(ctx, query, orgID, externalUserID).Scan(
		&m.ID, &m.OrganizationID, &m.ExternalUserID, &m.Role, &m.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrMembershipNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find membership: %w", err)
	}
	return m, nil
}

// InsertMembership creates the membership row, or returns the existing row
// when a concurrent insert won the race on the (organization, user) unique
// index. The returned membership is always the durable one, which may carry a
// different role than requested when this call lost the race.
func (s *SQLStore) InsertMembership(ctx context.Context, orgID int64, externalUserID string, role identity.Role) (*Membership, error) {
	insert := `
		INSERT INTO memberships (organization_id, external_user_id, role, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (organization_id, external_user_id) DO NOTHING
	`
	if _, err := s.db.ExecContext(ctx, insert, orgID, externalUserID, role, time.Now().UTC()); err != nil {
		return nil, fmt.Errorf("failed to insert membership: %w", err)
	}
	return s.FindMembership(ctx, orgID, externalUserID)
}

// PatchMembershipRole overwrites the stored role for a membership.
func (s *SQLStore) PatchMembershipRole(ctx context.Context, membershipID int64, role identity.Role) error {
	result, err := s.db.ExecContext(ctx, `UPDATE memberships SET role = $1 WHERE id = $2`, role, membershipID)
	if err != nil {
		return fmt.Errorf("failed to patch membership role: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrMembershipNotFound
	}
	return nil
}
