package billing

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hiredeck/hiredeck/pkg/orgs"
)

// Sweeper performs scheduled billing maintenance. Its only job in scope is
// expiring trials: organizations still marked trialing after their trial end
// time fall back to inactive, which drops them to free-tier limits on the
// next quota check.
type Sweeper struct {
	db *sql.DB
}

// NewSweeper creates a sweeper over the given database handle.
func NewSweeper(db *sql.DB) *Sweeper {
	return &Sweeper{db: db}
}

// ExpireTrials downgrades expired trials and returns how many organizations
// were affected. The statement is a single atomic update, so concurrent
// sweeper runs are harmless.
func (s *Sweeper) ExpireTrials(ctx context.Context) (int64, error) {
	query := `
		UPDATE organizations
		SET billing_status = $1
		WHERE billing_status = $2 AND trial_ends_at IS NOT NULL AND trial_ends_at < $3
	`
	result, err := s.db.ExecContext(ctx, query, orgs.BillingInactive, orgs.BillingTrialing, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to expire trials: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return affected, nil
}
