package billing

import (
	"fmt"

	"github.com/hiredeck/hiredeck/pkg/orgs"
)

// Default active-job limits per plan tier. A job counts against the limit
// while it is published.
const (
	FreeActiveJobLimit       = 3
	ProActiveJobLimit        = 25
	EnterpriseActiveJobLimit = 1000
)

// PlanLimitError reports a job creation rejected by the active-job quota.
// It is distinct from an authorization failure: the caller can resolve it by
// upgrading the plan, so handlers map it to 402 rather than 403.
type PlanLimitError struct {
	PlanTier orgs.PlanTier
	Current  int
	Limit    int
}

func (e *PlanLimitError) Error() string {
	return fmt.Sprintf("plan limit reached: %d of %d active jobs on the %s plan", e.Current, e.Limit, e.PlanTier)
}

// IsPlanLimit checks if an error is a plan limit error
func IsPlanLimit(err error) bool {
	_, ok := err.(*PlanLimitError)
	return ok
}

// PlanTierOf returns the organization's effective plan tier, defaulting to
// free when the field was never set.
func PlanTierOf(org *orgs.Organization) orgs.PlanTier {
	if org.PlanTier == "" {
		return orgs.PlanFree
	}
	return org.PlanTier
}

// defaultActiveJobLimit maps a plan tier to its active-job limit.
func defaultActiveJobLimit(tier orgs.PlanTier) int {
	switch tier {
	case orgs.PlanEnterprise:
		return EnterpriseActiveJobLimit
	case orgs.PlanPro:
		return ProActiveJobLimit
	default:
		return FreeActiveJobLimit
	}
}
