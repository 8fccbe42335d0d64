// Package billing maps an organization's plan tier to its active-job quota.
//
// # Plan tiers
//
// Free:
//   - 3 active (published) jobs
//
// Pro:
//   - 25 active jobs
//
// Enterprise:
//   - 1000 active jobs
//
// Per-organization overrides can be configured in a YAML file and are
// hot-reloaded (see Limits.WatchOverrides). Billing-provider integration is
// out of scope: the plan tier and billing status fields are read here but
// written by whatever provisions them.
//
// Quota failures surface as *PlanLimitError, distinguishable from
// authorization failures via IsPlanLimit.
package billing
