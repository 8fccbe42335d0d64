// Package jobs implements the hiring surface on both sides of the
// marketplace: recruiters post and manage jobs and move applications through
// the pipeline, seekers browse published jobs and apply.
//
// Recruiter operations authorize through the orgs access guard and enforce
// the organization's plan quota on publishing. Seeker operations only require
// an authenticated identity; they never consult memberships.
package jobs
