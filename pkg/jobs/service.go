package jobs

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/hiredeck/hiredeck/pkg/billing"
	"github.com/hiredeck/hiredeck/pkg/identity"
	"github.com/hiredeck/hiredeck/pkg/observability"
	"github.com/hiredeck/hiredeck/pkg/orgs"
)

// orgNameCacheSize bounds the display-name cache used on the public listing.
const orgNameCacheSize = 1024

// ResumeStorage uploads resume files and returns a durable URL.
type ResumeStorage interface {
	Upload(ctx context.Context, key string, body *bytes.Reader, contentType string) (string, error)
}

// Service provides the recruiter and seeker job operations. Every org-scoped
// operation goes through the access guard; the guard's errors pass through
// unchanged so handlers can map them.
type Service struct {
	store    Store
	guard    *orgs.Guard
	limits   *billing.Limits
	resumes  ResumeStorage
	orgNames *lru.Cache[int64, string]
	logger   *observability.Logger
	metrics  *observability.Metrics
}

// NewService creates a job service. resumes may be nil, in which case resume
// file uploads are rejected.
func NewService(store Store, guard *orgs.Guard, limits *billing.Limits, resumes ResumeStorage, logger *observability.Logger, metrics *observability.Metrics) (*Service, error) {
	orgNames, err := lru.New[int64, string](orgNameCacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create org name cache: %w", err)
	}
	return &Service{
		store:    store,
		guard:    guard,
		limits:   limits,
		resumes:  resumes,
		orgNames: orgNames,
		logger:   logger,
		metrics:  metrics,
	}, nil
}

// CreateJob posts a new job for the organization. Publishing a job checks the
// organization's active-job quota first; a full quota fails with
// *billing.PlanLimitError and nothing is written.
func (s *Service) CreateJob(ctx context.Context, ident *identity.Identity, externalOrgID string, req *CreateJobRequest) (*Job, error) {
	access, err := s.guard.Authorize(ctx, ident, externalOrgID, identity.RoleRecruiter)
	if err != nil {
		return nil, err
	}

	if err := validateCreateJob(req); err != nil {
		return nil, err
	}

	if req.Published {
		current, err := s.store.CountPublishedJobs(ctx, access.Organization.ID)
		if err != nil {
			return nil, err
		}
		limit := s.limits.ActiveJobLimit(access.Organization)
		if current >= limit {
			tier := billing.PlanTierOf(access.Organization)
			s.metrics.RecordQuotaRejection(string(tier))
			s.logger.WithFields(map[string]interface{}{
				"external_org_id": externalOrgID,
				"plan_tier":       string(tier),
				"active_jobs":     current,
				"limit":           limit,
			}).Info("Job creation rejected by plan quota")
			return nil, &billing.PlanLimitError{PlanTier: tier, Current: current, Limit: limit}
		}
	}

	job := &Job{
		ID:             uuid.NewString(),
		OrganizationID: access.Organization.ID,
		Title:          req.Title,
		Location:       req.Location,
		Type:           req.Type,
		Description:    req.Description,
		Tags:           req.Tags,
		SalaryMin:      req.SalaryMin,
		SalaryMax:      req.SalaryMax,
		Published:      req.Published,
		CreatedAt:      time.Now().UTC(),
	}
	if err := s.store.InsertJob(ctx, job); err != nil {
		return nil, err
	}
	return job, nil
}

// Dashboard returns the organization row and its hiring stats.
func (s *Service) Dashboard(ctx context.Context, ident *identity.Identity, externalOrgID string) (*Dashboard, error) {
	access, err := s.guard.Authorize(ctx, ident, externalOrgID, identity.RoleViewer)
	if err != nil {
		return nil, err
	}
	stats, err := s.store.OrgJobStats(ctx, access.Organization.ID)
	if err != nil {
		return nil, err
	}
	return &Dashboard{Organization: access.Organization, Stats: *stats}, nil
}

// ListOrgJobs lists all of the organization's jobs for its members.
func (s *Service) ListOrgJobs(ctx context.Context, ident *identity.Identity, externalOrgID string) ([]Job, error) {
	access, err := s.guard.Authorize(ctx, ident, externalOrgID, identity.RoleViewer)
	if err != nil {
		return nil, err
	}
	return s.store.ListOrgJobs(ctx, access.Organization.ID)
}

// GetOrgJobWithApplicants returns one of the organization's jobs together
// with its applications. A job id that resolves to another organization's job
// is forbidden, not just absent.
func (s *Service) GetOrgJobWithApplicants(ctx context.Context, ident *identity.Identity, externalOrgID, jobID string) (*JobWithApplicants, error) {
	access, err := s.guard.Authorize(ctx, ident, externalOrgID, identity.RoleViewer)
	if err != nil {
		return nil, err
	}

	job, err := s.store.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.OrganizationID != access.Organization.ID {
		return nil, orgs.ErrForbidden
	}

	apps, err := s.store.ListJobApplications(ctx, jobID)
	if err != nil {
		return nil, err
	}
	return &JobWithApplicants{Job: *job, Applications: apps}, nil
}

// UpdateApplicationStatus moves an application on one of the organization's
// jobs to a new pipeline state. Requires the recruiter role.
func (s *Service) UpdateApplicationStatus(ctx context.Context, ident *identity.Identity, externalOrgID, jobID, applicationID string, status ApplicationStatus) (*Application, error) {
	access, err := s.guard.Authorize(ctx, ident, externalOrgID, identity.RoleRecruiter)
	if err != nil {
		return nil, err
	}
	if !status.Valid() {
		return nil, &ValidationError{Message: fmt.Sprintf("invalid application status: %s", status)}
	}

	job, err := s.store.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.OrganizationID != access.Organization.ID {
		return nil, orgs.ErrForbidden
	}

	app, err := s.store.GetApplication(ctx, applicationID)
	if err != nil {
		return nil, err
	}
	if app.JobID != jobID {
		return nil, ErrApplicationNotFound
	}

	now := time.Now().UTC()
	if err := s.store.UpdateApplicationStatus(ctx, applicationID, status, now); err != nil {
		return nil, err
	}
	app.Status = status
	app.UpdatedAt = now
	return app, nil
}

// ListPublicJobs lists the most recent published jobs for seekers, with the
// posting organization's display name. Name lookups go through a bounded
// cache; a stale name only affects this listing, never authorization.
func (s *Service) ListPublicJobs(ctx context.Context) ([]PublicJob, error) {
	jobs, err := s.store.ListPublishedJobs(ctx, 50)
	if err != nil {
		return nil, err
	}

	results := make([]PublicJob, 0, len(jobs))
	for _, job := range jobs {
		name, err := s.organizationName(ctx, job.OrganizationID)
		if err != nil {
			return nil, err
		}
		results = append(results, PublicJob{Job: job, OrganizationName: name})
	}
	return results, nil
}

// GetPublicJob returns a published job for seekers. Unpublished jobs are not
// found on this surface.
func (s *Service) GetPublicJob(ctx context.Context, jobID string) (*PublicJob, error) {
	job, err := s.store.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if !job.Published {
		return nil, ErrJobNotFound
	}
	name, err := s.organizationName(ctx, job.OrganizationID)
	if err != nil {
		return nil, err
	}
	return &PublicJob{Job: *job, OrganizationName: name}, nil
}

// Apply records a seeker's application to a published job. An attached resume
// file is uploaded to object storage first and its URL stored on the
// application.
func (s *Service) Apply(ctx context.Context, ident *identity.Identity, jobID string, req *ApplyRequest) (*Application, error) {
	if ident == nil || ident.Subject == "" {
		return nil, orgs.ErrNotAuthenticated
	}

	job, err := s.store.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if !job.Published {
		return nil, ErrJobNotFound
	}

	var resumeURL *string
	if len(req.ResumeFile) > 0 {
		if s.resumes == nil {
			return nil, fmt.Errorf("resume uploads are not configured")
		}
		key := fmt.Sprintf("resumes/%s/%s%s", jobID, uuid.NewString(), path.Ext(req.ResumeFilename))
		url, err := s.resumes.Upload(ctx, key, bytes.NewReader(req.ResumeFile), "application/octet-stream")
		if err != nil {
			return nil, fmt.Errorf("failed to upload resume: %w", err)
		}
		resumeURL = &url
	}

	now := time.Now().UTC()
	app := &Application{
		ID:           uuid.NewString(),
		JobID:        jobID,
		SeekerUserID: ident.Subject,
		ResumeURL:    resumeURL,
		ResumeText:   req.ResumeText,
		CoverLetter:  req.CoverLetter,
		Status:       StatusApplied,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.store.InsertApplication(ctx, app); err != nil {
		return nil, err
	}
	return app, nil
}

// ListMyApplications lists the authenticated seeker's most recent
// applications with the job each one targets.
func (s *Service) ListMyApplications(ctx context.Context, ident *identity.Identity) ([]ApplicationWithJob, error) {
	if ident == nil || ident.Subject == "" {
		return nil, orgs.ErrNotAuthenticated
	}
	return s.store.ListUserApplications(ctx, ident.Subject, 50)
}

func (s *Service) organizationName(ctx context.Context, orgID int64) (string, error) {
	if name, ok := s.orgNames.Get(orgID); ok {
		return name, nil
	}
	name, err := s.store.OrganizationName(ctx, orgID)
	if err != nil {
		return "", err
	}
	s.orgNames.Add(orgID, name)
	return name, nil
}

func validateCreateJob(req *CreateJobRequest) error {
	if req.Title == "" {
		return &ValidationError{Message: "job title is required"}
	}
	if !req.Type.Valid() {
		return &ValidationError{Message: fmt.Sprintf("invalid job type: %s", req.Type)}
	}
	if req.SalaryMin != nil && req.SalaryMax != nil && *req.SalaryMin > *req.SalaryMax {
		return &ValidationError{Message: "salary_min cannot exceed salary_max"}
	}
	return nil
}
