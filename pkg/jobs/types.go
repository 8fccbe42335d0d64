package jobs

import (
	"context"
	"errors"
	"time"

	"github.com/hiredeck/hiredeck/pkg/orgs"
)

// JobType classifies how a position is worked
type JobType string

const (
	JobTypeFullTime   JobType = "full_time"
	JobTypePartTime   JobType = "part_time"
	JobTypeContract   JobType = "contract"
	JobTypeInternship JobType = "internship"
	JobTypeRemote     JobType = "remote"
	JobTypeHybrid     JobType = "hybrid"
)

// Valid reports whether the job type is one of the known values.
func (t JobType) Valid() bool {
	switch t {
	case JobTypeFullTime, JobTypePartTime, JobTypeContract, JobTypeInternship, JobTypeRemote, JobTypeHybrid:
		return true
	}
	return false
}

// ApplicationStatus tracks an application through the hiring pipeline
type ApplicationStatus string

const (
	StatusApplied   ApplicationStatus = "applied"
	StatusInReview  ApplicationStatus = "in_review"
	StatusInterview ApplicationStatus = "interview"
	StatusOffer     ApplicationStatus = "offer"
	StatusRejected  ApplicationStatus = "rejected"
)

// Valid reports whether the status is one of the known pipeline states.
func (s ApplicationStatus) Valid() bool {
	switch s {
	case StatusApplied, StatusInReview, StatusInterview, StatusOffer, StatusRejected:
		return true
	}
	return false
}

// Job is a position posted by an organization. Only published jobs are
// visible on the public surface and only published jobs count against the
// organization's plan quota.
type Job struct {
	ID             string    `json:"id"`
	OrganizationID int64     `json:"organization_id"`
	Title          string    `json:"title"`
	Location       string    `json:"location"`
	Type           JobType   `json:"type"`
	Description    string    `json:"description"`
	Tags           []string  `json:"tags"`
	SalaryMin      *int      `json:"salary_min,omitempty"`
	SalaryMax      *int      `json:"salary_max,omitempty"`
	Published      bool      `json:"published"`
	CreatedAt      time.Time `json:"created_at"`
}

// PublicJob is a published job as shown to seekers, with the posting
// organization's display name joined in.
type PublicJob struct {
	Job
	OrganizationName string `json:"organization_name"`
}

// Application is one seeker's application to one job.
type Application struct {
	ID           string            `json:"id"`
	JobID        string            `json:"job_id"`
	SeekerUserID string            `json:"seeker_user_id"`
	ResumeURL    *string           `json:"resume_url,omitempty"`
	ResumeText   *string           `json:"resume_text,omitempty"`
	CoverLetter  *string           `json:"cover_letter,omitempty"`
	Status       ApplicationStatus `json:"status"`
	CreatedAt    time.Time         `json:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at"`
}

// JobWithApplicants is the recruiter view of a job.
type JobWithApplicants struct {
	Job          Job           `json:"job"`
	Applications []Application `json:"applications"`
}

// ApplicationWithJob is the seeker view of one of their applications.
type ApplicationWithJob struct {
	Application Application `json:"application"`
	Job         Job         `json:"job"`
}

// DashboardStats aggregates hiring activity for one organization.
type DashboardStats struct {
	OpenJobs        int `json:"open_jobs"`
	TotalJobs       int `json:"total_jobs"`
	TotalApplicants int `json:"total_applicants"`
}

// Dashboard is the org overview: the organization row plus its stats.
type Dashboard struct {
	Organization *orgs.Organization `json:"organization"`
	Stats        DashboardStats     `json:"stats"`
}

// CreateJobRequest carries the fields a recruiter supplies when posting a
// job. Handlers default Published to true; only an explicit false drafts.
type CreateJobRequest struct {
	Title       string   `json:"title"`
	Location    string   `json:"location"`
	Type        JobType  `json:"type"`
	Description string   `json:"description"`
	Tags        []string `json:"tags"`
	SalaryMin   *int     `json:"salary_min,omitempty"`
	SalaryMax   *int     `json:"salary_max,omitempty"`
	Published   bool     `json:"published"`
}

// ApplyRequest carries a seeker's application. ResumeFile, when non-empty, is
// uploaded to object storage and recorded as the application's resume URL.
type ApplyRequest struct {
	ResumeText     *string `json:"resume_text,omitempty"`
	CoverLetter    *string `json:"cover_letter,omitempty"`
	ResumeFile     []byte  `json:"-"`
	ResumeFilename string  `json:"-"`
}

// ValidationError reports a malformed request. Handlers map it to 400.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// IsValidation checks if an error is a validation error
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

var (
	// ErrJobNotFound is returned when a job id does not resolve, including
	// public lookups of jobs that exist but are not published.
	ErrJobNotFound = errors.New("job not found")

	// ErrApplicationNotFound is returned when an application id does not
	// resolve under the given job.
	ErrApplicationNotFound = errors.New("application not found")
)

// Store defines the persistence primitives for jobs and applications.
type Store interface {
	InsertJob(ctx context.Context, job *Job) error
	GetJob(ctx context.Context, jobID string) (*Job, error)
	ListOrgJobs(ctx context.Context, orgID int64) ([]Job, error)
	ListPublishedJobs(ctx context.Context, limit int) ([]Job, error)
	CountPublishedJobs(ctx context.Context, orgID int64) (int, error)
	OrgJobStats(ctx context.Context, orgID int64) (*DashboardStats, error)
	OrganizationName(ctx context.Context, orgID int64) (string, error)
	InsertApplication(ctx context.Context, app *Application) error
	GetApplication(ctx context.Context, applicationID string) (*Application, error)
	ListJobApplications(ctx context.Context, jobID string) ([]Application, error)
	ListUserApplications(ctx context.Context, seekerUserID string, limit int) ([]ApplicationWithJob, error)
	UpdateApplicationStatus(ctx context.Context, applicationID string, status ApplicationStatus, updatedAt time.Time) error
}
