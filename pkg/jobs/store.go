package jobs

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// SQLStore implements Store on database/sql. Tags are stored as a JSON text
// column so the same statements run on Postgres and on the sqlite engine the
// tests use.
type SQLStore struct {
	db *sql.DB
}

// NewSQLStore creates a job store over the given database handle.
func NewSQLStore(db *sql.DB) *SQLStore {
	return &SQLStore{db: db}
}

const jobColumns = `id, organization_id, title, location, job_type, description, tags, salary_min, salary_max, published, created_at`

func scanJob(row interface{ Scan(...interface{}) error }) (*Job, error) {
	var j Job
	var tags string
	var salaryMin, salaryMax sql.NullInt64
	err := row.Scan(
		&j.ID, &j.OrganizationID, &j.Title, &j.Location, &j.Type,
		&j.Description, &tags, &salaryMin, &salaryMax, &j.Published, &j.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if tags != "" {
		if err := json.Unmarshal([]byte(tags), &j.Tags); err != nil {
			return nil, fmt.Errorf("failed to decode job tags: %w", err)
		}
	}
	if salaryMin.Valid {
		v := int(salaryMin.Int64)
		j.SalaryMin = &v
	}
	if salaryMax.Valid {
		v := int(salaryMax.Int64)
		j.SalaryMax = &v
	}
	return &j, nil
}

// InsertJob persists a new job. The caller assigns the id and created_at.
func (s *SQLStore) InsertJob(ctx context.Context, job *Job) error {
	tags, err := json.Marshal(job.Tags)
	if err != nil {
		return fmt.Errorf("failed to encode job tags: %w", err)
	}

	query := `
		INSERT INTO jobs (` + jobColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err = s.db.ExecContext(ctx, query,
		job.ID, job.OrganizationID, job.Title, job.Location, job.Type,
		job.Description, string(tags), nullableInt(job.SalaryMin), nullableInt(job.SalaryMax),
		job.Published, job.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert job: %w", err)
	}
	return nil
}

// GetJob retrieves a job by id, published or not.
func (s *SQLStore) GetJob(ctx context.Context, jobID string) (*Job, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs WHERE id = $1`
	job, err := scanJob(s.db.QueryRowContext(ctx, query, jobID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	return job, nil
}

// ListOrgJobs lists all of an organization's jobs, newest first.
func (s *SQLStore) ListOrgJobs(ctx context.Context, orgID int64) ([]Job, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs WHERE organization_id = $1 ORDER BY created_at DESC`
	return s.queryJobs(ctx, query, orgID)
}

// ListPublishedJobs lists the most recently posted published jobs across all
// organizations.
func (s *SQLStore) ListPublishedJobs(ctx context.Context, limit int) ([]Job, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs WHERE published = $1 ORDER BY created_at DESC LIMIT $2`
	return s.queryJobs(ctx, query, true, limit)
}

func (s *SQLStore) queryJobs(ctx context.Context, query string, args ...interface{}) ([]Job, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query jobs: %w", err)
	}
	defer rows.Close()

	var jobs []Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan job: %w", err)
		}
		jobs = append(jobs, *job)
	}
	return jobs, rows.Err()
}

// CountPublishedJobs counts the organization's currently published jobs. This
// is the number the plan quota is checked against.
func (s *SQLStore) CountPublishedJobs(ctx context.Context, orgID int64) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM jobs WHERE organization_id = $1 AND published = $2`
	if err := s.db.QueryRowContext(ctx, query, orgID, true).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count published jobs: %w", err)
	}
	return count, nil
}

// OrgJobStats aggregates the dashboard counters for one organization.
func (s *SQLStore) OrgJobStats(ctx context.Context, orgID int64) (*DashboardStats, error) {
	var stats DashboardStats

	query := `
		SELECT
			COUNT(*),
			COALESCE(SUM(CASE WHEN published THEN 1 ELSE 0 END), 0)
		FROM jobs WHERE organization_id = $1
	`
	if err := s.db.QueryRowContext(ctx, query, orgID).Scan(&stats.TotalJobs, &stats.OpenJobs); err != nil {
		return nil, fmt.Errorf("failed to aggregate job stats: %w", err)
	}

	query = `
		SELECT COUNT(*)
		FROM applications a
		JOIN jobs j ON a.job_id = j.id
		WHERE j.organization_id = $1
	`
	if err := s.db.QueryRowContext(ctx, query, orgID).Scan(&stats.TotalApplicants); err != nil {
		return nil, fmt.Errorf("failed to count applicants: %w", err)
	}

	return &stats, nil
}

// OrganizationName returns the display name of the organization.
func (s *SQLStore) OrganizationName(ctx context.Context, orgID int64) (string, error) {
	var name string
	err := s.db.QueryRowContext(ctx, `SELECT name FROM organizations WHERE id = $1`, orgID).Scan(&name)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("organization %d not found", orgID)
	}
	if err != nil {
		return "", fmt.Errorf("failed to get organization name: %w", err)
	}
	return name, nil
}

const applicationColumns = `id, job_id, seeker_user_id, resume_url, resume_text, cover_letter, status, created_at, updated_at`

func scanApplication(row interface{ Scan(...interface{}) error }) (*Application, error) {
	var a Application
	var resumeURL, resumeText, coverLetter sql.NullString
	err := row.Scan(
		&a.ID, &a.JobID, &a.SeekerUserID, &resumeURL, &resumeText, &coverLetter,
		&a.Status, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if resumeURL.Valid {
		a.ResumeURL = &resumeURL.String
	}
	if resumeText.Valid {
		a.ResumeText = &resumeText.String
	}
	if coverLetter.Valid {
		a.CoverLetter = &coverLetter.String
	}
	return &a, nil
}

// InsertApplication persists a new application.
func (s *SQLStore) InsertApplication(ctx context.Context, app *Application) error {
	query := `
		INSERT INTO applications (` + applicationColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := s.db.ExecContext(ctx, query,
		app.ID, app.JobID, app.SeekerUserID,
		nullableString(app.ResumeURL), nullableString(app.ResumeText), nullableString(app.CoverLetter),
		app.Status, app.CreatedAt, app.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert application: %w", err)
	}
	return nil
}

// GetApplication retrieves an application by id.
func (s *SQLStore) GetApplication(ctx context.Context, applicationID string) (*Application, error) {
	query := `SELECT ` + applicationColumns + ` FROM applications WHERE id = $1`
	app, err := scanApplication(s.db.QueryRowContext(ctx, query, applicationID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrApplicationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get application: %w", err)
	}
	return app, nil
}

// ListJobApplications lists all applications to one job, newest first.
func (s *SQLStore) ListJobApplications(ctx context.Context, jobID string) ([]Application, error) {
	query := `SELECT ` + applicationColumns + ` FROM applications WHERE job_id = $1 ORDER BY created_at DESC`
	rows, err := s.db.QueryContext(ctx, query, jobID)
	if err != nil {
		return nil, fmt.Errorf("failed to query applications: %w", err)
	}
	defer rows.Close()

	var apps []Application
	for rows.Next() {
		app, err := scanApplication(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan application: %w", err)
		}
		apps = append(apps, *app)
	}
	return apps, rows.Err()
}

// ListUserApplications lists a seeker's most recent applications with the job
// each one targets.
func (s *SQLStore) ListUserApplications(ctx context.Context, seekerUserID string, limit int) ([]ApplicationWithJob, error) {
	query := `
		SELECT
			a.id, a.job_id, a.seeker_user_id, a.resume_url, a.resume_text, a.cover_letter,
			a.status, a.created_at, a.updated_at,
			j.id, j.organization_id, j.title, j.location, j.job_type, j.description,
			j.tags, j.salary_min, j.salary_max, j.published, j.created_at
		FROM applications a
		JOIN jobs j ON a.job_id = j.id
		WHERE a.seeker_user_id = $1
		ORDER BY a.created_at DESC
		LIMIT $2
	`
	rows, err := s.db.QueryContext(ctx, query, seekerUserID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query applications: %w", err)
	}
	defer rows.Close()

	var results []ApplicationWithJob
	for rows.Next() {
		var a Application
		var j Job
		var resumeURL, resumeText, coverLetter sql.NullString
		var tags string
		var salaryMin, salaryMax sql.NullInt64
		err := rows.Scan(
			&a.ID, &a.JobID, &a.SeekerUserID, &resumeURL, &resumeText, &coverLetter,
			&a.Status, &a.CreatedAt, &a.UpdatedAt,
			&j.ID, &j.OrganizationID, &j.Title, &j.Location, &j.Type, &j.Description,
			&tags, &salaryMin, &salaryMax, &j.Published, &j.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan application: %w", err)
		}
		if resumeURL.Valid {
			a.ResumeURL = &resumeURL.String
		}
		if resumeText.Valid {
			a.ResumeText = &resumeText.String
		}
		if coverLetter.Valid {
			a.CoverLetter = &coverLetter.String
		}
		if tags != "" {
			if err := json.Unmarshal([]byte(tags), &j.Tags); err != nil {
				return nil, fmt.Errorf("failed to decode job tags: %w", err)
			}
		}
		if salaryMin.Valid {
			v := int(salaryMin.Int64)
			j.SalaryMin = &v
		}
		if salaryMax.Valid {
			v := int(salaryMax.Int64)
			j.SalaryMax = &v
		}
		results = append(results, ApplicationWithJob{Application: a, Job: j})
	}
	return results, rows.Err()
}

// UpdateApplicationStatus moves an application to a new pipeline state.
func (s *SQLStore) UpdateApplicationStatus(ctx context.Context, applicationID string, status ApplicationStatus, updatedAt time.Time) error {
	query := `UPDATE applications SET status = $1, updated_at = $2 WHERE id = $3`
	result, err := s.db.ExecContext(ctx, query, status, updatedAt, applicationID)
	if err != nil {
		return fmt.Errorf("failed to update application status: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}
	if affected == 0 {
		return ErrApplicationNotFound
	}
	return nil
}

func nullableInt(v *int) interface{} {
	if v == nil {
		return nil
	}
	return *v
}

func nullableString(v *string) interface{} {
	if v == nil {
		return nil
	}
	return *v
}
