package jobs

import (
	"bytes"
	"context"
	"database/sql"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hiredeck/hiredeck/pkg/billing"
	"github.com/hiredeck/hiredeck/pkg/identity"
	"github.com/hiredeck/hiredeck/pkg/observability"
	"github.com/hiredeck/hiredeck/pkg/orgs"
)

type fakeResumeStorage struct {
	keys []string
}

func (f *fakeResumeStorage) Upload(_ context.Context, key string, _ *bytes.Reader, _ string) (string, error) {
	f.keys = append(f.keys, key)
	return "https://resumes.test/" + key, nil
}

func setupService(t *testing.T) (*Service, *sql.DB, *fakeResumeStorage) {
	t.Helper()

	db := setupTestDB(t)
	logger := observability.NewLogger(observability.ErrorLevel, io.Discard)
	guard := orgs.NewGuard(orgs.NewSQLStore(db), logger, nil)
	resumes := &fakeResumeStorage{}

	svc, err := NewService(NewSQLStore(db), guard, billing.NewLimits(logger), resumes, logger, nil)
	require.NoError(t, err)
	return svc, db, resumes
}

func recruiterIdentity(userID string) *identity.Identity {
	return &identity.Identity{Subject: userID, Claims: map[string]string{}}
}

func TestCreateJob_PublishesWithinQuota(t *testing.T) {
	svc, db, _ := setupService(t)
	ctx := context.Background()
	orgID := seedOrg(t, db, "org_1", "free")
	seedMembership(t, db, orgID, "user_1", "recruiter")

	job, err := svc.CreateJob(ctx, recruiterIdentity("user_1"), "org_1", &CreateJobRequest{
		Title:     "Backend Engineer",
		Type:      JobTypeFullTime,
		Tags:      []string{"go"},
		Published: true,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, job.ID)
	assert.Equal(t, orgID, job.OrganizationID)
	assert.True(t, job.Published)
}

func TestCreateJob_QuotaExceeded(t *testing.T) {
	svc, db, _ := setupService(t)
	ctx := context.Background()
	orgID := seedOrg(t, db, "org_1", "free")
	seedMembership(t, db, orgID, "user_1", "recruiter")
	ident := recruiterIdentity("user_1")

	for i := 0; i < billing.FreeActiveJobLimit; i++ {
		_, err := svc.CreateJob(ctx, ident, "org_1", &CreateJobRequest{
			Title: "Job", Type: JobTypeFullTime, Published: true,
		})
		require.NoError(t, err)
	}

	_, err := svc.CreateJob(ctx, ident, "org_1", &CreateJobRequest{
		Title: "One too many", Type: JobTypeFullTime, Published: true,
	})
	require.Error(t, err)
	assert.True(t, billing.IsPlanLimit(err))

	// Drafts never count against the quota.
	draft, err := svc.CreateJob(ctx, ident, "org_1", &CreateJobRequest{
		Title: "Draft", Type: JobTypeFullTime, Published: false,
	})
	require.NoError(t, err)
	assert.False(t, draft.Published)
}

func TestCreateJob_RequiresRecruiter(t *testing.T) {
	svc, db, _ := setupService(t)
	orgID := seedOrg(t, db, "org_1", "free")
	seedMembership(t, db, orgID, "user_1", "viewer")

	_, err := svc.CreateJob(context.Background(), recruiterIdentity("user_1"), "org_1", &CreateJobRequest{
		Title: "Job", Type: JobTypeFullTime,
	})
	assert.ErrorIs(t, err, orgs.ErrForbidden)
}

func TestCreateJob_Validation(t *testing.T) {
	svc, db, _ := setupService(t)
	ctx := context.Background()
	orgID := seedOrg(t, db, "org_1", "free")
	seedMembership(t, db, orgID, "user_1", "recruiter")
	ident := recruiterIdentity("user_1")

	_, err := svc.CreateJob(ctx, ident, "org_1", &CreateJobRequest{Type: JobTypeFullTime})
	assert.True(t, IsValidation(err))

	_, err = svc.CreateJob(ctx, ident, "org_1", &CreateJobRequest{Title: "Job", Type: "freelance"})
	assert.True(t, IsValidation(err))

	min, max := 100, 50
	_, err = svc.CreateJob(ctx, ident, "org_1", &CreateJobRequest{
		Title: "Job", Type: JobTypeFullTime, SalaryMin: &min, SalaryMax: &max,
	})
	assert.True(t, IsValidation(err))
}

func TestDashboard(t *testing.T) {
	svc, db, _ := setupService(t)
	ctx := context.Background()
	orgID := seedOrg(t, db, "org_1", "pro")
	seedMembership(t, db, orgID, "user_1", "viewer")

	job := makeJob(orgID, "A", true, time.Now().UTC())
	require.NoError(t, NewSQLStore(db).InsertJob(ctx, job))

	dash, err := svc.Dashboard(ctx, recruiterIdentity("user_1"), "org_1")
	require.NoError(t, err)
	assert.Equal(t, orgs.PlanPro, dash.Organization.PlanTier)
	assert.Equal(t, 1, dash.Stats.TotalJobs)
	assert.Equal(t, 1, dash.Stats.OpenJobs)
}

func TestGetOrgJobWithApplicants_CrossOrgForbidden(t *testing.T) {
	svc, db, _ := setupService(t)
	ctx := context.Background()
	orgID := seedOrg(t, db, "org_1", "free")
	otherID := seedOrg(t, db, "org_2", "free")
	seedMembership(t, db, orgID, "user_1", "admin")

	theirJob := makeJob(otherID, "Theirs", true, time.Now().UTC())
	require.NoError(t, NewSQLStore(db).InsertJob(ctx, theirJob))

	_, err := svc.GetOrgJobWithApplicants(ctx, recruiterIdentity("user_1"), "org_1", theirJob.ID)
	assert.ErrorIs(t, err, orgs.ErrForbidden)
}

func TestUpdateApplicationStatus(t *testing.T) {
	svc, db, _ := setupService(t)
	ctx := context.Background()
	store := NewSQLStore(db)
	orgID := seedOrg(t, db, "org_1", "free")
	seedMembership(t, db, orgID, "user_1", "recruiter")

	now := time.Now().UTC()
	job := makeJob(orgID, "A", true, now)
	require.NoError(t, store.InsertJob(ctx, job))
	app := &Application{
		ID: uuid.NewString(), JobID: job.ID, SeekerUserID: "seeker_1",
		Status: StatusApplied, CreatedAt: now, UpdatedAt: now,
	}
	require.NoError(t, store.InsertApplication(ctx, app))

	updated, err := svc.UpdateApplicationStatus(ctx, recruiterIdentity("user_1"), "org_1", job.ID, app.ID, StatusOffer)
	require.NoError(t, err)
	assert.Equal(t, StatusOffer, updated.Status)

	_, err = svc.UpdateApplicationStatus(ctx, recruiterIdentity("user_1"), "org_1", job.ID, app.ID, "hired")
	assert.True(t, IsValidation(err))

	// An application id belonging to another job is not found on this route.
	otherJob := makeJob(orgID, "B", true, now)
	require.NoError(t, store.InsertJob(ctx, otherJob))
	_, err = svc.UpdateApplicationStatus(ctx, recruiterIdentity("user_1"), "org_1", otherJob.ID, app.ID, StatusRejected)
	assert.ErrorIs(t, err, ErrApplicationNotFound)
}

func TestListPublicJobs_IncludesOrganizationName(t *testing.T) {
	svc, db, _ := setupService(t)
	ctx := context.Background()
	orgID := seedOrg(t, db, "org_1", "free")

	require.NoError(t, NewSQLStore(db).InsertJob(ctx, makeJob(orgID, "A", true, time.Now().UTC())))

	list, err := svc.ListPublicJobs(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "Org org_1", list[0].OrganizationName)
}

func TestGetPublicJob_UnpublishedNotFound(t *testing.T) {
	svc, db, _ := setupService(t)
	ctx := context.Background()
	orgID := seedOrg(t, db, "org_1", "free")

	draft := makeJob(orgID, "Draft", false, time.Now().UTC())
	require.NoError(t, NewSQLStore(db).InsertJob(ctx, draft))

	_, err := svc.GetPublicJob(ctx, draft.ID)
	assert.ErrorIs(t, err, ErrJobNotFound)
}

func TestApply(t *testing.T) {
	svc, db, resumes := setupService(t)
	ctx := context.Background()
	orgID := seedOrg(t, db, "org_1", "free")

	job := makeJob(orgID, "A", true, time.Now().UTC())
	require.NoError(t, NewSQLStore(db).InsertJob(ctx, job))

	text := "resume text"
	app, err := svc.Apply(ctx, recruiterIdentity("seeker_1"), job.ID, &ApplyRequest{
		ResumeText: &text,
		ResumeFile: []byte("%PDF-"), ResumeFilename: "resume.pdf",
	})
	require.NoError(t, err)
	assert.Equal(t, StatusApplied, app.Status)
	assert.Equal(t, "seeker_1", app.SeekerUserID)
	require.NotNil(t, app.ResumeURL)
	assert.Contains(t, *app.ResumeURL, "resumes/"+job.ID+"/")
	require.Len(t, resumes.keys, 1)
	assert.Contains(t, resumes.keys[0], ".pdf")

	mine, err := svc.ListMyApplications(ctx, recruiterIdentity("seeker_1"))
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, app.ID, mine[0].Application.ID)
}

func TestApply_Unauthenticated(t *testing.T) {
	svc, _, _ := setupService(t)

	_, err := svc.Apply(context.Background(), nil, "job", &ApplyRequest{})
	assert.ErrorIs(t, err, orgs.ErrNotAuthenticated)
}

func TestApply_UnpublishedJob(t *testing.T) {
	svc, db, _ := setupService(t)
	ctx := context.Background()
	orgID := seedOrg(t, db, "org_1", "free")

	draft := makeJob(orgID, "Draft", false, time.Now().UTC())
	require.NoError(t, NewSQLStore(db).InsertJob(ctx, draft))

	_, err := svc.Apply(ctx, recruiterIdentity("seeker_1"), draft.ID, &ApplyRequest{})
	assert.ErrorIs(t, err, ErrJobNotFound)
}
