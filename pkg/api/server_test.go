package api

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hiredeck/hiredeck/pkg/billing"
	"github.com/hiredeck/hiredeck/pkg/identity"
	"github.com/hiredeck/hiredeck/pkg/jobs"
	"github.com/hiredeck/hiredeck/pkg/middleware"
	"github.com/hiredeck/hiredeck/pkg/observability"
	"github.com/hiredeck/hiredeck/pkg/orgs"
)

type staticVerifier struct {
	identities map[string]*identity.Identity
}

func (v *staticVerifier) Verify(_ context.Context, rawToken string) (*identity.Identity, error) {
	ident, ok := v.identities[rawToken]
	if !ok {
		return nil, fmt.Errorf("unknown token")
	}
	return ident, nil
}

type testServer struct {
	http.Handler
	db       *sql.DB
	verifier *staticVerifier
}

func setupTestServer(t *testing.T, modify ...func(*Options)) *testServer {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec(`
		CREATE TABLE organizations (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			external_id TEXT NOT NULL UNIQUE,
			name TEXT NOT NULL,
			plan_tier TEXT NOT NULL DEFAULT 'free',
			billing_status TEXT NOT NULL DEFAULT 'inactive',
			trial_ends_at TIMESTAMP,
			created_at TIMESTAMP NOT NULL
		);
		CREATE TABLE memberships (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			organization_id INTEGER NOT NULL,
			external_user_id TEXT NOT NULL,
			role TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL,
			UNIQUE(organization_id, external_user_id)
		);
		CREATE TABLE jobs (
			id TEXT PRIMARY KEY,
			organization_id INTEGER NOT NULL,
			title TEXT NOT NULL,
			location TEXT NOT NULL DEFAULT '',
			job_type TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			tags TEXT NOT NULL DEFAULT '[]',
			salary_min INTEGER,
			salary_max INTEGER,
			published INTEGER NOT NULL DEFAULT 0,
			created_at TIMESTAMP NOT NULL
		);
		CREATE TABLE applications (
			id TEXT PRIMARY KEY,
			job_id TEXT NOT NULL,
			seeker_user_id TEXT NOT NULL,
			resume_url TEXT,
			resume_text TEXT,
			cover_letter TEXT,
			status TEXT NOT NULL DEFAULT 'applied',
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		);
	`)
	require.NoError(t, err)

	logger := observability.NewLogger(observability.ErrorLevel, io.Discard)
	store := orgs.NewSQLStore(db)
	guard := orgs.NewGuard(store, logger, nil)
	reconciler := orgs.NewReconciler(store, logger, nil)

	jobService, err := jobs.NewService(jobs.NewSQLStore(db), guard, billing.NewLimits(logger), nil, logger, nil)
	require.NoError(t, err)

	verifier := &staticVerifier{identities: map[string]*identity.Identity{}}
	opts := Options{
		Auth: middleware.NewAuthMiddleware(verifier, true),
	}
	for _, fn := range modify {
		fn(&opts)
	}
	server := NewServer(reconciler, jobService, logger, nil, opts)

	return &testServer{Handler: server.Handler(), db: db, verifier: verifier}
}

func (ts *testServer) addToken(token string, ident *identity.Identity) {
	ts.verifier.identities[token] = ident
}

func (ts *testServer) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	ts.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func adminClaims(orgID string) map[string]string {
	return map[string]string{
		identity.ClaimOrgID:   orgID,
		identity.ClaimOrgRole: "admin",
	}
}

func TestBootstrapEndpoint(t *testing.T) {
	ts := setupTestServer(t)
	ts.addToken("admin-token", &identity.Identity{Subject: "user_1", Claims: adminClaims("org_1")})

	rec := ts.do(t, http.MethodPost, "/api/v1/orgs/org_1/bootstrap", "admin-token", map[string]string{"name": "Acme"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decodeBody(t, rec)
	assert.Equal(t, "admin", body["role"])
}

func TestBootstrapEndpoint_RequiresAuth(t *testing.T) {
	ts := setupTestServer(t)

	rec := ts.do(t, http.MethodPost, "/api/v1/orgs/org_1/bootstrap", "", map[string]string{"name": "Acme"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestBootstrapEndpoint_RequiresName(t *testing.T) {
	ts := setupTestServer(t)
	ts.addToken("admin-token", &identity.Identity{Subject: "user_1", Claims: adminClaims("org_1")})

	rec := ts.do(t, http.MethodPost, "/api/v1/orgs/org_1/bootstrap", "admin-token", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestBootstrapEndpoint_ForbiddenForOtherOrg(t *testing.T) {
	ts := setupTestServer(t)
	ts.addToken("admin-token", &identity.Identity{Subject: "user_1", Claims: adminClaims("org_1")})

	rec := ts.do(t, http.MethodPost, "/api/v1/orgs/org_other/bootstrap", "admin-token", map[string]string{"name": "Acme"})
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestRepairEndpoint(t *testing.T) {
	ts := setupTestServer(t)
	ts.addToken("viewer-token", &identity.Identity{Subject: "user_1", Claims: map[string]string{
		identity.ClaimOrgID:   "org_1",
		identity.ClaimOrgRole: "viewer",
	}})
	ts.addToken("admin-token", &identity.Identity{Subject: "user_1", Claims: adminClaims("org_1")})

	rec := ts.do(t, http.MethodPost, "/api/v1/orgs/org_1/bootstrap", "viewer-token", map[string]string{"name": "Acme"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = ts.do(t, http.MethodPost, "/api/v1/orgs/org_1/repair", "admin-token", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decodeBody(t, rec)
	assert.Equal(t, true, body["repaired"])
	assert.Equal(t, "admin", body["new_role"])
}

func TestRepairEndpoint_UnknownOrg(t *testing.T) {
	ts := setupTestServer(t)
	ts.addToken("admin-token", &identity.Identity{Subject: "user_1", Claims: adminClaims("org_1")})

	rec := ts.do(t, http.MethodPost, "/api/v1/orgs/org_1/repair", "admin-token", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestJobLifecycleOverHTTP(t *testing.T) {
	ts := setupTestServer(t)
	ts.addToken("admin-token", &identity.Identity{Subject: "user_1", Claims: adminClaims("org_1")})
	ts.addToken("seeker-token", &identity.Identity{Subject: "seeker_1", Claims: map[string]string{}})

	rec := ts.do(t, http.MethodPost, "/api/v1/orgs/org_1/bootstrap", "admin-token", map[string]string{"name": "Acme"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = ts.do(t, http.MethodPost, "/api/v1/orgs/org_1/jobs", "admin-token", map[string]interface{}{
		"title":     "Backend Engineer",
		"type":      "full_time",
		"location":  "Remote",
		"tags":      []string{"go"},
		"published": true,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	jobID := decodeBody(t, rec)["id"].(string)
	require.NotEmpty(t, jobID)

	// The published job shows up on the public listing with the org name.
	rec = ts.do(t, http.MethodGet, "/api/v1/jobs", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	listing := decodeBody(t, rec)["jobs"].([]interface{})
	require.Len(t, listing, 1)
	assert.Equal(t, "Acme", listing[0].(map[string]interface{})["organization_name"])

	// A seeker applies.
	rec = ts.do(t, http.MethodPost, "/api/v1/jobs/"+jobID+"/apply", "seeker-token", map[string]string{
		"resume_text": "my resume",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	applicationID := decodeBody(t, rec)["id"].(string)

	// The recruiter sees the applicant and moves them along the pipeline.
	rec = ts.do(t, http.MethodGet, "/api/v1/orgs/org_1/jobs/"+jobID, "admin-token", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	apps := decodeBody(t, rec)["applications"].([]interface{})
	require.Len(t, apps, 1)

	rec = ts.do(t, http.MethodPut, "/api/v1/orgs/org_1/jobs/"+jobID+"/applications/"+applicationID+"/status", "admin-token", map[string]string{"status": "interview"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "interview", decodeBody(t, rec)["status"])

	// The seeker sees the new status on their own surface.
	rec = ts.do(t, http.MethodGet, "/api/v1/me/applications", "seeker-token", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	mine := decodeBody(t, rec)["applications"].([]interface{})
	require.Len(t, mine, 1)
	application := mine[0].(map[string]interface{})["application"].(map[string]interface{})
	assert.Equal(t, "interview", application["status"])
}

func TestCreateJobEndpoint_QuotaReturns402(t *testing.T) {
	ts := setupTestServer(t)
	ts.addToken("admin-token", &identity.Identity{Subject: "user_1", Claims: adminClaims("org_1")})

	rec := ts.do(t, http.MethodPost, "/api/v1/orgs/org_1/bootstrap", "admin-token", map[string]string{"name": "Acme"})
	require.Equal(t, http.StatusOK, rec.Code)

	for i := 0; i < billing.FreeActiveJobLimit; i++ {
		rec = ts.do(t, http.MethodPost, "/api/v1/orgs/org_1/jobs", "admin-token", map[string]interface{}{
			"title": "Job", "type": "full_time", "published": true,
		})
		require.Equal(t, http.StatusCreated, rec.Code)
	}

	rec = ts.do(t, http.MethodPost, "/api/v1/orgs/org_1/jobs", "admin-token", map[string]interface{}{
		"title": "One too many", "type": "full_time", "published": true,
	})
	assert.Equal(t, http.StatusPaymentRequired, rec.Code)
	assert.Contains(t, decodeBody(t, rec)["error"], "plan limit reached")
}

func TestCreateJobEndpoint_PublishesByDefault(t *testing.T) {
	ts := setupTestServer(t)
	ts.addToken("admin-token", &identity.Identity{Subject: "user_1", Claims: adminClaims("org_1")})

	rec := ts.do(t, http.MethodPost, "/api/v1/orgs/org_1/bootstrap", "admin-token", map[string]string{"name": "Acme"})
	require.Equal(t, http.StatusOK, rec.Code)

	// No "published" field in the body: the job still goes live.
	rec = ts.do(t, http.MethodPost, "/api/v1/orgs/org_1/jobs", "admin-token", map[string]interface{}{
		"title": "Backend Engineer", "type": "full_time",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, true, decodeBody(t, rec)["published"])

	rec = ts.do(t, http.MethodGet, "/api/v1/jobs", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeBody(t, rec)["jobs"].([]interface{}), 1)

	// An explicit false still drafts, off the public surface.
	rec = ts.do(t, http.MethodPost, "/api/v1/orgs/org_1/jobs", "admin-token", map[string]interface{}{
		"title": "Draft", "type": "full_time", "published": false,
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, false, decodeBody(t, rec)["published"])

	rec = ts.do(t, http.MethodGet, "/api/v1/jobs", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeBody(t, rec)["jobs"].([]interface{}), 1)
}

func TestRateLimiterKeysOnAuthenticatedUser(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	redisClient := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { redisClient.Close() })

	ts := setupTestServer(t, func(o *Options) {
		o.RateLimit = middleware.NewRateLimitMiddleware(redisClient)
	})
	ts.addToken("admin-token", &identity.Identity{Subject: "user_1", Claims: adminClaims("org_1")})

	rec := ts.do(t, http.MethodPost, "/api/v1/orgs/org_1/bootstrap", "admin-token", map[string]string{"name": "Acme"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	// The limiter runs after auth, so it sees the caller identity.
	assert.Contains(t, mr.Keys(), "ratelimit:user:user:user_1")
	for _, key := range mr.Keys() {
		assert.NotContains(t, key, "ratelimit:anon")
	}

	rec = ts.do(t, http.MethodGet, "/api/v1/jobs", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	anonKeys := 0
	for _, key := range mr.Keys() {
		if strings.HasPrefix(key, "ratelimit:anon:ip:") {
			anonKeys++
		}
	}
	assert.Equal(t, 1, anonKeys)
}

func TestCreateJobEndpoint_ValidationReturns400(t *testing.T) {
	ts := setupTestServer(t)
	ts.addToken("admin-token", &identity.Identity{Subject: "user_1", Claims: adminClaims("org_1")})

	rec := ts.do(t, http.MethodPost, "/api/v1/orgs/org_1/bootstrap", "admin-token", map[string]string{"name": "Acme"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = ts.do(t, http.MethodPost, "/api/v1/orgs/org_1/jobs", "admin-token", map[string]interface{}{
		"type": "full_time",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDashboardEndpoint_ForbiddenWithoutMembership(t *testing.T) {
	ts := setupTestServer(t)
	ts.addToken("admin-token", &identity.Identity{Subject: "user_1", Claims: adminClaims("org_1")})
	ts.addToken("stranger-token", &identity.Identity{Subject: "user_2", Claims: map[string]string{}})

	rec := ts.do(t, http.MethodPost, "/api/v1/orgs/org_1/bootstrap", "admin-token", map[string]string{"name": "Acme"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = ts.do(t, http.MethodGet, "/api/v1/orgs/org_1/dashboard", "stranger-token", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestGetPublicJobEndpoint_NotFound(t *testing.T) {
	ts := setupTestServer(t)

	rec := ts.do(t, http.MethodGet, "/api/v1/jobs/missing", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestApplyEndpoint_RequiresAuth(t *testing.T) {
	ts := setupTestServer(t)

	rec := ts.do(t, http.MethodPost, "/api/v1/jobs/some-id/apply", "", map[string]string{})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
