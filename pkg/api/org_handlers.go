package api

import (
	"net/http"

	"github.com/hiredeck/hiredeck/pkg/httputil"
	"github.com/hiredeck/hiredeck/pkg/jobs"
	"github.com/hiredeck/hiredeck/pkg/middleware"
	"github.com/hiredeck/hiredeck/pkg/observability"
)

func (s *Server) requestLogger(r *http.Request) *observability.Logger {
	return observability.FromContext(r.Context(), s.logger)
}

// BootstrapRequest carries the organization display name sent on bootstrap.
type BootstrapRequest struct {
	Name string `json:"name"`
}

// Bootstrap syncs the caller's organization and membership from their
// verified claims.
func (s *Server) Bootstrap(w http.ResponseWriter, r *http.Request) {
	externalOrgID, ok := httputil.ParsePathStringOrError(w, r, "external_org_id")
	if !ok {
		return
	}

	var req BootstrapRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if req.Name == "" {
		httputil.WriteBadRequest(w, "name is required")
		return
	}

	result, err := s.reconciler.Bootstrap(r.Context(), middleware.GetIdentity(r), externalOrgID, req.Name)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, result)
}

// Repair re-checks the caller's stored role against their current claims and
// escalates it when the claims grant more.
func (s *Server) Repair(w http.ResponseWriter, r *http.Request) {
	externalOrgID, ok := httputil.ParsePathStringOrError(w, r, "external_org_id")
	if !ok {
		return
	}

	result, err := s.reconciler.Repair(r.Context(), middleware.GetIdentity(r), externalOrgID)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, result)
}

// Dashboard returns the organization overview for its members.
func (s *Server) Dashboard(w http.ResponseWriter, r *http.Request) {
	externalOrgID, ok := httputil.ParsePathStringOrError(w, r, "external_org_id")
	if !ok {
		return
	}

	dashboard, err := s.jobService.Dashboard(r.Context(), middleware.GetIdentity(r), externalOrgID)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, dashboard)
}

// ListOrgJobs lists the organization's jobs for its members.
func (s *Server) ListOrgJobs(w http.ResponseWriter, r *http.Request) {
	externalOrgID, ok := httputil.ParsePathStringOrError(w, r, "external_org_id")
	if !ok {
		return
	}

	list, err := s.jobService.ListOrgJobs(r.Context(), middleware.GetIdentity(r), externalOrgID)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, map[string]interface{}{"jobs": list})
}

// CreateJob posts a new job, enforcing the plan's active-job quota.
func (s *Server) CreateJob(w http.ResponseWriter, r *http.Request) {
	externalOrgID, ok := httputil.ParsePathStringOrError(w, r, "external_org_id")
	if !ok {
		return
	}

	// Jobs post as published unless the body explicitly drafts them.
	req := jobs.CreateJobRequest{Published: true}
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	job, err := s.jobService.CreateJob(r.Context(), middleware.GetIdentity(r), externalOrgID, &req)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	httputil.WriteCreated(w, job)
}

// GetOrgJob returns one of the organization's jobs with its applications.
func (s *Server) GetOrgJob(w http.ResponseWriter, r *http.Request) {
	externalOrgID, ok := httputil.ParsePathStringOrError(w, r, "external_org_id")
	if !ok {
		return
	}
	jobID, ok := httputil.ParsePathStringOrError(w, r, "job_id")
	if !ok {
		return
	}

	result, err := s.jobService.GetOrgJobWithApplicants(r.Context(), middleware.GetIdentity(r), externalOrgID, jobID)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, result)
}

// UpdateStatusRequest carries the target pipeline state.
type UpdateStatusRequest struct {
	Status jobs.ApplicationStatus `json:"status"`
}

// UpdateApplicationStatus moves an application to a new pipeline state.
func (s *Server) UpdateApplicationStatus(w http.ResponseWriter, r *http.Request) {
	externalOrgID, ok := httputil.ParsePathStringOrError(w, r, "external_org_id")
	if !ok {
		return
	}
	jobID, ok := httputil.ParsePathStringOrError(w, r, "job_id")
	if !ok {
		return
	}
	applicationID, ok := httputil.ParsePathStringOrError(w, r, "application_id")
	if !ok {
		return
	}

	var req UpdateStatusRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	app, err := s.jobService.UpdateApplicationStatus(r.Context(), middleware.GetIdentity(r), externalOrgID, jobID, applicationID, req.Status)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, app)
}
