package api

import (
	"io"
	"net/http"
	"strings"

	"github.com/hiredeck/hiredeck/pkg/httputil"
	"github.com/hiredeck/hiredeck/pkg/jobs"
	"github.com/hiredeck/hiredeck/pkg/middleware"
)

// maxResumeSize caps uploaded resume files at 10 MB.
const maxResumeSize = 10 << 20

// ListPublicJobs lists the most recent published jobs for seekers.
func (s *Server) ListPublicJobs(w http.ResponseWriter, r *http.Request) {
	list, err := s.jobService.ListPublicJobs(r.Context())
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, map[string]interface{}{"jobs": list})
}

// GetPublicJob returns a published job for seekers.
func (s *Server) GetPublicJob(w http.ResponseWriter, r *http.Request) {
	jobID, ok := httputil.ParsePathStringOrError(w, r, "job_id")
	if !ok {
		return
	}

	job, err := s.jobService.GetPublicJob(r.Context(), jobID)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, job)
}

// Apply records the caller's application to a published job. The body is
// either JSON or multipart form data with an optional "resume" file part.
func (s *Server) Apply(w http.ResponseWriter, r *http.Request) {
	jobID, ok := httputil.ParsePathStringOrError(w, r, "job_id")
	if !ok {
		return
	}

	var req jobs.ApplyRequest
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		if !s.parseApplyForm(w, r, &req) {
			return
		}
	} else if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	app, err := s.jobService.Apply(r.Context(), middleware.GetIdentity(r), jobID, &req)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	httputil.WriteCreated(w, app)
}

func (s *Server) parseApplyForm(w http.ResponseWriter, r *http.Request, req *jobs.ApplyRequest) bool {
	if err := r.ParseMultipartForm(maxResumeSize); err != nil {
		httputil.WriteBadRequest(w, "invalid multipart form")
		return false
	}

	if text := r.FormValue("resume_text"); text != "" {
		req.ResumeText = &text
	}
	if letter := r.FormValue("cover_letter"); letter != "" {
		req.CoverLetter = &letter
	}

	file, header, err := r.FormFile("resume")
	if err == http.ErrMissingFile {
		return true
	}
	if err != nil {
		httputil.WriteBadRequest(w, "invalid resume file")
		return false
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxResumeSize+1))
	if err != nil {
		httputil.WriteBadRequest(w, "failed to read resume file")
		return false
	}
	if len(data) > maxResumeSize {
		httputil.WriteBadRequest(w, "resume file too large")
		return false
	}

	req.ResumeFile = data
	req.ResumeFilename = header.Filename
	return true
}

// ListMyApplications lists the caller's applications with their jobs.
func (s *Server) ListMyApplications(w http.ResponseWriter, r *http.Request) {
	list, err := s.jobService.ListMyApplications(r.Context(), middleware.GetIdentity(r))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, map[string]interface{}{"applications": list})
}
