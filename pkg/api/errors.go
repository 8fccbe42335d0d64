package api

import (
	"errors"
	"net/http"

	"github.com/hiredeck/hiredeck/pkg/billing"
	"github.com/hiredeck/hiredeck/pkg/httputil"
	"github.com/hiredeck/hiredeck/pkg/jobs"
	"github.com/hiredeck/hiredeck/pkg/orgs"
)

// writeServiceError maps domain errors onto HTTP status codes:
// 401 not authenticated, 402 plan limit, 403 forbidden, 404 not found,
// 400 validation. Anything else is a 500 and gets logged.
func (s *Server) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, orgs.ErrNotAuthenticated):
		httputil.WriteUnauthorized(w, "authentication required")
	case billing.IsPlanLimit(err):
		httputil.WritePaymentRequired(w, err.Error())
	case errors.Is(err, orgs.ErrForbidden):
		httputil.WriteForbidden(w, "forbidden")
	case errors.Is(err, orgs.ErrOrganizationNotFound):
		httputil.WriteNotFoundError(w, "organization not found")
	case errors.Is(err, orgs.ErrMembershipNotFound):
		httputil.WriteNotFoundError(w, "membership not found")
	case errors.Is(err, jobs.ErrJobNotFound):
		httputil.WriteNotFoundError(w, "job not found")
	case errors.Is(err, jobs.ErrApplicationNotFound):
		httputil.WriteNotFoundError(w, "application not found")
	case jobs.IsValidation(err):
		httputil.WriteBadRequest(w, err.Error())
	default:
		s.requestLogger(r).WithError(err).Error("Request failed")
		httputil.WriteErrorMessage(w, http.StatusInternalServerError, "internal server error")
	}
}
