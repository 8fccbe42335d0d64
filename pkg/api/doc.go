// Package api assembles the HTTP surface: the org-scoped recruiter routes
// behind mandatory authentication and the public seeker routes.
//
// Handlers stay thin. They parse, call the services, and map domain errors
// to status codes (401 unauthenticated, 402 plan limit, 403 forbidden,
// 404 not found).
package api
