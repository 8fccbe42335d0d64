// Package middleware provides HTTP middleware: bearer-token authentication,
// request ids, and Redis-backed rate limiting.
//
// Authentication only establishes WHO is calling; org-scoped authorization
// happens inside the services, against stored memberships.
package middleware
