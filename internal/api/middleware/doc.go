// Package middleware provides the gin middleware of the package manager API.
//
// Middleware stack includes:
//   - CORS: cross-origin access for local tooling
//   - RateLimit: per-client token bucket, idle clients are forgotten
//   - RequestID: tags every request and response with an id
//
// Example Usage:
//
//	router.Use(middleware.RequestID())
//	router.Use(middleware.CORS(middleware.DefaultCORSConfig()))
//	router.Use(middleware.RateLimit(middleware.DefaultRateLimitConfig()))
package middleware
