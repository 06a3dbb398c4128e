// Package httpmw holds the HTTP middleware for the viewer-facing server.
//
// httpserver.NewHandler composes these in a fixed order: security headers,
// request ID, client IP resolution, rate limiting on the gate endpoint,
// OTEL tracing, library bundle headers, metrics, structured logging, then
// the chi router.
//
// Each middleware stands alone and is tested alone. Viewer-supplied data
// such as query strings, user agents, and arbitrary headers stays out of
// the logs: query strings can carry access tokens, and free-form header
// values invite log injection.
package httpmw
