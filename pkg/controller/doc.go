// Package controller contains HTTP middlewares and helper handlers used by the API server.
//
// Provided middlewares:
//   - WithCORS: adds permissive CORS headers and answers OPTIONS preflight requests.
//   - WithLogger: attaches a request-scoped logger and request ID and writes an access log.
//   - WithRecover: turns handler panics into a 500 JSON response.
//
// Provided helpers:
//   - PprofMux: a ServeMux exposing net/http/pprof handlers under a mount prefix.
//   - GetClientIP: best-effort client address used as the rate-limit key.
package controller
