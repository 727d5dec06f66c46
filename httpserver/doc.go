// Package httpserver exposes the registry's management and adapter-facing
// operations over HTTP.
//
// The server is thin glue: every route builds a management request from the
// URL, the If-Match header and the body, hands it to the dispatcher, and
// renders the uniform response envelope (status code, optional JSON payload,
// ETag and Cache-Control headers). No registry semantics live here.
//
// Besides the API routes the server carries the usual operational endpoints:
// liveness and readiness probes, drain/undrain for load balancer rotation,
// optional pprof, and a separate metrics listener.
package httpserver
