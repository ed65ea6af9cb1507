// Package server exposes the aggregator's HTTP surface: orchestrated
// search, artist profiles, quick track lookup, metrics, YouTube link
// management, and chart statistics.
//
// # Router Infrastructure
//
// The [Router] interface defines HTTP routing with middleware support.
//
// [Middleware] wraps handlers in reverse order (last added executes first),
// following the standard Go pattern.
//
// The [BasicRouter] implementation uses [http.ServeMux] internally with
// method-qualified patterns, so handlers read path parameters with
// [http.Request.PathValue].
//
// # Handler Interface
//
// Custom handlers implement the [Handler] interface, which wraps the stdlib
// handler interface and adds routes, allowing handlers to register multiple
// routes and encapsulate route definitions within the implementation.
//
// # Error Mapping
//
// Handlers translate domain errors uniformly: invalid parameters and
// protected deletions become 400, missing entities become 404, and
// everything else becomes 500 with a short diagnostic. Provider failures
// never leak payloads to the client.
package server
