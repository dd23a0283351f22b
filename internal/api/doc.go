// Package api hosts the HTTP server, middleware, and REST handlers for the
// serve command. Notable routes:
//   - GET /healthz and /readyz for probes (ready once a manifest exists).
//   - GET /metrics for Prometheus scraping.
//   - GET /api/feed for the cached headline feed.
//   - POST /api/refresh to trigger an archive pass.
//   - GET /* serving the cache directory for offline browsing.
package api
