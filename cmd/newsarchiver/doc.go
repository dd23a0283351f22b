// Package main hosts the newsarchiver entrypoint.
//
// Architecture overview:
//   - CLI: cmd builds the application container in PersistentPreRunE and
//     injects it through the command context. The root command runs an archive
//     pass (quick by default, --full-articles or --offline for deeper modes),
//     `list` prints the cached feed, and `serve` hosts the HTTP surface.
//   - Pass pipeline: the archiver manager fetches the homepage, extracts
//     headline candidates with configurable selectors, and fans articles out to
//     a bounded worker pool. Assets (thumbnails, CSS, JS, fonts) are resolved
//     deterministically into the cache and page markup is rewritten to relative
//     links so the archive is self-contained.
//   - Fetching: a Colly-based fetcher with per-host politeness delays,
//     exponential retry on transient failures, optional robots.txt enforcement,
//     and in-flight request coalescing.
//   - Persistence: one JSON manifest owned by the manager, committed atomically
//     (temp file + rename) after every pass, plus timestamped feed snapshots.
//     Interrupting a pass never corrupts the previous archive.
//   - HTTP: internal/api.Server exposes /healthz, /readyz, /metrics, /api/feed,
//     POST /api/refresh, and serves the cache directory for offline browsing.
//   - Configuration & plumbing: Viper populates config from env (ARCHIVER_*)
//     and optional YAML; zap provides structured logging; Prometheus collectors
//     and a progress-event hub (log, Prometheus, on-disk journal sinks) cover
//     observability.
//
// Operational notes:
//   - Concurrency model: one pass at a time; a fixed article worker pool sized
//     by fetch.concurrency with a per-article asset pool sized by
//     fetch.asset_concurrency. SIGINT/SIGTERM cancels between work items and
//     the partial pass is still committed.
//   - Politeness: requests to the same host are spaced by
//     fetch.politeness_delay; 429 responses back off and retry.
//   - Run locally: go run ./cmd/newsarchiver --offline, then
//     go run ./cmd/newsarchiver serve to browse the archive.
package main
