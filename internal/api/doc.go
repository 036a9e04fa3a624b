// Package api hosts the operator-facing HTTP surface of a running crawl.
// Routes:
//   - GET /healthz for liveness probes.
//   - GET /metrics for Prometheus scraping.
//   - GET /status for a JSON snapshot of the crawl state.
//   - POST /checkpoint to request a manual checkpoint.
package api
