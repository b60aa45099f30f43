// Package api hosts the operator HTTP server. Routes:
//   - GET /healthz and /readyz for probes.
//   - GET /metrics for Prometheus scraping.
//   - POST /v1/crawl to start a pipeline run in the background.
//   - GET /v1/runs to list recent run summaries.
package api
