// Package api exposes the HTTP interface of the crawler service: trigger a
// crawl run, read the latest run report, and list stored snapshots.
//
// Routes:
//
//	GET  /healthz
//	GET  /readyz
//	GET  /metrics
//	POST /v1/runs            202 accepted, 409 while a run is active; ?wait=true runs inline
//	GET  /v1/runs/latest     last run report, 404 before the first run
//	GET  /v1/snapshots       ?from=&to=&file=&limit=
package api
