// Package api implements the local status HTTP surface: JSON endpoints for
// the engine's derived state (/api/v1/health, /api/v1/builds,
// /api/v1/alerts), an on-demand TLS certificate check of the Jenkins host
// (/api/v1/cert), and a Prometheus text exposition of the monitor's own
// counters at /metrics. All endpoints are read-only views over the
// evaluation engine.
package api
