// Package security checks TLS certificate validity for the monitored Jenkins
// server. It emits CertStatus records that are exposed by the status API at
// GET /api/v1/cert.
package security
