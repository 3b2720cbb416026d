package security

import (
	"context"
	"crypto/tls"
	"math"
	"net"
	"time"

	"github.com/jobwatch/jobwatch/internal/config"
)

// CertStatus describes the TLS leaf certificate presented by the Jenkins
// server, as reported by GET /api/v1/cert.
type CertStatus struct {
	Endpoint string `json:"endpoint"`
	Status   string `json:"status"` // valid | expiring | expired | unreachable
	Issuer   string `json:"issuer,omitempty"`
	NotAfter string `json:"not_after,omitempty"` // RFC3339
	DaysLeft int    `json:"days_left"`
}

// Check dials the Jenkins host over TLS and returns a CertStatus describing
// the leaf certificate.
//
// Uses a 10-second dial timeout so a slow/unreachable host does not block the
// status API indefinitely.
func Check(ctx context.Context, cfg config.JenkinsConfig) *CertStatus {
	cs := &CertStatus{Endpoint: cfg.JobURL()}

	host := cfg.Domain
	if _, _, err := net.SplitHostPort(host); err != nil {
		// No explicit port in the domain — append the HTTPS default.
		host = net.JoinHostPort(host, "443")
	}

	dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	dialer := &tls.Dialer{
		NetDialer: &net.Dialer{},
		Config: &tls.Config{
			InsecureSkipVerify: cfg.TLS.InsecureSkipVerify, //nolint:gosec // user-configured
		},
	}

	netConn, err := dialer.DialContext(dialCtx, "tcp", host)
	if err != nil {
		cs.Status = "unreachable"
		return cs
	}
	conn := netConn.(*tls.Conn)
	defer conn.Close()

	peerCerts := conn.ConnectionState().PeerCertificates
	if len(peerCerts) == 0 {
		cs.Status = "unreachable"
		return cs
	}

	leaf := peerCerts[0]
	now := time.Now()
	daysLeft := leaf.NotAfter.Sub(now).Hours() / 24

	cs.NotAfter = leaf.NotAfter.UTC().Format(time.RFC3339)
	cs.Issuer = leaf.Issuer.CommonName
	cs.DaysLeft = int(math.Floor(daysLeft))

	switch {
	case daysLeft <= 0:
		cs.Status = "expired"
	case daysLeft <= 30:
		cs.Status = "expiring"
	default:
		cs.Status = "valid"
	}

	return cs
}
