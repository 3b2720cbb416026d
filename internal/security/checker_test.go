package security_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/jobwatch/jobwatch/internal/config"
	"github.com/jobwatch/jobwatch/internal/security"
)

func TestCheck_SelfSignedServer(t *testing.T) {
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer srv.Close()

	u, err := url.Parse(srv.URL)
	if err != nil {
		t.Fatalf("parse %s: %v", srv.URL, err)
	}

	cfg := config.JenkinsConfig{
		Domain: u.Host,
		Job:    "nightly-build",
		TLS:    config.TLSConfig{InsecureSkipVerify: true},
	}

	cs := security.Check(context.Background(), cfg)
	if cs.Status != "valid" {
		t.Errorf("status: got %q, want valid", cs.Status)
	}
	if cs.DaysLeft <= 30 {
		t.Errorf("days_left: got %d, want > 30", cs.DaysLeft)
	}
	if cs.NotAfter == "" {
		t.Error("not_after: missing")
	}
}

func TestCheck_UnreachableHost(t *testing.T) {
	cfg := config.JenkinsConfig{
		Domain: "127.0.0.1:1",
		Job:    "nightly-build",
	}

	cs := security.Check(context.Background(), cfg)
	if cs.Status != "unreachable" {
		t.Errorf("status: got %q, want unreachable", cs.Status)
	}
	if cs.Endpoint != cfg.JobURL() {
		t.Errorf("endpoint: got %q, want %q", cs.Endpoint, cfg.JobURL())
	}
}
