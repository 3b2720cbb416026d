package jenkins

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/jobwatch/jobwatch/internal/config"
)

const defaultFetchTimeout = 10 * time.Second

// buildsTree selects the build fields the monitor needs, keeping the
// response small on jobs with long histories.
const buildsTree = "builds[building,result,timestamp,id,fullDisplayName,duration]"

// FetchError wraps any failure to obtain a valid build list from Jenkins:
// network errors, auth rejections, and malformed payloads. It is recovered
// by retrying on the next poll tick, never fatal.
type FetchError struct {
	Op  string
	Err error
}

func (e *FetchError) Error() string { return "jenkins: " + e.Op + ": " + e.Err.Error() }

func (e *FetchError) Unwrap() error { return e.Err }

// Client fetches the monitored job's build history over the Jenkins JSON API.
// The HTTP client is built once and reused across fetches.
type Client struct {
	cfg    config.JenkinsConfig
	apiURL string
	client *http.Client
}

// NewClient builds a Client for the configured Jenkins job.
func NewClient(cfg config.JenkinsConfig) *Client {
	transport := &basicAuthRoundTripper{
		base: &http.Transport{
			TLSClientConfig: &tls.Config{
				InsecureSkipVerify: cfg.TLS.InsecureSkipVerify, //nolint:gosec // user-configured
			},
		},
		cfg: cfg,
	}
	return &Client{
		cfg:    cfg,
		apiURL: cfg.JobURL() + "/api/json?tree=" + buildsTree,
		client: &http.Client{
			Transport: transport,
			Timeout:   defaultFetchTimeout,
		},
	}
}

// basicAuthRoundTripper injects the username/API-token basic auth header
// into every outgoing request.
type basicAuthRoundTripper struct {
	base http.RoundTripper
	cfg  config.JenkinsConfig
}

func (t *basicAuthRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.cfg.Username != "" {
		req = req.Clone(req.Context())
		req.SetBasicAuth(t.cfg.Username, t.cfg.Token())
	}
	return t.base.RoundTrip(req)
}

// Builds fetches the job's build history and converts it into normalized
// records, sorted by ascending build id. Any failure — transport, HTTP
// status, or a payload entry that cannot be converted — is returned as a
// *FetchError and no partial result is returned.
func (c *Client) Builds(ctx context.Context) ([]Build, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.apiURL, nil)
	if err != nil {
		return nil, &FetchError{Op: "build request", Err: err}
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, &FetchError{Op: "http get", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &FetchError{Op: "http get", Err: fmt.Errorf("unexpected status %d", resp.StatusCode)}
	}

	var payload jobResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, &FetchError{Op: "decode response", Err: err}
	}

	builds := make([]Build, 0, len(payload.Builds))
	for i, raw := range payload.Builds {
		b, err := convert(raw)
		if err != nil {
			return nil, &FetchError{Op: fmt.Sprintf("builds[%d]", i), Err: err}
		}
		builds = append(builds, b)
	}

	// Jenkins returns newest first; the engine consumes ascending ids.
	sort.Slice(builds, func(i, j int) bool { return builds[i].ID < builds[j].ID })
	return builds, nil
}

// convert validates one raw API entry and produces a typed Build.
// Untyped data never crosses this boundary.
func convert(raw rawBuild) (Build, error) {
	id, err := strconv.Atoi(raw.ID)
	if err != nil {
		return Build{}, fmt.Errorf("invalid build id %q: %w", raw.ID, err)
	}
	if raw.Timestamp <= 0 {
		return Build{}, fmt.Errorf("build %d: missing timestamp", id)
	}

	b := Build{
		ID:        id,
		FullName:  raw.FullDisplayName,
		StartedAt: time.UnixMilli(raw.Timestamp),
	}

	switch {
	case raw.Building:
		b.Status = StatusInProgress
		// Duration stays zero until the build finishes.
	case raw.Result == "":
		return Build{}, fmt.Errorf("build %d: completed without a result", id)
	default:
		// SUCCESS/FAILURE/ABORTED drive the rules. Any other result
		// (UNSTABLE, NOT_BUILT, ...) is carried through unchanged — it
		// matches no rule, and rejecting it would blind the monitor to
		// the whole job for as long as the build stays in the history.
		b.Status = Status(raw.Result)
	}

	if b.Status.Terminal() {
		if raw.Duration < 0 {
			return Build{}, fmt.Errorf("build %d: negative duration", id)
		}
		b.Duration = time.Duration(raw.Duration) * time.Millisecond
	}

	return b, nil
}
