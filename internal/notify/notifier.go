package notify

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/jobwatch/jobwatch/internal/config"
	"github.com/jobwatch/jobwatch/internal/engine"
)

const sendTimeout = 10 * time.Second

// Notifier delivers alert events to the configured webhook targets.
// Delivery is at-most-once from the engine's perspective: the engine marks
// an alert fired before delivery, and a failed delivery is logged, counted,
// and never retried.
type Notifier struct {
	webhooks []config.WebhookConfig
	jobURL   string
	client   *http.Client
	failures atomic.Uint64
}

// New creates a Notifier. jobURL is the monitored job's Jenkins page, used
// for the "view details" link in Teams cards.
func New(cfg config.NotifyConfig, jobURL string) *Notifier {
	return &Notifier{
		webhooks: cfg.Webhooks,
		jobURL:   jobURL,
		client:   &http.Client{Timeout: sendTimeout},
	}
}

// Failures returns the number of webhook deliveries that have failed.
func (n *Notifier) Failures() uint64 {
	return n.failures.Load()
}

// Send delivers a to all configured targets. Errors are logged but do not
// affect the caller.
func (n *Notifier) Send(a engine.Alert) {
	for _, wh := range n.webhooks {
		url := wh.URL()
		if url == "" {
			slog.Warn("notify: webhook url not set — skipping", "type", wh.Type, "env", wh.URLEnv)
			continue
		}

		var err error
		switch wh.Type {
		case "teams":
			err = n.sendTeams(url, a)
		case "slack":
			err = n.sendSlack(url, a)
		case "http":
			err = n.sendHTTP(url, a)
		default:
			slog.Warn("notify: unknown webhook type — skipping", "type", wh.Type)
			continue
		}

		if err != nil {
			n.failures.Add(1)
			slog.Error("notify: webhook delivery failed",
				"type", wh.Type,
				"kind", a.Kind,
				"err", err,
			)
		} else {
			slog.Debug("notify: webhook delivered",
				"type", wh.Type,
				"kind", a.Kind,
			)
		}
	}
}

// linkTarget returns the page the alert's action button points at: the
// newest contributing build when there is one, otherwise the job itself.
func (n *Notifier) linkTarget(a engine.Alert) (name, url string) {
	if len(a.BuildIDs) > 0 {
		id := a.BuildIDs[len(a.BuildIDs)-1]
		return "View Build Details", n.jobURL + "/" + strconv.Itoa(id)
	}
	return "View Job Details", n.jobURL
}

func (n *Notifier) sendTeams(url string, a engine.Alert) error {
	linkName, linkURL := n.linkTarget(a)
	payload := map[string]interface{}{
		"@type":      "MessageCard",
		"@context":   "http://schema.org/extensions",
		"themeColor": severityColor(a.Severity),
		"summary":    a.Title,
		"title":      a.Title,
		"text":       a.Message,
		"potentialAction": []map[string]interface{}{
			{
				"@type": "OpenUri",
				"name":  linkName,
				"targets": []map[string]string{
					{"os": "default", "uri": linkURL},
				},
			},
		},
	}
	body, _ := json.Marshal(payload)
	return n.post(url, body)
}

func (n *Notifier) sendSlack(url string, a engine.Alert) error {
	_, linkURL := n.linkTarget(a)
	body, _ := json.Marshal(map[string]string{
		"text": fmt.Sprintf("*%s* %s — %s (<%s|details>)",
			severityLabel(a.Severity), a.Title, a.Message, linkURL),
	})
	return n.post(url, body)
}

func (n *Notifier) sendHTTP(url string, a engine.Alert) error {
	body, _ := json.Marshal(map[string]interface{}{"alert": a})
	return n.post(url, body)
}

func (n *Notifier) post(url string, body []byte) error {
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("http post: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("webhook returned HTTP %d", resp.StatusCode)
	}
	return nil
}

func severityLabel(s string) string {
	switch s {
	case "critical":
		return "[CRITICAL]"
	case "warning":
		return "[WARNING]"
	default:
		return "[INFO]"
	}
}

func severityColor(s string) string {
	switch s {
	case "critical":
		return "FF4F6A"
	case "warning":
		return "FFAB40"
	default:
		return "00D4FF"
	}
}
