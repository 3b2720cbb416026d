package notify

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/jobwatch/jobwatch/internal/config"
	"github.com/jobwatch/jobwatch/internal/engine"
)

const jobURL = "https://ci.example.com/job/deploy-prod"

func testAlert() engine.Alert {
	return engine.Alert{
		ID:       "a-1",
		Kind:     engine.KindConsecutiveFailures,
		Severity: "critical",
		Title:    "Build failed multiple times",
		Message:  "deploy-prod #143 has failed 3 times in a row.",
		BuildIDs: []int{141, 142, 143},
		FiredAt:  time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC),
	}
}

// capture runs a webhook server and returns the Notifier plus a pointer to
// the last received body.
func capture(t *testing.T, whType string) (*Notifier, *[]byte) {
	t.Helper()

	var body []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ = io.ReadAll(r.Body)
	}))
	t.Cleanup(srv.Close)

	t.Setenv("TEST_WEBHOOK_URL", srv.URL)
	n := New(config.NotifyConfig{
		Webhooks: []config.WebhookConfig{{Type: whType, URLEnv: "TEST_WEBHOOK_URL"}},
	}, jobURL)
	return n, &body
}

func TestSend_TeamsMessageCard(t *testing.T) {
	n, body := capture(t, "teams")
	n.Send(testAlert())

	var card map[string]interface{}
	if err := json.Unmarshal(*body, &card); err != nil {
		t.Fatalf("unmarshal card: %v (body %q)", err, *body)
	}
	if card["@type"] != "MessageCard" {
		t.Errorf("@type = %v", card["@type"])
	}
	if card["title"] != "Build failed multiple times" {
		t.Errorf("title = %v", card["title"])
	}
	if card["themeColor"] != "FF4F6A" {
		t.Errorf("themeColor = %v, want critical color", card["themeColor"])
	}

	// Link button must point at the newest contributing build.
	actions, ok := card["potentialAction"].([]interface{})
	if !ok || len(actions) != 1 {
		t.Fatalf("potentialAction = %v", card["potentialAction"])
	}
	action := actions[0].(map[string]interface{})
	if action["name"] != "View Build Details" {
		t.Errorf("action name = %v", action["name"])
	}
	target := action["targets"].([]interface{})[0].(map[string]interface{})
	if target["uri"] != jobURL+"/143" {
		t.Errorf("action uri = %v, want %s/143", target["uri"], jobURL)
	}
}

func TestSend_TeamsJobLinkWithoutBuildIDs(t *testing.T) {
	n, body := capture(t, "teams")
	a := testAlert()
	a.BuildIDs = nil
	n.Send(a)

	if !strings.Contains(string(*body), `"View Job Details"`) {
		t.Errorf("card without build ids should link to the job page: %s", *body)
	}
}

func TestSend_Slack(t *testing.T) {
	n, body := capture(t, "slack")
	n.Send(testAlert())

	var msg map[string]string
	if err := json.Unmarshal(*body, &msg); err != nil {
		t.Fatalf("unmarshal slack message: %v", err)
	}
	if !strings.Contains(msg["text"], "[CRITICAL]") {
		t.Errorf("text missing severity label: %q", msg["text"])
	}
	if !strings.Contains(msg["text"], "failed 3 times") {
		t.Errorf("text missing message: %q", msg["text"])
	}
}

func TestSend_GenericHTTP(t *testing.T) {
	n, body := capture(t, "http")
	n.Send(testAlert())

	var payload struct {
		Alert engine.Alert `json:"alert"`
	}
	if err := json.Unmarshal(*body, &payload); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if payload.Alert.Kind != engine.KindConsecutiveFailures {
		t.Errorf("alert kind = %q", payload.Alert.Kind)
	}
	if len(payload.Alert.BuildIDs) != 3 {
		t.Errorf("build ids = %v", payload.Alert.BuildIDs)
	}
}

func TestSend_DeliveryFailureIsCounted(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	t.Setenv("TEST_WEBHOOK_URL", srv.URL)
	n := New(config.NotifyConfig{
		Webhooks: []config.WebhookConfig{{Type: "http", URLEnv: "TEST_WEBHOOK_URL"}},
	}, jobURL)

	n.Send(testAlert())
	if got := n.Failures(); got != 1 {
		t.Errorf("Failures() = %d, want 1", got)
	}
}

func TestSend_UnsetURLIsSkipped(t *testing.T) {
	n := New(config.NotifyConfig{
		Webhooks: []config.WebhookConfig{{Type: "teams", URLEnv: "UNSET_WEBHOOK_ENV"}},
	}, jobURL)

	// Must not panic or count a failure.
	n.Send(testAlert())
	if got := n.Failures(); got != 0 {
		t.Errorf("Failures() = %d, want 0", got)
	}
}
