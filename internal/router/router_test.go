package router

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aawaaz/complaint-analyzer/internal/config"
	"github.com/aawaaz/complaint-analyzer/internal/events"
	"github.com/aawaaz/complaint-analyzer/internal/gateway"
	"github.com/aawaaz/complaint-analyzer/internal/services"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

const testSecret = "router-test-secret"

// fakeGateway stores submitted complaints and serves them back the way the
// classification service does.
type fakeGateway struct {
	mu      sync.Mutex
	records []map[string]interface{}
}

func (g *fakeGateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	g.mu.Lock()
	defer g.mu.Unlock()

	switch {
	case r.Method == http.MethodGet && r.URL.Path == "/health":
		fmt.Fprint(w, `{"status":"ok"}`)
	case r.Method == http.MethodPost && r.URL.Path == "/api/complaints":
		var body struct {
			Text string `json:"text"`
		}
		json.NewDecoder(r.Body).Decode(&body)
		id := fmt.Sprintf("rec-%d", len(g.records)+1)
		g.records = append(g.records, map[string]interface{}{
			"_id":                 id,
			"original_text":       body.Text,
			"category":            "Billing",
			"category_confidence": 0.92,
			"sentiment":           "NEGATIVE",
			"sentiment_score":     0.81,
			"priority":            "High",
			"priority_score":      4,
			"timestamp":           "2024-01-15T09:34:05Z",
		})
		json.NewEncoder(w).Encode(map[string]interface{}{"data": map[string]interface{}{
			"id":                  id,
			"original_text":       body.Text,
			"category":            "Billing",
			"category_confidence": 0.92,
			"sentiment":           "NEGATIVE",
			"sentiment_score":     0.81,
			"priority":            "High",
			"priority_score":      4,
		}})
	case r.Method == http.MethodGet && r.URL.Path == "/api/complaints":
		json.NewEncoder(w).Encode(map[string]interface{}{"data": g.records})
	case r.Method == http.MethodGet && r.URL.Path == "/api/analytics":
		json.NewEncoder(w).Encode(map[string]interface{}{"data": map[string]interface{}{
			"total":      len(g.records),
			"categories": []map[string]interface{}{{"_id": "Billing", "count": len(g.records)}},
			"sentiments": []map[string]interface{}{{"_id": "NEGATIVE", "count": len(g.records)}},
		}})
	default:
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"detail":"Not Found"}`)
	}
}

type harness struct {
	server *httptest.Server
	ctrl   *services.SubmissionController
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	logger := zap.NewNop()
	sugar := logger.Sugar()

	upstream := httptest.NewServer(&fakeGateway{})
	t.Cleanup(upstream.Close)

	cfg := &config.Config{
		GatewayURL:     upstream.URL,
		SubmitTimeout:  2 * time.Second,
		FetchTimeout:   2 * time.Second,
		JWTSecret:      testSecret,
		AllowedOrigins: []string{"http://localhost:5173"},
	}

	ctx, cancel := context.WithCancel(context.Background())
	bus := events.NewMemoryBus()
	gw := gateway.NewClient(cfg.GatewayURL, &http.Client{}, sugar)
	ctrl := services.NewSubmissionController(gw, bus, nil, services.SubmissionConfig{
		Timeout:  cfg.SubmitTimeout,
		Endpoint: cfg.GatewayURL,
	}, sugar)
	records := services.NewRecordProjection(gw, cfg.FetchTimeout, cfg.GatewayURL, sugar)
	analytics := services.NewAggregateProjection(gw, cfg.FetchTimeout, cfg.GatewayURL, sugar)
	refresher := services.NewProjectionRefresher(bus, 0, sugar, records, analytics)

	done := make(chan struct{})
	go func() {
		defer close(done)
		refresher.Start(ctx)
	}()

	srv := httptest.NewServer(New(ctx, logger, cfg, Deps{
		Controller: ctrl,
		Records:    records,
		Analytics:  analytics,
		Gateway:    gw,
	}))
	t.Cleanup(func() {
		srv.Close()
		ctrl.Wait()
		cancel()
		<-done
		bus.Close()
	})
	return &harness{server: srv, ctrl: ctrl}
}

func (h *harness) call(t *testing.T, method, path, body, token string) (int, map[string]interface{}) {
	t.Helper()
	req, err := http.NewRequest(method, h.server.URL+path, strings.NewReader(body))
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	var out map[string]interface{}
	json.NewDecoder(resp.Body).Decode(&out)
	return resp.StatusCode, out
}

func analystToken(t *testing.T) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "analyst",
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	s, err := tok.SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return s
}

// eventually polls the records view until check passes or the deadline hits.
func eventually(t *testing.T, what string, check func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if check() {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestHealthEndpoints(t *testing.T) {
	h := newHarness(t)

	if code, body := h.call(t, http.MethodGet, "/api/v1/health", "", ""); code != http.StatusOK || body["status"] != "ok" {
		t.Errorf("health = %d %v", code, body)
	}
	code, body := h.call(t, http.MethodGet, "/api/v1/health/ready", "", "")
	if code != http.StatusOK || body["gateway"] != "reachable" {
		t.Errorf("ready = %d %v", code, body)
	}
}

func TestSubmitThenProjectionsRefresh(t *testing.T) {
	h := newHarness(t)

	eventually(t, "initial record load", func() bool {
		_, body := h.call(t, http.MethodGet, "/api/v1/records", "", "")
		return body["status"] == string(services.StatusReady)
	})

	code, body := h.call(t, http.MethodPost, "/api/v1/submission",
		`{"text":"I was charged twice for the same order."}`, "")
	if code != http.StatusAccepted {
		t.Fatalf("submit = %d %v", code, body)
	}
	h.ctrl.Wait()

	_, body = h.call(t, http.MethodGet, "/api/v1/submission", "", "")
	if body["state"] != string(services.StateSucceeded) {
		t.Fatalf("state = %v, want succeeded", body["state"])
	}
	draft, _ := body["draft"].(map[string]interface{})
	if draft["text"] != "" {
		t.Errorf("draft not cleared after success: %v", draft)
	}

	eventually(t, "submitted record in the high tier", func() bool {
		_, body := h.call(t, http.MethodGet, "/api/v1/records?priority=high", "", "")
		return body["count"] == float64(1)
	})

	token := analystToken(t)
	eventually(t, "analytics total", func() bool {
		_, body := h.call(t, http.MethodGet, "/api/v1/analytics", "", token)
		return body["total"] == float64(1)
	})
}

func TestAnalyticsRequiresToken(t *testing.T) {
	h := newHarness(t)

	if code, _ := h.call(t, http.MethodGet, "/api/v1/analytics", "", ""); code != http.StatusUnauthorized {
		t.Errorf("without token = %d, want 401", code)
	}
	if code, _ := h.call(t, http.MethodPost, "/api/v1/analytics/refresh", "", "garbage"); code != http.StatusUnauthorized {
		t.Errorf("bad token = %d, want 401", code)
	}
	if code, _ := h.call(t, http.MethodPost, "/api/v1/analytics/refresh", "", analystToken(t)); code != http.StatusOK {
		t.Errorf("valid token = %d, want 200", code)
	}
	// Records stay public
	if code, _ := h.call(t, http.MethodGet, "/api/v1/records", "", ""); code != http.StatusOK {
		t.Errorf("records = %d, want 200", code)
	}
}

func TestUnknownTierAndMissingJournal(t *testing.T) {
	h := newHarness(t)

	if code, _ := h.call(t, http.MethodGet, "/api/v1/records?priority=urgent", "", ""); code != http.StatusBadRequest {
		t.Errorf("unknown tier = %d, want 400", code)
	}
	if code, _ := h.call(t, http.MethodGet, "/api/v1/attempts", "", ""); code != http.StatusNotFound {
		t.Errorf("attempts without journal = %d, want 404", code)
	}
}
