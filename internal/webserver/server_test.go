package webserver

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ph8tel/vr-telepresence/internal/capture"
	"github.com/ph8tel/vr-telepresence/internal/config"
	"github.com/ph8tel/vr-telepresence/internal/session"
)

func testServer(t *testing.T) *Server {
	t.Helper()

	captureCfg := config.DefaultCaptureConfig()
	captureCfg.FrameWidth = 8
	captureCfg.FrameHeight = 8
	captureCfg.FrameIntervalSeconds = 0.005

	device := capture.NewSyntheticDevice(
		captureCfg.FrameWidth, captureCfg.FrameHeight, captureCfg.FrameInterval())
	source, err := capture.Open(device, captureCfg, nil)
	if err != nil {
		t.Fatalf("open source: %v", err)
	}
	t.Cleanup(func() { source.Close() })

	sessions, err := session.NewManager(context.Background(), session.ManagerConfig{
		Capture: captureCfg,
		Source:  source,
	})
	if err != nil {
		t.Fatalf("new session manager: %v", err)
	}
	if err := sessions.Start(context.Background()); err != nil {
		t.Fatalf("start session manager: %v", err)
	}
	t.Cleanup(func() { sessions.Stop(context.Background()) })

	server, err := NewServer(config.DefaultWebServerConfig(), sessions)
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	return server
}

func TestServer_Health(t *testing.T) {
	server := testServer(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	server.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var body map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["status"] != "healthy" {
		t.Errorf("unexpected health body: %v", body)
	}
}

func TestServer_OfferLifecycle(t *testing.T) {
	server := testServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/offer", nil)
	rec := httptest.NewRecorder()
	server.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var offer struct {
		SDP  string `json:"sdp"`
		Type string `json:"type"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&offer); err != nil {
		t.Fatalf("decode offer: %v", err)
	}
	if offer.SDP == "" || offer.Type != "offer" {
		t.Errorf("unexpected offer response: %+v", offer)
	}

	// 单观看端：会话占用期间第二个offer请求返回409
	rec = httptest.NewRecorder()
	server.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/offer", nil))
	if rec.Code != http.StatusConflict {
		t.Errorf("expected 409 while session is busy, got %d", rec.Code)
	}
}

func TestServer_AnswerWithoutSession(t *testing.T) {
	server := testServer(t)

	body, _ := json.Marshal(map[string]string{"sdp": "v=0", "type": "answer"})
	req := httptest.NewRequest(http.MethodPost, "/api/answer", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	server.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusConflict {
		t.Errorf("expected 409 without active session, got %d", rec.Code)
	}
}

func TestServer_AnswerBadRequest(t *testing.T) {
	server := testServer(t)

	cases := []struct {
		name string
		body []byte
	}{
		{"invalid json", []byte(`{not json`)},
		{"missing sdp", []byte(`{"type":"answer"}`)},
	}

	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodPost, "/api/answer", bytes.NewReader(tc.body))
		rec := httptest.NewRecorder()
		server.Router().ServeHTTP(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %d", tc.name, rec.Code)
		}
	}
}

func TestServer_Status(t *testing.T) {
	server := testServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/status", nil)
	rec := httptest.NewRecorder()
	server.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var status map[string]interface{}
	if err := json.NewDecoder(rec.Body).Decode(&status); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	if _, ok := status["session"]; !ok {
		t.Error("expected session block in status")
	}
}

func TestServer_CORSHeaders(t *testing.T) {
	server := testServer(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/offer", nil)
	rec := httptest.NewRecorder()
	server.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected 200 for preflight, got %d", rec.Code)
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Errorf("missing CORS origin header")
	}
}
