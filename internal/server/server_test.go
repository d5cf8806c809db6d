package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/showctl/cueplay/internal/audio"
	"github.com/showctl/cueplay/internal/config"
	"github.com/showctl/cueplay/internal/controller"
	"github.com/showctl/cueplay/internal/eventbus"
	"github.com/showctl/cueplay/internal/logbuffer"
	"github.com/showctl/cueplay/internal/playlist"
)

func newTestServer(t *testing.T) (*Server, *controller.Controller) {
	t.Helper()

	ctrl := controller.New(audio.NewMock(), eventbus.NewMemoryBus(), nil, "", audio.Tuning{
		NaturalFade:  audio.FadeTuning{Steps: 4, Duration: 200 * time.Millisecond},
		HaltFade:     audio.FadeTuning{Steps: 5, Duration: 100 * time.Millisecond},
		PollInterval: 5 * time.Millisecond,
	}, zerolog.Nop())
	t.Cleanup(func() { _ = ctrl.Close() })

	buf := logbuffer.New(50)
	buf.Add(logbuffer.LogEntry{
		Timestamp: time.Now(),
		Level:     "info",
		Message:   "engine ready",
		Component: "controller",
	})
	buf.Add(logbuffer.LogEntry{
		Timestamp: time.Now(),
		Level:     "error",
		Message:   "load failed",
		Component: "audio",
	})

	cfg := &config.Config{StatusBind: "127.0.0.1:0"}
	srv := New(cfg, ctrl, nil, buf, zerolog.Nop())
	return srv, ctrl
}

func getJSON(t *testing.T, h http.Handler, path string, wantStatus int) map[string]any {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if rr.Code != wantStatus {
		t.Fatalf("GET %s = %d, want %d (body %s)", path, rr.Code, wantStatus, rr.Body.String())
	}
	if ct := rr.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("GET %s Content-Type = %q", path, ct)
	}
	var body map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("GET %s: decode body: %v", path, err)
	}
	return body
}

func TestHealthzReportsVersion(t *testing.T) {
	srv, _ := newTestServer(t)

	body := getJSON(t, srv.Router(), "/healthz", http.StatusOK)
	if body["status"] != "ok" {
		t.Fatalf("status = %v, want ok", body["status"])
	}
	if body["version"] == "" || body["version"] == nil {
		t.Fatal("expected a version string")
	}
}

func TestReadyzFollowsCommandSocket(t *testing.T) {
	srv, ctrl := newTestServer(t)

	body := getJSON(t, srv.Router(), "/readyz", http.StatusServiceUnavailable)
	if body["ready"] != false {
		t.Fatalf("ready = %v, want false before the socket binds", body["ready"])
	}

	ctrl.SetListenAddr("127.0.0.1:5556")
	body = getJSON(t, srv.Router(), "/readyz", http.StatusOK)
	if body["ready"] != true {
		t.Fatalf("ready = %v, want true", body["ready"])
	}
	if body["command_addr"] != "127.0.0.1:5556" {
		t.Fatalf("command_addr = %v", body["command_addr"])
	}
}

func TestStatusServesControllerSnapshot(t *testing.T) {
	srv, ctrl := newTestServer(t)
	ctrl.AddSong(playlist.NewSong("opener.mp3", 0, 90))
	if err := ctrl.PlayFrom(0); err != nil {
		t.Fatalf("play: %v", err)
	}

	body := getJSON(t, srv.Router(), "/status", http.StatusOK)
	if body["state"] != "playing" {
		t.Fatalf("state = %v, want playing", body["state"])
	}
	if body["mode"] != "full-song" {
		t.Fatalf("mode = %v, want full-song", body["mode"])
	}
	song, ok := body["current_song"].(map[string]any)
	if !ok || song["file"] != "opener.mp3" {
		t.Fatalf("current_song = %v", body["current_song"])
	}
}

func TestLogsEndpointFilters(t *testing.T) {
	srv, _ := newTestServer(t)

	body := getJSON(t, srv.Router(), "/logs", http.StatusOK)
	if body["count"] != float64(2) {
		t.Fatalf("count = %v, want 2", body["count"])
	}

	body = getJSON(t, srv.Router(), "/logs?level=error", http.StatusOK)
	if body["count"] != float64(1) {
		t.Fatalf("error count = %v, want 1", body["count"])
	}

	req := httptest.NewRequest(http.MethodGet, "/logs?limit=bogus", nil)
	rr := httptest.NewRecorder()
	srv.Router().ServeHTTP(rr, req)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("bogus limit = %d, want 400", rr.Code)
	}
}

func TestHistoryRouteAbsentWhenDisabled(t *testing.T) {
	srv, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/history", nil)
	rr := httptest.NewRecorder()
	srv.Router().ServeHTTP(rr, req)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("history without service = %d, want 404", rr.Code)
	}
}

func TestMetricsEndpointServes(t *testing.T) {
	srv, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rr := httptest.NewRecorder()
	srv.Router().ServeHTTP(rr, req)
	if rr.Code != http.StatusOK || rr.Body.Len() == 0 {
		t.Fatalf("metrics = %d with %d bytes", rr.Code, rr.Body.Len())
	}
}
