//go:build integration

package integration

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/showctl/cueplay/internal/audio"
	"github.com/showctl/cueplay/internal/config"
	"github.com/showctl/cueplay/internal/controller"
	"github.com/showctl/cueplay/internal/eventbus"
	"github.com/showctl/cueplay/internal/events"
	"github.com/showctl/cueplay/internal/history"
	"github.com/showctl/cueplay/internal/logbuffer"
	"github.com/showctl/cueplay/internal/playlist"
	"github.com/showctl/cueplay/internal/remote"
	"github.com/showctl/cueplay/internal/server"
)

// stack is the serve command's wiring with a fake audio device and loopback
// listeners, so a whole show can run inside one test process.
type stack struct {
	ctrl     *controller.Controller
	backend  *audio.Mock
	bus      eventbus.Bus
	history  *history.Service
	listener *remote.Listener
	srv      *server.Server
}

func newStack(t *testing.T) *stack {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open test database: %v", err)
	}
	hist, err := history.NewService(db, zerolog.Nop())
	if err != nil {
		t.Fatalf("history service: %v", err)
	}

	backend := audio.NewMock()
	bus := eventbus.NewMemoryBus()
	tuning := audio.Tuning{
		NaturalFade:  audio.FadeTuning{Steps: 4, Duration: 120 * time.Millisecond},
		HaltFade:     audio.FadeTuning{Steps: 5, Duration: 100 * time.Millisecond},
		PollInterval: 5 * time.Millisecond,
	}

	ctrl := controller.New(backend, bus, hist, "", tuning, zerolog.Nop())

	listener := remote.NewListener("127.0.0.1:0", zerolog.Nop())
	ctrl.BindRemote(listener)
	if err := listener.Start(); err != nil {
		t.Fatalf("start listener: %v", err)
	}
	ctrl.SetListenAddr(listener.Addr())

	cfg := &config.Config{StatusBind: "127.0.0.1:0"}
	srv := server.New(cfg, ctrl, hist, logbuffer.New(50), zerolog.Nop())

	t.Cleanup(func() {
		_ = listener.Close()
		_ = ctrl.Close()
		_ = bus.Close()
	})

	return &stack{
		ctrl:     ctrl,
		backend:  backend,
		bus:      bus,
		history:  hist,
		listener: listener,
		srv:      srv,
	}
}

func waitFor(t *testing.T, ch events.Subscriber, what string) events.Payload {
	t.Helper()
	select {
	case p := <-ch:
		return p
	case <-time.After(3 * time.Second):
		t.Fatalf("timed out waiting for %s", what)
		return nil
	}
}

func TestShowRunsOverCommandSocket(t *testing.T) {
	s := newStack(t)

	started := s.bus.Subscribe(events.EventPlaybackStarted)
	finished := s.bus.Subscribe(events.EventSongFinished)
	completed := s.bus.Subscribe(events.EventPlaylistCompleted)

	s.ctrl.AddSong(playlist.NewSong("act1/opening.mp3", 0, 0.2))
	s.ctrl.AddSong(playlist.NewSong("act1/finale.mp3", 0, 0.2))

	// First cue from the show caller.
	if err := remote.Send(s.listener.Addr(), controller.CommandAdvanceSong); err != nil {
		t.Fatalf("send: %v", err)
	}
	p := waitFor(t, started, "first song start")
	if p["index"] != 0 {
		t.Fatalf("first start index = %v", p["index"])
	}
	waitFor(t, finished, "first song finish")

	// Between cues nothing plays until the caller advances again.
	if got := s.ctrl.Status().State; got != "stopped" {
		t.Fatalf("state between cues = %s, want stopped", got)
	}

	if err := remote.Send(s.listener.Addr(), controller.CommandAdvanceSong); err != nil {
		t.Fatalf("send: %v", err)
	}
	p = waitFor(t, started, "second song start")
	if p["index"] != 1 {
		t.Fatalf("second start index = %v", p["index"])
	}
	waitFor(t, finished, "second song finish")

	// Advancing past the end completes the show.
	if err := remote.Send(s.listener.Addr(), controller.CommandAdvanceSong); err != nil {
		t.Fatalf("send: %v", err)
	}
	waitFor(t, completed, "playlist completion")

	if loads := s.backend.LoadCalls(); len(loads) != 2 {
		t.Fatalf("device loads = %v", loads)
	}

	records, err := s.history.Recent(t.Context(), 10)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("history records = %d, want 2", len(records))
	}
	for _, rec := range records {
		if rec.Outcome != history.OutcomeFinished {
			t.Fatalf("outcome[%s] = %q, want finished", rec.FilePath, rec.Outcome)
		}
	}
}

func TestUnknownCommandIsIgnored(t *testing.T) {
	s := newStack(t)
	started := s.bus.Subscribe(events.EventPlaybackStarted)

	s.ctrl.AddSong(playlist.NewSong("a.mp3", 0, 10))

	if err := remote.Send(s.listener.Addr(), "NextSlide"); err != nil {
		t.Fatalf("send: %v", err)
	}

	select {
	case p := <-started:
		t.Fatalf("unexpected playback from unknown command: %v", p)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestStatusSurfaceDuringShow(t *testing.T) {
	s := newStack(t)
	started := s.bus.Subscribe(events.EventPlaybackStarted)

	s.ctrl.AddSong(playlist.NewSong("a.mp3", 0, 60))
	if err := remote.Send(s.listener.Addr(), controller.CommandAdvanceSong); err != nil {
		t.Fatalf("send: %v", err)
	}
	waitFor(t, started, "song start")

	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	rr := httptest.NewRecorder()
	s.srv.Router().ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}

	var body struct {
		State       string `json:"state"`
		Mode        string `json:"mode"`
		ListenAddr  string `json:"listen_addr"`
		CurrentSong struct {
			File string `json:"file"`
		} `json:"current_song"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	if body.State != "playing" || body.Mode != "full-song" {
		t.Fatalf("state/mode = %s/%s", body.State, body.Mode)
	}
	if body.ListenAddr != s.listener.Addr() {
		t.Fatalf("listen_addr = %s, want %s", body.ListenAddr, s.listener.Addr())
	}
	if body.CurrentSong.File != "a.mp3" {
		t.Fatalf("current song = %s", body.CurrentSong.File)
	}

	req = httptest.NewRequest(http.MethodGet, "/readyz", nil)
	rr = httptest.NewRecorder()
	s.srv.Router().ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("readyz during show = %d", rr.Code)
	}
}
