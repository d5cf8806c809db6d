package remote

import (
	"net"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func startTestListener(t *testing.T) *Listener {
	t.Helper()
	l := NewListener("127.0.0.1:0", zerolog.Nop())
	if err := l.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	t.Cleanup(func() { _ = l.Close() })
	return l
}

func waitForCount(t *testing.T, c *atomic.Int64, want int64, what string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if c.Load() == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s: got %d, want %d", what, c.Load(), want)
}

func TestListenerDispatchesCommand(t *testing.T) {
	l := startTestListener(t)

	var advanced atomic.Int64
	l.Register("AdvanceSong", func() { advanced.Add(1) })

	if err := Send(l.Addr(), "AdvanceSong"); err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	waitForCount(t, &advanced, 1, "command dispatch")
}

func TestListenerTrimsWhitespace(t *testing.T) {
	l := startTestListener(t)

	var advanced atomic.Int64
	l.Register("AdvanceSong", func() { advanced.Add(1) })

	if err := Send(l.Addr(), "  AdvanceSong\r\n"); err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	waitForCount(t, &advanced, 1, "trimmed command dispatch")
}

func TestListenerIgnoresUnknownCommand(t *testing.T) {
	l := startTestListener(t)

	var advanced atomic.Int64
	l.Register("AdvanceSong", func() { advanced.Add(1) })

	if err := Send(l.Addr(), "SelfDestruct"); err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	// The unknown command is dropped; the listener keeps serving.
	if err := Send(l.Addr(), "AdvanceSong"); err != nil {
		t.Fatalf("Send() after unknown command error = %v", err)
	}
	waitForCount(t, &advanced, 1, "dispatch after unknown command")
}

func TestListenerMatchIsExact(t *testing.T) {
	l := startTestListener(t)

	var advanced atomic.Int64
	l.Register("AdvanceSong", func() { advanced.Add(1) })

	if err := Send(l.Addr(), "advancesong"); err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if err := Send(l.Addr(), "AdvanceSong"); err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	waitForCount(t, &advanced, 1, "case-sensitive dispatch")
}

func TestListenerSurvivesHandlerPanic(t *testing.T) {
	l := startTestListener(t)

	var advanced atomic.Int64
	l.Register("Boom", func() { panic("handler exploded") })
	l.Register("AdvanceSong", func() { advanced.Add(1) })

	if err := Send(l.Addr(), "Boom"); err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if err := Send(l.Addr(), "AdvanceSong"); err != nil {
		t.Fatalf("Send() after panic error = %v", err)
	}
	waitForCount(t, &advanced, 1, "dispatch after handler panic")
}

func TestListenerEachConnectionCarriesOneCommand(t *testing.T) {
	l := startTestListener(t)

	var advanced atomic.Int64
	l.Register("AdvanceSong", func() { advanced.Add(1) })

	for i := 0; i < 3; i++ {
		if err := Send(l.Addr(), "AdvanceSong"); err != nil {
			t.Fatalf("Send() #%d error = %v", i, err)
		}
	}
	waitForCount(t, &advanced, 3, "three sequential commands")
}

func TestListenerCloseIsIdempotent(t *testing.T) {
	l := NewListener("127.0.0.1:0", zerolog.Nop())
	if err := l.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := l.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
	if err := l.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
	// The port is released.
	if _, err := net.Dial("tcp", l.Addr()); err == nil {
		t.Error("listener port still accepting after Close")
	}
}

func TestListenerDoubleStart(t *testing.T) {
	l := startTestListener(t)
	if err := l.Start(); err == nil {
		t.Error("second Start() error = nil, want already-started error")
	}
}

func TestSendConnectFailure(t *testing.T) {
	// Nothing listens here; Dial must fail rather than hang.
	if err := Send("127.0.0.1:1", "AdvanceSong"); err == nil {
		t.Error("Send() to a dead port returned nil error")
	}
}

func TestNewListenerDefaultBind(t *testing.T) {
	l := NewListener("", zerolog.Nop())
	if l.bind != DefaultBind {
		t.Errorf("bind = %q, want %q", l.bind, DefaultBind)
	}
}
