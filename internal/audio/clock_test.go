package audio

import (
	"math"
	"testing"
	"time"
)

func TestSessionPosition(t *testing.T) {
	started := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	now := started.Add(2500 * time.Millisecond)

	tests := []struct {
		name string
		sess *session
		want float64
	}{
		{
			name: "nil session",
			sess: nil,
			want: 0,
		},
		{
			name: "playing from the file start",
			sess: &session{status: StatusPlaying, startedAt: started},
			want: 2.5,
		},
		{
			name: "playing from a cue offset",
			sess: &session{status: StatusPlaying, startedAt: started, accumulatedOffset: 10},
			want: 12.5,
		},
		{
			name: "halting keeps advancing",
			sess: &session{status: StatusHalting, startedAt: started, accumulatedOffset: 3},
			want: 5.5,
		},
		{
			name: "paused holds the captured offset",
			sess: &session{status: StatusPaused, pausedOffset: 7.25, hasPausedOffset: true},
			want: 7.25,
		},
		{
			name: "paused at offset zero still reads zero, not elapsed",
			sess: &session{status: StatusPaused, startedAt: started, hasPausedOffset: true},
			want: 0,
		},
		{
			name: "paused without a captured offset",
			sess: &session{status: StatusPaused, startedAt: started},
			want: 0,
		},
		{
			name: "stopped",
			sess: &session{status: StatusStopped, startedAt: started, accumulatedOffset: 42},
			want: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := sessionPosition(tt.sess, now)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("sessionPosition() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSessionPositionResumeContinuity(t *testing.T) {
	started := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	s := &session{status: StatusPlaying, startedAt: started, accumulatedOffset: 5}
	atPause := sessionPosition(s, started.Add(2*time.Second))
	if atPause != 7 {
		t.Fatalf("position before pause = %v, want 7", atPause)
	}

	// Pause, then resume one minute later. The gap must not count.
	s.status = StatusPaused
	s.pausedOffset = atPause
	s.hasPausedOffset = true

	resumedAt := started.Add(62 * time.Second)
	s.status = StatusPlaying
	s.accumulatedOffset = s.pausedOffset
	s.startedAt = resumedAt
	s.hasPausedOffset = false

	got := sessionPosition(s, resumedAt.Add(3*time.Second))
	if got != 10 {
		t.Errorf("position after resume = %v, want 10", got)
	}
}
