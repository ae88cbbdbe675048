package model

import "testing"

func TestTimerState_Clock(t *testing.T) {
	tests := []struct {
		seconds int
		want    string
	}{
		{0, "00:00:00"},
		{59, "00:00:59"},
		{60, "00:01:00"},
		{125, "00:02:05"},
		{3600, "01:00:00"},
		{3725, "01:02:05"},
		{36*3600 + 61, "36:01:01"},
	}
	for _, tt := range tests {
		s := TimerState{ElapsedSeconds: tt.seconds}
		if got := s.Clock(); got != tt.want {
			t.Errorf("Clock(%d) = %q, want %q", tt.seconds, got, tt.want)
		}
	}
}

func TestTimerState_HasIssue(t *testing.T) {
	if (TimerState{}).HasIssue() {
		t.Error("empty state claims an issue")
	}
	s := TimerState{ActiveIssue: &Issue{ID: 1}}
	if !s.HasIssue() {
		t.Error("state with issue reports none")
	}
}

func TestSeverity_String(t *testing.T) {
	if SeverityInfo.String() != "info" || SeverityWarning.String() != "warning" || SeverityError.String() != "error" {
		t.Errorf("unexpected severity names: %s/%s/%s", SeverityInfo, SeverityWarning, SeverityError)
	}
}
