package internal

import (
	"testing"
	"time"
)

func TestGenerationParametersIsEmpty(t *testing.T) {
	var p GenerationParameters
	if !p.IsEmpty() {
		t.Error("zero-value params should be empty")
	}

	temp := 0.5
	p.Temperature = &temp
	if p.IsEmpty() {
		t.Error("params with temperature should not be empty")
	}

	p = GenerationParameters{OtherParams: map[string]interface{}{"seed": 1}}
	if p.IsEmpty() {
		t.Error("params with other_params should not be empty")
	}
}

func TestSessionTimes(t *testing.T) {
	s := &Session{StartTime: 1700000000, EndTime: 1700000100.5}

	if got := s.StartedAt().Unix(); got != 1700000000 {
		t.Errorf("StartedAt().Unix() = %d, want 1700000000", got)
	}
	if got := s.EndedAt().Sub(s.StartedAt()); got != 100500*time.Millisecond {
		t.Errorf("duration = %v, want 1m40.5s", got)
	}

	noEnd := &Session{StartTime: 1700000000}
	if !noEnd.EndedAt().IsZero() {
		t.Errorf("EndedAt() with no end time = %v, want zero", noEnd.EndedAt())
	}
}
