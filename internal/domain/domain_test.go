package domain

import (
	"errors"
	"testing"
)

func TestSubsystems_FailingOrderIsStable(t *testing.T) {
	s := Subsystems{Camera: false, Microphone: true, Speaker: false, Network: true}
	got := s.Failing()
	if len(got) != 2 || got[0] != "camera" || got[1] != "speaker" {
		t.Fatalf("unexpected failing list: %v", got)
	}
}

func TestDedupeKey(t *testing.T) {
	k := DedupeKey("room-1", []string{"camera", "speaker"})
	if k != "room-1/camera+speaker" {
		t.Fatalf("unexpected key: %s", k)
	}
	if DedupeKey("room-1", nil) != "room-1/ok" {
		t.Fatalf("empty failing set should map to the ok key")
	}
}

func TestProbeError_RetryableAndOutcome(t *testing.T) {
	cases := []struct {
		kind      ProbeErrorKind
		retryable bool
		outcome   Outcome
	}{
		{ProbeUnreachable, true, OutcomeTransportError},
		{ProbeTimeout, true, OutcomeTimeout},
		{ProbeAuthFailure, false, OutcomeTransportError},
		{ProbeMalformedResponse, false, OutcomeTransportError},
	}
	for _, c := range cases {
		pe := &ProbeError{Kind: c.kind, Err: errors.New("boom")}
		if pe.Retryable() != c.retryable {
			t.Fatalf("%s: retryable = %v, want %v", c.kind, pe.Retryable(), c.retryable)
		}
		if pe.Outcome() != c.outcome {
			t.Fatalf("%s: outcome = %v, want %v", c.kind, pe.Outcome(), c.outcome)
		}
	}
}

func TestProbeError_ErrorsAs(t *testing.T) {
	var pe *ProbeError
	err := error(&ProbeError{Kind: ProbeTimeout})
	if !errors.As(err, &pe) || pe.Kind != ProbeTimeout {
		t.Fatalf("errors.As should unwrap ProbeError, got %v", err)
	}
}
