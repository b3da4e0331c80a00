package types

import "testing"

func TestRingBufferEvictsOldest(t *testing.T) {
	rb := NewRingBuffer[int](3)
	for i := 1; i <= 5; i++ {
		rb.Append(i)
	}
	got := rb.Snapshot()
	want := []int{3, 4, 5}
	if len(got) != len(want) {
		t.Fatalf("len = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Snapshot()[%d] = %d, want %d", i, got[i], want[i])
		}
	}
}

func TestRingBufferBelowCapacity(t *testing.T) {
	rb := NewRingBuffer[string](10)
	rb.Append("a")
	rb.Append("b")
	if rb.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", rb.Len())
	}
}

func TestSessionStateSetPlanAndPhase(t *testing.T) {
	s := NewSessionState(0)
	s.SetPlan("1. do the thing")
	if s.GetPlan() != "1. do the thing" {
		t.Fatalf("GetPlan() = %q", s.GetPlan())
	}
	if s.GetPhase() != PhasePlanning {
		t.Fatalf("GetPhase() = %q, want planning", s.GetPhase())
	}
	s.SetPhase(PhaseExecution)
	if s.GetPhase() != PhaseExecution {
		t.Fatalf("GetPhase() = %q, want execution", s.GetPhase())
	}
}
