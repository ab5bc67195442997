package sched

import "testing"

func TestPolicyRoundTrip(t *testing.T) {
	for _, p := range Policies() {
		got, err := ParsePolicy(p.String())
		if err != nil {
			t.Fatalf("ParsePolicy(%q): %v", p.String(), err)
		}
		if got != p {
			t.Errorf("round trip %v -> %v", p, got)
		}
	}
	if _, err := ParsePolicy("median"); err == nil {
		t.Error("expected error for unknown policy")
	}
}

func TestPenaltyWeights(t *testing.T) {
	if w := PolicyMean.PenaltyWeight(); w != 0.05 {
		t.Errorf("mean penalty = %v, want 0.05", w)
	}
	if w := PolicyMax.PenaltyWeight(); w != 0.55 {
		t.Errorf("max penalty = %v, want 0.55", w)
	}
}
