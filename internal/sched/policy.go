package sched

import "fmt"

// Policy selects how simultaneous interference contributions collapse into
// one effective error per channel. The policy is fixed per trained model,
// never switched per call.
type Policy int

const (
	// PolicyMean averages contributions weighted by channel attribution.
	PolicyMean Policy = iota
	// PolicyMax takes the dominant contribution, a worst-case assumption.
	PolicyMax
)

func (p Policy) String() string {
	switch p {
	case PolicyMean:
		return "mean"
	case PolicyMax:
		return "max"
	}
	return fmt.Sprintf("policy(%d)", int(p))
}

// PenaltyWeight returns the exclusion penalty coefficient paired with the
// policy. The max reducer's pessimistic error estimate needs a far larger
// penalty to avoid blacklisting everything.
func (p Policy) PenaltyWeight() float64 {
	if p == PolicyMax {
		return 0.55
	}
	return 0.05
}

func ParsePolicy(s string) (Policy, error) {
	switch s {
	case "mean":
		return PolicyMean, nil
	case "max":
		return PolicyMax, nil
	}
	return 0, fmt.Errorf("unknown reduction policy %q", s)
}

// Policies lists every policy, in training order.
func Policies() []Policy {
	return []Policy{PolicyMean, PolicyMax}
}
