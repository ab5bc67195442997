package radio

import "fmt"

// Slot-level radio constants: counts per delivered packet, slot currents in
// amperes, slot durations in seconds, supply voltage in volts.
const (
	edSlots = 3
	rxSlots = 7
	txSlots = 1

	edCurrentA = 5e-3
	rxCurrentA = 5e-3
	txCurrentA = 10e-3

	edDurationS = 128e-6
	txDurationS = 3.2e-3

	supplyVolts = 3.3
)

// EnergyModel estimates per-packet energy spend. EDEnabled adds the energy
// detection probes that the adaptive and masked schedules pay for; the
// blind baseline does not.
type EnergyModel struct {
	EDEnabled bool
}

// PerPacketMicrojoules returns the expected energy to deliver one packet
// given the packet reception ratio. Retransmissions scale the radio terms
// by 1/prr.
func (m EnergyModel) PerPacketMicrojoules(prr float64) (float64, error) {
	if prr <= 0 || prr > 1 {
		return 0, fmt.Errorf("packet reception ratio %v outside (0, 1]", prr)
	}
	ed := 0.0
	if m.EDEnabled {
		ed = edCurrentA * edSlots * edDurationS
	}
	radio := (rxCurrentA*rxSlots*txDurationS + txCurrentA*txSlots*txDurationS) / prr
	return (ed + radio) * supplyVolts * 1e6, nil
}
