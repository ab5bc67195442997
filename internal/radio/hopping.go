package radio

// DefaultChannels is the IEEE 802.15.4 channel count in the 2.4 GHz band.
const DefaultChannels = 16

// hopSequence is the fixed pseudo-random channel ordering every node in the
// network shares. Links separate by channel offset, not by sequence.
var hopSequence = [DefaultChannels]int{0, 9, 4, 13, 2, 11, 6, 15, 1, 8, 5, 12, 3, 10, 7, 14}

// HopChannel returns the channel a link with the given offset uses at the
// given absolute slot.
func HopChannel(slot, offset, channels int) int {
	return hopSequence[(slot+offset)%DefaultChannels] % channels
}
