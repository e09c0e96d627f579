package logic

// Bits is a sample of the three encoder channels. A bit is set when the
// channel is active, i.e. its pin reads low.
type Bits uint8

const (
	BitCLK Bits = 1 << 0 // primary channel
	BitDIR Bits = 1 << 1 // quadrature channel
	BitBTN Bits = 1 << 2 // push-button
)

// MakeBits composes a sample from raw pin levels (true = high). Channels are
// wired to pull-up inputs, so a low level is active.
func MakeBits(clkHigh, dirHigh, btnHigh bool) Bits {
	var b Bits
	if !clkHigh {
		b |= BitCLK
	}
	if !dirHigh {
		b |= BitDIR
	}
	if !btnHigh {
		b |= BitBTN
	}
	return b
}

func (b Bits) CLK() bool { return b&BitCLK != 0 }
func (b Bits) DIR() bool { return b&BitDIR != 0 }
func (b Bits) BTN() bool { return b&BitBTN != 0 }

// Decode judges the transition from prev to next.
//
// It returns the counter step (+1, -1 or 0) and whether the transition is a
// valid change. Identical samples and samples where CLK and DIR both flipped
// are not valid and never step the counter. A counter step only happens when
// CLK goes from inactive to active: +1 if DIR is active too, -1 otherwise.
// The button bit only counts as a change.
func Decode(prev, next Bits) (step int, valid bool) {
	if next == prev {
		return 0, false
	}
	if prev.CLK() != next.CLK() && prev.DIR() != next.DIR() {
		return 0, false
	}
	if !prev.CLK() && next.CLK() {
		if next.DIR() == next.CLK() {
			return 1, true
		}
		return -1, true
	}
	return 0, true
}
