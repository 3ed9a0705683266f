package writer

import "testing"

func TestFlacBits(t *testing.T) {
	cases := []struct {
		reduce8bit bool
		option     string
		want       int
	}{
		{false, "auto", 16},
		{true, "auto", 8},
		{false, "12", 12},
		{true, "12", 12},
		{false, "16", 16},
		{true, "16", 16},
	}
	for _, c := range cases {
		if got := FlacBits(c.reduce8bit, c.option); got != c.want {
			t.Errorf("FlacBits(%v, %q) = %d, want %d", c.reduce8bit, c.option, got, c.want)
		}
	}
}

func TestFlacThreads(t *testing.T) {
	cases := []struct {
		cores, numRFOutputs, want int
	}{
		{8, 1, 5},
		{8, 2, 2},
		{4, 2, 1},  // (4-2-2)/2 = 0, clamped to 1
		{2, 1, 1},  // negative numerator, clamped to 1
		{300, 1, 128}, // clamped to 128
		{8, 0, 1},
	}
	for _, c := range cases {
		if got := FlacThreads(c.cores, c.numRFOutputs); got != c.want {
			t.Errorf("FlacThreads(%d, %d) = %d, want %d", c.cores, c.numRFOutputs, got, c.want)
		}
	}
}

// TestFlacProcessUnpacksLittleEndianInt32 checks the 4-byte-per-sample
// unpacking expression FlacWriter.process uses ahead of the encoder.
// The expression is repeated here rather than calling process, which
// needs a live libFLAC encoder.
func TestFlacProcessUnpacksLittleEndianInt32(t *testing.T) {
	raw := []byte{0x01, 0x00, 0x00, 0x00, 0xFF, 0xFF, 0xFF, 0xFF} // {1, -1}
	n := len(raw) / 4
	samples := make([]int32, n)
	for i := 0; i < n; i++ {
		samples[i] = int32(uint32(raw[4*i]) | uint32(raw[4*i+1])<<8 |
			uint32(raw[4*i+2])<<16 | uint32(raw[4*i+3])<<24)
	}

	want := []int32{1, -1}
	for i := range want {
		if samples[i] != want[i] {
			t.Errorf("samples[%d] = %d, want %d", i, samples[i], want[i])
		}
	}
}
