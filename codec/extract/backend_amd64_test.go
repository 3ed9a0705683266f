//go:build amd64

package extract

import "testing"

// TestFastMatchesPortable covers spec.md §8 property 1: whichever
// backend is active at runtime, results are bit-identical to the
// portable reference kernels. The fast path is a scalar unrolling of
// the same formula, not independent vector code, so this is a
// regression guard against the two drifting apart, not proof of
// independent agreement.
func TestFastMatchesPortable(t *testing.T) {
	in := []uint32{0x0000_0000, 0x0FFF_0FFF, 0x7FF4_47FF, 0xFFFF_FFFF, 0x1234_5678, 0x9ABC_DEF0}

	var clipFast, clipPortable [2]uint64
	var peakFast, peakPortable [2]uint16
	auxFast, auxPortable := make([]uint8, len(in)), make([]uint8, len(in))
	aFast, aPortable := make([]int16, len(in)), make([]int16, len(in))
	bFast, bPortable := make([]int16, len(in)), make([]int16, len(in))

	opts := Options{Channels: ChanBoth, Peak: true}
	extract16Portable(in, opts, &clipPortable, auxPortable, aPortable, bPortable, &peakPortable)
	fastExtract16(in, opts, &clipFast, auxFast, aFast, bFast, &peakFast)

	if clipFast != clipPortable {
		t.Fatalf("clip mismatch: fast=%v portable=%v", clipFast, clipPortable)
	}
	if peakFast != peakPortable {
		t.Fatalf("peak mismatch: fast=%v portable=%v", peakFast, peakPortable)
	}
	for i := range in {
		if auxFast[i] != auxPortable[i] || aFast[i] != aPortable[i] || bFast[i] != bPortable[i] {
			t.Fatalf("lane %d mismatch: aux %v/%v a %v/%v b %v/%v", i,
				auxFast[i], auxPortable[i], aFast[i], aPortable[i], bFast[i], bPortable[i])
		}
	}
}
