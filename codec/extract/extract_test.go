package extract

import "testing"

// TestExtract16BothChannels covers spec.md §8 scenario S1.
func TestExtract16BothChannels(t *testing.T) {
	in := []uint32{0x0000_0000, 0x0FFF_0FFF, 0x7FF4_47FF, 0xFFFF_FFFF}
	// outA = 2047 - (word & 0xFFF): 0 -> 2047, 0xFFF -> -2048, 0x7FF -> 0, 0xFFF -> -2048.
	wantA := []int16{2047, -2048, 0, -2048}
	// outB = 2047 - ((word >> 20) & 0xFFF): 0 -> 2047, 0x0FF -> 1792, 0x7FF -> 0, 0xFFF -> -2048.
	wantB := []int16{2047, 1792, 0, -2048}

	var clip [2]uint64
	outA := make([]int16, len(in))
	outB := make([]int16, len(in))
	Extract16(in, Options{Channels: ChanBoth}, &clip, nil, outA, outB, nil)

	for i := range wantA {
		if outA[i] != wantA[i] {
			t.Errorf("outA[%d] = %d, want %d", i, outA[i], wantA[i])
		}
		if outB[i] != wantB[i] {
			t.Errorf("outB[%d] = %d, want %d", i, outB[i], wantB[i])
		}
	}
}

// TestExtract16PadShift covers spec.md §8 scenario S2: a padded
// extraction of a single sample shifts the 12-bit result into the
// high bits of a 16-bit word.
func TestExtract16PadShift(t *testing.T) {
	in := []uint32{0x0000_0001}
	var clip [2]uint64
	outA := make([]int16, 1)
	Extract16(in, Options{Channels: ChanA, Pad: true}, &clip, nil, outA, nil, nil)

	want := int16((2047 - 1) << 4)
	if outA[0] != want {
		t.Fatalf("outA[0] = %d, want %d", outA[0], want)
	}
}

func TestExtract16ClipCounting(t *testing.T) {
	// bit 12 set (clip A) on word 0, bit 13 set (clip B) on word 1.
	in := []uint32{1 << 12, 1 << 13}
	var clip [2]uint64
	Extract16(in, Options{}, &clip, nil, nil, nil, nil)
	if clip[0] != 1 {
		t.Errorf("clip[0] = %d, want 1", clip[0])
	}
	if clip[1] != 1 {
		t.Errorf("clip[1] = %d, want 1", clip[1])
	}
}

func TestExtract16Aux(t *testing.T) {
	in := []uint32{0xABCD_1234}
	aux := make([]uint8, 1)
	var clip [2]uint64
	Extract16(in, Options{}, &clip, aux, nil, nil, nil)
	want := uint8((in[0] >> 12) & 0xFF)
	if aux[0] != want {
		t.Fatalf("aux[0] = %#x, want %#x", aux[0], want)
	}
}

func TestExtract16Peak(t *testing.T) {
	in := []uint32{0x0000_0000, 0x0000_0001}
	var clip [2]uint64
	var peak [2]uint16
	outA := make([]int16, len(in))
	Extract16(in, Options{Channels: ChanA, Peak: true}, &clip, nil, outA, nil, &peak)
	if peak[0] != 2047 {
		t.Fatalf("peak[0] = %d, want 2047", peak[0])
	}
	// peak must reset across calls, not accumulate.
	in2 := []uint32{0x0000_0FFF} // raw=0xFFF -> -2048
	outA2 := make([]int16, 1)
	Extract16(in2, Options{Channels: ChanA, Peak: true}, &clip, nil, outA2, nil, &peak)
	if peak[0] != 2048 {
		t.Fatalf("peak[0] after second call = %d, want 2048 (must not carry over first call's 2047)", peak[0])
	}
}

func TestExtract32Widening(t *testing.T) {
	in := []uint32{0x0000_0000}
	var clip [2]uint64
	outA := make([]int32, 1)
	Extract32(in, Options{Channels: ChanA}, &clip, nil, outA, nil, nil)
	if outA[0] != 2047 {
		t.Fatalf("outA[0] = %d, want 2047", outA[0])
	}
}

func TestExtractAuxOnlyAuxAndClip(t *testing.T) {
	in := []uint32{0xFFFF_FFFF}
	aux := make([]uint8, 1)
	var clip [2]uint64
	ExtractAuxOnly(in, &clip, aux)
	if aux[0] != 0xFF {
		t.Fatalf("aux[0] = %#x, want 0xff", aux[0])
	}
	if clip[0] != 1 || clip[1] != 1 {
		t.Fatalf("clip = %v, want [1 1]", clip)
	}
}

func TestExtractSingle(t *testing.T) {
	in := []uint16{0x0000, 0x1FFF}
	outA := make([]int16, len(in))
	var clip uint64
	ExtractSingle(in, false, false, &clip, nil, outA, nil)
	if outA[0] != 2047 || outA[1] != -2048 {
		t.Fatalf("outA = %v, want [2047 -2048]", outA)
	}
	if clip != 1 {
		t.Fatalf("clip = %d, want 1 (bit 12 set in second word)", clip)
	}
}

