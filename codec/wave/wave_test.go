package wave

import (
	"encoding/binary"
	"testing"
)

// TestFinalizeSmallRIFF covers spec.md §8 S5 literally.
func TestFinalizeSmallRIFF(t *testing.T) {
	const n = 10
	const groupBytes = n * 12 // 4-ch input frame group bytes
	const dataSize = n * 6    // 2-ch sink: 6 of 12 bytes per frame

	f := Format{Channels: 2, SampleRate: 78125, BitsPerSample: 24}
	h := Finalize(f, dataSize, groupBytes)

	if string(h[0:4]) != "RIFF" {
		t.Fatalf("chunk id = %q, want RIFF", h[0:4])
	}
	if got := binary.LittleEndian.Uint32(h[4:8]); got != 200 {
		t.Errorf("riff_size = %d, want 200", got)
	}
	if string(h[8:12]) != "WAVE" {
		t.Errorf("format = %q, want WAVE", h[8:12])
	}
	if string(h[12:16]) != "JUNK" {
		t.Errorf("block id = %q, want JUNK", h[12:16])
	}
	if got := binary.LittleEndian.Uint16(h[58:60]); got != 2 {
		t.Errorf("channel_count = %d, want 2", got)
	}
	if got := binary.LittleEndian.Uint32(h[60:64]); got != 78125 {
		t.Errorf("sample_rate = %d, want 78125", got)
	}
	if got := binary.LittleEndian.Uint32(h[64:68]); got != 468750 {
		t.Errorf("bytes_per_second = %d, want 468750", got)
	}
	if got := binary.LittleEndian.Uint16(h[68:70]); got != 6 {
		t.Errorf("block_align = %d, want 6", got)
	}
	if got := binary.LittleEndian.Uint16(h[70:72]); got != 24 {
		t.Errorf("bits_per_sample = %d, want 24", got)
	}
	if got := binary.LittleEndian.Uint32(h[78:82]); got != dataSize {
		t.Errorf("data_size = %d, want %d", got, dataSize)
	}
}

// TestFinalizeRF64Threshold covers spec.md §8 property 7's round trip
// and the RIFF/RF64 switchover.
func TestFinalizeRF64Threshold(t *testing.T) {
	f := Format{Channels: 4, SampleRate: 78125, BitsPerSample: 24}

	small := Finalize(f, 1200, 1200)
	if string(small[0:4]) != "RIFF" {
		t.Fatalf("small case: chunk id = %q, want RIFF", small[0:4])
	}

	const huge = uint64(1<<31) - 1 - 80 + 1 // one byte past the RIFF threshold
	big := Finalize(f, huge, huge)
	if string(big[0:4]) != "RF64" {
		t.Fatalf("huge case: chunk id = %q, want RF64", big[0:4])
	}
	if got := binary.LittleEndian.Uint32(big[4:8]); got != 0xFFFFFFFF {
		t.Errorf("RF64 riff_size = %#x, want 0xFFFFFFFF", got)
	}
	if got := binary.LittleEndian.Uint64(big[28:36]); got != huge {
		t.Errorf("data64_size = %d, want %d", got, huge)
	}
	if got := binary.LittleEndian.Uint32(big[78:82]); got != 0xFFFFFFFF {
		t.Errorf("data_size = %#x, want 0xFFFFFFFF", got)
	}
}

func TestPlaceholderIsZeroed(t *testing.T) {
	p := Placeholder()
	if len(p) != HeaderSize {
		t.Fatalf("len = %d, want %d", len(p), HeaderSize)
	}
	for i, b := range p {
		if b != 0 {
			t.Fatalf("byte %d = %#x, want 0", i, b)
		}
	}
}
