package framing

import "testing"

// frameGen produces synthetic frames with a continuous idle counter,
// as real hardware would, so Decode's idle-continuity check passes
// across successive calls.
type frameGen struct {
	idle            uint16
	streamIDPresent bool
}

// buildFrame constructs a frame with no CRC, zero-length payload on
// every line, and an idle region filled with a counter continuing
// from the generator's last value. Line 0's first headerWords words
// are left for the metadata header instead of idle data.
func (g *frameGen) buildFrame(frameCounter uint16, width, height int) []uint16 {
	buf := make([]uint16, width*height)
	buf[0] = uint16(Magic)
	buf[1] = uint16(Magic >> 16)
	buf[2] = frameCounter
	if g.streamIDPresent {
		buf[3] = uint16(FlagStreamIDPresent)
	}
	trailerWords := 1
	if g.streamIDPresent {
		trailerWords = 2
	}
	for line := 0; line < height; line++ {
		row := buf[line*width : (line+1)*width]
		row[width-1] = 0 // payload_len = 0
		start := 0
		if line == 0 {
			start = headerWords
		}
		idleLen := width - start - trailerWords
		for i := 0; i < idleLen; i++ {
			g.idle++
			row[start+i] = g.idle
		}
	}
	return buf
}

func TestDuplicateFrameDropped(t *testing.T) {
	const w, h = 8, 4
	d := &Decoder{}
	var rfCalls int
	d.SetSinks(Sinks{RFWrite: func(p []byte) bool { rfCalls++; return true }})

	g := &frameGen{}
	buf := g.buildFrame(1234, w, h)
	f := Frame{Buf: buf, Width: w, Height: h}
	if err := d.Decode(f); err != nil {
		t.Fatalf("first decode: %v", err)
	}
	first := d.inOrderCnt

	// Same frame_counter again: spec.md §8 S3 — must be dropped, and
	// in_order_cnt must not advance.
	if err := d.Decode(f); err != nil {
		t.Fatalf("duplicate decode: %v", err)
	}
	if d.inOrderCnt != first {
		t.Fatalf("in_order_cnt advanced on a duplicate frame: %d -> %d", first, d.inOrderCnt)
	}
}

func TestSyncAcquisitionAndLoss(t *testing.T) {
	const w, h = 8, 4
	d := &Decoder{}
	g := &frameGen{}

	for i := uint16(0); i < 6; i++ {
		f := Frame{Buf: g.buildFrame(i, w, h), Width: w, Height: h}
		if err := d.Decode(f); err != nil {
			t.Fatalf("decode %d: %v", i, err)
		}
	}
	if !d.Synced() {
		t.Fatal("expected sync after 6 consecutive valid frames (in_order_cnt > 4)")
	}

	// A bad-magic frame must cause exactly one LostSync transition.
	bad := make([]uint16, w*h)
	if err := d.Decode(Frame{Buf: bad, Width: w, Height: h}); err != nil {
		t.Fatalf("bad-magic decode: %v", err)
	}
	if d.Synced() {
		t.Fatal("expected sync loss after bad-magic frame")
	}
}

func TestAudioGatingHandshake(t *testing.T) {
	const w, h = 8, 2
	d := &Decoder{}
	var audioBytes int
	d.SetSinks(Sinks{
		WantAudio:  true,
		RFWrite:    func(p []byte) bool { return true },
		AudioWrite: func(p []byte) bool { audioBytes += len(p); return true },
	})

	g := &frameGen{streamIDPresent: true}
	for i := uint16(0); i < 6; i++ {
		buf := g.buildFrame(i, w, h)
		if err := d.Decode(Frame{Buf: buf, Width: w, Height: h}); err != nil {
			t.Fatalf("decode %d: %v", i, err)
		}
	}
	if !d.Synced() {
		t.Fatal("expected sync")
	}
	if audioBytes != 0 {
		t.Fatalf("audio bytes copied before handshake completed: %d", audioBytes)
	}
}
