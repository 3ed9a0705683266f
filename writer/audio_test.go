package writer

import (
	"bytes"
	"io"
	"testing"
)

// seekBuffer adapts a bytes.Buffer into the Sink interface (Write,
// Seek, Close) for tests, without touching the real filesystem.
type seekBuffer struct {
	data []byte
	pos  int
}

func (s *seekBuffer) Write(p []byte) (int, error) {
	end := s.pos + len(p)
	if end > len(s.data) {
		grown := make([]byte, end)
		copy(grown, s.data)
		s.data = grown
	}
	n := copy(s.data[s.pos:end], p)
	s.pos = end
	return n, nil
}

func (s *seekBuffer) Seek(offset int64, whence int) (int64, error) {
	if whence != io.SeekStart {
		panic("seekBuffer: only SeekStart supported")
	}
	s.pos = int(offset)
	return offset, nil
}

func (s *seekBuffer) Close() error { return nil }

func TestAudioWriterSink4RoundTrip(t *testing.T) {
	sink := &seekBuffer{}
	w := &AudioWriter{Sinks: []AudioSink{NewSink4(sink)}}
	if err := w.Open(); err != nil {
		t.Fatalf("Open: %v", err)
	}

	frame := []byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12}
	if err := w.demux(frame); err != nil {
		t.Fatalf("demux: %v", err)
	}
	if err := w.finalizeAll(); err != nil {
		t.Fatalf("finalizeAll: %v", err)
	}

	if len(sink.data) != 88+12 {
		t.Fatalf("file size = %d, want %d", len(sink.data), 88+12)
	}
	if !bytes.Equal(sink.data[88:], frame) {
		t.Errorf("payload = %v, want %v", sink.data[88:], frame)
	}
}

func TestAudioWriterDemuxSplitsChannelPairs(t *testing.T) {
	sinkA := &seekBuffer{}
	sinkB := &seekBuffer{}
	w := &AudioWriter{Sinks: []AudioSink{NewSinkPair(sinkA, 0), NewSinkPair(sinkB, 1)}}
	if err := w.Open(); err != nil {
		t.Fatalf("Open: %v", err)
	}

	frame := []byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12}
	if err := w.demux(frame); err != nil {
		t.Fatalf("demux: %v", err)
	}
	if err := w.finalizeAll(); err != nil {
		t.Fatalf("finalizeAll: %v", err)
	}

	wantA := frame[0:6]
	wantB := frame[6:12]
	if !bytes.Equal(sinkA.data[88:], wantA) {
		t.Errorf("pair 0 payload = %v, want %v", sinkA.data[88:], wantA)
	}
	if !bytes.Equal(sinkB.data[88:], wantB) {
		t.Errorf("pair 1 payload = %v, want %v", sinkB.data[88:], wantB)
	}
}

// TestAudioWriterGroupBytesIndependentOfSinkWidth covers spec.md §8
// S5: the RIFF size field derives from the full 4-ch group, not the
// narrower per-sink payload, even for a 1-ch sink.
func TestAudioWriterGroupBytesIndependentOfSinkWidth(t *testing.T) {
	sink := &seekBuffer{}
	w := &AudioWriter{Sinks: []AudioSink{NewSink1(sink, 0)}}
	if err := w.Open(); err != nil {
		t.Fatalf("Open: %v", err)
	}

	const n = 10
	frame := make([]byte, n*audioFrameBytes)
	if err := w.demux(frame); err != nil {
		t.Fatalf("demux: %v", err)
	}
	if w.groupBytes != n*audioFrameBytes {
		t.Fatalf("groupBytes = %d, want %d", w.groupBytes, n*audioFrameBytes)
	}
	if w.written[0] != n*3 {
		t.Fatalf("written[0] = %d, want %d", w.written[0], n*3)
	}
}
