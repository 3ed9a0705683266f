/*
NAME
  audio.go

DESCRIPTION
  audio.go implements the audio demux+WAVE writer: splits the 12-byte
  4-channel x 24-bit audio ring into the configured 4-ch/2-ch/1-ch
  sinks, each finalized as an 88-byte RIFF/RF64 WAVE file (spec.md
  §4.9).

AUTHORS
  MISRC Go port contributors

LICENSE
  Copyright (C) 2024-2025 vrunk11, stefan_o and contributors.

  This program is free software: you can redistribute it and/or modify
  it under the terms of the GNU General Public License as published by
  the Free Software Foundation, either version 3 of the License, or
  (at your option) any later version.
*/

package writer

import (
	"io"
	"sync/atomic"
	"time"

	"github.com/ausocean/utils/logging"

	"github.com/stefan-olt/misrc-go/codec/wave"
	"github.com/stefan-olt/misrc-go/ringbuffer"
)

// audioSampleRate is the fixed audio sink sample rate (spec.md §4.9).
const audioSampleRate = 78125

// audioFrameBytes is the size of one 4-channel x 24-bit input frame.
const audioFrameBytes = 12

// audioReadFrames is the number of 12-byte input frames processed per
// AudioWriter iteration.
const audioReadFrames = 4096

// Sink is a seekable file-like destination: Finalize rewinds it to
// overwrite the placeholder header once the real size is known.
type Sink interface {
	io.Writer
	io.Seeker
	io.Closer
}

// AudioSink demuxes one fixed byte range out of every 12-byte input
// frame into File: {0,12} for the 4-ch sink, {0,6} or {6,6} for a
// 2-ch pair, {0,3}/{3,3}/{6,3}/{9,3} for a 1-ch sink (spec.md §4.9).
type AudioSink struct {
	File       Sink
	ByteOffset int
	ByteLen    int // 12, 6, or 3
	Channels   uint16
}

// AudioWriter drains Ring, demuxing each 12-byte frame into every
// configured Sinks entry.
type AudioWriter struct {
	Log   logging.Logger
	Ring  *ringbuffer.Buffer
	Sinks []AudioSink

	written    []uint64 // per-sink bytes written, parallel to Sinks
	groupBytes uint64   // total 4-ch input bytes processed
	stop       atomic.Bool
}

// RequestStop asks Run to drain and exit at its next opportunity.
func (w *AudioWriter) RequestStop() { w.stop.Store(true) }

// Open writes the zero-filled placeholder header to every sink
// (spec.md §4.9 "writes a zero-filled 88-byte header placeholder at
// open").
func (w *AudioWriter) Open() error {
	w.written = make([]uint64, len(w.Sinks))
	ph := wave.Placeholder()
	for _, s := range w.Sinks {
		if _, err := s.File.Write(ph); err != nil {
			return err
		}
	}
	return nil
}

// Run processes the ring until RequestStop is called, draining the
// remaining tail exactly once, then finalizes every sink's header.
func (w *AudioWriter) Run() error {
	chunkBytes := audioReadFrames * audioFrameBytes

	for !w.stop.Load() {
		buf := w.Ring.ReadPtr(chunkBytes)
		if buf == nil {
			time.Sleep(10 * time.Millisecond)
			continue
		}
		if err := w.demux(buf); err != nil {
			return err
		}
		w.Ring.ReadFinished(chunkBytes)
	}

	if n := w.Ring.Len(); n > 0 {
		n -= n % audioFrameBytes
		if n > 0 {
			if buf := w.Ring.ReadPtr(n); buf != nil {
				if err := w.demux(buf); err != nil {
					return err
				}
				w.Ring.ReadFinished(n)
			}
		}
	}

	return w.finalizeAll()
}

// demux writes the relevant byte range of every 12-byte frame in buf
// to each configured sink.
func (w *AudioWriter) demux(buf []byte) error {
	nFrames := len(buf) / audioFrameBytes
	for i, s := range w.Sinks {
		for f := 0; f < nFrames; f++ {
			frame := buf[f*audioFrameBytes : (f+1)*audioFrameBytes]
			region := frame[s.ByteOffset : s.ByteOffset+s.ByteLen]
			n, err := s.File.Write(region)
			if err != nil {
				return err
			}
			w.written[i] += uint64(n)
		}
	}
	w.groupBytes += uint64(nFrames * audioFrameBytes)
	return nil
}

func (w *AudioWriter) finalizeAll() error {
	for i, s := range w.Sinks {
		f := wave.Format{Channels: s.Channels, SampleRate: audioSampleRate, BitsPerSample: 24}
		hdr := wave.Finalize(f, w.written[i], w.groupBytes)
		if _, err := s.File.Seek(0, io.SeekStart); err != nil {
			return err
		}
		if _, err := s.File.Write(hdr); err != nil {
			return err
		}
		if err := s.File.Close(); err != nil {
			return err
		}
	}
	return nil
}

// NewSink4 builds the single verbatim 4-channel sink.
func NewSink4(f Sink) AudioSink {
	return AudioSink{File: f, ByteOffset: 0, ByteLen: 12, Channels: 4}
}

// NewSinkPair builds a 2-channel sink for pair 0 (channels 1-2, bytes
// 0..6) or pair 1 (channels 3-4, bytes 6..12).
func NewSinkPair(f Sink, pair int) AudioSink {
	return AudioSink{File: f, ByteOffset: pair * 6, ByteLen: 6, Channels: 2}
}

// NewSink1 builds a 1-channel sink for channel index 0..3.
func NewSink1(f Sink, channel int) AudioSink {
	return AudioSink{File: f, ByteOffset: channel * 3, ByteLen: 3, Channels: 1}
}
