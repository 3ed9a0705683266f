/*
NAME
  raw.go

DESCRIPTION
  raw.go implements the direct-PCM RF writer: drains a channel's
  extracted-sample ring, optionally resamples and 8-bit-reduces, and
  writes the result to a sink (spec.md §4.7).

AUTHORS
  MISRC Go port contributors

LICENSE
  Copyright (C) 2024-2025 vrunk11, stefan_o and contributors.

  This program is free software: you can redistribute it and/or modify
  it under the terms of the GNU General Public License as published by
  the Free Software Foundation, either version 3 of the License, or
  (at your option) any later version.
*/

// Package writer implements the RF and audio sink writers that
// consume the coordinator's per-channel rings: direct PCM (raw.go),
// FLAC (flac.go), and audio demux+WAVE (audio.go) (spec.md §4.7-4.9).
package writer

import (
	"io"
	"math"
	"sync/atomic"
	"time"

	"github.com/ausocean/utils/logging"
	"github.com/zaf/resample"

	"github.com/stefan-olt/misrc-go/codec/convert"
	"github.com/stefan-olt/misrc-go/pipeline"
	"github.com/stefan-olt/misrc-go/ringbuffer"
)

// nativeRate is the RF sample clock resample input rates are relative
// to (spec.md §4.7: "input rate fixed at 40 000 Hz").
const nativeRate = 40000

// initScale returns the output-stream scale for the (out_size,
// reduce_8bit, pad) combination, per spec.md §4.7's table.
func initScale(outSize int, reduce8bit, pad bool) float64 {
	switch {
	case outSize == 2 && !reduce8bit:
		return 1.0
	case outSize == 2 && reduce8bit && !pad:
		return 0.0625
	case outSize == 2 && reduce8bit && pad:
		return 0.00390625
	case outSize == 4 && !reduce8bit:
		return 65536.0
	case outSize == 4 && reduce8bit && !pad:
		return 4096.0
	case outSize == 4 && reduce8bit && pad:
		return 256.0
	}
	return 1.0
}

// gainFactor converts a dB gain into a linear multiplier (spec.md
// §4.7: "gain_db is applied multiplicatively as 10^(gain/20)").
func gainFactor(gainDB float64) float64 {
	return math.Pow(10, gainDB/20)
}

// RawWriter drains Ring in ReadChunk-sample chunks, written by the
// coordinator at 2 bytes/sample, applying gain, optional resampling,
// and optional 8-bit reduction before writing to Sink.
type RawWriter struct {
	Log  logging.Logger
	Ring *ringbuffer.Buffer
	Sink io.WriteCloser

	Reduce8Bit      bool
	Pad             bool
	ResampleRate    int // Hz; 0 or nativeRate means disabled
	ResampleQuality resample.Quality
	GainDB          float64

	resampler     *resample.Resampler
	scratch       []int16
	resampScratch []int16
	narrow        []int8
	scale         float64
	stop          atomic.Bool
}

// rawWriterSink adapts w.writeMaybeNarrowed to the io.Writer the
// resampler streams its output to, so 8-bit reduction runs on the
// resampled samples instead of being bypassed by the resampler writing
// straight to Sink (spec.md §4.7: "the resampled buffer is
// saturatingly narrowed 16→8 before writing").
type rawWriterSink struct{ w *RawWriter }

func (s rawWriterSink) Write(p []byte) (int, error) {
	n := len(p) / 2
	if cap(s.w.resampScratch) < n {
		s.w.resampScratch = make([]int16, n)
	}
	samples := s.w.resampScratch[:n]
	for i := 0; i < n; i++ {
		samples[i] = int16(uint16(p[2*i]) | uint16(p[2*i+1])<<8)
	}
	if err := s.w.writeMaybeNarrowed(samples); err != nil {
		return 0, err
	}
	return len(p), nil
}

// resamplingEnabled reports whether a resample stage runs, per
// spec.md §4.7: "the value 40 000 itself is treated as disabled".
func (w *RawWriter) resamplingEnabled() bool {
	return w.ResampleRate != 0 && w.ResampleRate != nativeRate
}

// RequestStop asks Run to drain and exit at its next opportunity.
func (w *RawWriter) RequestStop() { w.stop.Store(true) }

// Run processes the ring until RequestStop is called, then drains the
// remaining tail exactly once before closing the resampler and sink
// (spec.md §4.7 "On shutdown").
func (w *RawWriter) Run() error {
	chunkBytes := pipeline.ReadChunk * 2
	w.scale = initScale(2, w.Reduce8Bit, w.Pad)

	if w.resamplingEnabled() {
		r, err := resample.New(rawWriterSink{w}, nativeRate, float64(w.ResampleRate), 1, resample.I16, w.ResampleQuality)
		if err != nil {
			return err
		}
		w.resampler = r
	}

	for !w.stop.Load() {
		buf := w.Ring.ReadPtr(chunkBytes)
		if buf == nil {
			time.Sleep(10 * time.Millisecond)
			continue
		}
		if err := w.process(buf); err != nil {
			return err
		}
		w.Ring.ReadFinished(chunkBytes)
	}

	// Drain the ring's tail exactly once.
	if n := w.Ring.Len(); n > 0 {
		if buf := w.Ring.ReadPtr(n); buf != nil {
			if err := w.process(buf); err != nil {
				return err
			}
			w.Ring.ReadFinished(n)
		}
	}

	if w.resampler != nil {
		if err := w.resampler.Close(); err != nil {
			return err
		}
	}
	return w.Sink.Close()
}

// process applies gain, optional resample, and optional 8-bit
// reduction to one chunk of int16 samples, writing the result.
func (w *RawWriter) process(raw []byte) error {
	n := len(raw) / 2
	if cap(w.scratch) < n {
		w.scratch = make([]int16, n)
	}
	samples := w.scratch[:n]
	gain := gainFactor(w.GainDB) * w.scale
	for i := 0; i < n; i++ {
		v := int16(uint16(raw[2*i]) | uint16(raw[2*i+1])<<8)
		samples[i] = scaleInt16(v, gain)
	}

	if w.resampler != nil {
		_, err := w.resampler.Write(int16ToBytes(samples))
		return err
	}
	return w.writeMaybeNarrowed(samples)
}

func (w *RawWriter) writeMaybeNarrowed(samples []int16) error {
	if !w.Reduce8Bit {
		_, err := w.Sink.Write(int16ToBytes(samples))
		return err
	}
	if cap(w.narrow) < len(samples) {
		w.narrow = make([]int8, len(samples))
	}
	n := w.narrow[:len(samples)]
	convert.SaturateInt8(n, samples)
	_, err := w.Sink.Write(int8ToBytes(n))
	return err
}

func scaleInt16(v int16, gain float64) int16 {
	if gain == 1 {
		return v
	}
	scaled := float64(v) * gain
	if scaled > math.MaxInt16 {
		return math.MaxInt16
	}
	if scaled < math.MinInt16 {
		return math.MinInt16
	}
	return int16(scaled)
}

func int16ToBytes(s []int16) []byte {
	b := make([]byte, len(s)*2)
	for i, v := range s {
		b[2*i] = byte(v)
		b[2*i+1] = byte(v >> 8)
	}
	return b
}

func int8ToBytes(s []int8) []byte {
	b := make([]byte, len(s))
	for i, v := range s {
		b[i] = byte(v)
	}
	return b
}
