/*
NAME
  flac.go

DESCRIPTION
  flac.go implements the FLAC RF writer: promotes extracted samples to
  int32, feeds libFLAC via codec/flacenc, and on shutdown finalizes
  the encoder and patches a legacy seektable quirk (spec.md §4.8).

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
	"runtime"
	"sync/atomic"
	"time"

	"github.com/ausocean/utils/logging"

	"github.com/stefan-olt/misrc-go/codec/flacenc"
	"github.com/stefan-olt/misrc-go/pipeline"
	"github.com/stefan-olt/misrc-go/ringbuffer"
)

// FlacBits resolves the FLAC bit depth, per spec.md §4.8: "bits ∈
// {8, 12, 16} derived from (reduce_8bit, flac_bits_option)".
func FlacBits(reduce8bit bool, option string) int {
	switch option {
	case "12":
		return 12
	case "16":
		return 16
	default: // "auto"
		if reduce8bit {
			return 8
		}
		return 16
	}
}

// FlacThreads computes the per-file thread count, per spec.md §4.8:
// "(cores-2-num_rf_outputs)/num_rf_outputs, clamped to [1,128]".
func FlacThreads(cores, numRFOutputs int) int {
	if numRFOutputs <= 0 {
		return 1
	}
	n := (cores - 2 - numRFOutputs) / numRFOutputs
	if n < 1 {
		return 1
	}
	if n > 128 {
		return 128
	}
	return n
}

// FlacWriter drains a channel's extracted-sample ring (out_size 4) and
// streams it to a libFLAC encoder.
type FlacWriter struct {
	Log  logging.Logger
	Ring *ringbuffer.Buffer

	SampleRate       int
	Bits             int
	CompressionLevel int
	Verify           bool
	Threads          int // 0 = auto; Run resolves it via FlacThreads
	NumRFOutputs     int

	// Path is the output file path; PatchLegacySeektable reopens it by
	// path after Finish to fix up the seektable (spec.md §8 S6).
	Path       string
	RealPoints int // seekpoints actually touched by real offsets so far

	enc     *flacenc.Encoder
	samples uint64 // samples fed to the encoder so far
	stop    atomic.Bool
}

// RequestStop asks Run to drain and exit at its next opportunity.
func (w *FlacWriter) RequestStop() { w.stop.Store(true) }

// Run streams samples from Ring into the FLAC encoder until
// RequestStop is called, then drains, finalizes, and patches the
// legacy seektable quirk.
func (w *FlacWriter) Run(sink interface {
	Write([]byte) (int, error)
	Close() error
}) error {
	threads := w.Threads
	if threads == 0 {
		threads = FlacThreads(runtime.NumCPU(), w.NumRFOutputs)
	}

	enc, err := flacenc.New(sink, flacenc.Options{
		SampleRate:       w.SampleRate,
		Bits:             w.Bits,
		CompressionLevel: w.CompressionLevel,
		Verify:           w.Verify,
		Threads:          threads,
	})
	if err != nil {
		return err
	}
	w.enc = enc
	defer w.enc.Close()

	chunkBytes := pipeline.ReadChunk * 4

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

	if n := w.Ring.Len(); n > 0 {
		if buf := w.Ring.ReadPtr(n); buf != nil {
			if err := w.process(buf); err != nil {
				return err
			}
			w.Ring.ReadFinished(n)
		}
	}

	if err := w.enc.Finish(); err != nil {
		return err
	}
	if err := sink.Close(); err != nil {
		return err
	}
	if w.Path != "" {
		return flacenc.PatchLegacySeektable(w.Path, w.RealPoints)
	}
	return nil
}

func (w *FlacWriter) process(raw []byte) error {
	n := len(raw) / 4
	samples := make([]int32, n)
	for i := 0; i < n; i++ {
		samples[i] = int32(uint32(raw[4*i]) | uint32(raw[4*i+1])<<8 |
			uint32(raw[4*i+2])<<16 | uint32(raw[4*i+3])<<24)
	}
	if err := w.enc.Process(samples); err != nil {
		return err
	}
	// Template points sit at multiples of SeekPointSpacing; each one
	// below the sample count has a real offset.
	w.samples += uint64(n)
	w.RealPoints = int((w.samples + flacenc.SeekPointSpacing - 1) / flacenc.SeekPointSpacing)
	return nil
}
