/*
NAME
  pipeline.go

DESCRIPTION
  pipeline.go implements the coordinator goroutine: it drains the raw
  RF ring the framing decoder feeds, runs the extraction kernel chosen
  at startup, and republishes per-channel samples to the RF writers'
  rings (spec.md §4.6).

AUTHORS
  MISRC Go port contributors

LICENSE
  Copyright (C) 2024-2025 vrunk11, stefan_o and contributors.

  This program is free software: you can redistribute it and/or modify
  it under the terms of the GNU General Public License as published by
  the Free Software Foundation, either version 3 of the License, or
  (at your option) any later version.
*/

// Package pipeline implements the coordinator that sits between the
// framing decoder and the RF writers: it owns the raw-RF ring, applies
// the sample-extraction kernel, and feeds the per-channel output rings
// the writer goroutines consume (spec.md §4.6).
package pipeline

import (
	"io"
	"sync/atomic"
	"time"
	"unsafe"

	"github.com/ausocean/utils/logging"

	"github.com/stefan-olt/misrc-go/codec/extract"
	"github.com/stefan-olt/misrc-go/ringbuffer"
)

// ReadChunk is the number of packed input samples processed per
// coordinator iteration: a fixed power of two, chosen so ring
// capacities hold several chunks (spec.md §4.6).
const ReadChunk = 1 << 21 // ~2 Mi samples

// Stats is the per-iteration snapshot handed to a StatsFunc (spec.md
// §8 property 8: total_samples is strictly increasing between calls).
type Stats struct {
	TotalSamples uint64
	Clip         [2]uint64
	Peak         [2]uint16
}

// StatsFunc receives a Stats snapshot after each coordinator
// iteration. Implementations must not retain or mutate it.
type StatsFunc func(Stats)

// Channel describes one extracted-RF output ring and its output
// sample width (out_size: 2 for direct PCM, 4 ahead of FLAC).
type Channel struct {
	Ring       *ringbuffer.Buffer
	OutSize    int // 2 or 4 bytes per sample
	SuppressClip bool
}

// Coordinator runs the extraction loop described in spec.md §4.6.
type Coordinator struct {
	Log   logging.Logger
	RFRing *ringbuffer.Buffer // raw packed 32-bit words, fed by the framing decoder

	ChanA, ChanB *Channel // nil if that output is disabled

	Opts extract.Options // Channels/Pad/Peak, fixed for the run

	RawSink io.Writer // optional: full packed-word dump
	AuxSink io.Writer // optional: aux-byte dump

	Stats StatsFunc

	// Target is the sample-count budget; 0 means unbounded.
	Target uint64

	stop atomic.Bool
}

// RequestStop asks the coordinator loop to exit at its next
// opportunity (spec.md §5 "process-wide stop flag").
func (c *Coordinator) RequestStop() { c.stop.Store(true) }

// Run drains the raw RF ring until RequestStop is called or the
// sample target is reached, applying the extraction kernel on every
// iteration. Run returns when the loop exits; it does not close any
// ring.
func (c *Coordinator) Run() {
	var total uint64
	var clip [2]uint64
	var peak [2]uint16

	auxBuf := make([]uint8, ReadChunk)
	scratchA := make([]int32, ReadChunk)
	scratchB := make([]int32, ReadChunk)

	for !c.stop.Load() {
		raw := c.RFRing.ReadPtr(ReadChunk * 4)
		if raw == nil {
			time.Sleep(10 * time.Millisecond)
			continue
		}

		var wA, wB []byte
		if c.ChanA != nil {
			wA = c.ChanA.Ring.WritePtr(ReadChunk * c.ChanA.OutSize)
		}
		if c.ChanB != nil {
			wB = c.ChanB.Ring.WritePtr(ReadChunk * c.ChanB.OutSize)
		}
		if (c.ChanA != nil && wA == nil) || (c.ChanB != nil && wB == nil) {
			time.Sleep(10 * time.Millisecond)
			continue
		}

		words := wordsFromBytes(raw)
		c.runKernel(words, wA, wB, &clip, &peak, auxBuf, scratchA, scratchB)

		if c.RawSink != nil {
			c.RawSink.Write(raw)
		}
		c.RFRing.ReadFinished(ReadChunk * 4)

		if c.AuxSink != nil {
			c.AuxSink.Write(auxBuf)
		}
		if c.ChanA != nil {
			c.ChanA.Ring.WriteFinished(ReadChunk * c.ChanA.OutSize)
		}
		if c.ChanB != nil {
			c.ChanB.Ring.WriteFinished(ReadChunk * c.ChanB.OutSize)
		}

		total += ReadChunk
		if c.Stats != nil {
			c.Stats(Stats{TotalSamples: total, Clip: clip, Peak: peak})
		}
		if c.Target > 0 && total >= c.Target {
			c.stop.Store(true)
		}
	}
}

// runKernel dispatches to the 16-bit or 32-bit extraction kernel
// depending on each enabled channel's out_size; the two channels may
// have different widths (e.g. one feeding FLAC at 4 bytes/sample, the
// other direct PCM at 2). When both enabled channels share a width,
// the matching kernel writes straight into the output rings; when
// widths differ, Extract32 decodes both into scratch buffers once
// (clip/peak must only be tallied once per word) and the 2-byte
// channel is narrowed afterward — safe because Extract32 widens
// without rescaling.
func (c *Coordinator) runKernel(words []uint32, wA, wB []byte, clip *[2]uint64, peak *[2]uint16, aux []uint8, scratchA, scratchB []int32) {
	size16 := c.ChanA == nil || c.ChanA.OutSize == 2
	size32 := c.ChanA == nil || c.ChanA.OutSize == 4
	if c.ChanB != nil {
		size16 = size16 && c.ChanB.OutSize == 2
		size32 = size32 && c.ChanB.OutSize == 4
	}

	var auxOut []uint8 = aux
	if c.AuxSink == nil {
		auxOut = nil
	}

	if size16 {
		outA := int16Slice(wA)
		outB := int16Slice(wB)
		extract.Extract16(words, c.Opts, clip, auxOut, outA, outB, peak)
		return
	}
	if size32 {
		outA := int32Slice(wA)
		outB := int32Slice(wB)
		extract.Extract32(words, c.Opts, clip, auxOut, outA, outB, peak)
		return
	}

	n := len(words)
	sA, sB := scratchA[:n], scratchB[:n]
	if c.ChanA == nil {
		sA = nil
	}
	if c.ChanB == nil {
		sB = nil
	}
	extract.Extract32(words, c.Opts, clip, auxOut, sA, sB, peak)
	narrowInto(wA, sA, c.ChanA)
	narrowInto(wB, sB, c.ChanB)
}

// narrowInto copies decoded samples into ch's output ring buffer at
// its configured width, truncating int32 to int16 when ch.OutSize==2.
func narrowInto(dst []byte, src []int32, ch *Channel) {
	if ch == nil {
		return
	}
	if ch.OutSize == 4 {
		copy(int32Slice(dst), src)
		return
	}
	out := int16Slice(dst)
	for i, v := range src {
		out[i] = int16(v)
	}
}

func wordsFromBytes(b []byte) []uint32 {
	if len(b) == 0 {
		return nil
	}
	return unsafe.Slice((*uint32)(unsafe.Pointer(&b[0])), len(b)/4)
}

func int16Slice(b []byte) []int16 {
	if len(b) == 0 {
		return nil
	}
	return unsafe.Slice((*int16)(unsafe.Pointer(&b[0])), len(b)/2)
}

func int32Slice(b []byte) []int32 {
	if len(b) == 0 {
		return nil
	}
	return unsafe.Slice((*int32)(unsafe.Pointer(&b[0])), len(b)/4)
}
