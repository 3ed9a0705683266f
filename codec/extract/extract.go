/*
NAME
  extract.go

DESCRIPTION
  extract.go contains the bit-exact sample extraction kernels that turn
  a run of packed 32-bit (or, for the single-channel variant, 16-bit)
  input words into signed PCM sample streams plus an 8-bit auxiliary
  stream, while tallying per-channel clip counts and peak levels.

AUTHORS
  MISRC Go port contributors

LICENSE
  Copyright (C) 2024-2025 vrunk11, stefan_o and contributors.

  This program is free software: you can redistribute it and/or modify
  it under the terms of the GNU General Public License as published by
  the Free Software Foundation, either version 3 of the License, or
  (at your option) any later version.
*/

// Package extract implements the packed-word sample extraction kernels
// described in spec.md §4.2: conversion of 32-bit packed ADC words (or
// 16-bit single-channel words) into one or two signed PCM streams plus
// an 8-bit aux stream, with clip counting and optional peak tracking.
//
// Every kernel here is total: there is no input for which a kernel
// returns an error, matching spec.md §4.2's "Failure modes: none".
package extract

// Channels selects which ADC channel(s) a kernel extracts.
type Channels uint8

// Channel selection bits; Both is the common case. Aux is always
// extracted regardless of Channels and is not itself a bit here.
const (
	ChanA    Channels = 1 << 0
	ChanB    Channels = 1 << 1
	ChanBoth          = ChanA | ChanB
)

// Options configures a 32-bit-packed-word kernel invocation.
type Options struct {
	Channels Channels
	Pad      bool // shift the 12-bit result into the high 12 bits of the output word.
	Peak     bool // track peak |sample| per channel for this call.
}

// rawADC recovers the signed 12-bit ADC sample from its raw 12-bit
// unsigned field per spec.md §3: 2047 - raw, with raw=0 -> +2047,
// raw=2048 -> -1, raw=4095 -> -2048.
func rawADC(raw uint32) int32 {
	return 2047 - int32(raw)
}

func applyPad(v int32, pad bool) int32 {
	if pad {
		return v << 4
	}
	return v
}

func absInt32(v int32) uint16 {
	if v < 0 {
		v = -v
	}
	return uint16(v)
}

// Extract16 implements the 16-bit-output kernel for a run of packed
// 32-bit words, per spec.md §4.2's "Semantics (normal, both channels,
// 16-bit)" and its pad/channel-selection variants. outA/outB/aux/peak
// may be nil when not requested by opts; clip must not be nil.
//
// outA, outB and aux, when non-nil, must have length >= len(in).
func Extract16(in []uint32, opts Options, clip *[2]uint64, aux []uint8, outA, outB []int16, peak *[2]uint16) {
	if active == BackendFast {
		fastExtract16(in, opts, clip, aux, outA, outB, peak)
		return
	}
	extract16Portable(in, opts, clip, aux, outA, outB, peak)
}

func extract16Portable(in []uint32, opts Options, clip *[2]uint64, aux []uint8, outA, outB []int16, peak *[2]uint16) {
	if opts.Peak && peak != nil {
		peak[0], peak[1] = 0, 0
	}
	wantA := opts.Channels&ChanA != 0 && outA != nil
	wantB := opts.Channels&ChanB != 0 && outB != nil

	for i, w := range in {
		aRaw := w & 0xFFF
		bRaw := (w >> 20) & 0xFFF
		clipA := (w >> 12) & 1
		clipB := (w >> 13) & 1
		clip[0] += uint64(clipA)
		clip[1] += uint64(clipB)

		if aux != nil {
			aux[i] = uint8((w >> 12) & 0xFF)
		}

		if wantA {
			v := applyPad(rawADC(aRaw), opts.Pad)
			outA[i] = int16(v)
			if opts.Peak && peak != nil {
				if a := absInt32(v); a > peak[0] {
					peak[0] = a
				}
			}
		}
		if wantB {
			v := applyPad(rawADC(bRaw), opts.Pad)
			outB[i] = int16(v)
			if opts.Peak && peak != nil {
				if a := absInt32(v); a > peak[1] {
					peak[1] = a
				}
			}
		}
	}
}

// Extract32 is Extract16's 32-bit-output counterpart, used ahead of
// the FLAC/resampler writers which require int32 samples (spec.md
// §4.2 "Output width"). Values stay within the same numeric range as
// Extract16; they are simply widened, not rescaled.
func Extract32(in []uint32, opts Options, clip *[2]uint64, aux []uint8, outA, outB []int32, peak *[2]uint16) {
	if active == BackendFast {
		fastExtract32(in, opts, clip, aux, outA, outB, peak)
		return
	}
	extract32Portable(in, opts, clip, aux, outA, outB, peak)
}

func extract32Portable(in []uint32, opts Options, clip *[2]uint64, aux []uint8, outA, outB []int32, peak *[2]uint16) {
	if opts.Peak && peak != nil {
		peak[0], peak[1] = 0, 0
	}
	wantA := opts.Channels&ChanA != 0 && outA != nil
	wantB := opts.Channels&ChanB != 0 && outB != nil

	for i, w := range in {
		aRaw := w & 0xFFF
		bRaw := (w >> 20) & 0xFFF
		clip[0] += uint64((w >> 12) & 1)
		clip[1] += uint64((w >> 13) & 1)

		if aux != nil {
			aux[i] = uint8((w >> 12) & 0xFF)
		}

		if wantA {
			v := applyPad(rawADC(aRaw), opts.Pad)
			outA[i] = v
			if opts.Peak && peak != nil {
				if a := absInt32(v); a > peak[0] {
					peak[0] = a
				}
			}
		}
		if wantB {
			v := applyPad(rawADC(bRaw), opts.Pad)
			outB[i] = v
			if opts.Peak && peak != nil {
				if a := absInt32(v); a > peak[1] {
					peak[1] = a
				}
			}
		}
	}
}

// ExtractAuxOnly extracts only the aux stream from a run of packed
// 32-bit words, still tallying clip counts (spec.md §4.2 "aux only").
func ExtractAuxOnly(in []uint32, clip *[2]uint64, aux []uint8) {
	for i, w := range in {
		clip[0] += uint64((w >> 12) & 1)
		clip[1] += uint64((w >> 13) & 1)
		aux[i] = uint8((w >> 12) & 0xFF)
	}
}

// ExtractSingle implements the single-channel (16-bit input word)
// variant used only by the `extract` CLI command (spec.md §9's open
// question: the capture pipeline never enables this mode). Layout per
// spec.md §3: ADC-A in bits[0..11], clip-A in bit 12, aux in
// bits[12..15].
func ExtractSingle(in []uint16, pad bool, trackPeak bool, clip *uint64, aux []uint8, outA []int16, peak *uint16) {
	if trackPeak && peak != nil {
		*peak = 0
	}
	for i, w := range in {
		aRaw := uint32(w & 0xFFF)
		clipA := (w >> 12) & 1
		*clip += uint64(clipA)
		if aux != nil {
			aux[i] = uint8((w >> 12) & 0x0F)
		}
		if outA != nil {
			v := applyPad(rawADC(aRaw), pad)
			outA[i] = int16(v)
			if trackPeak && peak != nil {
				if a := absInt32(v); a > *peak {
					*peak = a
				}
			}
		}
	}
}
