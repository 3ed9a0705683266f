//go:build amd64

/*
NAME
  backend_amd64.go

DESCRIPTION
  backend_amd64.go provides the amd64 fast-path kernels, selected at
  startup when the running CPU has SSE4.1 (the baseline the original C
  SIMD kernels require). This is a scalar Go reimplementation of that
  C path's arithmetic; fastExtract16 is unrolled by four to cut branch
  and bounds-check overhead per iteration, fastExtract32 is a plain
  loop. It is not hand-written vector assembly, so
  "fast" here means "cheaper scalar loop on a CPU known to be recent
  enough to run the equivalent SIMD code in the original C sources",
  not literal SIMD. Because the unrolling is a mechanical transform of
  the same per-word formula as the portable kernels in extract.go,
  outputs are bit-identical to the portable path by construction
  (spec.md §8 property 1); the test in backend_amd64_test.go exists to
  catch the two paths drifting apart under future edits, not to prove
  independent implementations agree.

AUTHORS
  MISRC Go port contributors

LICENSE
  Copyright (C) 2024-2025 vrunk11, stefan_o and contributors.

  This program is free software: you can redistribute it and/or modify
  it under the terms of the GNU General Public License as published by
  the Free Software Foundation, either version 3 of the License, or
  (at your option) any later version.
*/

package extract

import "golang.org/x/sys/cpu"

func selectBackend() Backend {
	if cpu.X86.HasSSE41 {
		return BackendFast
	}
	return BackendPortable
}

func fastExtract16(in []uint32, opts Options, clip *[2]uint64, aux []uint8, outA, outB []int16, peak *[2]uint16) {
	if opts.Peak && peak != nil {
		peak[0], peak[1] = 0, 0
	}
	wantA := opts.Channels&ChanA != 0 && outA != nil
	wantB := opts.Channels&ChanB != 0 && outB != nil

	n := len(in)
	i := 0
	for ; i+4 <= n; i += 4 {
		fastExtract16Lane(in[i], opts, clip, aux, outA, outB, peak, i, wantA, wantB)
		fastExtract16Lane(in[i+1], opts, clip, aux, outA, outB, peak, i+1, wantA, wantB)
		fastExtract16Lane(in[i+2], opts, clip, aux, outA, outB, peak, i+2, wantA, wantB)
		fastExtract16Lane(in[i+3], opts, clip, aux, outA, outB, peak, i+3, wantA, wantB)
	}
	for ; i < n; i++ {
		fastExtract16Lane(in[i], opts, clip, aux, outA, outB, peak, i, wantA, wantB)
	}
}

func fastExtract16Lane(w uint32, opts Options, clip *[2]uint64, aux []uint8, outA, outB []int16, peak *[2]uint16, i int, wantA, wantB bool) {
	aRaw := w & 0xFFF
	bRaw := (w >> 20) & 0xFFF
	clip[0] += uint64((w >> 12) & 1)
	clip[1] += uint64((w >> 13) & 1)

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

func fastExtract32(in []uint32, opts Options, clip *[2]uint64, aux []uint8, outA, outB []int32, peak *[2]uint16) {
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
