/*
NAME
  convert.go

DESCRIPTION
  convert.go implements the fixed family of length-parametric,
  stride-1 sample format converters used ahead of resampling or FLAC
  encoding (spec.md §4.3): int16 -> int32 widening, and int16 -> int8
  / int16 -> int32 saturating reductions to 8-bit and 12-bit range.

AUTHORS
  MISRC Go port contributors

LICENSE
  Copyright (C) 2024-2025 vrunk11, stefan_o and contributors.

  This program is free software: you can redistribute it and/or modify
  it under the terms of the GNU General Public License as published by
  the Free Software Foundation, either version 3 of the License, or
  (at your option) any later version.
*/

// Package convert implements the format converters of spec.md §4.3:
// deterministic, total, length-parametric transformations between the
// sample widths produced by codec/extract and those required by the
// downstream writers.
package convert

// WidenInt32 performs the identity int16 -> int32 widening conversion.
// dst and src must be the same length.
func WidenInt32(dst []int32, src []int16) {
	for i, v := range src {
		dst[i] = int32(v)
	}
}

// SaturateInt8 converts int16 samples to int8, clamping to
// [-128, 127] (spec.md §4.3).
func SaturateInt8(dst []int8, src []int16) {
	for i, v := range src {
		dst[i] = int8(clamp32(int32(v), -128, 127))
	}
}

// SaturateInt32To8Range converts int16 samples to int32-typed values
// clamped to the 8-bit signed range [-128, 127] (spec.md §4.3): same
// saturation as SaturateInt8 but the output element type stays int32,
// used where a downstream sink wants 8-bit-range data in a wider
// container.
func SaturateInt32To8Range(dst []int32, src []int16) {
	for i, v := range src {
		dst[i] = clamp32(int32(v), -128, 127)
	}
}

// SaturateInt32To12Range converts int16 samples to int32-typed values
// clamped to the 12-bit signed range [-2048, 2047] (spec.md §4.3).
func SaturateInt32To12Range(dst []int32, src []int16) {
	for i, v := range src {
		dst[i] = clamp32(int32(v), -2048, 2047)
	}
}

func clamp32(v, lo, hi int32) int32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
