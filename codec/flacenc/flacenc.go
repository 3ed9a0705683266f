/*
NAME
  flacenc.go

DESCRIPTION
  flacenc.go binds libFLAC's FLAC__StreamEncoder for the RF FLAC
  writer: streaming int32 sample input, a seektable template installed
  before init, and finalize-time seektable sample-number patching for
  encoder versions that leave placeholder points at zero (spec.md
  §4.8, §6.2, §8 S6).

AUTHORS
  MISRC Go port contributors

LICENSE
  Copyright (C) 2024-2025 vrunk11, stefan_o and contributors.

  This program is free software: you can redistribute it and/or modify
  it under the terms of the GNU General Public License as published by
  the Free Software Foundation, either version 3 of the License, or
  (at your option) any later version.
*/

// Package flacenc implements the domain dependency home for FLAC: a
// cgo binding of libFLAC's streaming encoder, used by writer/flac.go
// to encode RF samples (spec.md §4.8).
package flacenc

/*
#cgo pkg-config: flac
#include <stdlib.h>
#include <FLAC/stream_encoder.h>
#include <FLAC/metadata.h>

extern FLAC__StreamEncoderWriteStatus
flacWriteCallback_cgo(const FLAC__StreamEncoder *encoder,
                       const FLAC__byte buffer[], size_t bytes,
                       unsigned samples, unsigned current_frame,
                       void *client_data);
*/
import "C"

import (
	"fmt"
	"io"
	"runtime/cgo"
	"unsafe"
)

// SeekPointSpacing is the sample interval between seektable template
// points (spec.md §4.8: "2^18-spaced points").
const SeekPointSpacing = 1 << 18

// SeekTableSpan is the sample range the template must cover (spec.md
// §4.8: "covering up to 2^41 samples").
const SeekTableSpan = 1 << 41

// legacyPlaceholder is written into unused template seekpoints by
// encoder versions that never advance their sample_number past its
// initial zero (spec.md §8 S6).
const legacyPlaceholder = ^uint64(0)

// Encoder wraps a libFLAC stream encoder configured for the RF
// writer's use: 1 channel, configurable bit depth, a seektable
// template, and optional multithreading.
type Encoder struct {
	enc    *C.FLAC__StreamEncoder
	handle cgo.Handle
	sink   io.Writer

	seekPoints int // not updated by Encoder; writer.FlacWriter counts real points as RealPoints
}

// Options configures a new Encoder (spec.md §4.8).
type Options struct {
	SampleRate        int
	Bits              int // 8, 12, or 16
	CompressionLevel  int // 0..8
	Verify            bool
	Threads           int // 0 disables multithreading
	TotalSamplesGuess uint64
}

// New allocates and configures a libFLAC stream encoder writing to
// sink, installing the seektable template before init as spec.md
// §4.8 requires.
func New(sink io.Writer, opts Options) (*Encoder, error) {
	enc := C.FLAC__stream_encoder_new()
	if enc == nil {
		return nil, fmt.Errorf("flacenc: FLAC__stream_encoder_new failed")
	}
	e := &Encoder{enc: enc, sink: sink}
	e.handle = cgo.NewHandle(e)

	if C.FLAC__stream_encoder_set_channels(enc, 1) == 0 ||
		C.FLAC__stream_encoder_set_bits_per_sample(enc, C.uint32_t(opts.Bits)) == 0 ||
		C.FLAC__stream_encoder_set_sample_rate(enc, C.uint32_t(opts.SampleRate)) == 0 ||
		C.FLAC__stream_encoder_set_compression_level(enc, C.uint32_t(opts.CompressionLevel)) == 0 {
		e.Close()
		return nil, fmt.Errorf("flacenc: configuring encoder failed")
	}
	if opts.Verify {
		C.FLAC__stream_encoder_set_verify(enc, 1)
	}
	if opts.TotalSamplesGuess > 0 {
		C.FLAC__stream_encoder_set_total_samples_estimate(enc, C.FLAC__uint64(opts.TotalSamplesGuess))
	}
	if opts.Threads > 0 {
		C.FLAC__stream_encoder_set_num_threads(enc, C.uint32_t(opts.Threads))
	}

	if err := e.installSeekTableTemplate(); err != nil {
		e.Close()
		return nil, err
	}

	writeCb := C.FLAC__StreamEncoderWriteCallback(unsafe.Pointer(C.flacWriteCallback_cgo))
	status := C.FLAC__stream_encoder_init_stream(enc, writeCb, nil, nil, nil, unsafe.Pointer(&e.handle))
	if status != C.FLAC__STREAM_ENCODER_INIT_STATUS_OK {
		e.Close()
		return nil, fmt.Errorf("flacenc: init_stream failed: status=%d", int(status))
	}
	return e, nil
}

// installSeekTableTemplate adds a SEEKTABLE metadata block spanning
// SeekTableSpan samples at SeekPointSpacing intervals (spec.md §4.8).
func (e *Encoder) installSeekTableTemplate() error {
	numPoints := C.uint32_t(SeekTableSpan / SeekPointSpacing)
	block := C.FLAC__metadata_object_new(C.FLAC__METADATA_TYPE_SEEKTABLE)
	if block == nil {
		return fmt.Errorf("flacenc: seektable allocation failed")
	}
	if C.FLAC__metadata_object_seektable_template_append_spaced_points(
		block, numPoints, C.FLAC__uint64(SeekTableSpan)) == 0 {
		C.FLAC__metadata_object_delete(block)
		return fmt.Errorf("flacenc: seektable_template_append_spaced_points failed")
	}

	metas := []*C.FLAC__StreamMetadata{block}
	if C.FLAC__stream_encoder_set_metadata(e.enc, &metas[0], 1) == 0 {
		C.FLAC__metadata_object_delete(block)
		return fmt.Errorf("flacenc: set_metadata failed")
	}
	return nil
}

// Process streams nframes interleaved int32 samples (1 channel, so
// len(samples) == nframes) through the encoder.
func (e *Encoder) Process(samples []int32) error {
	if len(samples) == 0 {
		return nil
	}
	ok := C.FLAC__stream_encoder_process_interleaved(
		e.enc,
		(*C.FLAC__int32)(unsafe.Pointer(&samples[0])),
		C.uint32_t(len(samples)),
	)
	if ok == 0 {
		return fmt.Errorf("flacenc: process_interleaved failed: state=%d",
			int(C.FLAC__stream_encoder_get_state(e.enc)))
	}
	return nil
}

// Finish finalizes the stream. Per spec.md §8 S6, legacy encoder
// builds leave the template's untouched trailing seekpoints'
// sample_number at 0 rather than the required "unused" sentinel;
// PatchLegacySeektable compensates for that when it is known to be
// needed.
func (e *Encoder) Finish() error {
	if C.FLAC__stream_encoder_finish(e.enc) == 0 {
		return fmt.Errorf("flacenc: finish failed")
	}
	return nil
}

// Close releases the encoder unconditionally; safe after Finish or
// instead of it on an error path.
func (e *Encoder) Close() {
	if e.enc != nil {
		C.FLAC__stream_encoder_delete(e.enc)
		e.enc = nil
	}
	if e.handle != 0 {
		e.handle.Delete()
		e.handle = 0
	}
}

// PatchLegacySeektable rewrites the encoded-file seektable block so
// that its trailing unused points (those with sample_number == 0
// beyond the first numReal real points) carry the spec-mandated
// "placeholder" sentinel, matching the literal scenario spec.md §8 S6
// ("points 3..99 must have sample_number = 0xFFFFFFFFFFFFFFFF").
//
// This operates on the already-written on-disk FLAC file via
// libFLAC's metadata-editing API, since the streaming encoder has no
// post-finalize hook into its own seektable buffer.
func PatchLegacySeektable(path string, numReal int) error {
	cpath := C.CString(path)
	defer C.free(unsafe.Pointer(cpath))

	chain := C.FLAC__metadata_chain_new()
	if chain == nil {
		return fmt.Errorf("flacenc: metadata_chain_new failed")
	}
	defer C.FLAC__metadata_chain_delete(chain)

	if C.FLAC__metadata_chain_read(chain, cpath) == 0 {
		return fmt.Errorf("flacenc: metadata_chain_read failed for %s", path)
	}

	it := C.FLAC__metadata_iterator_new()
	if it == nil {
		return fmt.Errorf("flacenc: metadata_iterator_new failed")
	}
	defer C.FLAC__metadata_iterator_delete(it)
	C.FLAC__metadata_iterator_init(it, chain)

	for {
		block := C.FLAC__metadata_iterator_get_block(it)
		if block != nil && block._type == C.FLAC__METADATA_TYPE_SEEKTABLE {
			patchSeekTableBlock(block, numReal)
			break
		}
		if C.FLAC__metadata_iterator_next(it) == 0 {
			break
		}
	}

	if C.FLAC__metadata_chain_write(chain, 1, 0) == 0 {
		return fmt.Errorf("flacenc: metadata_chain_write failed for %s", path)
	}
	return nil
}

func patchSeekTableBlock(block *C.FLAC__StreamMetadata, numReal int) {
	st := (*C.FLAC__StreamMetadata_SeekTable)(unsafe.Pointer(&block.data[0]))
	points := unsafe.Slice(st.points, int(st.num_points))
	for i := numReal; i < len(points); i++ {
		if uint64(points[i].sample_number) == 0 {
			points[i].sample_number = C.FLAC__uint64(legacyPlaceholder)
		}
	}
}

//export flacWriteCallback
func flacWriteCallback(encoder *C.FLAC__StreamEncoder, buffer *C.FLAC__byte, bytes C.size_t, samples, currentFrame C.uint32_t, clientData unsafe.Pointer) C.FLAC__StreamEncoderWriteStatus {
	h := *(*cgo.Handle)(clientData)
	e, ok := h.Value().(*Encoder)
	if !ok || e.sink == nil {
		return C.FLAC__STREAM_ENCODER_WRITE_STATUS_FATAL_ERROR
	}
	b := C.GoBytes(unsafe.Pointer(buffer), C.int(bytes))
	if _, err := e.sink.Write(b); err != nil {
		return C.FLAC__STREAM_ENCODER_WRITE_STATUS_FATAL_ERROR
	}
	return C.FLAC__STREAM_ENCODER_WRITE_STATUS_OK
}
