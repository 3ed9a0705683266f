/*
NAME
  framing.go

DESCRIPTION
  framing.go implements the per-video-frame HDMI framing/sync protocol
  decoder: magic check, frame-counter continuity, per-line trailer
  parsing, CRC-16 verification, idle-counter continuity checking, and
  the sync-acquisition/loss state machine.

AUTHORS
  MISRC Go port contributors

LICENSE
  Copyright (C) 2024-2025 vrunk11, stefan_o and contributors.

  This program is free software: you can redistribute it and/or modify
  it under the terms of the GNU General Public License as published by
  the Free Software Foundation, either version 3 of the License, or
  (at your option) any later version.
*/

// Package framing decodes the metadata envelope embedded by the
// capture hardware into each HDMI video frame: a per-frame counter and
// CRC configuration in the first line's header, and a per-line
// trailer carrying a payload length, an optional stream ID, and an
// optional CRC-16. Decode demultiplexes the frame's lines into an RF
// byte stream and an audio byte stream, while tracking synchronization
// state across frames.
package framing

import (
	"time"

	"github.com/ausocean/utils/logging"
	"github.com/snksoft/crc"
)

// backoffDelay is how long the decoder sleeps before retrying a frame
// whose RF or audio ring is full (spec.md §4.4 step 4, §5 "capture
// callback sleeps 4 ms when ring is full").
const backoffDelay = 4 * time.Millisecond

// Magic is the expected metadata-header magic value (HSDAOH_MAGIC);
// frames whose header does not begin with this value are treated as
// unsynchronized noise rather than valid frames.
const Magic uint32 = 0x4853_4441 // "HSDA"

// headerWords is the number of 16-bit words the metadata header
// occupies at the start of a frame's first line: magic (2 words),
// frame counter, flags/crc-config.
const headerWords = 4

// CRCConfig selects which of the trailer's CRC fields, if any, a line
// is expected to carry.
type CRCConfig uint8

const (
	CRCNone CRCConfig = iota
	CRC16OneLine
	CRC16TwoLine
)

// Flags carried by a frame's metadata header.
type Flags uint8

const (
	FlagStreamIDPresent Flags = 1 << iota
)

// Header is the per-frame metadata parsed from the first line.
type Header struct {
	Magic        uint32
	FrameCounter uint16
	Flags        Flags
	CRCConfig    CRCConfig
}

func (h Header) streamIDPresent() bool { return h.Flags&FlagStreamIDPresent != 0 }

// Sinks receives the demultiplexed byte streams a Decoder produces.
// RFWrite and AudioWrite must behave like ring buffer Put calls:
// returning false means the corresponding ring is full, at which point
// the decoder retries writing the frame's accumulated bytes every 4 ms
// until the sink accepts them (spec.md §4.4 step 4). A nil sink
// disables that stream.
type Sinks struct {
	// RFWrite copies p into the RF ring, returning false if there is
	// insufficient space.
	RFWrite func(p []byte) bool
	// AudioWrite copies p into the audio ring, returning false if there
	// is insufficient space.
	AudioWrite func(p []byte) bool
	// WantAudio reports whether the caller has requested audio capture
	// at all (independent of whether the handshake has completed); it
	// gates the RF stream_id==0 "audio not enabled OR audio_started"
	// condition of spec.md §4.4 step 5.
	WantAudio bool
}

// Decoder holds the per-capture state of the framing protocol state
// machine (spec.md §4.4, §3 "Per-capture counters"). The zero value is
// ready to use. A Decoder is not safe for concurrent use; it is driven
// exclusively by the capture callback thread.
type Decoder struct {
	Log logging.Logger

	sinks Sinks

	streamSynced     bool
	lastFrameCnt     uint16
	haveLastFrameCnt bool
	inOrderCnt       uint32
	nonsyncCnt       uint32
	lastCRC          [2]uint16
	idleCnt          uint16
	framesSinceError uint32
	audioStarted     bool
	audioStarted2    bool

	// CRCLegacyAudioFallback opts into the older, pre-spec behavior of
	// degrading to RF-only capture when audio is requested but the
	// stream carries no STREAM_ID_PRESENT flag, instead of treating it
	// as a critical error (spec.md §9 open question; DESIGN.md records
	// the default as critical failure).
	CRCLegacyAudioFallback bool
}

// SetSinks configures where Decode delivers demultiplexed RF and audio
// bytes. It must be called before the first call to Decode.
func (d *Decoder) SetSinks(s Sinks) { d.sinks = s }

// Synced reports whether the decoder currently considers the stream
// synchronized.
func (d *Decoder) Synced() bool { return d.streamSynced }

// Stats are the fields of Decoder's state useful to callers for
// reporting (spec.md §3 "Per-capture counters"); it is a snapshot, not
// a live view.
type Stats struct {
	Synced           bool
	NonsyncFrames    uint32
	FramesSinceError uint32
	InOrderCnt       uint32
}

// Stats returns a snapshot of the decoder's externally-relevant state.
func (d *Decoder) Stats() Stats {
	return Stats{
		Synced:           d.streamSynced,
		NonsyncFrames:    d.nonsyncCnt,
		FramesSinceError: d.framesSinceError,
		InOrderCnt:       d.inOrderCnt,
	}
}

// CriticalError is returned by Decode when the stream's configuration
// makes further capture pointless (spec.md §4.4 step 7, "emit
// CriticalCannotCaptureAudio and request shutdown").
type CriticalError struct{ msg string }

func (e *CriticalError) Error() string { return e.msg }

// ErrCannotCaptureAudio is returned when audio capture was requested
// but the stream's metadata never carries a stream ID, so RF and
// audio payloads cannot be told apart.
var ErrCannotCaptureAudio = &CriticalError{"framing: audio requested but stream carries no stream ID"}

// Frame is one video frame as delivered by a capture source adapter
// (spec.md §4.5, §6.1): a flat buffer of width*height 16-bit little-
// endian words, width words per line.
type Frame struct {
	Buf    []uint16
	Width  int
	Height int
}

// Decode processes one video frame, demultiplexing its lines into the
// sinks and updating the decoder's synchronization state. Decode
// returns a *CriticalError only when capture cannot usefully continue;
// all other conditions (lost sync, bad CRC, missed frames, ring
// back-pressure) are reported through Log and do not stop capture.
func (d *Decoder) Decode(f Frame) error {
	if len(f.Buf) < f.Width {
		return nil // degenerate frame; nothing to parse.
	}

	hdr, ok := parseHeader(f.Buf)
	if !ok {
		if d.streamSynced {
			if d.Log != nil {
				d.Log.Warning("lost sync: bad magic")
			}
		}
		d.streamSynced = false
		d.nonsyncCnt++
		d.maybeWarnNonsync()
		return nil
	}

	if d.haveLastFrameCnt && hdr.FrameCounter == d.lastFrameCnt {
		return nil // duplicate frame; drop without touching in_order_cnt.
	}

	expected := d.lastFrameCnt + 1
	if d.haveLastFrameCnt && hdr.FrameCounter != expected {
		d.inOrderCnt = 0
		if d.streamSynced && d.Log != nil {
			d.Log.Warning("frame missed", "expected", expected, "got", hdr.FrameCounter)
		}
	} else {
		d.inOrderCnt++
	}
	d.lastFrameCnt = hdr.FrameCounter
	d.haveLastFrameCnt = true

	frameErrors := 0
	rfBytes := 0
	audioBytes := 0
	rfBuf := make([]byte, 0, f.Width*2*f.Height)
	audioBuf := make([]byte, 0, f.Width*2*f.Height)

	crcPresent := hdr.CRCConfig != CRCNone
	streamIDPresent := hdr.streamIDPresent()

	for line := 0; line < f.Height; line++ {
		row := f.Buf[line*f.Width : (line+1)*f.Width]
		w := f.Width
		// Line 0 carries the metadata header in its first headerWords
		// words, ahead of its payload/idle region; every other line's
		// region starts at offset 0.
		start := 0
		if line == 0 {
			start = headerWords
		}
		payloadLen := int(row[w-1] & 0x0FFF)

		// Trailer words are packed backward from the end of the line:
		// payload_len always last, then crc16 if present, then
		// stream_id if present (spec.md §3 "[..., stream_id?, crc16?,
		// payload_len]").
		idx := w - 2
		var lineCRC uint16
		if crcPresent {
			lineCRC = row[idx]
			idx--
		}
		var streamID uint16
		if streamIDPresent {
			streamID = row[idx]
			idx--
		}
		trailerWords := (w - 1) - idx

		if payloadLen > w-1-start {
			if d.streamSynced {
				if d.Log != nil {
					d.Log.Warning("invalid payload length", "line", line, "len", payloadLen)
				}
				frameErrors++
				continue
			}
			d.nonsyncCnt++
			continue
		}

		idleLen := (w - start) - payloadLen - trailerWords
		if idleLen < 0 {
			idleLen = 0
		}
		if !d.checkIdle(row, start+payloadLen, idleLen) {
			frameErrors++
		}

		if crcPresent {
			expectCRC, haveExpect := d.expectedCRC(hdr.CRCConfig, line)
			if haveExpect && d.streamSynced && lineCRC != expectCRC {
				frameErrors++
			}
			d.lastCRC[0], d.lastCRC[1] = d.lastCRC[1], ccitt16(row)
		}

		if d.streamSynced && payloadLen > 0 {
			payload := row[start : start+payloadLen]
			switch {
			case streamID == 0:
				if !streamIDPresent || (!d.wantAudioFromSinks() || d.audioStarted) {
					rfBuf = append(rfBuf, u16leBytes(payload)...)
					rfBytes += payloadLen * 2
				}
			case streamID == 1:
				if d.audioStarted2 {
					audioBuf = append(audioBuf, u16leBytes(payload)...)
					audioBytes += payloadLen * 2
				} else if d.audioStarted {
					d.audioStarted2 = true
				} else {
					d.audioStarted = true
				}
			}
		}
	}

	if frameErrors > 0 && d.streamSynced {
		if d.Log != nil {
			d.Log.Warning("frame errors", "count", frameErrors, "frames_since_error", d.framesSinceError)
		}
		d.framesSinceError = 0
	} else {
		if rfBytes > 0 {
			d.emit(rfBuf)
		}
		if audioBytes > 0 {
			d.emit2(audioBuf)
		}
		d.framesSinceError++
	}

	if !d.streamSynced && frameErrors == 0 && d.inOrderCnt > 4 {
		d.streamSynced = true
		d.nonsyncCnt = 0
		if d.Log != nil {
			d.Log.Info("sync acquired", "use_crc", crcPresent, "use_stream_id", streamIDPresent)
		}
		if d.wantAudioFromSinks() && !streamIDPresent {
			if d.Log != nil {
				d.Log.Error("cannot capture audio: stream carries no stream ID")
			}
			if !d.CRCLegacyAudioFallback {
				return ErrCannotCaptureAudio
			}
			d.Log.Warning("degrading to RF-only capture (legacy audio fallback enabled)")
		}
	}

	return nil
}

func (d *Decoder) wantAudioFromSinks() bool {
	return d.sinks.WantAudio
}

func (d *Decoder) emit(rf []byte) {
	if d.sinks.RFWrite == nil {
		return
	}
	for !d.sinks.RFWrite(rf) {
		backoff()
	}
}

func (d *Decoder) emit2(audio []byte) {
	if d.sinks.AudioWrite == nil {
		return
	}
	for !d.sinks.AudioWrite(audio) {
		backoff()
	}
}

func (d *Decoder) maybeWarnNonsync() {
	if d.nonsyncCnt == 500 && d.Log != nil {
		d.Log.Warning("still not synchronized after 500 frames")
	}
}

func ccitt16(row []uint16) uint16 {
	b := u16leBytes(row)
	return uint16(crc.CalculateCRC(crc.CCITT, b))
}

func u16leBytes(row []uint16) []byte {
	out := make([]byte, len(row)*2)
	for i, w := range row {
		out[2*i] = byte(w)
		out[2*i+1] = byte(w >> 8)
	}
	return out
}

func parseHeader(buf []uint16) (Header, bool) {
	if len(buf) < 4 {
		return Header{}, false
	}
	magic := uint32(buf[0]) | uint32(buf[1])<<16
	if magic != Magic {
		return Header{}, false
	}
	return Header{
		Magic:        magic,
		FrameCounter: buf[2],
		Flags:        Flags(buf[3] & 0xFF),
		CRCConfig:    CRCConfig((buf[3] >> 8) & 0x03),
	}, true
}

// expectedCRC returns the CRC value a line's trailer is expected to
// carry given the configured CRC mode, and whether enough history has
// accumulated to check it yet.
func (d *Decoder) expectedCRC(cfg CRCConfig, line int) (uint16, bool) {
	switch cfg {
	case CRC16OneLine:
		if line < 1 {
			return 0, false
		}
		return d.lastCRC[1], true
	case CRC16TwoLine:
		if line < 2 {
			return 0, false
		}
		return d.lastCRC[0], true
	default:
		return 0, false
	}
}

// checkIdle verifies that the idle region of a line (the trailing
// words between the payload and the trailer that are neither payload
// nor trailer) contains a monotonically incrementing 16-bit counter
// continuing from idleCnt (spec.md §4.4 step 5, §9 open question on
// idle_cnt ownership: kept here as a per-Decoder field).
func (d *Decoder) checkIdle(row []uint16, idleStart, idleLen int) bool {
	ok := true
	for i := 0; i < idleLen; i++ {
		pos := idleStart + i
		if pos >= len(row) {
			break
		}
		want := d.idleCnt + 1
		if row[pos] != want {
			ok = false
		}
		d.idleCnt = row[pos]
	}
	return ok
}

func backoff() { time.Sleep(backoffDelay) }
