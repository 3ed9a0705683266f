/*
DESCRIPTION
  device.go provides Source, a uniform callback interface around a
  capture backend that delivers HDMI-encoded video frames, plus the
  MultiError helper used to aggregate backend configuration errors.

AUTHORS
  Saxon A. Nelson-Milton <saxon@ausocean.org>
  MISRC Go port contributors

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

// Package device provides Source, the uniform frame-callback interface
// the pipeline coordinator drives regardless of which capture backend
// (vendor USB3/HDMI hardware or a generic OS video-capture API) is in
// use (spec.md §4.5).
package device

import "fmt"

// Frame is one video frame as delivered by a Source: a flat buffer of
// Width*Height 16-bit little-endian words, Width words per line
// (spec.md §6.1).
type Frame struct {
	Buf    []uint16
	Width  int
	Height int
}

// MessageLevel classifies a message a Source reports through its
// message callback.
type MessageLevel int

const (
	LevelDebug MessageLevel = iota
	LevelInfo
	LevelWarning
	LevelError
)

// Source is a capture backend that delivers a stream of video frames
// to a caller-supplied callback (spec.md §4.5, §6.1). Implementations:
// device/hsdaoh (vendor USB3/HDMI hardware) and device/v4l2 (generic
// OS video capture).
type Source interface {
	// Open opens the device identified by id: either a decimal index
	// (vendor backend) or "<impl>://<opaque>" (generic backend).
	Open(id string) error

	// SetFrameCallback registers the function called once per
	// delivered frame. Must be called before Start.
	SetFrameCallback(func(Frame))

	// SetMessageCallback registers the function called for
	// out-of-band diagnostic messages (spec.md §9 "message callback").
	SetMessageCallback(func(level MessageLevel, msg string))

	// Start begins delivering frames to the registered callback.
	Start() error

	// Stop halts frame delivery. Start may not be called again after
	// Stop; a fresh Source must be constructed.
	Stop() error

	// Close releases the device, idempotently.
	Close() error
}

// MultiError aggregates multiple validation errors, e.g. from a
// Source's option parsing.
type MultiError []error

func (me MultiError) Error() string {
	if len(me) == 0 {
		panic("device: invalid use of MultiError")
	}
	return fmt.Sprintf("%v", []error(me))
}
