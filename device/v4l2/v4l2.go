/*
NAME
  v4l2.go

DESCRIPTION
  v4l2.go implements device.Source over a generic Video4Linux2 capture
  device: open the device path it is given, request YUYV 1920x1080 at
  40 fps, and deliver frames bit-identically to the vendor backend
  (spec.md §4.5 "Generic OS capture"). It does not enumerate devices;
  the caller names the device.

AUTHORS
  MISRC Go port contributors

LICENSE
  Copyright (C) 2024-2025 vrunk11, stefan_o and contributors.

  This program is free software: you can redistribute it and/or modify
  it under the terms of the GNU General Public License as published by
  the Free Software Foundation, either version 3 of the License, or
  (at your option) any later version.
*/

// Package v4l2 implements device.Source against a generic
// Video4Linux2 capture device using github.com/vladimirvivien/go4vl,
// for hosts without the vendor USB3/HDMI hardware.
package v4l2

import (
	"context"
	"fmt"
	"strings"
	"sync"

	v4l2device "github.com/vladimirvivien/go4vl/device"
	"github.com/vladimirvivien/go4vl/v4l2"

	"github.com/stefan-olt/misrc-go/device"
)

const (
	wantWidth  = 1920
	wantHeight = 1080
	minFPS     = 40
)

// Source implements device.Source over a go4vl-backed V4L2 device.
type Source struct {
	mu      sync.Mutex
	dev     *v4l2device.Device
	cancel  context.CancelFunc
	frameCb func(device.Frame)
	msgCb   func(device.MessageLevel, string)
}

// New constructs an unopened V4L2 source.
func New() (*Source, error) { return &Source{}, nil }

// Open opens the device identified by "v4l2://<path>", e.g.
// "v4l2:///dev/video0" (spec.md §4.5 device identifier format).
func (s *Source) Open(id string) error {
	const prefix = "v4l2://"
	if !strings.HasPrefix(id, prefix) {
		return fmt.Errorf("v4l2: device id %q must have the %q prefix", id, prefix)
	}
	path := strings.TrimPrefix(id, prefix)

	dev, err := v4l2device.Open(path,
		v4l2device.WithPixFormat(v4l2.PixFormat{
			Width:       wantWidth,
			Height:      wantHeight,
			PixelFormat: v4l2.PixelFmtYUYV,
			Field:       v4l2.FieldNone,
		}),
		v4l2device.WithFPS(minFPS),
		v4l2device.WithBufferSize(4),
	)
	if err != nil {
		return fmt.Errorf("v4l2: open %q: %w", path, err)
	}

	s.mu.Lock()
	s.dev = dev
	s.mu.Unlock()
	return nil
}

// SetFrameCallback registers the per-frame callback.
func (s *Source) SetFrameCallback(cb func(device.Frame)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frameCb = cb
}

// SetMessageCallback registers the diagnostic message callback.
func (s *Source) SetMessageCallback(cb func(device.MessageLevel, string)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.msgCb = cb
}

// Start begins streaming frames from the device, converting each
// delivered YUYV buffer into the packed-16-bit-word Frame shape the
// framing decoder expects (each YUYV byte pair is already a 16-bit
// little-endian word, matching the vendor backend's wire format).
func (s *Source) Start() error {
	s.mu.Lock()
	dev := s.dev
	s.mu.Unlock()
	if dev == nil {
		return fmt.Errorf("v4l2: device not open")
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.mu.Lock()
	s.cancel = cancel
	s.mu.Unlock()

	if err := dev.Start(ctx); err != nil {
		cancel()
		return fmt.Errorf("v4l2: start: %w", err)
	}

	go func() {
		for frame := range dev.GetOutput() {
			s.mu.Lock()
			cb := s.frameCb
			s.mu.Unlock()
			if cb == nil || len(frame)%2 != 0 {
				continue
			}
			n := len(frame) / 2
			words := make([]uint16, n)
			for i := 0; i < n; i++ {
				words[i] = uint16(frame[2*i]) | uint16(frame[2*i+1])<<8
			}
			cb(device.Frame{Buf: words, Width: wantWidth, Height: len(words) / wantWidth})
		}
	}()

	return nil
}

// Stop halts streaming.
func (s *Source) Stop() error {
	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	return nil
}

// Close releases the underlying device.
func (s *Source) Close() error {
	s.mu.Lock()
	dev := s.dev
	s.dev = nil
	s.mu.Unlock()
	if dev != nil {
		dev.Close()
	}
	return nil
}
