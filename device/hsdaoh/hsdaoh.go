/*
NAME
  hsdaoh.go

DESCRIPTION
  hsdaoh.go binds libhsdaoh, the vendor USB3/HDMI capture library, to
  the device.Source interface: Open calls hsdaoh_open(index), then
  Start installs the data and message callbacks and calls
  start_stream (spec.md §4.5).

AUTHORS
  MISRC Go port contributors

LICENSE
  Copyright (C) 2024-2025 vrunk11, stefan_o and contributors.

  This program is free software: you can redistribute it and/or modify
  it under the terms of the GNU General Public License as published by
  the Free Software Foundation, either version 3 of the License, or
  (at your option) any later version.
*/

// Package hsdaoh implements device.Source against libhsdaoh, the
// vendor library for the USB3 capture hardware the MISRC project's
// HDMI/RF capture path is built on.
package hsdaoh

/*
#cgo pkg-config: libhsdaoh
#include <stdlib.h>
#include <hsdaoh.h>

extern void hsdaohDataCallback_cgo(unsigned char *buf, uint32_t width, uint32_t height, void *ctx);
extern void hsdaohMessageCallback_cgo(int level, char *msg, void *ctx);
*/
import "C"

import (
	"errors"
	"fmt"
	"runtime/cgo"
	"sync"
	"unsafe"

	"github.com/stefan-olt/misrc-go/device"
)

// Source implements device.Source over libhsdaoh.
type Source struct {
	mu      sync.Mutex
	dev     *C.hsdaoh_dev_t
	handle  cgo.Handle
	frameCb func(device.Frame)
	msgCb   func(device.MessageLevel, string)
	running bool
}

// New creates a Source and its cgo callback handle; the libhsdaoh
// device itself is opened by Open.
func New() (*Source, error) {
	s := &Source{}
	s.handle = cgo.NewHandle(s)
	return s, nil
}

// Open opens the device identified by a decimal index into
// libhsdaoh's device list (spec.md §4.5 "Vendor USB").
func (s *Source) Open(id string) error {
	var idx C.uint32_t
	if _, err := fmt.Sscanf(id, "%d", &idx); err != nil {
		return fmt.Errorf("hsdaoh: invalid device index %q: %w", id, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	var dev *C.hsdaoh_dev_t
	if rc := C.hsdaoh_open(&dev, idx); rc != 0 {
		return fmt.Errorf("hsdaoh: open index %d failed: rc=%d", idx, int(rc))
	}
	s.dev = dev
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

// Start begins streaming frames from the opened device.
func (s *Source) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dev == nil {
		return errors.New("hsdaoh: device not open")
	}
	if s.running {
		return errors.New("hsdaoh: already started")
	}

	C.hsdaoh_set_raw_callback(s.dev,
		C.hsdaoh_raw_cb_t(unsafe.Pointer(C.hsdaohDataCallback_cgo)),
		unsafe.Pointer(&s.handle))
	C.hsdaoh_set_message_callback(s.dev,
		C.hsdaoh_msg_cb_t(unsafe.Pointer(C.hsdaohMessageCallback_cgo)),
		unsafe.Pointer(&s.handle))

	if rc := C.hsdaoh_start_stream(s.dev); rc != 0 {
		return fmt.Errorf("hsdaoh: start_stream failed: rc=%d", int(rc))
	}
	s.running = true
	return nil
}

// Stop halts streaming.
func (s *Source) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return nil
	}
	s.running = false
	if s.dev != nil {
		C.hsdaoh_stop_stream(s.dev)
	}
	return nil
}

// Close releases the device and its cgo handle.
func (s *Source) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dev != nil {
		C.hsdaoh_close(s.dev)
		s.dev = nil
	}
	if s.handle != 0 {
		s.handle.Delete()
		s.handle = 0
	}
	return nil
}

//export hsdaohDataCallback
func hsdaohDataCallback(buf *C.uchar, width, height C.uint32_t, ctx unsafe.Pointer) {
	h := *(*cgo.Handle)(ctx)
	s, ok := h.Value().(*Source)
	if !ok || s.frameCb == nil {
		return
	}
	w, ht := int(width), int(height)
	n := w * ht
	raw := unsafe.Slice((*uint16)(unsafe.Pointer(buf)), n)
	cp := make([]uint16, n)
	copy(cp, raw)
	s.frameCb(device.Frame{Buf: cp, Width: w, Height: ht})
}

//export hsdaohMessageCallback
func hsdaohMessageCallback(level C.int, msg *C.char, ctx unsafe.Pointer) {
	h := *(*cgo.Handle)(ctx)
	s, ok := h.Value().(*Source)
	if !ok || s.msgCb == nil {
		return
	}
	s.msgCb(device.MessageLevel(level), C.GoString(msg))
}
