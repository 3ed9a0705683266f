/*
NAME
  ringbuffer.go

DESCRIPTION
  ringbuffer.go provides a dual-mapped, single-producer/single-consumer
  byte ring buffer: the backing pages are mapped twice into contiguous
  virtual memory so any read or write of length <= capacity is
  addressable as a flat slice, with no wrap-copy.

AUTHORS
  MISRC Go port contributors

LICENSE
  Copyright (C) 2024-2025 vrunk11, stefan_o and contributors.

  This program is free software: you can redistribute it and/or modify
  it under the terms of the GNU General Public License as published by
  the Free Software Foundation, either version 3 of the License, or
  (at your option) any later version.
*/

// Package ringbuffer provides a dual-mapped SPSC byte ring buffer used to
// move bytes between a single producer goroutine and a single consumer
// goroutine without locks and without boundary copies on wrap.
package ringbuffer

import (
	"fmt"
	"sync/atomic"
)

// mapping abstracts the backing storage of a Buffer. A doubled mapping
// aliases the same physical pages twice in virtual memory so that
// bytes()[i] and bytes()[i+cap] are always the same byte; prepareWrite
// and commitWrite are then no-ops beyond slicing. A fallback mapping
// has only cap real bytes and must copy across the wrap boundary
// explicitly (spec.md §9's documented degraded mode).
type mapping interface {
	// prepareWrite returns a writable slice of n bytes that the caller
	// will fill in; off is the logical offset (0 <= off < cap).
	prepareWrite(off, n uint64) []byte
	// commitWrite publishes a slice previously returned by
	// prepareWrite (for the same off, n) into the backing storage.
	commitWrite(off, n uint64, buf []byte)
	// prepareRead returns a slice of n contiguous bytes holding the
	// current data logically at offset off.
	prepareRead(off, n uint64) []byte
	close() error
}

// Buffer is a dual-mapped ring buffer. The zero value is not usable;
// construct with New.
//
// head and tail are monotonically increasing byte counters satisfying
// 0 <= tail-head <= cap. Apart from them, only the writer's pending*
// fields change after construction. The writer advances tail and the
// reader advances head; the reader also lowers both by cap once head
// passes cap (see ReadFinished).
type Buffer struct {
	mem  mapping
	cap  uint64
	head atomic.Uint64
	tail atomic.Uint64

	// pending tracks the most recent WritePtr call so WriteFinished can
	// commit it without repeating the offset/length in its own
	// signature (matching the C API's rb_write_finished(rb, size)).
	pendingOff uint64
	pendingLen uint64
	pendingBuf []byte
}

// New allocates a ring buffer of the given capacity, which must be a
// positive multiple of the platform page size. On platforms without a
// double virtual-mapping primitive, New falls back to a single mapping
// plus an explicit wrap-copy on reads/writes that straddle the
// boundary (spec.md §9): correctness is preserved, the zero-copy
// benefit is not.
func New(capacity int) (*Buffer, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("ringbuffer: capacity must be positive, got %d", capacity)
	}
	m, err := newMapping(capacity)
	if err != nil {
		return nil, fmt.Errorf("ringbuffer: %w", err)
	}
	return &Buffer{mem: m, cap: uint64(capacity)}, nil
}

// Cap returns the buffer's capacity in bytes.
func (b *Buffer) Cap() int { return int(b.cap) }

// Len returns the number of unread bytes currently buffered.
func (b *Buffer) Len() int {
	return int(b.tail.Load() - b.head.Load())
}

// WritePtr returns a slice of exactly n contiguous bytes at the current
// write cursor, or nil if fewer than n bytes of free space remain. The
// returned slice aliases the buffer; the caller must not retain it past
// the next WriteFinished call, and must call WriteFinished exactly
// once per successful WritePtr before calling WritePtr again.
func (b *Buffer) WritePtr(n int) []byte {
	// tail is read again after head: if ReadFinished lowered tail in
	// between, or head was read after its decrement but before tail's
	// (tail-head > cap), the pair is inconsistent and nil is returned.
	tail := b.tail.Load()
	head := b.head.Load()
	if b.tail.Load() != tail {
		return nil
	}
	used := tail - head
	if used > b.cap || b.cap-used < uint64(n) {
		return nil
	}
	off := tail % b.cap
	buf := b.mem.prepareWrite(off, uint64(n))
	b.pendingOff, b.pendingLen, b.pendingBuf = off, uint64(n), buf
	return buf
}

// WriteFinished publishes the n bytes most recently returned by
// WritePtr and advances the write cursor (tail) by n, making them
// visible to the reader with release ordering.
func (b *Buffer) WriteFinished(n int) {
	if uint64(n) != b.pendingLen {
		// Caller wrote a different length than it reserved; still
		// commit what was reserved so the mapping stays consistent.
		n = int(b.pendingLen)
	}
	b.mem.commitWrite(b.pendingOff, b.pendingLen, b.pendingBuf)
	b.tail.Add(uint64(n))
	b.pendingBuf = nil
}

// Put is a convenience wrapper combining WritePtr and WriteFinished; it
// copies p into the buffer in one call, returning false if there was
// insufficient space (in which case nothing is written).
func (b *Buffer) Put(p []byte) bool {
	dst := b.WritePtr(len(p))
	if dst == nil {
		return false
	}
	copy(dst, p)
	b.WriteFinished(len(p))
	return true
}

// ReadPtr returns a slice of exactly n contiguous unread bytes at the
// current read cursor, or nil if fewer than n bytes are available. The
// returned slice aliases the buffer (or a private copy, on the
// fallback mapping); the caller must not retain it past the next
// ReadFinished call.
func (b *Buffer) ReadPtr(n int) []byte {
	head := b.head.Load()
	tail := b.tail.Load()
	if tail-head < uint64(n) {
		return nil
	}
	off := head % b.cap
	return b.mem.prepareRead(off, uint64(n))
}

// ReadFinished advances the read cursor (head) by n bytes. If head
// crosses the capacity boundary, head and then tail are decremented by
// cap, keeping the counters from growing without bound while
// preserving tail-head. The two decrements are separate atomic
// operations; WritePtr detects a pair read between them and reports no
// space for that call, so the writer never acts on a half-applied
// decrement.
func (b *Buffer) ReadFinished(n int) {
	head := b.head.Add(uint64(n))
	if head > b.cap {
		b.head.Add(-b.cap)
		b.tail.Add(-b.cap)
	}
}

// Close releases the buffer's backing memory. Close must be called
// exactly once, after the producer and consumer have both stopped
// using the buffer.
func (b *Buffer) Close() error {
	return b.mem.close()
}
