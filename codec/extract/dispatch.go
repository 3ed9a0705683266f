/*
NAME
  dispatch.go

DESCRIPTION
  dispatch.go selects, once at process startup, which kernel
  implementation (portable or architecture-accelerated) Extract16,
  Extract32, ExtractAuxOnly and ExtractSingle delegate to.

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

// Backend names a kernel implementation. It exists purely for
// diagnostics, so a caller can report which code path is active via
// ActiveBackend; the capture session does not log it.
type Backend string

const (
	BackendPortable Backend = "portable"
	BackendFast     Backend = "fast"
)

// active records which backend Extract16/Extract32 currently use, set
// once by init via selectBackend. Reads are safe without
// synchronization because selectBackend runs before any goroutine that
// could call an extraction function is started.
var active = BackendPortable

// ActiveBackend reports which kernel backend this process selected at
// startup, per spec.md §4.2/§4.10: "implementations choose once, at
// startup, and never switch again."
func ActiveBackend() Backend { return active }

func init() {
	active = selectBackend()
}
