//go:build !amd64

package extract

// selectBackend always picks the portable kernels on architectures the
// original C project never shipped SIMD kernels for (spec.md §9).
func selectBackend() Backend {
	return BackendPortable
}
