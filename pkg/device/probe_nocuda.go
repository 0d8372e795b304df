//go:build !cuda

package device

// probe is a no-op without the cuda build tag; the inference backend owns
// the GPU and reports placement errors itself.
func probe(*Device) error { return nil }
