// Package device resolves the accelerator the model is placed on.
package device

import "fmt"

// Device describes the placement requested with --gpu-id.
type Device struct {
	Index int
	// Probed is true when the CUDA driver confirmed the device.
	Probed   bool
	Name     string
	TotalMem uint64
	Host     Host
}

// Host describes the machine running the front end.
type Host struct {
	CPU           string
	PhysicalCores int
	LogicalCores  int
	Features      []string
}

// String renders the device the way model backends expect it, e.g. "cuda:0".
func (d Device) String() string {
	return fmt.Sprintf("cuda:%d", d.Index)
}

// Resolve validates gpuID and probes the device where the build supports it.
func Resolve(gpuID int) (Device, error) {
	if gpuID < 0 {
		return Device{}, fmt.Errorf("gpu id must be non-negative, got %d", gpuID)
	}
	d := Device{Index: gpuID, Host: describeHost()}
	if err := probe(&d); err != nil {
		return Device{}, err
	}
	return d, nil
}
