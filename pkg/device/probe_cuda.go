//go:build cuda

package device

import (
	"fmt"

	"gorgonia.org/cu"
)

func probe(d *Device) error {
	count, err := cu.NumDevices()
	if err != nil {
		return fmt.Errorf("count cuda devices: %w", err)
	}
	if d.Index >= count {
		return fmt.Errorf("gpu id %d out of range: %d cuda device(s) available", d.Index, count)
	}

	dev := cu.Device(d.Index)
	name, err := dev.Name()
	if err != nil {
		return fmt.Errorf("read cuda device %d name: %w", d.Index, err)
	}
	mem, err := dev.TotalMem()
	if err != nil {
		return fmt.Errorf("read cuda device %d memory: %w", d.Index, err)
	}
	d.Name = name
	if mem > 0 {
		d.TotalMem = uint64(mem)
	}
	d.Probed = true
	return nil
}
