//go:build !cuda

package device

import "testing"

func TestResolveRejectsNegativeID(t *testing.T) {
	if _, err := Resolve(-1); err == nil {
		t.Fatal("expected error for negative gpu id")
	}
}

func TestResolveWithoutCUDA(t *testing.T) {
	d, err := Resolve(2)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if d.String() != "cuda:2" {
		t.Fatalf("expected cuda:2, got %s", d.String())
	}
	if d.Probed {
		t.Fatal("expected device to be unprobed without the cuda tag")
	}
	if d.Host.LogicalCores < 0 {
		t.Fatalf("unexpected host description: %+v", d.Host)
	}
}
