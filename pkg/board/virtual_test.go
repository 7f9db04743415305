// Copyright (C) 2026 Go binding
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package board

import (
	"testing"

	"axl-go/pkg/axt"
)

func TestVirtualMapIdentity(t *testing.T) {
	vm := NewVirtualMap(4)

	for axis := 0; axis < 4; axis++ {
		virt, err := vm.Get(axis)
		if err != nil || virt != axis {
			t.Errorf("Get(%d) = %d, %v, want %d", axis, virt, err, axis)
		}
		phys, err := vm.Resolve(axis)
		if err != nil || phys != axis {
			t.Errorf("Resolve(%d) = %d, %v, want %d", axis, phys, err, axis)
		}
	}
	if _, err := vm.Get(4); !axt.IsCode(err, axt.MotionInvalidAxisNo) {
		t.Errorf("Get(4) error = %v, want MOTION_INVALID_AXIS_NO", err)
	}
}

func TestVirtualMapSet(t *testing.T) {
	vm := NewVirtualMap(4)

	if err := vm.Set(2, 10); err != nil {
		t.Fatalf("Set(2, 10) error: %v", err)
	}
	virt, err := vm.Get(2)
	if err != nil || virt != 10 {
		t.Errorf("Get(2) = %d, %v, want 10", virt, err)
	}
	phys, err := vm.Resolve(10)
	if err != nil || phys != 2 {
		t.Errorf("Resolve(10) = %d, %v, want 2", phys, err)
	}
	// Axis 2 moved to 10, so its old identity number no longer reaches it.
	if _, err := vm.Resolve(2); !axt.IsCode(err, axt.MotionInvalidAxisNo) {
		t.Errorf("Resolve(2) error = %v, want MOTION_INVALID_AXIS_NO", err)
	}
}

func TestVirtualMapExplicitWinsOverIdentity(t *testing.T) {
	vm := NewVirtualMap(4)

	// Virtual 3 is axis 3's identity number until axis 0 claims it.
	if err := vm.Set(0, 3); err != nil {
		t.Fatalf("Set(0, 3) error: %v", err)
	}
	phys, err := vm.Resolve(3)
	if err != nil || phys != 0 {
		t.Errorf("Resolve(3) = %d, %v, want 0", phys, err)
	}
	// A second explicit claim on 3 is rejected and axis 0 stays reachable.
	if err := vm.Set(1, 3); !axt.IsCode(err, axt.BadParameter) {
		t.Errorf("Set(1, 3) error = %v, want BAD_PARAMETER", err)
	}
	phys, err = vm.Resolve(3)
	if err != nil || phys != 0 {
		t.Errorf("Resolve(3) after rejected rebind = %d, %v, want 0", phys, err)
	}
}

func TestVirtualMapRebindReleasesOld(t *testing.T) {
	vm := NewVirtualMap(4)

	if err := vm.Set(1, 20); err != nil {
		t.Fatalf("Set(1, 20) error: %v", err)
	}
	if err := vm.Set(1, 21); err != nil {
		t.Fatalf("Set(1, 21) error: %v", err)
	}
	if _, err := vm.Resolve(20); err == nil {
		t.Error("Resolve(20) succeeded after axis 1 moved to 21")
	}
	phys, err := vm.Resolve(21)
	if err != nil || phys != 1 {
		t.Errorf("Resolve(21) = %d, %v, want 1", phys, err)
	}
	// 20 is free again for another axis.
	if err := vm.Set(3, 20); err != nil {
		t.Errorf("Set(3, 20) error: %v", err)
	}
}

func TestVirtualMapSetMulti(t *testing.T) {
	vm := NewVirtualMap(4)

	// Swap axes 0 and 1. Single sets could not build this permutation,
	// the batch applies it atomically.
	if err := vm.SetMulti([]int{0, 1}, []int{1, 0}); err != nil {
		t.Fatalf("SetMulti error: %v", err)
	}
	virts, err := vm.GetMulti([]int{0, 1, 2, 3})
	if err != nil {
		t.Fatalf("GetMulti error: %v", err)
	}
	want := []int{1, 0, 2, 3}
	for i := range want {
		if virts[i] != want[i] {
			t.Errorf("GetMulti()[%d] = %d, want %d", i, virts[i], want[i])
		}
	}
	phys, err := vm.Resolve(0)
	if err != nil || phys != 1 {
		t.Errorf("Resolve(0) = %d, %v, want 1", phys, err)
	}
}

func TestVirtualMapSetMultiRejectsWholeBatch(t *testing.T) {
	vm := NewVirtualMap(4)
	if err := vm.Set(3, 30); err != nil {
		t.Fatalf("Set(3, 30) error: %v", err)
	}

	tests := []struct {
		name  string
		phys  []int
		virts []int
	}{
		{"length mismatch", []int{0, 1}, []int{5}},
		{"duplicate virtual in batch", []int{0, 1}, []int{5, 5}},
		{"duplicate physical in batch", []int{0, 0}, []int{5, 6}},
		{"conflict with existing binding", []int{0}, []int{30}},
		{"physical out of range", []int{4}, []int{5}},
		{"negative virtual", []int{0}, []int{-1}},
	}
	for _, tc := range tests {
		if err := vm.SetMulti(tc.phys, tc.virts); err == nil {
			t.Errorf("%s: SetMulti succeeded, want error", tc.name)
		}
	}

	// Nothing from the failed batches applied.
	virt, err := vm.Get(0)
	if err != nil || virt != 0 {
		t.Errorf("Get(0) = %d, %v, want identity 0", virt, err)
	}
	phys, err := vm.Resolve(30)
	if err != nil || phys != 3 {
		t.Errorf("Resolve(30) = %d, %v, want 3", phys, err)
	}
}

func TestVirtualMapSetMultiRebindsBatchMembers(t *testing.T) {
	vm := NewVirtualMap(4)
	if err := vm.Set(0, 7); err != nil {
		t.Fatalf("Set(0, 7) error: %v", err)
	}

	// Virtual 7 belongs to axis 0, but axis 0 is in the batch and is
	// being moved, so handing 7 to axis 1 is fine.
	if err := vm.SetMulti([]int{0, 1}, []int{8, 7}); err != nil {
		t.Fatalf("SetMulti error: %v", err)
	}
	phys, err := vm.Resolve(7)
	if err != nil || phys != 1 {
		t.Errorf("Resolve(7) = %d, %v, want 1", phys, err)
	}
	phys, err = vm.Resolve(8)
	if err != nil || phys != 0 {
		t.Errorf("Resolve(8) = %d, %v, want 0", phys, err)
	}
}

func TestVirtualMapReset(t *testing.T) {
	vm := NewVirtualMap(4)
	if err := vm.SetMulti([]int{0, 1, 2, 3}, []int{10, 11, 12, 13}); err != nil {
		t.Fatalf("SetMulti error: %v", err)
	}

	vm.Reset()
	for axis := 0; axis < 4; axis++ {
		virt, err := vm.Get(axis)
		if err != nil || virt != axis {
			t.Errorf("Get(%d) after Reset = %d, %v, want %d", axis, virt, err, axis)
		}
	}
	if _, err := vm.Resolve(10); err == nil {
		t.Error("Resolve(10) succeeded after Reset")
	}
}
