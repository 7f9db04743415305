// Virtual axis numbering
//
// Copyright (C) 2026 Go binding
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package board

import (
	"sync"

	"axl-go/pkg/axt"
)

// VirtualMap renumbers physical axes so application code can keep its
// axis numbers across hardware rearrangements. Axes without an
// explicit mapping keep their physical number. A virtual number held
// by an explicit mapping always wins over an identity number, and a
// second explicit registration of the same virtual number is rejected,
// so the first-registered physical axis stays reachable.
type VirtualMap struct {
	mu        sync.RWMutex
	axisCount int
	toVirtual map[int]int // physical -> explicit virtual
	toPhys    map[int]int // explicit virtual -> physical
}

// NewVirtualMap returns an identity mapping over axisCount axes.
func NewVirtualMap(axisCount int) *VirtualMap {
	return &VirtualMap{
		axisCount: axisCount,
		toVirtual: make(map[int]int),
		toPhys:    make(map[int]int),
	}
}

func (v *VirtualMap) checkPhys(op string, physAxisNo int) error {
	if physAxisNo < 0 || physAxisNo >= v.axisCount {
		return axt.Errorf(axt.MotionInvalidAxisNo, op, "axis %d", physAxisNo)
	}
	return nil
}

// Set binds a physical axis to a virtual number. Rebinding a physical
// axis releases its previous virtual number first.
func (v *VirtualMap) Set(physAxisNo, virtAxisNo int) error {
	const op = "axm.VirtualSetAxisNoMap"

	v.mu.Lock()
	defer v.mu.Unlock()
	return v.set(op, physAxisNo, virtAxisNo)
}

func (v *VirtualMap) set(op string, physAxisNo, virtAxisNo int) error {
	if err := v.checkPhys(op, physAxisNo); err != nil {
		return err
	}
	if virtAxisNo < 0 {
		return axt.Errorf(axt.BadParameter, op, "virtual axis %d", virtAxisNo)
	}
	if prev, ok := v.toPhys[virtAxisNo]; ok && prev != physAxisNo {
		return axt.Errorf(axt.BadParameter, op,
			"virtual axis %d already maps to axis %d", virtAxisNo, prev)
	}
	if old, ok := v.toVirtual[physAxisNo]; ok {
		delete(v.toPhys, old)
	}
	v.toVirtual[physAxisNo] = virtAxisNo
	v.toPhys[virtAxisNo] = physAxisNo
	return nil
}

// Get returns the virtual number of a physical axis.
func (v *VirtualMap) Get(physAxisNo int) (int, error) {
	const op = "axm.VirtualGetAxisNoMap"

	v.mu.RLock()
	defer v.mu.RUnlock()
	if err := v.checkPhys(op, physAxisNo); err != nil {
		return 0, err
	}
	if virt, ok := v.toVirtual[physAxisNo]; ok {
		return virt, nil
	}
	return physAxisNo, nil
}

// SetMulti binds several axes at once. The whole batch is validated
// before any binding is applied, so a bad entry leaves the map
// untouched.
func (v *VirtualMap) SetMulti(physAxes, virtAxes []int) error {
	const op = "axm.VirtualSetMultiAxisNoMap"

	if len(physAxes) != len(virtAxes) {
		return axt.Errorf(axt.BadParameter, op,
			"axis list length %d != virtual list length %d", len(physAxes), len(virtAxes))
	}
	v.mu.Lock()
	defer v.mu.Unlock()

	seenPhys := make(map[int]bool, len(physAxes))
	seenVirt := make(map[int]bool, len(virtAxes))
	for i, phys := range physAxes {
		virt := virtAxes[i]
		if err := v.checkPhys(op, phys); err != nil {
			return err
		}
		if virt < 0 {
			return axt.Errorf(axt.BadParameter, op, "virtual axis %d", virt)
		}
		if seenPhys[phys] {
			return axt.Errorf(axt.BadParameter, op, "axis %d listed twice", phys)
		}
		if seenVirt[virt] {
			return axt.Errorf(axt.BadParameter, op, "virtual axis %d listed twice", virt)
		}
		seenPhys[phys] = true
		seenVirt[virt] = true
		// Bindings of axes in this batch are being replaced, so only
		// conflicts with axes outside the batch reject the batch.
		if prev, ok := v.toPhys[virt]; ok && prev != phys && !contains(physAxes, prev) {
			return axt.Errorf(axt.BadParameter, op,
				"virtual axis %d already maps to axis %d", virt, prev)
		}
	}
	for i, phys := range physAxes {
		if old, ok := v.toVirtual[phys]; ok {
			delete(v.toPhys, old)
		}
		v.toVirtual[phys] = virtAxes[i]
	}
	for i, phys := range physAxes {
		v.toPhys[virtAxes[i]] = phys
	}
	return nil
}

// GetMulti returns the virtual numbers of several physical axes.
func (v *VirtualMap) GetMulti(physAxes []int) ([]int, error) {
	out := make([]int, len(physAxes))
	for i, phys := range physAxes {
		virt, err := v.Get(phys)
		if err != nil {
			return nil, err
		}
		out[i] = virt
	}
	return out, nil
}

// Resolve maps a virtual axis number back to the physical axis it
// reaches. Identity numbers resolve only while their physical axis has
// no explicit mapping elsewhere.
func (v *VirtualMap) Resolve(virtAxisNo int) (int, error) {
	const op = "axm.VirtualAxisNo"

	v.mu.RLock()
	defer v.mu.RUnlock()
	if phys, ok := v.toPhys[virtAxisNo]; ok {
		return phys, nil
	}
	if virtAxisNo >= 0 && virtAxisNo < v.axisCount {
		if _, mapped := v.toVirtual[virtAxisNo]; !mapped {
			return virtAxisNo, nil
		}
	}
	return 0, axt.Errorf(axt.MotionInvalidAxisNo, op, "virtual axis %d", virtAxisNo)
}

// Reset drops every explicit mapping, returning all virtual numbers to
// their physical numbers.
func (v *VirtualMap) Reset() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.toVirtual = make(map[int]int)
	v.toPhys = make(map[int]int)
}

func contains(s []int, n int) bool {
	for _, x := range s {
		if x == n {
			return true
		}
	}
	return false
}
