// Package memmap describes the physical memory map reported by the platform.
package memmap

import "math"

// A Region is a physical address range reported by the platform firmware.
type Region struct {
	Start  uint64 `yaml:"start" json:"start"`
	Length uint64 `yaml:"length" json:"length"`
	Usable bool   `yaml:"usable" json:"usable"`
}

// End returns the first address after the region. It saturates at the top of
// the 64-bit address space.
func (r Region) End() uint64 {
	if r.Length > math.MaxUint64-r.Start {
		return math.MaxUint64
	}

	return r.Start + r.Length
}

// A Map is the ordered list of regions reported by the platform. The order is
// the probe order and is not necessarily sorted by address.
type Map interface {
	// Size returns the number of regions in the map.
	Size() int

	// Start returns the start address of the i-th region.
	Start(i int) uint64

	// Length returns the length in bytes of the i-th region.
	Length(i int) uint64

	// IsUsable tells if the i-th region is usable memory.
	IsUsable(i int) bool
}

// Regions is a Map backed by a slice.
type Regions []Region

// Size returns the number of regions.
func (r Regions) Size() int {
	return len(r)
}

// Start returns the start address of the i-th region.
func (r Regions) Start(i int) uint64 {
	return r[i].Start
}

// Length returns the length of the i-th region.
func (r Regions) Length(i int) uint64 {
	return r[i].Length
}

// IsUsable tells if the i-th region is usable.
func (r Regions) IsUsable(i int) bool {
	return r[i].Usable
}

// Collect copies any Map into a Regions slice.
func Collect(m Map) Regions {
	regions := make(Regions, 0, m.Size())
	for i := 0; i < m.Size(); i++ {
		regions = append(regions, Region{
			Start:  m.Start(i),
			Length: m.Length(i),
			Usable: m.IsUsable(i),
		})
	}

	return regions
}
