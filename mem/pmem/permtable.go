package pmem

import (
	"math"
	"math/bits"

	"github.com/sarchlab/pmem/mem/memmap"
	"github.com/sarchlab/pmem/mem/pagetable"
)

// BuildPermissionTable assigns a permission to every page index in [0, nps).
//
// Pages outside the user window are kernel reserved. Pages inside the window
// start as unavailable and are then overwritten by each region of the map,
// in map order, for every page that the region fully contains. No page at or
// beyond nps is ever written.
func BuildPermissionTable(
	nps uint64,
	m memmap.Map,
	t PermissionSetter,
) {
	reserveKernelPages(nps, t)
	resetUserPages(nps, t)

	for i := 0; i < m.Size(); i++ {
		overlayRegion(nps, m.Start(i), m.Length(i), m.IsUsable(i), t)
	}
}

func reserveKernelPages(nps uint64, t PermissionSetter) {
	for i := uint64(0); i < min(UserLowPI, nps); i++ {
		t.SetPerm(i, pagetable.KernelReserved)
	}

	for i := UserHighPI; i < nps; i++ {
		t.SetPerm(i, pagetable.KernelReserved)
	}
}

func resetUserPages(nps uint64, t PermissionSetter) {
	for i := UserLowPI; i < min(UserHighPI, nps); i++ {
		t.SetPerm(i, pagetable.Unavailable)
	}
}

func overlayRegion(
	nps, start, length uint64,
	usable bool,
	t PermissionSetter,
) {
	perm := pagetable.Unavailable
	if usable {
		perm = pagetable.Usable
	}

	first, last := userPages(nps, start, length)
	for i := first; i < last; i++ {
		t.SetPerm(i, perm)
	}
}

// userPages returns the range of pages below nps that are both fully covered
// by the region and inside the user window.
func userPages(nps, start, length uint64) (first, last uint64) {
	first, last = fullPages(start, length)
	first = max(first, UserLowPI)
	last = max(min(last, UserHighPI, nps), first)

	return first, last
}

// fullPages returns the page index range [first, last) of the pages that lie
// entirely within [start, start+length). A partially covered page at either
// end is excluded.
func fullPages(start, length uint64) (first, last uint64) {
	first = start / PageSize
	if first*PageSize < start {
		first++
	}

	end, carry := bits.Add64(start, length, 0)
	if carry != 0 {
		// The region runs to the top of the address space.
		last = math.MaxUint64/PageSize + 1
	} else {
		last = end / PageSize
	}

	if last < first {
		last = first
	}

	return first, last
}
