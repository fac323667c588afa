package pagetable

import (
	"fmt"

	"github.com/bits-and-blooms/bitset"
)

// A Table holds one entry per physical page.
type Table interface {
	// SetNumPages sets the number of physical pages and sizes the storage.
	// All the entries are reset.
	SetNumPages(n uint64)
	NumPages() uint64

	Perm(pageIndex uint64) Permission

	// SetPerm sets the permission of a page. The page is also marked as
	// unallocated.
	SetPerm(pageIndex uint64, p Permission)

	IsAllocated(pageIndex uint64) bool
	SetAllocated(pageIndex uint64, allocated bool)
}

// NewTable creates a new empty Table. Call SetNumPages before accessing any
// entry.
func NewTable() Table {
	return &tableImpl{
		allocated: bitset.New(0),
	}
}

// tableImpl keeps the permissions in a flat array indexed by page number and
// the allocation flags in a bitset.
type tableImpl struct {
	perms     []Permission
	allocated *bitset.BitSet
}

func (t *tableImpl) SetNumPages(n uint64) {
	t.perms = make([]Permission, n)
	t.allocated = bitset.New(uint(n))
}

func (t *tableImpl) NumPages() uint64 {
	return uint64(len(t.perms))
}

func (t *tableImpl) Perm(pageIndex uint64) Permission {
	t.pageMustExist(pageIndex)

	return t.perms[pageIndex]
}

func (t *tableImpl) SetPerm(pageIndex uint64, p Permission) {
	t.pageMustExist(pageIndex)

	t.perms[pageIndex] = p
	t.allocated.Clear(uint(pageIndex))
}

func (t *tableImpl) IsAllocated(pageIndex uint64) bool {
	t.pageMustExist(pageIndex)

	return t.allocated.Test(uint(pageIndex))
}

func (t *tableImpl) SetAllocated(pageIndex uint64, allocated bool) {
	t.pageMustExist(pageIndex)

	t.allocated.SetTo(uint(pageIndex), allocated)
}

func (t *tableImpl) pageMustExist(pageIndex uint64) {
	if pageIndex >= uint64(len(t.perms)) {
		panic(fmt.Sprintf("page index %d out of range [0, %d)",
			pageIndex, len(t.perms)))
	}
}
