// Package pmem initializes the physical page permission table from the
// platform memory map.
//
// Every page outside [UserLow, UserHigh) is reserved by the kernel. A page
// inside the window is usable only if a usable region of the memory map
// covers the entire page.
package pmem

import (
	"fmt"

	"github.com/sarchlab/pmem/mem/pagetable"
)

// Address space layout.
const (
	PageSize uint64 = 4096
	UserLow  uint64 = 0x40000000
	UserHigh uint64 = 0xF0000000

	UserLowPI  = UserLow / PageSize
	UserHighPI = UserHigh / PageSize
)

// PermissionSetter is the only way the builder mutates the page table.
type PermissionSetter interface {
	SetPerm(pageIndex uint64, p pagetable.Permission)
}

// PageCountPublisher receives the number of physical pages once it is known.
type PageCountPublisher interface {
	SetNumPages(nps uint64)
}

// A Table is the storage that the Initializer populates.
type Table interface {
	PageCountPublisher
	PermissionSetter
}

func hex(v uint64) string {
	return fmt.Sprintf("%#x", v)
}
