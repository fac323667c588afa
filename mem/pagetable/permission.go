// Package pagetable stores the per-page permission and allocation state of
// the physical memory.
package pagetable

import "fmt"

// Permission classifies who may use a physical page.
type Permission uint8

// Only the first three values are ever written. Any value above
// KernelReserved is considered usable.
const (
	Unavailable Permission = iota
	KernelReserved
	Usable
)

// IsUsable tells if the page can be handed to user-level allocation.
func (p Permission) IsUsable() bool {
	return p > KernelReserved
}

func (p Permission) String() string {
	switch p {
	case Unavailable:
		return "Unavailable"
	case KernelReserved:
		return "KernelReserved"
	case Usable:
		return "Usable"
	default:
		return fmt.Sprintf("Usable(%d)", uint8(p))
	}
}
