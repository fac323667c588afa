package pagetable

import "iter"

// A Run is a sequence of consecutive pages sharing the same permission.
type Run struct {
	Start uint64     `json:"start"`
	Count uint64     `json:"count"`
	Perm  Permission `json:"perm"`
}

// End returns the page index after the last page of the run.
func (r Run) End() uint64 {
	return r.Start + r.Count
}

// Runs iterates the table as runs of equal permission, in page index order.
func Runs(t Table) iter.Seq[Run] {
	return func(yield func(Run) bool) {
		n := t.NumPages()
		if n == 0 {
			return
		}

		run := Run{Start: 0, Count: 1, Perm: t.Perm(0)}
		for i := uint64(1); i < n; i++ {
			p := t.Perm(i)
			if p == run.Perm {
				run.Count++
				continue
			}

			if !yield(run) {
				return
			}

			run = Run{Start: i, Count: 1, Perm: p}
		}

		yield(run)
	}
}

// Summary counts the pages of each permission class.
type Summary struct {
	NumPages       uint64 `json:"num_pages"`
	Unavailable    uint64 `json:"unavailable"`
	KernelReserved uint64 `json:"kernel_reserved"`
	Usable         uint64 `json:"usable"`
	Allocated      uint64 `json:"allocated"`
}

// Summarize counts the pages in the table.
func Summarize(t Table) Summary {
	s := Summary{NumPages: t.NumPages()}

	for run := range Runs(t) {
		switch {
		case run.Perm == Unavailable:
			s.Unavailable += run.Count
		case run.Perm == KernelReserved:
			s.KernelReserved += run.Count
		default:
			s.Usable += run.Count
		}
	}

	for i := uint64(0); i < s.NumPages; i++ {
		if t.IsAllocated(i) {
			s.Allocated++
		}
	}

	return s
}
