package pmem

import (
	"math"
	"math/rand"
	"slices"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/sarchlab/pmem/mem/memmap"
	"github.com/sarchlab/pmem/mem/pagetable"
	"go.uber.org/mock/gomock"
)

type countingSetter struct {
	writes map[uint64]int
	table  pagetable.Table
}

func newCountingSetter(nps uint64) *countingSetter {
	t := pagetable.NewTable()
	t.SetNumPages(nps)

	return &countingSetter{
		writes: make(map[uint64]int),
		table:  t,
	}
}

func (s *countingSetter) SetPerm(pageIndex uint64, p pagetable.Permission) {
	s.writes[pageIndex]++
	s.table.SetPerm(pageIndex, p)
}

func buildTable(m memmap.Map) pagetable.Table {
	nps := PageCount(m)
	t := pagetable.NewTable()
	t.SetNumPages(nps)
	BuildPermissionTable(nps, m, t)

	return t
}

func countUsable(t pagetable.Table) uint64 {
	return pagetable.Summarize(t).Usable
}

var _ = Describe("BuildPermissionTable", func() {
	var mockCtrl *gomock.Controller

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	It("should not write anything for an empty map", func() {
		table := NewMockTable(mockCtrl)
		m := memmap.Regions{}

		nps := PageCount(m)
		BuildPermissionTable(nps, m, table)

		Expect(nps).To(Equal(uint64(0)))
	})

	It("should not mark a tiny machine usable", func() {
		m := memmap.Regions{{Start: 0, Length: 0x1000, Usable: true}}

		t := buildTable(m)

		Expect(t.NumPages()).To(Equal(uint64(1)))
		Expect(t.Perm(0)).To(Equal(pagetable.KernelReserved))
		Expect(countUsable(t)).To(BeZero())
	})

	It("should mark fully covered pages at the window start usable", func() {
		m := memmap.Regions{{Start: UserLow, Length: 0x2000, Usable: true}}

		t := buildTable(m)

		Expect(t.NumPages()).To(Equal(UserLowPI + 2))
		Expect(t.Perm(UserLowPI - 1)).To(Equal(pagetable.KernelReserved))
		Expect(t.Perm(UserLowPI)).To(Equal(pagetable.Usable))
		Expect(t.Perm(UserLowPI + 1)).To(Equal(pagetable.Usable))
		Expect(countUsable(t)).To(Equal(uint64(2)))
	})

	It("should never mark a partially covered page usable", func() {
		m := memmap.Regions{{Start: UserLow + 1, Length: 0x1000, Usable: true}}

		t := buildTable(m)

		Expect(t.NumPages()).To(Equal(UserLowPI + 1))
		Expect(t.Perm(UserLowPI)).To(Equal(pagetable.Unavailable))
		Expect(countUsable(t)).To(BeZero())
	})

	It("should round unaligned region bounds inwards", func() {
		m := memmap.Regions{
			{Start: UserLow + 0x800, Length: 0x3000, Usable: true},
			{Start: UserLow + 0x10000, Length: 0x1000, Usable: false},
		}

		t := buildTable(m)

		Expect(t.Perm(UserLowPI)).To(Equal(pagetable.Unavailable))
		Expect(t.Perm(UserLowPI + 1)).To(Equal(pagetable.Usable))
		Expect(t.Perm(UserLowPI + 2)).To(Equal(pagetable.Usable))
		Expect(t.Perm(UserLowPI + 3)).To(Equal(pagetable.Unavailable))
	})

	Context("on a 4 GiB machine", func() {
		var (
			m memmap.Regions
			t pagetable.Table
		)

		BeforeEach(func() {
			m = memmap.Regions{
				{Start: 0, Length: 0x9fc00, Usable: true},
				{Start: 0x100000, Length: UserHigh - 0x100000, Usable: true},
				{Start: 0x50000000, Length: 0x1800, Usable: false},
				{Start: 0x60000000, Length: 0x1000, Usable: false},
				{Start: 0x60000000, Length: 0x1000, Usable: true},
				{Start: UserHigh, Length: 0x10000000, Usable: false},
			}

			t = buildTable(m)
		})

		It("should cover the whole address space", func() {
			Expect(t.NumPages()).To(Equal(uint64(0x100000)))
		})

		It("should reserve the pages outside the user window", func() {
			for i := uint64(0); i < UserLowPI; i++ {
				Expect(t.Perm(i)).To(Equal(pagetable.KernelReserved))
			}

			for i := UserHighPI; i < t.NumPages(); i++ {
				Expect(t.Perm(i)).To(Equal(pagetable.KernelReserved))
			}
		})

		It("should let later regions overwrite earlier ones", func() {
			Expect(t.Perm(0x50000)).To(Equal(pagetable.Unavailable))
			Expect(t.Perm(0x50001)).To(Equal(pagetable.Usable))
			Expect(t.Perm(0x60000)).To(Equal(pagetable.Usable))
		})

		It("should describe the table as runs", func() {
			Expect(slices.Collect(pagetable.Runs(t))).To(Equal([]pagetable.Run{
				{Start: 0, Count: UserLowPI, Perm: pagetable.KernelReserved},
				{Start: UserLowPI, Count: 0x50000 - UserLowPI,
					Perm: pagetable.Usable},
				{Start: 0x50000, Count: 1, Perm: pagetable.Unavailable},
				{Start: 0x50001, Count: UserHighPI - 0x50001,
					Perm: pagetable.Usable},
				{Start: UserHighPI, Count: 0x100000 - UserHighPI,
					Perm: pagetable.KernelReserved},
			}))
		})

		It("should be idempotent", func() {
			again := pagetable.NewTable()
			again.SetNumPages(t.NumPages())
			BuildPermissionTable(t.NumPages(), m, again)
			BuildPermissionTable(t.NumPages(), m, again)

			Expect(slices.Collect(pagetable.Runs(again))).
				To(Equal(slices.Collect(pagetable.Runs(t))))
		})
	})

	It("should not write beyond the number of pages", func() {
		m := memmap.Regions{
			{Start: UserLow, Length: 0x10000000, Usable: true},
			{Start: UserLow, Length: 0x4000, Usable: true},
		}
		nps := PageCount(m)
		s := newCountingSetter(nps)

		BuildPermissionTable(nps, m, s)

		Expect(nps).To(Equal(UserLowPI + 4))
		for i := range s.writes {
			Expect(i).To(BeNumerically("<", nps))
		}
		Expect(s.table.Perm(UserLowPI + 3)).To(Equal(pagetable.Usable))
	})

	It("should reserve every page of a small machine once", func() {
		m := memmap.Regions{{Start: 0, Length: 0x100000, Usable: true}}
		s := newCountingSetter(PageCount(m))

		BuildPermissionTable(0x100, m, s)

		Expect(s.writes).To(HaveLen(0x100))
		for _, n := range s.writes {
			Expect(n).To(Equal(1))
		}
	})

	It("should stop the overlay at the end of the user window", func() {
		m := memmap.Regions{
			{Start: UserHigh - 0x1000, Length: 0x2000, Usable: true},
			{Start: UserHigh + 0x1000, Length: 0x1000, Usable: false},
		}

		t := buildTable(m)

		Expect(t.Perm(UserHighPI - 1)).To(Equal(pagetable.Usable))
		Expect(t.Perm(UserHighPI)).To(Equal(pagetable.KernelReserved))
		Expect(t.Perm(UserHighPI + 1)).To(Equal(pagetable.KernelReserved))
	})

	It("should ignore zero length regions", func() {
		m := memmap.Regions{
			{Start: UserLow, Length: 0x1000, Usable: true},
			{Start: UserLow, Length: 0, Usable: false},
		}

		t := buildTable(m)

		Expect(t.NumPages()).To(Equal(UserLowPI))
		Expect(countUsable(t)).To(BeZero())
	})

	It("should handle regions running past the top of the address space",
		func() {
			m := memmap.Regions{
				{Start: UserLow, Length: math.MaxUint64, Usable: true},
				{Start: UserHigh, Length: 0x1000, Usable: false},
			}

			t := buildTable(m)

			Expect(t.NumPages()).To(Equal(UserHighPI + 1))
			Expect(t.Perm(UserLowPI)).To(Equal(pagetable.Usable))
			Expect(t.Perm(UserHighPI - 1)).To(Equal(pagetable.Usable))
			Expect(t.Perm(UserHighPI)).To(Equal(pagetable.KernelReserved))
		})

	It("should agree with a page by page evaluation", func() {
		rng := rand.New(rand.NewSource(42))

		for round := 0; round < 20; round++ {
			m := randomMap(rng)
			t := buildTable(m)

			for i := uint64(0); i < t.NumPages(); i++ {
				Expect(t.Perm(i)).To(Equal(expectedPerm(m, i)),
					"round %d page %#x", round, i)
			}
		}
	})
})

func randomMap(rng *rand.Rand) memmap.Regions {
	base := UserLow - 0x8000
	m := memmap.Regions{}

	n := rng.Intn(8)
	for i := 0; i < n; i++ {
		m = append(m, memmap.Region{
			Start:  base + uint64(rng.Intn(0x20000)),
			Length: uint64(rng.Intn(0x8000)),
			Usable: rng.Intn(3) > 0,
		})
	}

	m = append(m, memmap.Region{
		Start:  base + 0x20000,
		Length: uint64(rng.Intn(0x4000)),
		Usable: rng.Intn(2) > 0,
	})

	return m
}

// expectedPerm evaluates a single page against the whole map.
func expectedPerm(m memmap.Regions, pageIndex uint64) pagetable.Permission {
	if pageIndex < UserLowPI || pageIndex >= UserHighPI {
		return pagetable.KernelReserved
	}

	pageStart := pageIndex * PageSize
	pageEnd := pageStart + PageSize

	perm := pagetable.Unavailable
	for _, r := range m {
		if r.Start <= pageStart && pageEnd <= r.End() {
			perm = pagetable.Unavailable
			if r.Usable {
				perm = pagetable.Usable
			}
		}
	}

	return perm
}
