package pmem

import "github.com/sarchlab/pmem/mem/memmap"

// PageCount returns the number of physical pages from address 0 to the end
// of the last region of the map. The last region in map order is used, not
// the one with the highest address.
//
// The two sub-page remainders add one page only when together they complete
// a full page, so the result may differ from a ceiling division when neither
// the start nor the length is page aligned.
func PageCount(m memmap.Map) uint64 {
	n := m.Size()
	if n == 0 {
		return 0
	}

	start := m.Start(n - 1)
	length := m.Length(n - 1)

	return start/PageSize + length/PageSize +
		(start%PageSize+length%PageSize)/PageSize
}
