package pmem

import (
	"github.com/sarchlab/pmem/mem/memmap"
	"go.uber.org/zap"
)

// An Initializer sets up the physical page permission table at boot.
type Initializer struct {
	prober memmap.Prober
	table  Table
	logger *zap.Logger

	memoryMap memmap.Map
}

// Init probes the memory map with the given handle, publishes the number of
// physical pages, and populates the table. The number of physical pages is
// returned.
func (in *Initializer) Init(handle uint64) uint64 {
	in.memoryMap = in.prober.Probe(handle)

	nps := PageCount(in.memoryMap)
	in.table.SetNumPages(nps)

	in.logger.Debug("physical memory detected",
		zap.Int("regions", in.memoryMap.Size()),
		zap.Uint64("num_pages", nps))

	BuildPermissionTable(nps, in.memoryMap, in.table)

	if in.logger.Core().Enabled(zap.DebugLevel) {
		in.logRegions(nps)
	}

	return nps
}

// MemoryMap returns the map probed by the last Init call.
func (in *Initializer) MemoryMap() memmap.Map {
	return in.memoryMap
}

func (in *Initializer) logRegions(nps uint64) {
	m := in.memoryMap
	for i := 0; i < m.Size(); i++ {
		first, last := userPages(nps, m.Start(i), m.Length(i))

		in.logger.Debug("memory region",
			zap.Int("index", i),
			zap.String("start", hex(m.Start(i))),
			zap.String("length", hex(m.Length(i))),
			zap.Bool("usable", m.IsUsable(i)),
			zap.Uint64("user_pages", last-first))
	}
}
