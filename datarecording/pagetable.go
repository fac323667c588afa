package datarecording

import (
	"fmt"

	"github.com/sarchlab/pmem/mem/memmap"
	"github.com/sarchlab/pmem/mem/pagetable"
)

// Table names used when recording a page table.
const (
	MemoryMapTable = "memory_map"
	PageRunTable   = "page_runs"
	SummaryTable   = "summary"
)

// RegionEntry is a row of the memory map table. Addresses are stored as
// hexadecimal strings since SQLite integers are signed.
type RegionEntry struct {
	RegionIndex int
	Start       string
	Length      string
	Usable      bool
}

// PageRunEntry is a row of the page run table.
type PageRunEntry struct {
	StartPage uint64
	NumPages  uint64
	Perm      string
}

// SummaryEntry is the single row of the summary table.
type SummaryEntry struct {
	NumPages       uint64
	Unavailable    uint64
	KernelReserved uint64
	Usable         uint64
	Allocated      uint64
}

// RecordPageTable writes the memory map and the resulting page table into
// the recorder and flushes it.
func RecordPageTable(r DataRecorder, m memmap.Map, t pagetable.Table) {
	r.CreateTable(MemoryMapTable, RegionEntry{})
	r.CreateTable(PageRunTable, PageRunEntry{})
	r.CreateTable(SummaryTable, SummaryEntry{})

	for i := 0; i < m.Size(); i++ {
		r.InsertData(MemoryMapTable, RegionEntry{
			RegionIndex: i,
			Start:       fmt.Sprintf("%#x", m.Start(i)),
			Length:      fmt.Sprintf("%#x", m.Length(i)),
			Usable:      m.IsUsable(i),
		})
	}

	for run := range pagetable.Runs(t) {
		r.InsertData(PageRunTable, PageRunEntry{
			StartPage: run.Start,
			NumPages:  run.Count,
			Perm:      run.Perm.String(),
		})
	}

	s := pagetable.Summarize(t)
	r.InsertData(SummaryTable, SummaryEntry(s))

	r.Flush()
}
