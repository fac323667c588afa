package pmem

import (
	"github.com/sarchlab/pmem/mem/memmap"
	"go.uber.org/zap"
)

// A Builder can build an Initializer.
type Builder struct {
	prober memmap.Prober
	table  Table
	logger *zap.Logger
}

// MakeBuilder creates a new builder.
func MakeBuilder() Builder {
	return Builder{
		logger: zap.NewNop(),
	}
}

// WithProber sets the collaborator that reports the memory map.
func (b Builder) WithProber(p memmap.Prober) Builder {
	b.prober = p
	return b
}

// WithTable sets the page table to populate.
func (b Builder) WithTable(t Table) Builder {
	b.table = t
	return b
}

// WithLogger sets the logger used to report the initialization.
func (b Builder) WithLogger(l *zap.Logger) Builder {
	b.logger = l
	return b
}

// Build returns a newly created Initializer.
func (b Builder) Build() *Initializer {
	if b.prober == nil {
		panic("memory map prober is not set")
	}

	if b.table == nil {
		panic("page table is not set")
	}

	return &Initializer{
		prober: b.prober,
		table:  b.table,
		logger: b.logger,
	}
}
