package datarecording

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strconv"

	"github.com/sarchlab/pmem/mem/memmap"
)

// Reader reads a page table recorded by RecordPageTable.
type Reader struct {
	*sql.DB
}

// NewReader opens a recorded database file. The file must exist.
func NewReader(dbFilename string) (*Reader, error) {
	_, err := os.Stat(dbFilename)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite3", dbFilename)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", dbFilename, err)
	}

	return &Reader{DB: db}, nil
}

// Regions returns the recorded memory map in map order.
func (r *Reader) Regions(ctx context.Context) (memmap.Regions, error) {
	rows, err := r.QueryContext(ctx,
		"SELECT Start, Length, Usable FROM "+MemoryMapTable+
			" ORDER BY RegionIndex")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	regions := memmap.Regions{}
	for rows.Next() {
		var (
			start, length string
			usable        bool
		)

		err = rows.Scan(&start, &length, &usable)
		if err != nil {
			return nil, err
		}

		region := memmap.Region{Usable: usable}

		region.Start, err = strconv.ParseUint(start, 0, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid region start %q: %w", start, err)
		}

		region.Length, err = strconv.ParseUint(length, 0, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid region length %q: %w", length, err)
		}

		regions = append(regions, region)
	}

	return regions, rows.Err()
}

// Runs returns the recorded page runs in page order.
func (r *Reader) Runs(ctx context.Context) ([]PageRunEntry, error) {
	rows, err := r.QueryContext(ctx,
		"SELECT StartPage, NumPages, Perm FROM "+PageRunTable+
			" ORDER BY StartPage")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	runs := []PageRunEntry{}
	for rows.Next() {
		run := PageRunEntry{}

		err = rows.Scan(&run.StartPage, &run.NumPages, &run.Perm)
		if err != nil {
			return nil, err
		}

		runs = append(runs, run)
	}

	return runs, rows.Err()
}

// Summary returns the recorded page counts.
func (r *Reader) Summary(ctx context.Context) (SummaryEntry, error) {
	s := SummaryEntry{}

	err := r.QueryRowContext(ctx,
		"SELECT NumPages, Unavailable, KernelReserved, Usable, Allocated FROM "+
			SummaryTable).
		Scan(&s.NumPages, &s.Unavailable, &s.KernelReserved, &s.Usable,
			&s.Allocated)

	return s, err
}
