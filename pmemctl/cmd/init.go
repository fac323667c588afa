package cmd

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/dustin/go-humanize"
	"github.com/sarchlab/pmem/datarecording"
	"github.com/sarchlab/pmem/mem/memmap"
	"github.com/sarchlab/pmem/mem/pagetable"
	"github.com/sarchlab/pmem/mem/pmem"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type report struct {
	Summary pagetable.Summary `json:"summary"`
	Runs    []pagetable.Run   `json:"runs"`
}

func newReport(t pagetable.Table) report {
	r := report{
		Summary: pagetable.Summarize(t),
		Runs:    []pagetable.Run{},
	}

	for run := range pagetable.Runs(t) {
		r.Runs = append(r.Runs, run)
	}

	return r
}

func newInitCmd(opts *options) *cobra.Command {
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Build the page table and print it.",
		Long: "`init --map FILE` builds the page table from the memory map " +
			"and prints the page counts and the runs of pages sharing a " +
			"permission.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			table, m, err := opts.initialize()
			if err != nil {
				return err
			}

			recordPath, record := opts.recordPath(cmd)
			if record {
				err = recordTable(opts, recordPath, table, m)
				if err != nil {
					return err
				}
			}

			asJSON, _ := cmd.Flags().GetBool("json")
			if asJSON {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(newReport(table))
			}

			printReport(cmd.OutOrStdout(), newReport(table))

			return nil
		},
	}

	initCmd.Flags().String("record", "",
		"record the table into a SQLite database, named randomly if empty")
	initCmd.Flags().Bool("json", false, "print the report as JSON")

	return initCmd
}

// recordPath returns where to record the table. The flag wins over the
// configuration. An empty path names the database randomly.
func (o *options) recordPath(cmd *cobra.Command) (string, bool) {
	if cmd.Flags().Changed("record") {
		path, _ := cmd.Flags().GetString("record")
		return path, true
	}

	return o.config.RecordPath, o.config.RecordPath != ""
}

func recordTable(
	opts *options,
	path string,
	table pagetable.Table,
	m memmap.Map,
) error {
	recorder, err := datarecording.New(path)
	if err != nil {
		return err
	}

	datarecording.RecordPageTable(recorder, m, table)

	err = recorder.Close()
	if err != nil {
		return err
	}

	opts.logger.Info("page table recorded",
		zap.String("file", recorder.Filename()))

	return nil
}

func printReport(w io.Writer, r report) {
	s := r.Summary

	fmt.Fprintf(w, "Physical pages:  %d (%s)\n",
		s.NumPages, humanize.IBytes(s.NumPages*pmem.PageSize))
	fmt.Fprintf(w, "Unavailable:     %d\n", s.Unavailable)
	fmt.Fprintf(w, "Kernel reserved: %d\n", s.KernelReserved)
	fmt.Fprintf(w, "Usable:          %d (%s)\n",
		s.Usable, humanize.IBytes(s.Usable*pmem.PageSize))

	if len(r.Runs) == 0 {
		return
	}

	fmt.Fprintln(w, "Runs:")
	for _, run := range r.Runs {
		fmt.Fprintf(w, "  [%#08x, %#08x) %-14s %d pages\n",
			run.Start, run.End(), run.Perm, run.Count)
	}
}
