package cmd

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/sarchlab/pmem/datarecording"
	"github.com/spf13/cobra"
)

type recording struct {
	Summary datarecording.SummaryEntry   `json:"summary"`
	Runs    []datarecording.PageRunEntry `json:"runs"`
}

func newShowCmd(_ *options) *cobra.Command {
	showCmd := &cobra.Command{
		Use:   "show RECORDING",
		Short: "Print a page table recorded by init.",
		Long: "`show FILE.sqlite3` prints the page counts and the runs of a " +
			"page table recorded with `init --record`.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reader, err := datarecording.NewReader(args[0])
			if err != nil {
				return err
			}
			defer reader.Close()

			r := recording{}

			r.Summary, err = reader.Summary(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", args[0], err)
			}

			r.Runs, err = reader.Runs(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", args[0], err)
			}

			asJSON, _ := cmd.Flags().GetBool("json")
			if asJSON {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(r)
			}

			printRecording(cmd.OutOrStdout(), r)

			return nil
		},
	}

	showCmd.Flags().Bool("json", false, "print the recording as JSON")

	return showCmd
}

func printRecording(w io.Writer, r recording) {
	fmt.Fprintf(w, "Physical pages:  %d\n", r.Summary.NumPages)
	fmt.Fprintf(w, "Unavailable:     %d\n", r.Summary.Unavailable)
	fmt.Fprintf(w, "Kernel reserved: %d\n", r.Summary.KernelReserved)
	fmt.Fprintf(w, "Usable:          %d\n", r.Summary.Usable)

	for _, run := range r.Runs {
		fmt.Fprintf(w, "  [%#08x, %#08x) %-14s %d pages\n",
			run.StartPage, run.StartPage+run.NumPages, run.Perm, run.NumPages)
	}
}
