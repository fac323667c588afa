package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/browser"
	"github.com/sarchlab/pmem/monitoring"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newServeCmd(opts *options) *cobra.Command {
	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Build the page table and serve it over HTTP.",
		Long: "`serve --map FILE` builds the page table from the memory map " +
			"and serves it until interrupted.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			table, m, err := opts.initialize()
			if err != nil {
				return err
			}

			port := opts.config.MonitorPort
			if cmd.Flags().Changed("port") {
				port, _ = cmd.Flags().GetInt("port")
			}

			monitor := monitoring.NewMonitor().
				WithLogger(opts.logger).
				WithPortNumber(port)
			monitor.RegisterPageTable(table)
			monitor.RegisterMemoryMap(m)

			url, err := monitor.StartServer()
			if err != nil {
				return err
			}

			cmd.Printf("Serving page table on %s\n", url)

			open, _ := cmd.Flags().GetBool("open")
			if open {
				err = browser.OpenURL(url + "/api/summary")
				if err != nil {
					opts.logger.Warn("failed to open browser", zap.Error(err))
				}
			}

			ctx, stop := signal.NotifyContext(cmd.Context(),
				os.Interrupt, syscall.SIGTERM)
			defer stop()

			<-ctx.Done()

			shutdownCtx, cancel := context.WithTimeout(
				context.Background(), 5*time.Second)
			defer cancel()

			return monitor.Shutdown(shutdownCtx)
		},
	}

	serveCmd.Flags().Int("port", 0, "port to serve on, random if 0")
	serveCmd.Flags().Bool("open", false, "open the summary in a browser")

	return serveCmd
}
