package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/vietddude/interviewer/internal/control"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show job counts for every work queue",
	Run:   runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) {
	cfg := loadConfig()
	ctx := context.Background()

	app, err := control.New(ctx, cfg, control.Options{})
	if err != nil {
		slog.Error("Failed to initialize interviewer", "error", err)
		os.Exit(1)
	}
	defer func() {
		_ = app.Stop(ctx)
	}()

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.Debug)
	_, _ = fmt.Fprintln(w, "QUEUE\tWAITING\tACTIVE\tCOMPLETED\tFAILED")

	for _, q := range app.Registry().Queues() {
		c, err := q.Counts(ctx)
		if err != nil {
			slog.Warn("Failed to read queue counts", "queue", q.Name(), "error", err)
			continue
		}
		_, _ = fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%d\n", q.Name(), c.Waiting, c.Active, c.Completed, c.Failed)
	}
	_ = w.Flush()
}
