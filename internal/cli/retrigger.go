package cli

import (
	"context"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/vietddude/interviewer/internal/control"
)

var retriggerLimit int

var retriggerCmd = &cobra.Command{
	Use:   "retrigger",
	Short: "Enqueue evaluation jobs for answered items that were never evaluated",
	Run:   runRetrigger,
}

func init() {
	retriggerCmd.Flags().IntVar(&retriggerLimit, "limit", 500, "maximum number of rounds to scan")
	rootCmd.AddCommand(retriggerCmd)
}

func runRetrigger(cmd *cobra.Command, args []string) {
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

	n, err := app.Retriggerer().Retrigger(ctx, retriggerLimit)
	if err != nil {
		slog.Error("Retrigger failed", "error", err, "enqueued", n)
		os.Exit(1)
	}
	slog.Info("Retrigger complete", "enqueued", n)
}
