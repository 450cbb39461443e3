package cmd

import (
	"log/slog"

	"reelpilot/internal/app"
	"reelpilot/pkg/config"

	"github.com/spf13/cobra"
)

var pollCmd = &cobra.Command{
	Use:   "poll",
	Short: "Run a single upload poll cycle",
	Long: `Load the pending queue once, upload whatever is due, and exit. Useful
under cron or for manual retries; state files are lock-protected so a running
daemon and a manual poll cannot corrupt each other.`,
	RunE: runPoll,
}

func init() {
	rootCmd.AddCommand(pollCmd)
}

func runPoll(cmd *cobra.Command, args []string) error {
	cfg := config.Load()

	service, err := app.BuildService(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = service.Close() }()

	summary, err := service.Worker().PollOnce(cmd.Context())
	if err != nil {
		return err
	}

	slog.Info("Poll cycle complete",
		"uploaded", summary.Uploaded, "failed", summary.Failed, "pending", summary.Pending)
	return nil
}
