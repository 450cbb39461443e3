package cmd

import (
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"reelpilot/internal/app"
	"reelpilot/pkg/config"

	"github.com/spf13/cobra"
)

var runInterval time.Duration

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Daemon mode: poll the upload queue until interrupted",
	Long: `Run the upload worker continuously. Each cycle uploads whatever is due,
defers on quota exhaustion, and periodically sweeps published files from disk.
SIGINT or SIGTERM stops the loop between items.`,
	RunE: runDaemon,
}

func init() {
	runCmd.Flags().DurationVarP(&runInterval, "interval", "i", 0, "Poll interval (default from config)")
	rootCmd.AddCommand(runCmd)
}

func runDaemon(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := config.Load()

	service, err := app.BuildService(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = service.Close() }()

	interval := runInterval
	if interval <= 0 {
		interval = time.Duration(cfg.Upload.PollSeconds) * time.Second
	}

	slog.Info("Starting daemon mode", "interval", interval)
	return service.Worker().Run(ctx, interval)
}
