package cmd

import (
	"log/slog"
	"time"

	"reelpilot/internal/app"
	"reelpilot/pkg/config"

	"github.com/spf13/cobra"
)

var cleanupMaxAge time.Duration

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Delete local files of videos published long enough ago",
	Long: `Sweep the lifecycle registry and delete video and thumbnail files whose
scheduled publish time passed more than the safety window ago. Videos still
scheduled for the future are never touched.`,
	RunE: runCleanup,
}

func init() {
	cleanupCmd.Flags().DurationVar(&cleanupMaxAge, "max-age", 0, "Safety window after publish (default from config)")
	rootCmd.AddCommand(cleanupCmd)
}

func runCleanup(cmd *cobra.Command, args []string) error {
	cfg := config.Load()

	service, err := app.BuildService(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = service.Close() }()

	maxAge := cleanupMaxAge
	if maxAge <= 0 {
		maxAge = time.Duration(cfg.Cleanup.MaxAgeHours) * time.Hour
	}

	deleted, err := service.Registry().CleanupUploaded(maxAge)
	if err != nil {
		return err
	}

	slog.Info("Cleanup complete", "deleted", deleted, "max_age", maxAge)
	return nil
}
