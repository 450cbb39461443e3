package cmd

import (
	"fmt"
	"path/filepath"

	"reelpilot/internal/app"
	"reelpilot/internal/archive"
	"reelpilot/pkg/config"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
)

var (
	statusHeaderStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	statusOKStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	statusWarnStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	statusErrStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	statusDimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show registry, queue, quota and archive status",
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg := config.Load()

	service, err := app.BuildService(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = service.Close() }()

	printRegistryStatus(service)
	printQueueStatus(service)
	printQuotaStatus(service, cfg)
	printArchiveStatus(cfg)

	fmt.Println()
	return nil
}

func printRegistryStatus(service *app.Service) {
	fmt.Println(statusHeaderStyle.Render("\nVideo Lifecycle"))

	stats, err := service.Registry().Stats()
	if err != nil {
		fmt.Println(statusErrStyle.Render("  failed to read registry: " + err.Error()))
		return
	}

	fmt.Printf("  Total videos:   %d\n", stats.TotalVideos)
	for status, count := range stats.ByStatus {
		fmt.Printf("  %-15s %d\n", string(status)+":", count)
	}
	fmt.Printf("  Disk usage:     %.1f MB\n", stats.TotalSizeMB)
	if stats.LastCleanup != nil {
		fmt.Println(statusDimStyle.Render("  Last cleanup:   " + stats.LastCleanup.Format("2006-01-02 15:04")))
	}
}

func printQueueStatus(service *app.Service) {
	fmt.Println(statusHeaderStyle.Render("\nUpload Queue"))

	pending, err := service.Queue().ListPending()
	if err != nil {
		fmt.Println(statusErrStyle.Render("  failed to read queue: " + err.Error()))
		return
	}

	if len(pending) == 0 {
		fmt.Println(statusOKStyle.Render("  No pending uploads"))
		return
	}

	for _, item := range pending {
		line := fmt.Sprintf("  %-10s %-30s scheduled %s", item.Type, filepath.Base(item.FilePath), item.ScheduledTime)
		if item.Attempts > 0 {
			line += statusWarnStyle.Render(fmt.Sprintf("  (attempts: %d, last error: %s)", item.Attempts, item.LastError))
		}
		fmt.Println(line)
	}
}

func printQuotaStatus(service *app.Service, cfg *config.Config) {
	fmt.Println(statusHeaderStyle.Render("\nAPI Quota"))

	usage, err := service.Ledger().CurrentUsage(cfg.Upload.DailyQuota)
	if err != nil {
		fmt.Println(statusErrStyle.Render("  failed to read quota ledger: " + err.Error()))
		return
	}

	line := fmt.Sprintf("  Used %d of %d units (%.0f%%), resets %s",
		usage.Used, usage.Limit, usage.Percentage, usage.ResetAt.Local().Format("2006-01-02 15:04"))
	switch {
	case usage.Percentage >= 90:
		fmt.Println(statusErrStyle.Render(line))
	case usage.Percentage >= 70:
		fmt.Println(statusWarnStyle.Render(line))
	default:
		fmt.Println(statusOKStyle.Render(line))
	}

	history, err := service.Ledger().History(7)
	if err != nil || len(history) == 0 {
		return
	}
	fmt.Println(statusDimStyle.Render(fmt.Sprintf("  %d operations recorded in the last 7 days", len(history))))
}

func printArchiveStatus(cfg *config.Config) {
	if !cfg.Archive.Enabled {
		return
	}

	fmt.Println(statusHeaderStyle.Render("\nArchive"))

	stats, err := archive.NewArchiver(cfg.Storage.ArchiveDir).Stats()
	if err != nil {
		fmt.Println(statusErrStyle.Render("  failed to read archive: " + err.Error()))
		return
	}
	if stats.TotalVideos == 0 {
		fmt.Println(statusDimStyle.Render("  Archive is empty"))
		return
	}
	fmt.Printf("  %d videos over %d days (%s to %s)\n",
		stats.TotalVideos, stats.TotalDays, stats.OldestDate, stats.NewestDate)
}
