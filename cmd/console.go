package cmd

import (
	"log/slog"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"pdmrelease/internal/bootstrap"
	"pdmrelease/internal/bootstrap/logging"
	"pdmrelease/internal/errs"
	"pdmrelease/internal/usecase/release"
	"pdmrelease/internal/usecase/releaseconsole"
)

var consoleCmd = &cobra.Command{
	Use:   "console",
	Short: "Start the release terminal console",
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svc *release.Service) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		status, _ := cmd.Flags().GetString("status")
		limit, _ := cmd.Flags().GetInt("limit")
		refreshInterval, _ := cmd.Flags().GetDuration("refresh-interval")

		model := releaseconsole.NewConsoleModel(ctx, svc, releaseconsole.Options{
			StatusFilter:    status,
			Limit:           limit,
			RefreshInterval: refreshInterval,
		})

		program := tea.NewProgram(model, tea.WithAltScreen())
		if _, err := program.Run(); err != nil {
			return errs.Wrap(err, "run release console")
		}
		return nil
	}),
}

func init() {
	rootCmd.AddCommand(consoleCmd)
	consoleCmd.Flags().String("status", "", "Comma separated status filter, for example pending_files,ready")
	consoleCmd.Flags().Int("limit", 50, "Maximum number of RFQs listed")
	consoleCmd.Flags().Duration("refresh-interval", 5*time.Second, "Auto refresh interval")
}
