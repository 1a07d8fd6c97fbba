package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"pdmrelease/internal/bootstrap"
	"pdmrelease/internal/bootstrap/logging"
	"pdmrelease/internal/errs"
	"pdmrelease/internal/infrastructure/exportbridge"
	"pdmrelease/internal/usecase/release"
)

var bridgeCmd = &cobra.Command{
	Use:   "bridge",
	Short: "Inspect the CAD export bridge",
}

var bridgePingCmd = &cobra.Command{
	Use:   "ping",
	Short: "Check that the configured export bridge and vault root are usable",
	RunE: withApp(func(cmd *cobra.Command, app *bootstrap.App, svc *release.Service) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		if err := svc.CheckAvailability(ctx); err != nil {
			return describeError(err)
		}
		if _, err := fmt.Fprintf(cmd.OutOrStdout(), "export bridge ready: mode=%s workdir=%s\n", app.Config.Bridge.Mode, app.Config.Workdir.Root); err != nil {
			return errs.Wrap(err, "write ping output")
		}
		return nil
	}),
}

var bridgeSchemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Print the JSON schema of export requests and results",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return exportbridge.WriteContractSchemas(cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.AddCommand(bridgeCmd)
	bridgeCmd.AddCommand(bridgePingCmd, bridgeSchemaCmd)
}
