package cmd

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"pdmrelease/internal/bootstrap"
	"pdmrelease/internal/bootstrap/logging"
	"pdmrelease/internal/errs"
	"pdmrelease/internal/usecase/release"
)

var releaseCmd = &cobra.Command{
	Use:   "release",
	Short: "Generate and package RFQ release files",
}

var releaseGenerateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Export missing STEP/PDF files for every line item",
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svc *release.Service) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		rfq, err := resolveRFQFlag(cmd, svc)
		if err != nil {
			return err
		}

		result, err := svc.GenerateReleaseFiles(ctx, rfq.ID)
		if err != nil {
			logging.Error(ctx, "generate release files failed", slog.Any("err", errs.Loggable(err)))
			return describeError(err)
		}

		out := cmd.OutOrStdout()
		if _, err := fmt.Fprintf(out, "%s: %s, status=%s\n", rfq.Number, result.Summary(), result.NewStatus); err != nil {
			return errs.Wrap(err, "write generate output")
		}
		for _, failure := range result.Failures {
			if _, err := fmt.Fprintf(out, "- line %d %s: %s\n", failure.LineNumber, failure.Kind, failure.Message); err != nil {
				return errs.Wrap(err, "write generate output")
			}
		}
		return nil
	}),
}

var releasePackageCmd = &cobra.Command{
	Use:   "package",
	Short: "Bundle generated release files and the order document into a zip",
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svc *release.Service) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		rfq, err := resolveRFQFlag(cmd, svc)
		if err != nil {
			return err
		}

		result, err := svc.GeneratePackageByID(ctx, rfq.ID)
		if err != nil {
			return describeError(err)
		}

		out := cmd.OutOrStdout()
		if _, err := fmt.Fprintf(out, "package written: %s (%d files, order document=%s)\n", result.ArchivePath, result.FileCount, yesNo(result.OrderDocumentIncluded)); err != nil {
			return errs.Wrap(err, "write package output")
		}
		if result.Published != "" {
			if _, err := fmt.Fprintf(out, "published: %s\n", result.Published); err != nil {
				return errs.Wrap(err, "write package output")
			}
		}
		return nil
	}),
}

var releaseEnqueueCmd = &cobra.Command{
	Use:   "enqueue",
	Short: "Queue release file generation for the worker",
	RunE: withApp(func(cmd *cobra.Command, app *bootstrap.App, svc *release.Service) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		if app.Queue == nil {
			return errors.New("queue is disabled (set queue.enabled)")
		}
		rfq, err := resolveRFQFlag(cmd, svc)
		if err != nil {
			return err
		}

		taskID, err := app.Queue.EnqueueGenerate(ctx, rfq.ID)
		if err != nil {
			return describeError(err)
		}
		if _, err := fmt.Fprintf(cmd.OutOrStdout(), "queued generation for %s: task=%s\n", rfq.Number, taskID); err != nil {
			return errs.Wrap(err, "write enqueue output")
		}
		return nil
	}),
}

func init() {
	rootCmd.AddCommand(releaseCmd)
	releaseCmd.AddCommand(releaseGenerateCmd, releasePackageCmd, releaseEnqueueCmd)

	for _, c := range []*cobra.Command{releaseGenerateCmd, releasePackageCmd, releaseEnqueueCmd} {
		c.Flags().String("rfq", "", "RFQ id or number, for example RFQ-000012")
		_ = c.MarkFlagRequired("rfq")
	}
}
