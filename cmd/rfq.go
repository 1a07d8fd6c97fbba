package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"pdmrelease/internal/bootstrap"
	"pdmrelease/internal/bootstrap/logging"
	domainrfq "pdmrelease/internal/domain/rfq"
	"pdmrelease/internal/errs"
	"pdmrelease/internal/ports"
	"pdmrelease/internal/usecase/release"
)

var rfqCmd = &cobra.Command{
	Use:   "rfq",
	Short: "Manage RFQs, their line items and suppliers",
}

var rfqCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a draft RFQ",
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svc *release.Service) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		title, _ := cmd.Flags().GetString("title")
		notes, _ := cmd.Flags().GetString("notes")
		due, _ := cmd.Flags().GetString("due")
		samples, _ := cmd.Flags().GetBool("samples")
		firstArticle, _ := cmd.Flags().GetBool("first-article")
		qualityReport, _ := cmd.Flags().GetBool("quality-report")

		input := release.CreateRFQInput{
			Title:                 title,
			Notes:                 notes,
			RequiresSamples:       samples,
			RequiresFirstArticle:  firstArticle,
			RequiresQualityReport: qualityReport,
		}
		if strings.TrimSpace(due) != "" {
			dueDate, err := time.Parse(time.DateOnly, strings.TrimSpace(due))
			if err != nil {
				return errs.Wrapf(err, "parse due date %q", due)
			}
			input.DueDate = &dueDate
		}

		created, err := svc.CreateRFQ(ctx, input)
		if err != nil {
			logging.Error(ctx, "create rfq failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "create rfq")
		}

		if _, err := fmt.Fprintf(cmd.OutOrStdout(), "created rfq: %s id=%s\n", created.Number, created.ID); err != nil {
			return errs.Wrap(err, "write create output")
		}
		return nil
	}),
}

var rfqListCmd = &cobra.Command{
	Use:   "list",
	Short: "List RFQs, newest first",
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svc *release.Service) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		rawStatuses, _ := cmd.Flags().GetStringSlice("status")
		limit, _ := cmd.Flags().GetInt("limit")

		statuses := make([]domainrfq.Status, 0, len(rawStatuses))
		for _, raw := range rawStatuses {
			status, err := domainrfq.ParseStatus(raw)
			if err != nil {
				return err
			}
			statuses = append(statuses, status)
		}

		rfqs, err := svc.ListRFQs(ctx, statuses, limit)
		if err != nil {
			return errs.Wrap(err, "list rfqs")
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "NUMBER\tSTATUS\tRELEASE FILES\tTITLE\tID")
		for _, rfq := range rfqs {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", rfq.Number, rfq.Status, yesNo(rfq.ReleaseFilesGenerated), rfq.Title, rfq.ID)
		}
		if err := w.Flush(); err != nil {
			return errs.Wrap(err, "write list output")
		}
		return nil
	}),
}

var rfqShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show an RFQ with line items, export state and suppliers",
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svc *release.Service) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		ref, _ := cmd.Flags().GetString("rfq")
		output, _ := cmd.Flags().GetString("output")
		detail, err := svc.GetRFQ(ctx, ref)
		if err != nil {
			return describeError(errs.Wrap(err, "load rfq"))
		}

		switch strings.ToLower(strings.TrimSpace(output)) {
		case "", "text":
			err = writeRFQDetail(cmd.OutOrStdout(), detail)
		case "json":
			encoder := json.NewEncoder(cmd.OutOrStdout())
			encoder.SetIndent("", "  ")
			err = encoder.Encode(toDetailResponse(detail))
		case "yaml":
			err = writeYAML(cmd.OutOrStdout(), toDetailResponse(detail))
		default:
			return fmt.Errorf("unsupported output %q (text|json|yaml)", output)
		}
		if err != nil {
			return errs.Wrap(err, "write show output")
		}
		return nil
	}),
}

var rfqAddItemCmd = &cobra.Command{
	Use:   "add-item",
	Short: "Append a line item for a vault file",
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svc *release.Service) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		rfq, err := resolveRFQFlag(cmd, svc)
		if err != nil {
			return err
		}

		input := release.AddLineItemInput{RFQID: rfq.ID}
		input.SourcePath, _ = cmd.Flags().GetString("file")
		input.PartNumber, _ = cmd.Flags().GetString("part-number")
		input.Revision, _ = cmd.Flags().GetString("revision")
		input.Description, _ = cmd.Flags().GetString("description")
		input.Quantity, _ = cmd.Flags().GetInt("quantity")
		input.Unit, _ = cmd.Flags().GetString("unit")
		input.Material, _ = cmd.Flags().GetString("material")
		input.Finish, _ = cmd.Flags().GetString("finish")
		input.Tolerance, _ = cmd.Flags().GetString("tolerance")
		input.Notes, _ = cmd.Flags().GetString("notes")
		input.Configuration, _ = cmd.Flags().GetString("configuration")

		item, err := svc.AddLineItem(ctx, input)
		if err != nil {
			logging.Error(ctx, "add line item failed", slog.Any("err", errs.Loggable(err)))
			return describeError(err)
		}

		if _, err := fmt.Fprintf(cmd.OutOrStdout(), "added line %d to %s: item=%s\n", item.LineNumber, rfq.Number, item.ID); err != nil {
			return errs.Wrap(err, "write add-item output")
		}
		return nil
	}),
}

var rfqRemoveItemCmd = &cobra.Command{
	Use:   "remove-item",
	Short: "Remove a line item and renumber the remaining lines",
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svc *release.Service) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		itemID, _ := cmd.Flags().GetString("item")
		if err := svc.RemoveLineItem(ctx, itemID); err != nil {
			return describeError(err)
		}
		if _, err := fmt.Fprintf(cmd.OutOrStdout(), "removed item: %s\n", itemID); err != nil {
			return errs.Wrap(err, "write remove-item output")
		}
		return nil
	}),
}

var rfqSetQuantityCmd = &cobra.Command{
	Use:   "set-qty",
	Short: "Change the quantity of a line item",
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svc *release.Service) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		itemID, _ := cmd.Flags().GetString("item")
		quantity, _ := cmd.Flags().GetInt("quantity")
		if err := svc.UpdateItemQuantity(ctx, itemID, quantity); err != nil {
			return describeError(err)
		}
		if _, err := fmt.Fprintf(cmd.OutOrStdout(), "item %s quantity=%d\n", itemID, quantity); err != nil {
			return errs.Wrap(err, "write set-qty output")
		}
		return nil
	}),
}

var rfqResetExportsCmd = &cobra.Command{
	Use:   "reset-exports",
	Short: "Clear the STEP/PDF records of a line item so they are exported again",
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svc *release.Service) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		itemID, _ := cmd.Flags().GetString("item")
		if err := svc.ResetItemExports(ctx, itemID); err != nil {
			return describeError(err)
		}
		if _, err := fmt.Fprintf(cmd.OutOrStdout(), "exports reset for item: %s\n", itemID); err != nil {
			return errs.Wrap(err, "write reset-exports output")
		}
		return nil
	}),
}

var rfqAddSupplierCmd = &cobra.Command{
	Use:   "add-supplier",
	Short: "Assign a supplier to an RFQ",
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svc *release.Service) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		rfq, err := resolveRFQFlag(cmd, svc)
		if err != nil {
			return err
		}
		supplierID, _ := cmd.Flags().GetString("supplier-id")
		name, _ := cmd.Flags().GetString("name")

		assignment, err := svc.AddSupplier(ctx, release.AddSupplierInput{
			RFQID:        rfq.ID,
			SupplierID:   supplierID,
			SupplierName: name,
		})
		if err != nil {
			return describeError(err)
		}
		if _, err := fmt.Fprintf(cmd.OutOrStdout(), "supplier %s assigned to %s\n", assignment.SupplierName, rfq.Number); err != nil {
			return errs.Wrap(err, "write add-supplier output")
		}
		return nil
	}),
}

var rfqSendCmd = &cobra.Command{
	Use:   "send",
	Short: "Mark a ready RFQ as sent to its suppliers",
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svc *release.Service) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		rfq, err := resolveRFQFlag(cmd, svc)
		if err != nil {
			return err
		}
		sent, err := svc.MarkSent(ctx, rfq.ID)
		if err != nil {
			return describeError(err)
		}
		if _, err := fmt.Fprintf(cmd.OutOrStdout(), "%s status=%s\n", sent.Number, sent.Status); err != nil {
			return errs.Wrap(err, "write send output")
		}
		return nil
	}),
}

func init() {
	rootCmd.AddCommand(rfqCmd)
	rfqCmd.AddCommand(
		rfqCreateCmd,
		rfqListCmd,
		rfqShowCmd,
		rfqAddItemCmd,
		rfqRemoveItemCmd,
		rfqSetQuantityCmd,
		rfqResetExportsCmd,
		rfqAddSupplierCmd,
		rfqSendCmd,
	)

	rfqCreateCmd.Flags().String("title", "", "RFQ title")
	rfqCreateCmd.Flags().String("notes", "", "Notes printed on the order document")
	rfqCreateCmd.Flags().String("due", "", "Quote due date (YYYY-MM-DD)")
	rfqCreateCmd.Flags().Bool("samples", false, "Supplier must provide samples")
	rfqCreateCmd.Flags().Bool("first-article", false, "Supplier must provide a first article inspection")
	rfqCreateCmd.Flags().Bool("quality-report", false, "Supplier must provide a quality report")
	_ = rfqCreateCmd.MarkFlagRequired("title")

	rfqListCmd.Flags().StringSlice("status", nil, "Status filter, repeatable")
	rfqListCmd.Flags().Int("limit", 50, "Maximum number of RFQs")

	rfqShowCmd.Flags().StringP("output", "o", "text", "Output format (text|json|yaml)")

	for _, c := range []*cobra.Command{rfqShowCmd, rfqAddItemCmd, rfqAddSupplierCmd, rfqSendCmd} {
		c.Flags().String("rfq", "", "RFQ id or number, for example RFQ-000012")
		_ = c.MarkFlagRequired("rfq")
	}

	rfqAddItemCmd.Flags().String("file", "", "Source file path relative to the vault root")
	rfqAddItemCmd.Flags().String("part-number", "", "Part number (defaults to the file's)")
	rfqAddItemCmd.Flags().String("revision", "", "Revision (defaults to the file's)")
	rfqAddItemCmd.Flags().String("description", "", "Line description")
	rfqAddItemCmd.Flags().Int("quantity", 1, "Quantity")
	rfqAddItemCmd.Flags().String("unit", "pcs", "Unit")
	rfqAddItemCmd.Flags().String("material", "", "Material")
	rfqAddItemCmd.Flags().String("finish", "", "Finish")
	rfqAddItemCmd.Flags().String("tolerance", "", "Tolerance")
	rfqAddItemCmd.Flags().String("notes", "", "Line notes")
	rfqAddItemCmd.Flags().String("configuration", "", "CAD configuration exported to STEP")
	_ = rfqAddItemCmd.MarkFlagRequired("file")

	for _, c := range []*cobra.Command{rfqRemoveItemCmd, rfqSetQuantityCmd, rfqResetExportsCmd} {
		c.Flags().String("item", "", "Line item id")
		_ = c.MarkFlagRequired("item")
	}
	rfqSetQuantityCmd.Flags().Int("quantity", 0, "New quantity")
	_ = rfqSetQuantityCmd.MarkFlagRequired("quantity")

	rfqAddSupplierCmd.Flags().String("supplier-id", "", "Supplier id (generated when empty)")
	rfqAddSupplierCmd.Flags().String("name", "", "Supplier name")
	_ = rfqAddSupplierCmd.MarkFlagRequired("name")
}

func resolveRFQFlag(cmd *cobra.Command, svc *release.Service) (ports.RFQ, error) {
	ref, _ := cmd.Flags().GetString("rfq")
	rfq, err := svc.ResolveRFQ(cmd.Context(), ref)
	if err != nil {
		return ports.RFQ{}, describeError(errs.Wrapf(err, "resolve rfq %q", ref))
	}
	return rfq, nil
}

func writeRFQDetail(out io.Writer, detail release.RFQDetail) error {
	rfq := detail.RFQ
	fmt.Fprintf(out, "Number: %s\n", rfq.Number)
	fmt.Fprintf(out, "ID: %s\n", rfq.ID)
	fmt.Fprintf(out, "Title: %s\n", rfq.Title)
	fmt.Fprintf(out, "Status: %s\n", rfq.Status)
	fmt.Fprintf(out, "Release files: %s\n", yesNo(rfq.ReleaseFilesGenerated))
	if rfq.ReleaseFilesGeneratedAt != nil {
		fmt.Fprintf(out, "Generated at: %s\n", rfq.ReleaseFilesGeneratedAt.UTC().Format(time.RFC3339))
	}
	if rfq.DueDate != nil {
		fmt.Fprintf(out, "Due: %s\n", rfq.DueDate.Format(time.DateOnly))
	}

	fmt.Fprintln(out, "\nItems:")
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "LINE\tPART\tREV\tQTY\tFILE\tSTEP\tPDF\tID")
	for _, item := range detail.Items {
		fmt.Fprintf(w, "%d\t%s\t%s\t%d %s\t%s\t%s\t%s\t%s\n",
			item.LineNumber,
			item.EffectivePartNumber(),
			item.EffectiveRevision(),
			item.Quantity,
			item.Unit,
			item.Source.RelativePath,
			exportState(item, domainrfq.ExportStep),
			exportState(item, domainrfq.ExportPDF),
			item.ID,
		)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	fmt.Fprintln(out, "\nSuppliers:")
	if len(detail.Suppliers) == 0 {
		_, err := fmt.Fprintln(out, "- none")
		return err
	}
	for _, supplier := range detail.Suppliers {
		sent := "not sent"
		if supplier.SentAt != nil {
			sent = "sent " + supplier.SentAt.UTC().Format(time.RFC3339)
		}
		if _, err := fmt.Fprintf(out, "- %s (%s) %s\n", supplier.SupplierName, supplier.SupplierID, sent); err != nil {
			return err
		}
	}
	return nil
}

// writeYAML renders value through its JSON field names.
func writeYAML(out io.Writer, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return err
	}
	encoder := yaml.NewEncoder(out)
	encoder.SetIndent(2)
	if err := encoder.Encode(generic); err != nil {
		return err
	}
	return encoder.Close()
}

func exportState(item ports.LineItem, kind domainrfq.ExportKind) string {
	if item.Export(kind).HasOutput() {
		return "ok"
	}
	for _, pending := range item.PendingExports() {
		if pending == kind {
			return "missing"
		}
	}
	return "-"
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}

// describeError prefixes known release errors with the message shown to users.
func describeError(err error) error {
	if err == nil {
		return nil
	}
	if msg := userMessage(err); msg != "" {
		return fmt.Errorf("%s: %w", msg, err)
	}
	return err
}

func userMessage(err error) string {
	switch {
	case errors.Is(err, domainrfq.ErrServiceUnavailable):
		return "Export service is not available"
	case errors.Is(err, domainrfq.ErrGenerationInProgress):
		return "Release file generation is already running for this RFQ"
	case errors.Is(err, domainrfq.ErrNothingToPackage):
		return "No release files generated yet"
	case errors.Is(err, domainrfq.ErrArchiveWrite):
		return "Release package could not be written"
	case errors.Is(err, domainrfq.ErrRFQNotFound):
		return "RFQ not found"
	case errors.Is(err, domainrfq.ErrItemNotFound):
		return "Line item not found"
	case errors.Is(err, domainrfq.ErrStatusTransition):
		return "RFQ cannot be changed in its current status"
	case errors.Is(err, domainrfq.ErrInvalidQuantity):
		return "Quantity must be greater than zero"
	}
	return ""
}
