// Package document renders the RFQ order document bundled into release archives.
package document

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-pdf/fpdf"

	domainrfq "pdmrelease/internal/domain/rfq"
	"pdmrelease/internal/errs"
	"pdmrelease/internal/ports"
)

type Branding struct {
	CompanyName string
	Address     string
	Email       string
	Phone       string
}

// PDFRenderer lays the order document out on A4 with fpdf core fonts.
type PDFRenderer struct {
	branding Branding
}

var _ ports.OrderDocumentRenderer = (*PDFRenderer)(nil)

func NewPDFRenderer(branding Branding) *PDFRenderer {
	return &PDFRenderer{branding: branding}
}

type column struct {
	title string
	width float64
	align string
	value func(ports.LineItem) string
}

var itemColumns = []column{
	{title: "#", width: 10, align: "C", value: func(i ports.LineItem) string { return strconv.Itoa(i.LineNumber) }},
	{title: "Part Number", width: 38, align: "L", value: func(i ports.LineItem) string { return i.EffectivePartNumber() }},
	{title: "Rev", width: 12, align: "C", value: func(i ports.LineItem) string { return i.EffectiveRevision() }},
	{title: "Description", width: 52, align: "L", value: func(i ports.LineItem) string { return i.Description }},
	{title: "Qty", width: 14, align: "R", value: func(i ports.LineItem) string { return strconv.Itoa(i.Quantity) }},
	{title: "Unit", width: 12, align: "C", value: func(i ports.LineItem) string { return i.Unit }},
	{title: "Material", width: 26, align: "L", value: func(i ports.LineItem) string { return i.Material }},
	{title: "Finish", width: 26, align: "L", value: func(i ports.LineItem) string { return i.Finish }},
}

func (r *PDFRenderer) Render(ctx context.Context, doc ports.OrderDocument, dir string) (string, error) {
	if ctx == nil {
		return "", errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return "", errs.Wrap(err, "check context")
	}
	if strings.TrimSpace(r.branding.CompanyName) == "" {
		return "", fmt.Errorf("%w: branding company name is not configured", domainrfq.ErrDocumentRender)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("%w: %v", domainrfq.ErrDocumentRender, err)
	}

	pdf := fpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetTitle("Request for Quote "+doc.RFQ.Number, true)
	pdf.SetCreator(r.branding.CompanyName, true)
	pdf.SetMargins(12, 12, 12)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 16)
	pdf.Cell(0, 8, tr(r.branding.CompanyName))
	pdf.Ln(8)
	pdf.SetFont("Helvetica", "", 9)
	for _, line := range []string{r.branding.Address, r.branding.Email, r.branding.Phone} {
		if strings.TrimSpace(line) == "" {
			continue
		}
		pdf.Cell(0, 4.5, tr(line))
		pdf.Ln(4.5)
	}
	pdf.Ln(6)

	pdf.SetFont("Helvetica", "B", 14)
	pdf.Cell(0, 7, tr("Request for Quote "+doc.RFQ.Number))
	pdf.Ln(8)

	pdf.SetFont("Helvetica", "", 10)
	meta := [][2]string{
		{"Title", doc.RFQ.Title},
		{"Date", doc.GeneratedAt.Format("2006-01-02")},
	}
	if doc.RFQ.DueDate != nil {
		meta = append(meta, [2]string{"Quote due", doc.RFQ.DueDate.Format("2006-01-02")})
	}
	if req := requirements(doc.RFQ); req != "" {
		meta = append(meta, [2]string{"Requirements", req})
	}
	for _, kv := range meta {
		pdf.SetFont("Helvetica", "B", 10)
		pdf.CellFormat(30, 5.5, tr(kv[0]+":"), "", 0, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", 10)
		pdf.CellFormat(0, 5.5, tr(kv[1]), "", 1, "L", false, 0, "")
	}
	pdf.Ln(4)

	pdf.SetFont("Helvetica", "B", 9)
	pdf.SetFillColor(230, 230, 230)
	for _, col := range itemColumns {
		pdf.CellFormat(col.width, 6, col.title, "1", 0, col.align, true, 0, "")
	}
	pdf.Ln(-1)
	pdf.SetFont("Helvetica", "", 9)
	for _, item := range doc.Items {
		for _, col := range itemColumns {
			pdf.CellFormat(col.width, 6, tr(truncate(col.value(item), col.width)), "1", 0, col.align, false, 0, "")
		}
		pdf.Ln(-1)
	}

	if notes := strings.TrimSpace(doc.RFQ.Notes); notes != "" {
		pdf.Ln(4)
		pdf.SetFont("Helvetica", "B", 10)
		pdf.Cell(0, 6, "Notes")
		pdf.Ln(6)
		pdf.SetFont("Helvetica", "", 9)
		pdf.MultiCell(0, 4.5, tr(notes), "", "L", false)
	}

	if len(doc.Suppliers) > 0 {
		pdf.Ln(4)
		pdf.SetFont("Helvetica", "B", 10)
		pdf.Cell(0, 6, "Requested from")
		pdf.Ln(6)
		pdf.SetFont("Helvetica", "", 9)
		for _, s := range doc.Suppliers {
			pdf.Cell(0, 4.5, tr(s.SupplierName))
			pdf.Ln(4.5)
		}
	}

	path := filepath.Join(dir, domainrfq.ArchiveDirName(doc.RFQ.Number, doc.RFQ.ID)+"_order.pdf")
	if err := pdf.OutputFileAndClose(path); err != nil {
		_ = os.Remove(path)
		return "", fmt.Errorf("%w: %v", domainrfq.ErrDocumentRender, err)
	}
	return path, nil
}

func requirements(rfq ports.RFQ) string {
	var parts []string
	if rfq.RequiresSamples {
		parts = append(parts, "samples")
	}
	if rfq.RequiresFirstArticle {
		parts = append(parts, "first article inspection")
	}
	if rfq.RequiresQualityReport {
		parts = append(parts, "quality report")
	}
	return strings.Join(parts, ", ")
}

// truncate keeps table cells on one line; roughly 2mm per character at 9pt.
func truncate(s string, width float64) string {
	limit := int(width / 2)
	runes := []rune(strings.TrimSpace(s))
	if len(runes) <= limit || limit < 4 {
		return string(runes)
	}
	return string(runes[:limit-3]) + "..."
}
