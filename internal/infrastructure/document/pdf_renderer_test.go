package document

import (
	"bytes"
	"context"
	"errors"
	"os"
	"testing"
	"time"

	domainrfq "pdmrelease/internal/domain/rfq"
	"pdmrelease/internal/ports"
)

func sampleDocument() ports.OrderDocument {
	due := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	return ports.OrderDocument{
		RFQ: ports.RFQ{
			ID:              "rfq-1",
			Number:          "RFQ-000042",
			Title:           "Bracket set",
			Notes:           "Deburr all edges.",
			DueDate:         &due,
			RequiresSamples: true,
		},
		Items: []ports.LineItem{
			{LineNumber: 1, PartNumber: "PN-100", Revision: "B", Description: "Mounting bracket, laser cut and bent", Quantity: 10, Unit: "pcs", Material: "S235"},
		},
		Suppliers:   []ports.SupplierAssignment{{SupplierName: "Müller Blechtechnik"}},
		GeneratedAt: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
	}
}

func TestPDFRendererWritesDocument(t *testing.T) {
	dir := t.TempDir()
	renderer := NewPDFRenderer(Branding{CompanyName: "Acme Fabrication", Email: "buy@acme.test"})

	path, err := renderer.Render(context.Background(), sampleDocument(), dir)
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read rendered file: %v", err)
	}
	if !bytes.HasPrefix(raw, []byte("%PDF")) {
		t.Fatalf("rendered file is not a pdf: %q", raw[:8])
	}
}

func TestPDFRendererRequiresCompanyName(t *testing.T) {
	dir := t.TempDir()
	_, err := NewPDFRenderer(Branding{}).Render(context.Background(), sampleDocument(), dir)
	if !errors.Is(err, domainrfq.ErrDocumentRender) {
		t.Fatalf("Render() error = %v, want ErrDocumentRender", err)
	}

	entries, _ := os.ReadDir(dir)
	if len(entries) != 0 {
		t.Fatalf("Render() left %d files behind", len(entries))
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("short", 40); got != "short" {
		t.Fatalf("truncate() = %q", got)
	}
	if got := truncate("a very long description that overflows", 20); got != "a very ..." {
		t.Fatalf("truncate() = %q, want %q", got, "a very ...")
	}
}
