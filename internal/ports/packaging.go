package ports

import (
	"context"
	"time"
)

// OrderDocument is what the order document renderer needs; the RFQ and items
// are the ones already loaded for packaging.
type OrderDocument struct {
	RFQ         RFQ
	Items       []LineItem
	Suppliers   []SupplierAssignment
	GeneratedAt time.Time
}

type OrderDocumentRenderer interface {
	// Render writes the document into dir and returns the file path.
	Render(ctx context.Context, doc OrderDocument, dir string) (string, error)
}

type ArchiveEntry struct {
	Name       string
	SourcePath string
}

// ArchiveWriter creates dest from entries or leaves nothing new behind.
type ArchiveWriter interface {
	Write(ctx context.Context, dest string, entries []ArchiveEntry) (int64, error)
}

type ArchivePublisher interface {
	Publish(ctx context.Context, rfq RFQ, archivePath string) (string, error)
}
