package ports

import (
	"context"
	"errors"
	"strings"
	"time"

	domainrfq "pdmrelease/internal/domain/rfq"
)

var (
	ErrRFQNotFound  = domainrfq.ErrRFQNotFound
	ErrItemNotFound = domainrfq.ErrItemNotFound
	ErrDuplicateRFQ = errors.New("rfq number already exists")
)

type RFQ struct {
	ID                      string
	Number                  string
	Title                   string
	Status                  domainrfq.Status
	BillingAddressID        *string
	ShippingAddressID       *string
	RequiresSamples         bool
	RequiresFirstArticle    bool
	RequiresQualityReport   bool
	ReleaseFilesGenerated   bool
	ReleaseFilesGeneratedAt *time.Time
	Notes                   string
	DueDate                 *time.Time
	CreatedAt               time.Time
	UpdatedAt               time.Time
}

type RFQCreate struct {
	ID                    string
	Title                 string
	BillingAddressID      *string
	ShippingAddressID     *string
	RequiresSamples       bool
	RequiresFirstArticle  bool
	RequiresQualityReport bool
	Notes                 string
	DueDate               *time.Time
	CreatedAt             time.Time
}

type RFQFilter struct {
	Statuses []domainrfq.Status
	Limit    int
}

// SourceFile is the vault file a line item points at.
type SourceFile struct {
	ID           string
	RelativePath string
	FileName     string
	Extension    string
	PartNumber   string
	Revision     string
	Version      int
}

type LineItem struct {
	ID            string
	RFQID         string
	LineNumber    int
	SourceFileID  string
	Source        SourceFile
	PartNumber    string
	Description   string
	Revision      string
	Quantity      int
	Unit          string
	Material      string
	Finish        string
	Tolerance     string
	Notes         string
	Configuration string
	Step          domainrfq.ExportRecord
	PDF           domainrfq.ExportRecord
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Export returns the record for kind.
func (i LineItem) Export(kind domainrfq.ExportKind) domainrfq.ExportRecord {
	if kind == domainrfq.ExportPDF {
		return i.PDF
	}
	return i.Step
}

// EffectivePartNumber prefers the item's own part number over the source file's.
func (i LineItem) EffectivePartNumber() string {
	if pn := strings.TrimSpace(i.PartNumber); pn != "" {
		return pn
	}
	return strings.TrimSpace(i.Source.PartNumber)
}

func (i LineItem) EffectiveRevision() string {
	if rev := strings.TrimSpace(i.Revision); rev != "" {
		return rev
	}
	return strings.TrimSpace(i.Source.Revision)
}

// PendingExports lists kinds the item still needs for its release files.
func (i LineItem) PendingExports() []domainrfq.ExportKind {
	return domainrfq.RequiredExports(i.Source.Extension, i.Step, i.PDF)
}

type LineItemCreate struct {
	ID            string
	RFQID         string
	SourceFileID  string
	PartNumber    string
	Description   string
	Revision      string
	Quantity      int
	Unit          string
	Material      string
	Finish        string
	Tolerance     string
	Notes         string
	Configuration string
	CreatedAt     time.Time
}

type SupplierAssignment struct {
	ID           string
	RFQID        string
	SupplierID   string
	SupplierName string
	QuotedAmount *float64
	Currency     *string
	LeadTimeDays *int
	SentAt       *time.Time
	QuotedAt     *time.Time
	CreatedAt    time.Time
}

// ReleaseStateUpdate is the single aggregate write at the end of a batch.
type ReleaseStateUpdate struct {
	RFQID       string
	Status      domainrfq.Status
	Generated   bool
	GeneratedAt *time.Time
	UpdatedAt   time.Time
}

type RFQReadRepository interface {
	GetRFQ(ctx context.Context, rfqID string) (RFQ, error)
	GetRFQByNumber(ctx context.Context, number string) (RFQ, error)
	ListRFQs(ctx context.Context, filter RFQFilter) ([]RFQ, error)
	// ListItemsForRFQ returns items ordered by line number with their source file joined.
	ListItemsForRFQ(ctx context.Context, rfqID string) ([]LineItem, error)
	GetItem(ctx context.Context, itemID string) (LineItem, error)
	ListSuppliers(ctx context.Context, rfqID string) ([]SupplierAssignment, error)
	CountSuppliers(ctx context.Context, rfqID string) (int, error)
}

type RFQRepository interface {
	RFQReadRepository
	CreateRFQ(ctx context.Context, input RFQCreate) (RFQ, error)
	CreateSourceFile(ctx context.Context, file SourceFile) (SourceFile, error)
	// CreateItem appends the item after the current last line number.
	CreateItem(ctx context.Context, input LineItemCreate) (LineItem, error)
	DeleteItem(ctx context.Context, itemID string) error
	// RenumberItems restores dense 1-based line numbers keeping relative order.
	RenumberItems(ctx context.Context, rfqID string) error
	UpdateItemQuantity(ctx context.Context, itemID string, quantity int, updatedAt time.Time) error
	SetItemExport(ctx context.Context, itemID string, kind domainrfq.ExportKind, record domainrfq.ExportRecord, updatedAt time.Time) error
	CreateSupplier(ctx context.Context, input SupplierAssignment) (SupplierAssignment, error)
	MarkSuppliersSent(ctx context.Context, rfqID string, sentAt time.Time) error
	SetRFQStatus(ctx context.Context, rfqID string, status domainrfq.Status, updatedAt time.Time) error
	UpdateRFQReleaseState(ctx context.Context, input ReleaseStateUpdate) error
}
