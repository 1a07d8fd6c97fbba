package ports

import (
	"context"
	"time"

	domainrfq "pdmrelease/internal/domain/rfq"
)

type ReleaseEventKind string

const (
	ReleaseEventGenerating ReleaseEventKind = "release.generating"
	ReleaseEventGenerated  ReleaseEventKind = "release.generated"
	ReleaseEventPackaged   ReleaseEventKind = "release.packaged"
)

type ReleaseEvent struct {
	Kind         ReleaseEventKind `json:"kind"`
	RFQID        string           `json:"rfq_id"`
	RFQNumber    string           `json:"rfq_number"`
	Status       domainrfq.Status `json:"status"`
	SuccessCount int              `json:"success_count,omitempty"`
	FailureCount int              `json:"failure_count,omitempty"`
	ArchivePath  string           `json:"archive_path,omitempty"`
	OccurredAt   time.Time        `json:"occurred_at"`
}

// ReleaseNotifier lets other viewers of an RFQ observe release progress.
// Delivery is best effort.
type ReleaseNotifier interface {
	Notify(ctx context.Context, event ReleaseEvent) error
}

// ReleaseMetrics records batch and export outcomes.
type ReleaseMetrics interface {
	ObserveExport(kind domainrfq.ExportKind, success bool, duration time.Duration)
	ObserveBatch(status domainrfq.Status, successCount int, failureCount int, duration time.Duration)
	ObservePackage(success bool, fileCount int)
}
