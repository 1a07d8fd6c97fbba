package ports

import (
	"context"
	"errors"

	domainrfq "pdmrelease/internal/domain/rfq"
)

var ErrBridgeNotConfigured = errors.New("export bridge is not configured")

type ExportRequest struct {
	SourceFilePath string
	Kind           domainrfq.ExportKind
	PartNumber     string
	Revision       *string
	// Configuration names the CAD configuration to export; STEP on parts and
	// assemblies only.
	Configuration string
}

type ExportResult struct {
	Success    bool
	OutputPath string
	FileName   string
	FileSize   int64
	Error      string
}

// ExportBridge converts one CAD source file per call. Calls may be slow and
// may fail; callers must not issue them concurrently.
type ExportBridge interface {
	// Ping reports whether the bridge can take requests right now.
	Ping(ctx context.Context) error
	Export(ctx context.Context, req ExportRequest) (ExportResult, error)
}
