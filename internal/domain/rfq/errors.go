package rfq

import "errors"

var (
	ErrRFQNotFound      = errors.New("rfq not found")
	ErrItemNotFound     = errors.New("rfq line item not found")
	ErrInvalidStatus    = errors.New("invalid rfq status")
	ErrInvalidQuantity  = errors.New("quantity must be a positive integer")
	ErrInvalidExport    = errors.New("invalid export record")
	ErrStatusTransition = errors.New("rfq status does not allow this action")

	// ErrServiceUnavailable is fatal to a generation batch: the export bridge or
	// the working directory root is missing. Nothing has been mutated.
	ErrServiceUnavailable = errors.New("release generation service unavailable")
	// ErrGenerationInProgress rejects a second batch for an RFQ that already has one running.
	ErrGenerationInProgress = errors.New("release generation already in progress")
	// ErrExportFailed marks a single (item, kind) export failure. It is counted, never fatal.
	ErrExportFailed = errors.New("export failed")

	ErrNothingToPackage = errors.New("no release files generated yet")
	ErrDocumentRender   = errors.New("order document render failed")
	ErrArchiveWrite     = errors.New("release archive write failed")
)
