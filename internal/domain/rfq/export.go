package rfq

import (
	"fmt"
	"strings"
)

type ExportKind string

const (
	ExportStep ExportKind = "step"
	ExportPDF  ExportKind = "pdf"
)

func ParseExportKind(raw string) (ExportKind, error) {
	switch ExportKind(strings.ToLower(strings.TrimSpace(raw))) {
	case ExportStep:
		return ExportStep, nil
	case ExportPDF:
		return ExportPDF, nil
	default:
		return "", fmt.Errorf("unsupported export kind %q", raw)
	}
}

// Extension is the file extension written for the kind, without a dot.
func (k ExportKind) Extension() string { return string(k) }

// ExportRecord is the persisted per-kind generation state of a line item.
type ExportRecord struct {
	Generated bool
	Path      *string
	Size      *int64
}

// Validate enforces generated => path.
func (r ExportRecord) Validate() error {
	if r.Generated && (r.Path == nil || strings.TrimSpace(*r.Path) == "") {
		return fmt.Errorf("%w: generated record without path", ErrInvalidExport)
	}
	if r.Size != nil && *r.Size < 0 {
		return fmt.Errorf("%w: negative size", ErrInvalidExport)
	}
	return nil
}

// HasOutput reports whether the record points at a file that can be packaged.
func (r ExportRecord) HasOutput() bool {
	return r.Path != nil && strings.TrimSpace(*r.Path) != ""
}

func GeneratedRecord(path string, size int64) ExportRecord {
	p := path
	s := size
	return ExportRecord{Generated: true, Path: &p, Size: &s}
}
