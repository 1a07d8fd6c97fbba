// Package exportbridge holds the adapters that drive the CAD export bridge.
package exportbridge

import (
	"context"
	"strings"

	"pdmrelease/internal/ports"
)

// wireResult is the JSON result shape shared by the HTTP and exec bridges.
type wireResult struct {
	Success    bool   `json:"success" jsonschema:"description=true when the file was written"`
	OutputPath string `json:"outputPath" jsonschema:"description=absolute path of the exported file"`
	FileName   string `json:"fileName" jsonschema:"description=base name of the exported file"`
	FileSize   int64  `json:"fileSize" jsonschema:"minimum=0"`
	Error      string `json:"error" jsonschema:"description=failure reason when success is false"`
}

func (w wireResult) toPort() ports.ExportResult {
	return ports.ExportResult{
		Success:    w.Success,
		OutputPath: strings.TrimSpace(w.OutputPath),
		FileName:   strings.TrimSpace(w.FileName),
		FileSize:   w.FileSize,
		Error:      strings.TrimSpace(w.Error),
	}
}

// Unavailable is the bridge used when no bridge is configured. Ping always
// fails so generation reports the service as unavailable.
type Unavailable struct{}

var _ ports.ExportBridge = Unavailable{}

func (Unavailable) Ping(context.Context) error {
	return ports.ErrBridgeNotConfigured
}

func (Unavailable) Export(context.Context, ports.ExportRequest) (ports.ExportResult, error) {
	return ports.ExportResult{}, ports.ErrBridgeNotConfigured
}

func firstLine(s string) string {
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		return strings.TrimSpace(s[:idx])
	}
	return strings.TrimSpace(s)
}

func revisionValue(rev *string) string {
	if rev == nil {
		return ""
	}
	return strings.TrimSpace(*rev)
}
