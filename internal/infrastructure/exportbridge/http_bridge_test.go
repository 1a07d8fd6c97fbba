package exportbridge

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainrfq "pdmrelease/internal/domain/rfq"
	"pdmrelease/internal/ports"
)

func TestHTTPBridgeExportRoundTrip(t *testing.T) {
	var got httpExportRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/health":
			w.WriteHeader(http.StatusOK)
		case "/export":
			require.Equal(t, http.MethodPost, r.Method)
			require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
			_ = json.NewEncoder(w).Encode(map[string]any{
				"success":    true,
				"outputPath": `C:\Vault\out\PN-1_REVA.step`,
				"fileName":   "PN-1_REVA.step",
				"fileSize":   2048,
			})
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	bridge, err := NewHTTPBridge(HTTPOptions{BaseURL: srv.URL + "/"})
	require.NoError(t, err)
	require.NoError(t, bridge.Ping(context.Background()))

	rev := "A"
	res, err := bridge.Export(context.Background(), ports.ExportRequest{
		SourceFilePath: `C:\Vault\Parts\a.sldprt`,
		Kind:           domainrfq.ExportStep,
		PartNumber:     "PN-1",
		Revision:       &rev,
		Configuration:  "Default",
	})
	require.NoError(t, err)

	assert.True(t, res.Success)
	assert.Equal(t, int64(2048), res.FileSize)
	assert.Equal(t, `C:\Vault\out\PN-1_REVA.step`, res.OutputPath)
	assert.Equal(t, "step", got.ExportKind)
	assert.Equal(t, "Default", got.Configuration)
	require.NotNil(t, got.Revision)
	assert.Equal(t, "A", *got.Revision)
}

func TestHTTPBridgeErrorStatusIsUnsuccessfulResult(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"success":false,"error":"eDrawings crashed"}`))
	}))
	defer srv.Close()

	bridge, err := NewHTTPBridge(HTTPOptions{BaseURL: srv.URL})
	require.NoError(t, err)

	res, err := bridge.Export(context.Background(), ports.ExportRequest{Kind: domainrfq.ExportPDF})
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, "eDrawings crashed", res.Error)

	assert.Error(t, bridge.Ping(context.Background()))
}

func TestUnavailableBridge(t *testing.T) {
	var bridge Unavailable
	if err := bridge.Ping(context.Background()); !errors.Is(err, ports.ErrBridgeNotConfigured) {
		t.Fatalf("Ping() error = %v, want ErrBridgeNotConfigured", err)
	}
	if _, err := NewHTTPBridge(HTTPOptions{}); err == nil {
		t.Fatalf("NewHTTPBridge() without base url error = nil")
	}
}
