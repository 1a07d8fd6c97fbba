package exportbridge

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"pdmrelease/internal/errs"
	"pdmrelease/internal/ports"
)

const defaultHTTPTimeout = 5 * time.Minute

type HTTPOptions struct {
	BaseURL       string
	Timeout       time.Duration
	RatePerSecond float64
	Burst         int
	Client        *http.Client
}

// HTTPBridge talks to a bridge process exposing POST /export and GET /health.
type HTTPBridge struct {
	baseURL string
	client  *http.Client
	limiter *rate.Limiter
}

var _ ports.ExportBridge = (*HTTPBridge)(nil)

type httpExportRequest struct {
	SourceFilePath string  `json:"sourceFilePath" jsonschema:"description=absolute path of the CAD source file"`
	ExportKind     string  `json:"exportKind" jsonschema:"enum=step,enum=pdf"`
	PartNumber     string  `json:"partNumber"`
	Revision       *string `json:"revision,omitempty"`
	Configuration  string  `json:"configuration,omitempty" jsonschema:"description=model configuration exported to STEP"`
}

func NewHTTPBridge(opts HTTPOptions) (*HTTPBridge, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		return nil, errors.New("bridge base url is required")
	}

	client := opts.Client
	if client == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = defaultHTTPTimeout
		}
		client = &http.Client{Timeout: timeout}
	}

	limit := rate.Inf
	if opts.RatePerSecond > 0 {
		limit = rate.Limit(opts.RatePerSecond)
	}
	burst := opts.Burst
	if burst <= 0 {
		burst = 1
	}

	return &HTTPBridge{
		baseURL: baseURL,
		client:  client,
		limiter: rate.NewLimiter(limit, burst),
	}, nil
}

func (b *HTTPBridge) Ping(ctx context.Context) error {
	if ctx == nil {
		return errors.New("context is required")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.baseURL+"/health", nil)
	if err != nil {
		return errs.Wrap(err, "build bridge health request")
	}
	resp, err := b.client.Do(req)
	if err != nil {
		return errs.Wrap(err, "bridge health request")
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("bridge health status %d", resp.StatusCode)
	}
	return nil
}

// Export posts one export request. A bridge-reported failure comes back as an
// unsuccessful result; transport problems come back as errors.
func (b *HTTPBridge) Export(ctx context.Context, input ports.ExportRequest) (ports.ExportResult, error) {
	if ctx == nil {
		return ports.ExportResult{}, errors.New("context is required")
	}
	if err := b.limiter.Wait(ctx); err != nil {
		return ports.ExportResult{}, errs.Wrap(err, "wait for bridge rate limit")
	}

	body, err := json.Marshal(httpExportRequest{
		SourceFilePath: input.SourceFilePath,
		ExportKind:     string(input.Kind),
		PartNumber:     input.PartNumber,
		Revision:       input.Revision,
		Configuration:  input.Configuration,
	})
	if err != nil {
		return ports.ExportResult{}, errs.Wrap(err, "marshal export request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.baseURL+"/export", bytes.NewReader(body))
	if err != nil {
		return ports.ExportResult{}, errs.Wrap(err, "build export request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.client.Do(req)
	if err != nil {
		return ports.ExportResult{}, errs.Wrap(err, "export request")
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return ports.ExportResult{}, errs.Wrap(err, "read export response")
	}

	var out wireResult
	if len(bytes.TrimSpace(raw)) > 0 {
		if err := json.Unmarshal(raw, &out); err != nil && resp.StatusCode < 300 {
			return ports.ExportResult{}, errs.Wrap(err, "decode export response")
		}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := strings.TrimSpace(out.Error)
		if msg == "" {
			msg = fmt.Sprintf("bridge returned status %d: %s", resp.StatusCode, firstLine(string(raw)))
		}
		return ports.ExportResult{Success: false, Error: msg}, nil
	}
	return out.toPort(), nil
}
