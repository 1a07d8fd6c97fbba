package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"pdmrelease/internal/bootstrap"
	"pdmrelease/internal/bootstrap/logging"
	domainrfq "pdmrelease/internal/domain/rfq"
	"pdmrelease/internal/errs"
	"pdmrelease/internal/ports"
	"pdmrelease/internal/usecase/release"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the release HTTP API with Prometheus metrics",
	RunE: withApp(func(cmd *cobra.Command, app *bootstrap.App, svc *release.Service) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		ctx = logging.WithAttrs(ctx, slog.String("command", cmd.CommandPath()))

		addr, _ := cmd.Flags().GetString("addr")
		addr = strings.TrimSpace(addr)
		if addr == "" {
			addr = app.Config.HTTP.Addr
		}

		server := &http.Server{
			Addr:              addr,
			Handler:           newReleaseAPIHandler(ctx, svc, app.Queue),
			ReadHeaderTimeout: 10 * time.Second,
		}

		go func() {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			_ = server.Shutdown(shutdownCtx)
		}()

		logging.Info(ctx, "release api started", slog.String("addr", addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Error(ctx, "release api failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "serve release api")
		}
		return nil
	}),
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("addr", "", "Listen address (defaults to http.addr)")
}

type releaseAPI interface {
	ResolveRFQ(ctx context.Context, ref string) (ports.RFQ, error)
	GetRFQ(ctx context.Context, ref string) (release.RFQDetail, error)
	ListRFQs(ctx context.Context, statuses []domainrfq.Status, limit int) ([]ports.RFQ, error)
	GenerateReleaseFiles(ctx context.Context, rfqID string) (release.GenerateResult, error)
	GeneratePackageByID(ctx context.Context, rfqID string) (release.PackageResult, error)
	MarkSent(ctx context.Context, rfqID string) (ports.RFQ, error)
}

type generationQueue interface {
	EnqueueGenerate(ctx context.Context, rfqID string) (string, error)
}

type releaseHTTPHandler struct {
	ctx   context.Context
	svc   releaseAPI
	queue generationQueue
}

type rfqResponse struct {
	ID                      string     `json:"id"`
	Number                  string     `json:"number"`
	Title                   string     `json:"title"`
	Status                  string     `json:"status"`
	ReleaseFilesGenerated   bool       `json:"release_files_generated"`
	ReleaseFilesGeneratedAt *time.Time `json:"release_files_generated_at,omitempty"`
	DueDate                 *time.Time `json:"due_date,omitempty"`
}

type itemResponse struct {
	ID          string   `json:"id"`
	LineNumber  int      `json:"line_number"`
	PartNumber  string   `json:"part_number"`
	Revision    string   `json:"revision"`
	Description string   `json:"description,omitempty"`
	Quantity    int      `json:"quantity"`
	Unit        string   `json:"unit"`
	SourcePath  string   `json:"source_path"`
	StepPath    string   `json:"step_path,omitempty"`
	PDFPath     string   `json:"pdf_path,omitempty"`
	Pending     []string `json:"pending_exports"`
}

type supplierResponse struct {
	SupplierID   string     `json:"supplier_id"`
	SupplierName string     `json:"supplier_name"`
	SentAt       *time.Time `json:"sent_at,omitempty"`
}

type rfqDetailResponse struct {
	RFQ       rfqResponse        `json:"rfq"`
	Items     []itemResponse     `json:"items"`
	Suppliers []supplierResponse `json:"suppliers"`
}

type failureResponse struct {
	ItemID     string `json:"item_id"`
	LineNumber int    `json:"line_number"`
	Kind       string `json:"kind"`
	Message    string `json:"message"`
}

type generateResponse struct {
	Message      string            `json:"message"`
	SuccessCount int               `json:"success_count"`
	FailureCount int               `json:"failure_count"`
	NewStatus    string            `json:"new_status"`
	Failures     []failureResponse `json:"failures"`
}

type packageResponse struct {
	ArchivePath           string `json:"archive_path"`
	FileCount             int    `json:"file_count"`
	OrderDocumentIncluded bool   `json:"order_document_included"`
	Published             string `json:"published,omitempty"`
}

type enqueueResponse struct {
	TaskID string `json:"task_id"`
}

type apiErrorResponse struct {
	Error string `json:"error"`
}

func newReleaseAPIHandler(ctx context.Context, svc releaseAPI, queue *release.Queue) http.Handler {
	h := &releaseHTTPHandler{ctx: ctx, svc: svc}
	if queue != nil {
		h.queue = queue
	}
	return h.routes()
}

func (h *releaseHTTPHandler) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeAPIJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/rfqs", func(r chi.Router) {
		r.Get("/", h.handleList)
		r.Route("/{ref}", func(r chi.Router) {
			r.Get("/", h.handleShow)
			r.Post("/release-files", h.handleGenerate)
			r.Post("/release-files/enqueue", h.handleEnqueue)
			r.Post("/package", h.handlePackage)
			r.Post("/send", h.handleSend)
		})
	})
	return r
}

func (h *releaseHTTPHandler) requestContext(r *http.Request) context.Context {
	ctx := logging.WithLogger(r.Context(), logging.Logger(h.ctx))
	return logging.WithAttrs(ctx,
		slog.String("request_id", middleware.GetReqID(r.Context())),
		slog.String("route", r.Method+" "+r.URL.Path),
	)
}

func (h *releaseHTTPHandler) handleList(w http.ResponseWriter, r *http.Request) {
	ctx := h.requestContext(r)

	var statuses []domainrfq.Status
	for _, raw := range strings.Split(r.URL.Query().Get("status"), ",") {
		if strings.TrimSpace(raw) == "" {
			continue
		}
		status, err := domainrfq.ParseStatus(raw)
		if err != nil {
			writeAPIError(w, http.StatusBadRequest, err.Error())
			return
		}
		statuses = append(statuses, status)
	}
	limit := 50
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			writeAPIError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = parsed
	}

	rfqs, err := h.svc.ListRFQs(ctx, statuses, limit)
	if err != nil {
		h.writeServiceError(ctx, w, err)
		return
	}
	out := make([]rfqResponse, 0, len(rfqs))
	for _, rfq := range rfqs {
		out = append(out, toRFQResponse(rfq))
	}
	writeAPIJSON(w, http.StatusOK, out)
}

func (h *releaseHTTPHandler) handleShow(w http.ResponseWriter, r *http.Request) {
	ctx := h.requestContext(r)

	detail, err := h.svc.GetRFQ(ctx, chi.URLParam(r, "ref"))
	if err != nil {
		h.writeServiceError(ctx, w, err)
		return
	}
	writeAPIJSON(w, http.StatusOK, toDetailResponse(detail))
}

func (h *releaseHTTPHandler) handleGenerate(w http.ResponseWriter, r *http.Request) {
	ctx := h.requestContext(r)

	rfq, err := h.svc.ResolveRFQ(ctx, chi.URLParam(r, "ref"))
	if err != nil {
		h.writeServiceError(ctx, w, err)
		return
	}
	result, err := h.svc.GenerateReleaseFiles(ctx, rfq.ID)
	if err != nil {
		h.writeServiceError(ctx, w, err)
		return
	}

	failures := make([]failureResponse, 0, len(result.Failures))
	for _, failure := range result.Failures {
		failures = append(failures, failureResponse{
			ItemID:     failure.ItemID,
			LineNumber: failure.LineNumber,
			Kind:       string(failure.Kind),
			Message:    failure.Message,
		})
	}
	writeAPIJSON(w, http.StatusOK, generateResponse{
		Message:      result.Summary(),
		SuccessCount: result.SuccessCount,
		FailureCount: result.FailureCount,
		NewStatus:    string(result.NewStatus),
		Failures:     failures,
	})
}

func (h *releaseHTTPHandler) handleEnqueue(w http.ResponseWriter, r *http.Request) {
	ctx := h.requestContext(r)

	if h.queue == nil {
		writeAPIError(w, http.StatusNotImplemented, "queue is disabled")
		return
	}
	rfq, err := h.svc.ResolveRFQ(ctx, chi.URLParam(r, "ref"))
	if err != nil {
		h.writeServiceError(ctx, w, err)
		return
	}
	taskID, err := h.queue.EnqueueGenerate(ctx, rfq.ID)
	if err != nil {
		h.writeServiceError(ctx, w, err)
		return
	}
	writeAPIJSON(w, http.StatusAccepted, enqueueResponse{TaskID: taskID})
}

func (h *releaseHTTPHandler) handlePackage(w http.ResponseWriter, r *http.Request) {
	ctx := h.requestContext(r)

	rfq, err := h.svc.ResolveRFQ(ctx, chi.URLParam(r, "ref"))
	if err != nil {
		h.writeServiceError(ctx, w, err)
		return
	}
	result, err := h.svc.GeneratePackageByID(ctx, rfq.ID)
	if err != nil {
		h.writeServiceError(ctx, w, err)
		return
	}
	writeAPIJSON(w, http.StatusOK, packageResponse{
		ArchivePath:           result.ArchivePath,
		FileCount:             result.FileCount,
		OrderDocumentIncluded: result.OrderDocumentIncluded,
		Published:             result.Published,
	})
}

func (h *releaseHTTPHandler) handleSend(w http.ResponseWriter, r *http.Request) {
	ctx := h.requestContext(r)

	rfq, err := h.svc.ResolveRFQ(ctx, chi.URLParam(r, "ref"))
	if err != nil {
		h.writeServiceError(ctx, w, err)
		return
	}
	sent, err := h.svc.MarkSent(ctx, rfq.ID)
	if err != nil {
		h.writeServiceError(ctx, w, err)
		return
	}
	writeAPIJSON(w, http.StatusOK, toRFQResponse(sent))
}

func (h *releaseHTTPHandler) writeServiceError(ctx context.Context, w http.ResponseWriter, err error) {
	status := statusForError(err)
	message := userMessage(err)
	if message == "" {
		message = err.Error()
	}
	if status >= http.StatusInternalServerError {
		logging.Error(ctx, "release api request failed", slog.Int("status", status), slog.Any("err", errs.Loggable(err)))
	} else {
		logging.Warn(ctx, "release api request rejected", slog.Int("status", status), slog.String("err", err.Error()))
	}
	writeAPIError(w, status, message)
}

func statusForError(err error) int {
	switch {
	case errors.Is(err, domainrfq.ErrServiceUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, domainrfq.ErrGenerationInProgress),
		errors.Is(err, domainrfq.ErrStatusTransition):
		return http.StatusConflict
	case errors.Is(err, domainrfq.ErrNothingToPackage):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domainrfq.ErrRFQNotFound),
		errors.Is(err, domainrfq.ErrItemNotFound):
		return http.StatusNotFound
	case errors.Is(err, domainrfq.ErrInvalidQuantity),
		errors.Is(err, domainrfq.ErrInvalidStatus):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func toRFQResponse(rfq ports.RFQ) rfqResponse {
	return rfqResponse{
		ID:                      rfq.ID,
		Number:                  rfq.Number,
		Title:                   rfq.Title,
		Status:                  string(rfq.Status),
		ReleaseFilesGenerated:   rfq.ReleaseFilesGenerated,
		ReleaseFilesGeneratedAt: rfq.ReleaseFilesGeneratedAt,
		DueDate:                 rfq.DueDate,
	}
}

func toDetailResponse(detail release.RFQDetail) rfqDetailResponse {
	out := rfqDetailResponse{
		RFQ:       toRFQResponse(detail.RFQ),
		Items:     make([]itemResponse, 0, len(detail.Items)),
		Suppliers: make([]supplierResponse, 0, len(detail.Suppliers)),
	}
	for _, item := range detail.Items {
		resp := itemResponse{
			ID:          item.ID,
			LineNumber:  item.LineNumber,
			PartNumber:  item.EffectivePartNumber(),
			Revision:    item.EffectiveRevision(),
			Description: item.Description,
			Quantity:    item.Quantity,
			Unit:        item.Unit,
			SourcePath:  item.Source.RelativePath,
			Pending:     []string{},
		}
		if item.Step.HasOutput() {
			resp.StepPath = *item.Step.Path
		}
		if item.PDF.HasOutput() {
			resp.PDFPath = *item.PDF.Path
		}
		for _, kind := range item.PendingExports() {
			resp.Pending = append(resp.Pending, string(kind))
		}
		out.Items = append(out.Items, resp)
	}
	for _, supplier := range detail.Suppliers {
		out.Suppliers = append(out.Suppliers, supplierResponse{
			SupplierID:   supplier.SupplierID,
			SupplierName: supplier.SupplierName,
			SentAt:       supplier.SentAt,
		})
	}
	return out
}

func writeAPIError(w http.ResponseWriter, status int, message string) {
	writeAPIJSON(w, status, apiErrorResponse{Error: message})
}

func writeAPIJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(value)
}
