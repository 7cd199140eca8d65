package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/tikops/tikops-agent/internal/catalog"
	"github.com/tikops/tikops-agent/internal/config"
	"github.com/tikops/tikops-agent/internal/copywriter"
	"github.com/tikops/tikops-agent/internal/export"
)

// Copywriter is the AI surface the API exposes.
type Copywriter interface {
	AnalyzeProduct(ctx context.Context, title string, price float64, sales int) (string, error)
	VideoScript(ctx context.Context, product, angle string) (string, error)
	OptimizeScript(ctx context.Context, script, intent string) (string, error)
}

// ShareControl is the LAN drop server surface the API exposes.
type ShareControl interface {
	Start() error
	Stop(ctx context.Context) error
	IsRunning() bool
	URL() string
	QRCode(fileName string) ([]byte, error)
}

// BatchRunnerStatus is the slice of the batch runner the status endpoint
// reads.
type BatchRunnerStatus interface {
	IsPaused() bool
}

func NewRouter(cfg ServerConfig) *chi.Mux {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware())
	r.Use(RecoveryMiddleware(cfg.Logger))
	r.Use(LoggingMiddleware(cfg.Logger))

	r.Get("/health", healthHandler(cfg))

	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(cfg.Repository, cfg.Logger))

		r.Get("/status", statusHandler(cfg))

		r.Get("/sources", listSourcesHandler(cfg))
		r.Post("/sources/folders", addFolderHandler(cfg))
		r.Delete("/sources/{id}", deleteSourceHandler(cfg))
		r.Get("/sources/{id}/assets", listAssetsHandler(cfg))
		r.Post("/sources/{id}/scan", scanHandler(cfg))

		r.Post("/batches", createBatchHandler(cfg))
		r.Get("/batches", listBatchesHandler(cfg))
		r.Get("/batches/{id}", getBatchHandler(cfg))
		r.Get("/batches/{id}/items", listBatchItemsHandler(cfg))
		r.Post("/batches/{id}/cancel", cancelBatchHandler(cfg))
		r.Post("/batches/{id}/report", reportHandler(cfg))

		r.Post("/copywriter/analyze", analyzeProductHandler(cfg))
		r.Post("/copywriter/script", videoScriptHandler(cfg))
		r.Post("/copywriter/optimize", optimizeScriptHandler(cfg))

		r.Post("/share/start", shareStartHandler(cfg))
		r.Post("/share/stop", shareStopHandler(cfg))
		r.Get("/share/status", shareStatusHandler(cfg))
		r.Get("/share/qrcode", shareQRCodeHandler(cfg))
	})

	return r
}

func healthHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uptime := int64(time.Since(cfg.StartTime).Seconds())
		WriteJSON(w, http.StatusOK, HealthResponse{
			Status:   "ok",
			Version:  config.Version,
			UptimeS:  uptime,
			DeviceID: cfg.DeviceID,
		})
	}
}

func statusHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		sources, _ := cfg.CatalogService.GetSources(ctx)
		assetsCount, _ := cfg.CatalogService.CountAssets(ctx)
		batches, _ := cfg.CatalogService.ListBatches(ctx, 10)

		state := "idle"
		if cfg.Runner != nil && cfg.Runner.IsPaused() {
			state = "paused"
		}

		var active *BatchResponse
		lastError := ""
		for _, b := range batches {
			if b.Status == catalog.BatchStatusRunning {
				state = "processing"
				resp := BatchToResponse(b)
				active = &resp
			}
			if b.Status == catalog.BatchStatusFailed && lastError == "" {
				lastError = b.Error
			}
		}
		if lastError != "" && state == "idle" {
			state = "error"
		}

		resp := StatusResponse{
			State:        state,
			LastError:    lastError,
			SourcesCount: len(sources),
			AssetsCount:  assetsCount,
			ActiveBatch:  active,
		}
		if cfg.Share != nil {
			resp.ShareRunning = cfg.Share.IsRunning()
			resp.ShareURL = cfg.Share.URL()
		}

		WriteJSON(w, http.StatusOK, resp)
	}
}

func listSourcesHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sources, err := cfg.CatalogService.GetSources(r.Context())
		if err != nil {
			WriteError(w, http.StatusInternalServerError, "failed to list sources", "INTERNAL_ERROR")
			return
		}

		resp := SourcesResponse{Sources: make([]SourceResponse, len(sources))}
		for i, s := range sources {
			resp.Sources[i] = SourceToResponse(s)
		}
		WriteJSON(w, http.StatusOK, resp)
	}
}

func addFolderHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req AddFolderRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}
		if req.Path == "" {
			WriteError(w, http.StatusBadRequest, "path is required", "BAD_REQUEST")
			return
		}

		source, err := cfg.CatalogService.AddFolder(r.Context(), req.Path, req.DisplayName)
		if err != nil {
			WriteError(w, http.StatusBadRequest, err.Error(), "BAD_REQUEST")
			return
		}

		WriteJSON(w, http.StatusCreated, AddFolderResponse{SourceID: source.ID})
	}
}

func deleteSourceHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if err := cfg.CatalogService.RemoveSource(r.Context(), id); err != nil {
			WriteError(w, http.StatusInternalServerError, err.Error(), "INTERNAL_ERROR")
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func listAssetsHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		assets, err := cfg.CatalogService.GetAssets(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			WriteError(w, http.StatusInternalServerError, err.Error(), "INTERNAL_ERROR")
			return
		}

		resp := AssetsResponse{Assets: make([]AssetResponse, len(assets))}
		for i, a := range assets {
			resp.Assets[i] = AssetToResponse(a)
		}
		WriteJSON(w, http.StatusOK, resp)
	}
}

func scanHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		n, err := cfg.CatalogService.ScanSource(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			WriteError(w, http.StatusBadRequest, err.Error(), "BAD_REQUEST")
			return
		}
		WriteJSON(w, http.StatusOK, ScanResponse{Cataloged: n})
	}
}

func createBatchHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateBatchRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}

		var options any
		if req.Options != nil {
			options = req.Options
		}

		batch, err := cfg.CatalogService.CreateBatch(r.Context(), req.Inputs, options)
		if err != nil {
			if errors.Is(err, catalog.ErrNoInputs) {
				WriteError(w, http.StatusBadRequest, err.Error(), "BAD_REQUEST")
				return
			}
			WriteError(w, http.StatusInternalServerError, err.Error(), "INTERNAL_ERROR")
			return
		}

		WriteJSON(w, http.StatusAccepted, CreateBatchResponse{BatchID: batch.ID})
	}
}

func listBatchesHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		batches, err := cfg.CatalogService.ListBatches(r.Context(), 50)
		if err != nil {
			WriteError(w, http.StatusInternalServerError, "failed to list batches", "INTERNAL_ERROR")
			return
		}

		resp := BatchesResponse{Batches: make([]BatchResponse, len(batches))}
		for i, b := range batches {
			resp.Batches[i] = BatchToResponse(b)
		}
		WriteJSON(w, http.StatusOK, resp)
	}
}

func getBatchHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		batch, err := cfg.CatalogService.GetBatch(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			WriteError(w, http.StatusInternalServerError, err.Error(), "INTERNAL_ERROR")
			return
		}
		if batch == nil {
			WriteError(w, http.StatusNotFound, "batch not found", "NOT_FOUND")
			return
		}
		WriteJSON(w, http.StatusOK, BatchToResponse(batch))
	}
}

func listBatchItemsHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		items, err := cfg.CatalogService.GetBatchItems(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			WriteError(w, http.StatusInternalServerError, err.Error(), "INTERNAL_ERROR")
			return
		}

		resp := BatchItemsResponse{Items: make([]BatchItemResponse, len(items))}
		for i, it := range items {
			resp.Items[i] = BatchItemToResponse(it)
		}
		WriteJSON(w, http.StatusOK, resp)
	}
}

func cancelBatchHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := cfg.CatalogService.CancelBatch(r.Context(), chi.URLParam(r, "id")); err != nil {
			WriteError(w, http.StatusBadRequest, err.Error(), "BAD_REQUEST")
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func reportHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		batch, err := cfg.CatalogService.GetBatch(r.Context(), id)
		if err != nil {
			WriteError(w, http.StatusInternalServerError, err.Error(), "INTERNAL_ERROR")
			return
		}
		if batch == nil {
			WriteError(w, http.StatusNotFound, "batch not found", "NOT_FOUND")
			return
		}

		items, err := cfg.CatalogService.GetBatchItems(r.Context(), id)
		if err != nil {
			WriteError(w, http.StatusInternalServerError, err.Error(), "INTERNAL_ERROR")
			return
		}

		path, err := export.WriteReport(cfg.OutputDir, batch, items)
		if err != nil {
			WriteError(w, http.StatusInternalServerError, err.Error(), "INTERNAL_ERROR")
			return
		}
		WriteJSON(w, http.StatusCreated, ReportResponse{Path: path})
	}
}

func analyzeProductHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req AnalyzeProductRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}
		if req.Title == "" {
			WriteError(w, http.StatusBadRequest, "title is required", "BAD_REQUEST")
			return
		}

		content, err := cfg.Copywriter.AnalyzeProduct(r.Context(), req.Title, req.Price, req.Sales)
		if err != nil {
			writeCompletionError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, CompletionResponse{Content: content})
	}
}

func videoScriptHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req VideoScriptRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}
		if req.Product == "" {
			WriteError(w, http.StatusBadRequest, "product is required", "BAD_REQUEST")
			return
		}

		content, err := cfg.Copywriter.VideoScript(r.Context(), req.Product, req.Angle)
		if err != nil {
			writeCompletionError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, CompletionResponse{Content: content})
	}
}

func optimizeScriptHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req OptimizeScriptRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}
		if req.Script == "" {
			WriteError(w, http.StatusBadRequest, "script is required", "BAD_REQUEST")
			return
		}

		content, err := cfg.Copywriter.OptimizeScript(r.Context(), req.Script, req.Intent)
		if err != nil {
			writeCompletionError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, CompletionResponse{Content: content})
	}
}

func writeCompletionError(w http.ResponseWriter, err error) {
	if errors.Is(err, copywriter.ErrNotConfigured) {
		WriteError(w, http.StatusPreconditionFailed, err.Error(), "AI_NOT_CONFIGURED")
		return
	}
	WriteError(w, http.StatusBadGateway, err.Error(), "AI_UPSTREAM_ERROR")
}

func shareStartHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := cfg.Share.Start(); err != nil {
			WriteError(w, http.StatusConflict, err.Error(), "CONFLICT")
			return
		}
		WriteJSON(w, http.StatusOK, ShareStatusResponse{Running: true, URL: cfg.Share.URL()})
	}
}

func shareStopHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := cfg.Share.Stop(r.Context()); err != nil {
			WriteError(w, http.StatusInternalServerError, err.Error(), "INTERNAL_ERROR")
			return
		}
		WriteJSON(w, http.StatusOK, ShareStatusResponse{Running: false})
	}
}

func shareStatusHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, http.StatusOK, ShareStatusResponse{
			Running: cfg.Share.IsRunning(),
			URL:     cfg.Share.URL(),
		})
	}
}

func shareQRCodeHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		png, err := cfg.Share.QRCode(r.URL.Query().Get("file"))
		if err != nil {
			WriteError(w, http.StatusConflict, err.Error(), "CONFLICT")
			return
		}
		w.Header().Set("Content-Type", "image/png")
		w.Write(png)
	}
}
