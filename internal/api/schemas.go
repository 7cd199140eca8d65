package api

import (
	"time"

	"github.com/tikops/tikops-agent/internal/catalog"
)

type HealthResponse struct {
	Status   string `json:"status"`
	Version  string `json:"version"`
	UptimeS  int64  `json:"uptime_s"`
	DeviceID string `json:"device_id"`
}

type StatusResponse struct {
	State        string         `json:"state"`
	LastError    string         `json:"last_error,omitempty"`
	SourcesCount int            `json:"sources_count"`
	AssetsCount  int            `json:"assets_count"`
	ActiveBatch  *BatchResponse `json:"active_batch,omitempty"`
	ShareRunning bool           `json:"share_running"`
	ShareURL     string         `json:"share_url,omitempty"`
}

type AddFolderRequest struct {
	Path        string `json:"path"`
	DisplayName string `json:"display_name,omitempty"`
}

type AddFolderResponse struct {
	SourceID string `json:"source_id"`
}

type SourceResponse struct {
	ID          string `json:"id"`
	Path        string `json:"path"`
	DisplayName string `json:"display_name"`
	CreatedAt   string `json:"created_at"`
}

type SourcesResponse struct {
	Sources []SourceResponse `json:"sources"`
}

type ScanResponse struct {
	Cataloged int `json:"cataloged"`
}

type AssetResponse struct {
	ID          string  `json:"id"`
	SourceID    string  `json:"source_id"`
	Path        string  `json:"path"`
	Filename    string  `json:"filename"`
	Size        int64   `json:"size"`
	Fingerprint string  `json:"fingerprint"`
	DurationS   float64 `json:"duration_s"`
	CreatedAt   string  `json:"created_at"`
}

type AssetsResponse struct {
	Assets []AssetResponse `json:"assets"`
}

type CreateBatchRequest struct {
	Inputs []string `json:"inputs"`
	// Options uses the processing recipe's JSON shape; omitted fields
	// fall back to defaults.
	Options map[string]any `json:"options,omitempty"`
}

type CreateBatchResponse struct {
	BatchID string `json:"batch_id"`
}

type BatchResponse struct {
	ID        string `json:"id"`
	Status    string `json:"status"`
	Progress  int    `json:"progress"`
	OkCount   int    `json:"ok_count"`
	FailCount int    `json:"fail_count"`
	Inputs    int    `json:"inputs"`
	Error     string `json:"error,omitempty"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

type BatchesResponse struct {
	Batches []BatchResponse `json:"batches"`
}

type BatchItemResponse struct {
	InputPath  string  `json:"input_path"`
	OutputPath string  `json:"output_path,omitempty"`
	Success    bool    `json:"success"`
	Error      string  `json:"error,omitempty"`
	DurationS  float64 `json:"duration_s"`
}

type BatchItemsResponse struct {
	Items []BatchItemResponse `json:"items"`
}

type ReportResponse struct {
	Path string `json:"path"`
}

type AnalyzeProductRequest struct {
	Title string  `json:"title"`
	Price float64 `json:"price"`
	Sales int     `json:"sales"`
}

type VideoScriptRequest struct {
	Product string `json:"product"`
	Angle   string `json:"angle,omitempty"`
}

type OptimizeScriptRequest struct {
	Script string `json:"script"`
	Intent string `json:"intent,omitempty"`
}

type CompletionResponse struct {
	Content string `json:"content"`
}

type ShareStatusResponse struct {
	Running bool   `json:"running"`
	URL     string `json:"url,omitempty"`
}

type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func SourceToResponse(s *catalog.Source) SourceResponse {
	return SourceResponse{
		ID:          s.ID,
		Path:        s.Path,
		DisplayName: s.DisplayName,
		CreatedAt:   s.CreatedAt.Format(time.RFC3339),
	}
}

func AssetToResponse(a *catalog.Asset) AssetResponse {
	return AssetResponse{
		ID:          a.ID,
		SourceID:    a.SourceID,
		Path:        a.Path,
		Filename:    a.Filename,
		Size:        a.Size,
		Fingerprint: a.Fingerprint,
		DurationS:   a.DurationS,
		CreatedAt:   a.CreatedAt.Format(time.RFC3339),
	}
}

func BatchToResponse(b *catalog.Batch) BatchResponse {
	return BatchResponse{
		ID:        b.ID,
		Status:    b.Status,
		Progress:  b.Progress,
		OkCount:   b.OkCount,
		FailCount: b.FailCount,
		Inputs:    len(b.Inputs),
		Error:     b.Error,
		CreatedAt: b.CreatedAt.Format(time.RFC3339),
		UpdatedAt: b.UpdatedAt.Format(time.RFC3339),
	}
}

func BatchItemToResponse(it *catalog.BatchItem) BatchItemResponse {
	return BatchItemResponse{
		InputPath:  it.InputPath,
		OutputPath: it.OutputPath,
		Success:    it.Success,
		Error:      it.Error,
		DurationS:  it.DurationS,
	}
}
