package catalog

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

type Source struct {
	ID          string    `json:"id"`
	Path        string    `json:"path"`
	DisplayName string    `json:"display_name"`
	CreatedAt   time.Time `json:"created_at"`
}

type Asset struct {
	ID          string    `json:"id"`
	SourceID    string    `json:"source_id"`
	Path        string    `json:"path"`
	Filename    string    `json:"filename"`
	Size        int64     `json:"size"`
	Mtime       time.Time `json:"mtime"`
	Fingerprint string    `json:"fingerprint"`
	DurationS   float64   `json:"duration_s"`
	CreatedAt   time.Time `json:"created_at"`
}

const (
	BatchStatusPending   = "pending"
	BatchStatusRunning   = "running"
	BatchStatusCompleted = "completed"
	BatchStatusFailed    = "failed"
	BatchStatusCancelled = "cancelled"
)

// Batch is one processing run over a list of input files. Options holds
// the processing options as a JSON document; the factory layer owns its
// shape.
type Batch struct {
	ID        string    `json:"id"`
	Status    string    `json:"status"`
	Options   string    `json:"options"`
	Inputs    []string  `json:"inputs"`
	Progress  int       `json:"progress"`
	OkCount   int       `json:"ok_count"`
	FailCount int       `json:"fail_count"`
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// BatchItem is the per-file outcome of a batch.
type BatchItem struct {
	ID         string    `json:"id"`
	BatchID    string    `json:"batch_id"`
	InputPath  string    `json:"input_path"`
	OutputPath string    `json:"output_path,omitempty"`
	Success    bool      `json:"success"`
	Error      string    `json:"error,omitempty"`
	DurationS  float64   `json:"duration_s"`
	CreatedAt  time.Time `json:"created_at"`
}

type ConfigEntry struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

var VideoExtensions = map[string]bool{
	".mp4": true,
	".mov": true,
	".mkv": true,
	".avi": true,
	".flv": true,
	".wmv": true,
}

func NewID() string {
	return uuid.NewString()
}

func IsVideoFile(filename string) bool {
	i := strings.LastIndexByte(filename, '.')
	if i < 0 {
		return false
	}
	return VideoExtensions[strings.ToLower(filename[i:])]
}
