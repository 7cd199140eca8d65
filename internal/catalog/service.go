package catalog

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Fingerprints hash only the head of the file: enough to distinguish
// clips, cheap enough to run over a whole folder on every scan.
const fingerprintSize = 64 * 1024

var ErrNoInputs = errors.New("batch requires at least one input file")

// DurationProber is the slice of the media layer the scanner needs.
type DurationProber interface {
	Duration(ctx context.Context, path string) (float64, error)
}

type CatalogService interface {
	AddFolder(ctx context.Context, path, displayName string) (*Source, error)
	RemoveSource(ctx context.Context, id string) error
	GetSources(ctx context.Context) ([]*Source, error)
	GetSource(ctx context.Context, id string) (*Source, error)
	GetAssets(ctx context.Context, sourceID string) ([]*Asset, error)
	GetAsset(ctx context.Context, id string) (*Asset, error)
	CountAssets(ctx context.Context) (int, error)
	ScanSource(ctx context.Context, sourceID string) (int, error)
	CreateBatch(ctx context.Context, inputs []string, options any) (*Batch, error)
	GetBatch(ctx context.Context, id string) (*Batch, error)
	ListBatches(ctx context.Context, limit int) ([]*Batch, error)
	GetBatchItems(ctx context.Context, batchID string) ([]*BatchItem, error)
	CancelBatch(ctx context.Context, id string) error
}

type Service struct {
	repo   Repository
	prober DurationProber // nil skips duration probing during scans
	logger *slog.Logger
}

func NewService(repo Repository, prober DurationProber, logger *slog.Logger) *Service {
	return &Service{repo: repo, prober: prober, logger: logger}
}

func (s *Service) AddFolder(ctx context.Context, path, displayName string) (*Source, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("invalid path: %w", err)
	}

	info, err := os.Stat(absPath)
	if err != nil {
		return nil, fmt.Errorf("path does not exist: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("path is not a directory")
	}

	existing, err := s.repo.GetSourceByPath(ctx, absPath)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	if displayName == "" {
		displayName = filepath.Base(absPath)
	}

	source := &Source{
		ID:          NewID(),
		Path:        absPath,
		DisplayName: displayName,
		CreatedAt:   time.Now(),
	}

	if err := s.repo.CreateSource(ctx, source); err != nil {
		return nil, err
	}

	if s.logger != nil {
		s.logger.Info("folder added", "source_id", source.ID, "path", absPath)
	}
	return source, nil
}

func (s *Service) RemoveSource(ctx context.Context, id string) error {
	if err := s.repo.DeleteAssetsBySource(ctx, id); err != nil {
		return err
	}
	return s.repo.DeleteSource(ctx, id)
}

func (s *Service) GetSources(ctx context.Context) ([]*Source, error) {
	return s.repo.ListSources(ctx)
}

func (s *Service) GetSource(ctx context.Context, id string) (*Source, error) {
	return s.repo.GetSource(ctx, id)
}

func (s *Service) GetAssets(ctx context.Context, sourceID string) ([]*Asset, error) {
	return s.repo.GetAssetsBySource(ctx, sourceID)
}

func (s *Service) GetAsset(ctx context.Context, id string) (*Asset, error) {
	return s.repo.GetAsset(ctx, id)
}

func (s *Service) CountAssets(ctx context.Context) (int, error) {
	return s.repo.CountAssets(ctx)
}

// ScanSource walks the source folder and upserts every video file found.
// Returns the number of files cataloged.
func (s *Service) ScanSource(ctx context.Context, sourceID string) (int, error) {
	source, err := s.repo.GetSource(ctx, sourceID)
	if err != nil {
		return 0, err
	}
	if source == nil {
		return 0, fmt.Errorf("source not found")
	}

	var files []string
	err = filepath.WalkDir(source.Path, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		if !d.IsDir() && IsVideoFile(d.Name()) {
			files = append(files, p)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	cataloged := 0
	for _, filePath := range files {
		select {
		case <-ctx.Done():
			return cataloged, ctx.Err()
		default:
		}

		if err := s.catalogFile(ctx, sourceID, filePath); err != nil {
			if s.logger != nil {
				s.logger.Warn("failed to catalog file", "path", filePath, "error", err)
			}
			continue
		}
		cataloged++
	}

	if s.logger != nil {
		s.logger.Info("scan completed", "source_id", sourceID, "files", cataloged)
	}
	return cataloged, nil
}

func (s *Service) catalogFile(ctx context.Context, sourceID, path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}

	fingerprint, err := computeFingerprint(path)
	if err != nil {
		return err
	}

	duration := 0.0
	if s.prober != nil {
		// A failed probe still catalogs the file; duration stays zero.
		if d, err := s.prober.Duration(ctx, path); err == nil {
			duration = d
		}
	}

	asset := &Asset{
		ID:          NewID(),
		SourceID:    sourceID,
		Path:        path,
		Filename:    filepath.Base(path),
		Size:        info.Size(),
		Mtime:       info.ModTime(),
		Fingerprint: fingerprint,
		DurationS:   duration,
		CreatedAt:   time.Now(),
	}

	return s.repo.UpsertAsset(ctx, asset)
}

// CreateBatch records a pending batch; the factory runner picks it up.
// Options is serialized as-is, so callers pass the factory's options
// struct directly.
func (s *Service) CreateBatch(ctx context.Context, inputs []string, options any) (*Batch, error) {
	if len(inputs) == 0 {
		return nil, ErrNoInputs
	}

	optJSON, err := json.Marshal(options)
	if err != nil {
		return nil, fmt.Errorf("marshal options: %w", err)
	}

	now := time.Now()
	batch := &Batch{
		ID:        NewID(),
		Status:    BatchStatusPending,
		Options:   string(optJSON),
		Inputs:    inputs,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.repo.CreateBatch(ctx, batch); err != nil {
		return nil, err
	}

	if s.logger != nil {
		s.logger.Info("batch created", "batch_id", batch.ID, "inputs", len(inputs))
	}
	return batch, nil
}

func (s *Service) GetBatch(ctx context.Context, id string) (*Batch, error) {
	return s.repo.GetBatch(ctx, id)
}

func (s *Service) ListBatches(ctx context.Context, limit int) ([]*Batch, error) {
	return s.repo.ListBatches(ctx, limit)
}

func (s *Service) GetBatchItems(ctx context.Context, batchID string) ([]*BatchItem, error) {
	return s.repo.ListBatchItems(ctx, batchID)
}

// CancelBatch marks a pending batch cancelled. A running batch is stopped
// by the runner, which watches for the cancelled status between files.
func (s *Service) CancelBatch(ctx context.Context, id string) error {
	batch, err := s.repo.GetBatch(ctx, id)
	if err != nil {
		return err
	}
	if batch == nil {
		return fmt.Errorf("batch not found")
	}
	switch batch.Status {
	case BatchStatusPending, BatchStatusRunning:
		return s.repo.UpdateBatchStatus(ctx, id, BatchStatusCancelled, "")
	default:
		return fmt.Errorf("batch is %s, cannot cancel", batch.Status)
	}
}

func computeFingerprint(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	lr := io.LimitReader(f, fingerprintSize)
	if _, err := io.Copy(h, lr); err != nil {
		return "", err
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}
