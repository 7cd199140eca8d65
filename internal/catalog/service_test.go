package catalog

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/tikops/tikops-agent/internal/db"
)

func setupTestDB(t *testing.T) (*db.DB, Repository) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")

	database, err := db.New(dbPath, nil)
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}

	repo := NewRepository(database.Conn())
	return database, repo
}

func TestService_AddFolder(t *testing.T) {
	database, repo := setupTestDB(t)
	defer database.Close()

	svc := NewService(repo, nil, nil)

	tmpDir := t.TempDir()

	source, err := svc.AddFolder(context.Background(), tmpDir, "Product Clips")
	if err != nil {
		t.Fatalf("AddFolder() error = %v", err)
	}

	if source.ID == "" {
		t.Error("source.ID is empty")
	}
	if source.Path != tmpDir {
		t.Errorf("source.Path = %s, want %s", source.Path, tmpDir)
	}
	if source.DisplayName != "Product Clips" {
		t.Errorf("source.DisplayName = %s, want Product Clips", source.DisplayName)
	}

	// Adding the same folder again returns the existing source.
	again, err := svc.AddFolder(context.Background(), tmpDir, "Other Name")
	if err != nil {
		t.Fatalf("AddFolder() second call error = %v", err)
	}
	if again.ID != source.ID {
		t.Errorf("duplicate AddFolder created a new source: %s != %s", again.ID, source.ID)
	}
}

func TestService_AddFolder_InvalidPath(t *testing.T) {
	database, repo := setupTestDB(t)
	defer database.Close()

	svc := NewService(repo, nil, nil)

	_, err := svc.AddFolder(context.Background(), "/nonexistent/path", "Test")
	if err == nil {
		t.Error("AddFolder() should return error for nonexistent path")
	}
}

func TestService_AddFolder_NotDirectory(t *testing.T) {
	database, repo := setupTestDB(t)
	defer database.Close()

	svc := NewService(repo, nil, nil)

	tmpFile := filepath.Join(t.TempDir(), "clip.mp4")
	if err := os.WriteFile(tmpFile, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	if _, err := svc.AddFolder(context.Background(), tmpFile, "Test"); err == nil {
		t.Error("AddFolder() should return error for file path")
	}
}

type fakeProber struct {
	duration float64
}

func (f *fakeProber) Duration(ctx context.Context, path string) (float64, error) {
	return f.duration, nil
}

func TestService_ScanSource(t *testing.T) {
	database, repo := setupTestDB(t)
	defer database.Close()

	svc := NewService(repo, &fakeProber{duration: 12.5}, nil)
	ctx := context.Background()

	tmpDir := t.TempDir()
	for _, name := range []string{"a.mp4", "b.MOV", "notes.txt"} {
		if err := os.WriteFile(filepath.Join(tmpDir, name), []byte("fake content"), 0644); err != nil {
			t.Fatal(err)
		}
	}

	source, err := svc.AddFolder(ctx, tmpDir, "Test")
	if err != nil {
		t.Fatalf("AddFolder() error = %v", err)
	}

	n, err := svc.ScanSource(ctx, source.ID)
	if err != nil {
		t.Fatalf("ScanSource() error = %v", err)
	}
	if n != 2 {
		t.Errorf("ScanSource() = %d files, want 2", n)
	}

	assets, err := svc.GetAssets(ctx, source.ID)
	if err != nil {
		t.Fatalf("GetAssets() error = %v", err)
	}
	if len(assets) != 2 {
		t.Fatalf("found %d assets, want 2", len(assets))
	}
	if assets[0].Fingerprint == "" {
		t.Error("asset fingerprint is empty")
	}
	if assets[0].DurationS != 12.5 {
		t.Errorf("asset duration = %g, want 12.5", assets[0].DurationS)
	}

	// Rescan is idempotent.
	if _, err := svc.ScanSource(ctx, source.ID); err != nil {
		t.Fatalf("second ScanSource() error = %v", err)
	}
	assets, _ = svc.GetAssets(ctx, source.ID)
	if len(assets) != 2 {
		t.Errorf("rescan duplicated assets: found %d, want 2", len(assets))
	}
}

func TestService_ScanSource_SkipsHiddenDirs(t *testing.T) {
	database, repo := setupTestDB(t)
	defer database.Close()

	svc := NewService(repo, nil, nil)
	ctx := context.Background()

	tmpDir := t.TempDir()
	os.WriteFile(filepath.Join(tmpDir, "visible.mp4"), []byte("visible"), 0644)

	hiddenDir := filepath.Join(tmpDir, ".hidden")
	os.Mkdir(hiddenDir, 0755)
	os.WriteFile(filepath.Join(hiddenDir, "hidden.mp4"), []byte("hidden"), 0644)

	source, _ := svc.AddFolder(ctx, tmpDir, "Test")
	svc.ScanSource(ctx, source.ID)

	assets, _ := svc.GetAssets(ctx, source.ID)
	if len(assets) != 1 {
		t.Errorf("found %d assets, want 1 (should skip hidden)", len(assets))
	}
}

func TestService_CreateBatch(t *testing.T) {
	database, repo := setupTestDB(t)
	defer database.Close()

	svc := NewService(repo, nil, nil)
	ctx := context.Background()

	opts := map[string]any{"mirror": true, "trim_head": 0.5}
	batch, err := svc.CreateBatch(ctx, []string{"a.mp4", "b.mp4"}, opts)
	if err != nil {
		t.Fatalf("CreateBatch() error = %v", err)
	}
	if batch.Status != BatchStatusPending {
		t.Errorf("batch.Status = %s, want pending", batch.Status)
	}

	got, err := svc.GetBatch(ctx, batch.ID)
	if err != nil {
		t.Fatalf("GetBatch() error = %v", err)
	}
	if len(got.Inputs) != 2 || got.Inputs[0] != "a.mp4" {
		t.Errorf("batch.Inputs = %v", got.Inputs)
	}

	var decoded map[string]any
	if err := json.Unmarshal([]byte(got.Options), &decoded); err != nil {
		t.Fatalf("options not valid JSON: %v", err)
	}
	if decoded["mirror"] != true {
		t.Errorf("options.mirror = %v, want true", decoded["mirror"])
	}
}

func TestService_CreateBatch_NoInputs(t *testing.T) {
	database, repo := setupTestDB(t)
	defer database.Close()

	svc := NewService(repo, nil, nil)

	if _, err := svc.CreateBatch(context.Background(), nil, nil); err != ErrNoInputs {
		t.Errorf("CreateBatch(nil) error = %v, want ErrNoInputs", err)
	}
}

func TestService_CancelBatch(t *testing.T) {
	database, repo := setupTestDB(t)
	defer database.Close()

	svc := NewService(repo, nil, nil)
	ctx := context.Background()

	batch, err := svc.CreateBatch(ctx, []string{"a.mp4"}, nil)
	if err != nil {
		t.Fatalf("CreateBatch() error = %v", err)
	}

	if err := svc.CancelBatch(ctx, batch.ID); err != nil {
		t.Fatalf("CancelBatch() error = %v", err)
	}
	got, _ := svc.GetBatch(ctx, batch.ID)
	if got.Status != BatchStatusCancelled {
		t.Errorf("batch.Status = %s, want cancelled", got.Status)
	}

	// A finished batch cannot be cancelled.
	if err := svc.CancelBatch(ctx, batch.ID); err == nil {
		t.Error("CancelBatch() on cancelled batch should error")
	}
}

func TestRepository_ClaimPendingBatch(t *testing.T) {
	database, repo := setupTestDB(t)
	defer database.Close()

	svc := NewService(repo, nil, nil)
	ctx := context.Background()

	if b, err := repo.ClaimPendingBatch(ctx); err != nil || b != nil {
		t.Fatalf("ClaimPendingBatch(empty) = %v, %v, want nil, nil", b, err)
	}

	created, err := svc.CreateBatch(ctx, []string{"a.mp4"}, nil)
	if err != nil {
		t.Fatalf("CreateBatch() error = %v", err)
	}

	claimed, err := repo.ClaimPendingBatch(ctx)
	if err != nil {
		t.Fatalf("ClaimPendingBatch() error = %v", err)
	}
	if claimed == nil || claimed.ID != created.ID {
		t.Fatalf("claimed = %v, want batch %s", claimed, created.ID)
	}
	if claimed.Status != BatchStatusRunning {
		t.Errorf("claimed.Status = %s, want running", claimed.Status)
	}

	// No second claim for the same batch.
	if b, _ := repo.ClaimPendingBatch(ctx); b != nil {
		t.Errorf("second claim returned %v, want nil", b)
	}
}

func TestIsVideoFile(t *testing.T) {
	tests := []struct {
		filename string
		want     bool
	}{
		{"video.mp4", true},
		{"video.MP4", true},
		{"video.mov", true},
		{"video.mkv", true},
		{"video.avi", true},
		{"video.wmv", true},
		{"document.pdf", false},
		{"image.jpg", false},
		{"noextension", false},
	}

	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			if got := IsVideoFile(tt.filename); got != tt.want {
				t.Errorf("IsVideoFile(%s) = %v, want %v", tt.filename, got, tt.want)
			}
		})
	}
}
