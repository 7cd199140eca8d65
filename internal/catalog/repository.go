package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"
)

type Repository interface {
	CreateSource(ctx context.Context, source *Source) error
	GetSource(ctx context.Context, id string) (*Source, error)
	GetSourceByPath(ctx context.Context, path string) (*Source, error)
	ListSources(ctx context.Context) ([]*Source, error)
	DeleteSource(ctx context.Context, id string) error

	GetAsset(ctx context.Context, id string) (*Asset, error)
	ListAssets(ctx context.Context) ([]*Asset, error)
	GetAssetsBySource(ctx context.Context, sourceID string) ([]*Asset, error)
	DeleteAssetsBySource(ctx context.Context, sourceID string) error
	UpsertAsset(ctx context.Context, asset *Asset) error
	CountAssets(ctx context.Context) (int, error)

	CreateBatch(ctx context.Context, batch *Batch) error
	GetBatch(ctx context.Context, id string) (*Batch, error)
	ListBatches(ctx context.Context, limit int) ([]*Batch, error)
	ClaimPendingBatch(ctx context.Context) (*Batch, error)
	UpdateBatchStatus(ctx context.Context, id, status, errorMsg string) error
	UpdateBatchProgress(ctx context.Context, id string, progress, okCount, failCount int) error

	CreateBatchItem(ctx context.Context, item *BatchItem) error
	ListBatchItems(ctx context.Context, batchID string) ([]*BatchItem, error)

	GetConfig(ctx context.Context, key string) (string, error)
	SetConfig(ctx context.Context, key, value string) error
}

type SQLiteRepository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) CreateSource(ctx context.Context, s *Source) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO sources (id, path, display_name, created_at)
		VALUES (?, ?, ?, ?)
	`, s.ID, s.Path, s.DisplayName, s.CreatedAt.Format(time.RFC3339))
	return err
}

func (r *SQLiteRepository) GetSource(ctx context.Context, id string) (*Source, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, path, display_name, created_at FROM sources WHERE id = ?
	`, id)
	return scanSource(row)
}

func (r *SQLiteRepository) GetSourceByPath(ctx context.Context, path string) (*Source, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, path, display_name, created_at FROM sources WHERE path = ?
	`, path)
	return scanSource(row)
}

func scanSource(row *sql.Row) (*Source, error) {
	var s Source
	var createdAt string
	err := row.Scan(&s.ID, &s.Path, &s.DisplayName, &createdAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	s.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return &s, nil
}

func (r *SQLiteRepository) ListSources(ctx context.Context) ([]*Source, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, path, display_name, created_at FROM sources ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sources []*Source
	for rows.Next() {
		var s Source
		var createdAt string
		if err := rows.Scan(&s.ID, &s.Path, &s.DisplayName, &createdAt); err != nil {
			return nil, err
		}
		s.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		sources = append(sources, &s)
	}
	return sources, rows.Err()
}

func (r *SQLiteRepository) DeleteSource(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, "DELETE FROM sources WHERE id = ?", id)
	return err
}

func (r *SQLiteRepository) GetAsset(ctx context.Context, id string) (*Asset, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, source_id, path, filename, size, mtime, fingerprint, duration_s, created_at
		FROM assets WHERE id = ?
	`, id)

	var a Asset
	var mtime, createdAt string
	err := row.Scan(&a.ID, &a.SourceID, &a.Path, &a.Filename, &a.Size, &mtime, &a.Fingerprint, &a.DurationS, &createdAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	a.Mtime, _ = time.Parse(time.RFC3339, mtime)
	a.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return &a, nil
}

func (r *SQLiteRepository) ListAssets(ctx context.Context) ([]*Asset, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, source_id, path, filename, size, mtime, fingerprint, duration_s, created_at
		FROM assets ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanAssets(rows)
}

func (r *SQLiteRepository) GetAssetsBySource(ctx context.Context, sourceID string) ([]*Asset, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, source_id, path, filename, size, mtime, fingerprint, duration_s, created_at
		FROM assets WHERE source_id = ? ORDER BY filename
	`, sourceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanAssets(rows)
}

func scanAssets(rows *sql.Rows) ([]*Asset, error) {
	var assets []*Asset
	for rows.Next() {
		var a Asset
		var mtime, createdAt string
		if err := rows.Scan(&a.ID, &a.SourceID, &a.Path, &a.Filename, &a.Size, &mtime, &a.Fingerprint, &a.DurationS, &createdAt); err != nil {
			return nil, err
		}
		a.Mtime, _ = time.Parse(time.RFC3339, mtime)
		a.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		assets = append(assets, &a)
	}
	return assets, rows.Err()
}

func (r *SQLiteRepository) DeleteAssetsBySource(ctx context.Context, sourceID string) error {
	_, err := r.db.ExecContext(ctx, "DELETE FROM assets WHERE source_id = ?", sourceID)
	return err
}

func (r *SQLiteRepository) UpsertAsset(ctx context.Context, a *Asset) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO assets (id, source_id, path, filename, size, mtime, fingerprint, duration_s, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(source_id, path) DO UPDATE SET
			size = excluded.size,
			mtime = excluded.mtime,
			fingerprint = excluded.fingerprint,
			duration_s = excluded.duration_s
	`, a.ID, a.SourceID, a.Path, a.Filename, a.Size, a.Mtime.Format(time.RFC3339), a.Fingerprint, a.DurationS, a.CreatedAt.Format(time.RFC3339))
	return err
}

func (r *SQLiteRepository) CountAssets(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM assets").Scan(&count)
	return count, err
}

func (r *SQLiteRepository) CreateBatch(ctx context.Context, b *Batch) error {
	inputs, err := json.Marshal(b.Inputs)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO batches (id, status, options, inputs, progress, ok_count, fail_count, error, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, b.ID, b.Status, b.Options, string(inputs), b.Progress, b.OkCount, b.FailCount,
		nullString(b.Error), b.CreatedAt.Format(time.RFC3339), b.UpdatedAt.Format(time.RFC3339))
	return err
}

func (r *SQLiteRepository) GetBatch(ctx context.Context, id string) (*Batch, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, status, options, inputs, progress, ok_count, fail_count, error, created_at, updated_at
		FROM batches WHERE id = ?
	`, id)
	return scanBatch(row)
}

func scanBatch(row *sql.Row) (*Batch, error) {
	var b Batch
	var inputs string
	var errMsg sql.NullString
	var createdAt, updatedAt string

	err := row.Scan(&b.ID, &b.Status, &b.Options, &inputs, &b.Progress, &b.OkCount, &b.FailCount, &errMsg, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	json.Unmarshal([]byte(inputs), &b.Inputs)
	b.Error = errMsg.String
	b.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	b.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return &b, nil
}

func (r *SQLiteRepository) ListBatches(ctx context.Context, limit int) ([]*Batch, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, status, options, inputs, progress, ok_count, fail_count, error, created_at, updated_at
		FROM batches ORDER BY created_at DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var batches []*Batch
	for rows.Next() {
		var b Batch
		var inputs string
		var errMsg sql.NullString
		var createdAt, updatedAt string
		if err := rows.Scan(&b.ID, &b.Status, &b.Options, &inputs, &b.Progress, &b.OkCount, &b.FailCount, &errMsg, &createdAt, &updatedAt); err != nil {
			return nil, err
		}
		json.Unmarshal([]byte(inputs), &b.Inputs)
		b.Error = errMsg.String
		b.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		b.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
		batches = append(batches, &b)
	}
	return batches, rows.Err()
}

// ClaimPendingBatch atomically flips the oldest pending batch to running
// and returns it. A single poller owns batch execution, so the update
// guards against double starts across restarts rather than concurrent
// claimants.
func (r *SQLiteRepository) ClaimPendingBatch(ctx context.Context) (*Batch, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id FROM batches WHERE status = 'pending' ORDER BY created_at ASC LIMIT 1
	`)
	var id string
	err := row.Scan(&id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	res, err := r.db.ExecContext(ctx, `
		UPDATE batches SET status = 'running', updated_at = datetime('now')
		WHERE id = ? AND status = 'pending'
	`, id)
	if err != nil {
		return nil, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, nil
	}
	return r.GetBatch(ctx, id)
}

func (r *SQLiteRepository) UpdateBatchStatus(ctx context.Context, id, status, errorMsg string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE batches SET status = ?, error = ?, updated_at = datetime('now') WHERE id = ?
	`, status, nullString(errorMsg), id)
	return err
}

func (r *SQLiteRepository) UpdateBatchProgress(ctx context.Context, id string, progress, okCount, failCount int) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE batches SET progress = ?, ok_count = ?, fail_count = ?, updated_at = datetime('now') WHERE id = ?
	`, progress, okCount, failCount, id)
	return err
}

func (r *SQLiteRepository) CreateBatchItem(ctx context.Context, it *BatchItem) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO batch_items (id, batch_id, input_path, output_path, success, error, duration_s, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, it.ID, it.BatchID, it.InputPath, nullString(it.OutputPath), boolToInt(it.Success),
		nullString(it.Error), it.DurationS, it.CreatedAt.Format(time.RFC3339))
	return err
}

func (r *SQLiteRepository) ListBatchItems(ctx context.Context, batchID string) ([]*BatchItem, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, batch_id, input_path, output_path, success, error, duration_s, created_at
		FROM batch_items WHERE batch_id = ? ORDER BY created_at ASC
	`, batchID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*BatchItem
	for rows.Next() {
		var it BatchItem
		var outputPath, errMsg sql.NullString
		var success int
		var createdAt string
		if err := rows.Scan(&it.ID, &it.BatchID, &it.InputPath, &outputPath, &success, &errMsg, &it.DurationS, &createdAt); err != nil {
			return nil, err
		}
		it.OutputPath = outputPath.String
		it.Error = errMsg.String
		it.Success = success == 1
		it.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		items = append(items, &it)
	}
	return items, rows.Err()
}

func (r *SQLiteRepository) GetConfig(ctx context.Context, key string) (string, error) {
	var value string
	err := r.db.QueryRowContext(ctx, "SELECT value FROM config WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return value, err
}

func (r *SQLiteRepository) SetConfig(ctx context.Context, key, value string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO config (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	return err
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
