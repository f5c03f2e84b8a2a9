package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrNotFound is returned when a requested entity doesn't exist
	ErrNotFound = errors.New("not found")

	// ErrNestedTx is returned by BeginTx on a transaction
	ErrNestedTx = errors.New("nested transactions not supported")
)

// SQLiteStorage implements the Storage interface using SQLite
type SQLiteStorage struct {
	db *sql.DB
}

// openDatabase opens a SQLite database with appropriate settings
func openDatabase(dbPath string) (*sql.DB, error) {
	db, err := sql.Open(DriverName, dbPath)
	if err != nil {
		return nil, err
	}

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	// Single writer; this also keeps :memory: databases on one connection
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	return db, nil
}

// NewSQLiteStorage opens (or creates) the ledger at dbPath
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	db, err := openDatabase(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := ApplyMigrations(context.Background(), db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply migrations: %w", err)
	}

	return &SQLiteStorage{db: db}, nil
}

// Close closes the database connection
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// BeginTx starts a new transaction
func (s *SQLiteStorage) BeginTx(ctx context.Context) (Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return &sqliteTx{tx: tx, storage: s}, nil
}

// querier is an interface that both *sql.DB and *sql.Tx implement
type querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// scanner is implemented by *sql.Row and *sql.Rows
type scanner interface {
	Scan(dest ...interface{}) error
}

func (s *SQLiteStorage) querier() querier {
	return s.db
}

// Run operations

func (s *SQLiteStorage) createRunWithQuerier(ctx context.Context, q querier, run *Run) error {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.Status == "" {
		run.Status = RunRunning
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now()
	}

	query := `
		INSERT INTO runs (id, root_path, language, provider, model, failure_policy, dry_run, status, started_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := q.ExecContext(ctx, query,
		run.ID, run.RootPath, run.Language, run.Provider, run.Model,
		run.FailurePolicy, run.DryRun, string(run.Status), run.StartedAt)
	if err != nil {
		return fmt.Errorf("failed to create run: %w", err)
	}
	return nil
}

func (s *SQLiteStorage) CreateRun(ctx context.Context, run *Run) error {
	return s.createRunWithQuerier(ctx, s.querier(), run)
}

func (s *SQLiteStorage) finishRunWithQuerier(ctx context.Context, q querier, run *Run) error {
	if run.FinishedAt.IsZero() {
		run.FinishedAt = time.Now()
	}
	if run.Status == "" || run.Status == RunRunning {
		run.Status = RunCompleted
	}

	query := `
		UPDATE runs
		SET status = ?, files_total = ?, files_succeeded = ?, files_failed = ?,
		    files_skipped = ?, error = ?, finished_at = ?
		WHERE id = ?
	`
	res, err := q.ExecContext(ctx, query,
		string(run.Status), run.FilesTotal, run.FilesSucceeded, run.FilesFailed,
		run.FilesSkipped, run.Error, run.FinishedAt, run.ID)
	if err != nil {
		return fmt.Errorf("failed to finish run: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLiteStorage) FinishRun(ctx context.Context, run *Run) error {
	return s.finishRunWithQuerier(ctx, s.querier(), run)
}

const runColumns = `
	id, root_path, language, provider, model, failure_policy, dry_run, status,
	files_total, files_succeeded, files_failed, files_skipped, error, started_at, finished_at
`

func scanRun(row scanner) (*Run, error) {
	var (
		run                                        Run
		language, provider, model, policy, errText sql.NullString
		status                                     string
		finishedAt                                 sql.NullTime
	)
	err := row.Scan(
		&run.ID, &run.RootPath, &language, &provider, &model, &policy, &run.DryRun, &status,
		&run.FilesTotal, &run.FilesSucceeded, &run.FilesFailed, &run.FilesSkipped,
		&errText, &run.StartedAt, &finishedAt,
	)
	if err != nil {
		return nil, err
	}
	run.Language = language.String
	run.Provider = provider.String
	run.Model = model.String
	run.FailurePolicy = policy.String
	run.Error = errText.String
	run.Status = RunStatus(status)
	if finishedAt.Valid {
		run.FinishedAt = finishedAt.Time
	}
	return &run, nil
}

func (s *SQLiteStorage) getRunWithQuerier(ctx context.Context, q querier, id string) (*Run, error) {
	run, err := scanRun(q.QueryRowContext(ctx, "SELECT "+runColumns+" FROM runs WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return run, err
}

func (s *SQLiteStorage) GetRun(ctx context.Context, id string) (*Run, error) {
	return s.getRunWithQuerier(ctx, s.querier(), id)
}

func (s *SQLiteStorage) listRunsWithQuerier(ctx context.Context, q querier, limit int) ([]*Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := q.QueryContext(ctx, "SELECT "+runColumns+" FROM runs ORDER BY started_at DESC, rowid DESC LIMIT ?", limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	runs := make([]*Run, 0)
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

func (s *SQLiteStorage) ListRuns(ctx context.Context, limit int) ([]*Run, error) {
	return s.listRunsWithQuerier(ctx, s.querier(), limit)
}

// File operations

// recordFileWithQuerier upserts the file outcome and replaces its chunk results
func (s *SQLiteStorage) recordFileWithQuerier(ctx context.Context, q querier, file *FileRecord, chunks []*ChunkRecord) error {
	if file.ProcessedAt.IsZero() {
		file.ProcessedAt = time.Now()
	}

	query := `
		INSERT INTO files (run_id, file_path, language, content_hash, size_bytes, status, reason, output_path,
		                   chunks_total, chunks_annotated, success_rate, comment_lines, duration_ms, processed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id, file_path) DO UPDATE SET
			language = excluded.language,
			content_hash = excluded.content_hash,
			size_bytes = excluded.size_bytes,
			status = excluded.status,
			reason = excluded.reason,
			output_path = excluded.output_path,
			chunks_total = excluded.chunks_total,
			chunks_annotated = excluded.chunks_annotated,
			success_rate = excluded.success_rate,
			comment_lines = excluded.comment_lines,
			duration_ms = excluded.duration_ms,
			processed_at = excluded.processed_at
		RETURNING id
	`
	err := q.QueryRowContext(ctx, query,
		file.RunID, file.FilePath, file.Language, file.ContentHash[:], file.SizeBytes,
		string(file.Status), file.Reason, file.OutputPath,
		file.ChunksTotal, file.ChunksAnnotated, file.SuccessRate, file.CommentLines,
		file.Duration.Milliseconds(), file.ProcessedAt).Scan(&file.ID)
	if err != nil {
		return fmt.Errorf("failed to record file: %w", err)
	}

	if _, err := q.ExecContext(ctx, "DELETE FROM chunk_results WHERE file_id = ?", file.ID); err != nil {
		return fmt.Errorf("failed to clear chunk results: %w", err)
	}

	for _, ch := range chunks {
		issues, err := json.Marshal(ch.Issues)
		if err != nil {
			return fmt.Errorf("failed to encode issues: %w", err)
		}
		err = q.QueryRowContext(ctx, `
			INSERT INTO chunk_results (file_id, chunk_index, name, start_line, end_line, success, attempts, issues)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			RETURNING id
		`, file.ID, ch.ChunkIndex, ch.Name, ch.StartLine, ch.EndLine, ch.Success, ch.Attempts, string(issues)).Scan(&ch.ID)
		if err != nil {
			return fmt.Errorf("failed to record chunk %d: %w", ch.ChunkIndex, err)
		}
		ch.FileID = file.ID
	}
	return nil
}

// RecordFile stores a file outcome and its chunks atomically
func (s *SQLiteStorage) RecordFile(ctx context.Context, file *FileRecord, chunks []*ChunkRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := s.recordFileWithQuerier(ctx, tx, file, chunks); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

const fileColumns = `
	id, run_id, file_path, language, content_hash, size_bytes, status, reason, output_path,
	chunks_total, chunks_annotated, success_rate, comment_lines, duration_ms, processed_at
`

func scanFile(row scanner) (*FileRecord, error) {
	var (
		file                     FileRecord
		hash                     []byte
		language, reason, output sql.NullString
		status                   string
		durationMs               int64
	)
	err := row.Scan(
		&file.ID, &file.RunID, &file.FilePath, &language, &hash, &file.SizeBytes, &status, &reason, &output,
		&file.ChunksTotal, &file.ChunksAnnotated, &file.SuccessRate, &file.CommentLines, &durationMs, &file.ProcessedAt,
	)
	if err != nil {
		return nil, err
	}
	copy(file.ContentHash[:], hash)
	file.Language = language.String
	file.Reason = reason.String
	file.OutputPath = output.String
	file.Status = FileStatus(status)
	file.Duration = time.Duration(durationMs) * time.Millisecond
	return &file, nil
}

func (s *SQLiteStorage) getLatestFileWithQuerier(ctx context.Context, q querier, filePath string) (*FileRecord, error) {
	row := q.QueryRowContext(ctx, "SELECT "+fileColumns+" FROM files WHERE file_path = ? ORDER BY id DESC LIMIT 1", filePath)
	file, err := scanFile(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return file, err
}

// GetLatestFile returns the most recent record for a path across all runs
func (s *SQLiteStorage) GetLatestFile(ctx context.Context, filePath string) (*FileRecord, error) {
	return s.getLatestFileWithQuerier(ctx, s.querier(), filePath)
}

func (s *SQLiteStorage) getLatestSuccessWithQuerier(ctx context.Context, q querier, filePath string) (*FileRecord, error) {
	row := q.QueryRowContext(ctx, "SELECT "+fileColumns+" FROM files WHERE file_path = ? AND status = ? ORDER BY id DESC LIMIT 1",
		filePath, string(FileSucceeded))
	file, err := scanFile(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return file, err
}

// GetLatestSuccess returns the most recent succeeded record for a path.
// Later skipped or failed records do not hide it.
func (s *SQLiteStorage) GetLatestSuccess(ctx context.Context, filePath string) (*FileRecord, error) {
	return s.getLatestSuccessWithQuerier(ctx, s.querier(), filePath)
}

func (s *SQLiteStorage) listFilesByRunWithQuerier(ctx context.Context, q querier, runID string) ([]*FileRecord, error) {
	rows, err := q.QueryContext(ctx, "SELECT "+fileColumns+" FROM files WHERE run_id = ? ORDER BY file_path", runID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	files := make([]*FileRecord, 0)
	for rows.Next() {
		file, err := scanFile(rows)
		if err != nil {
			return nil, err
		}
		files = append(files, file)
	}
	return files, rows.Err()
}

func (s *SQLiteStorage) ListFilesByRun(ctx context.Context, runID string) ([]*FileRecord, error) {
	return s.listFilesByRunWithQuerier(ctx, s.querier(), runID)
}

// Chunk operations

func (s *SQLiteStorage) listChunkResultsWithQuerier(ctx context.Context, q querier, fileID int64) ([]*ChunkRecord, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, file_id, chunk_index, name, start_line, end_line, success, attempts, issues
		FROM chunk_results
		WHERE file_id = ?
		ORDER BY chunk_index
	`, fileID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	chunks := make([]*ChunkRecord, 0)
	for rows.Next() {
		var (
			ch     ChunkRecord
			name   sql.NullString
			issues sql.NullString
		)
		if err := rows.Scan(&ch.ID, &ch.FileID, &ch.ChunkIndex, &name, &ch.StartLine, &ch.EndLine,
			&ch.Success, &ch.Attempts, &issues); err != nil {
			return nil, err
		}
		ch.Name = name.String
		if issues.Valid && issues.String != "" {
			if err := json.Unmarshal([]byte(issues.String), &ch.Issues); err != nil {
				return nil, fmt.Errorf("failed to decode issues for chunk %d: %w", ch.ChunkIndex, err)
			}
		}
		chunks = append(chunks, &ch)
	}
	return chunks, rows.Err()
}

func (s *SQLiteStorage) ListChunkResults(ctx context.Context, fileID int64) ([]*ChunkRecord, error) {
	return s.listChunkResultsWithQuerier(ctx, s.querier(), fileID)
}

// Status operations

func (s *SQLiteStorage) getStatusWithQuerier(ctx context.Context, q querier) (*LedgerStatus, error) {
	status := &LedgerStatus{}

	if err := q.QueryRowContext(ctx, "SELECT COUNT(*) FROM runs").Scan(&status.Runs); err != nil {
		return nil, err
	}
	if status.Runs > 0 {
		runs, err := s.listRunsWithQuerier(ctx, q, 1)
		if err != nil {
			return nil, err
		}
		status.LastRun = runs[0]
	}

	// Latest record per distinct path
	rows, err := q.QueryContext(ctx, `
		SELECT f.status, COUNT(*)
		FROM files f
		WHERE f.id = (SELECT MAX(f2.id) FROM files f2 WHERE f2.file_path = f.file_path)
		GROUP BY f.status
	`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	for rows.Next() {
		var (
			st string
			n  int
		)
		if err := rows.Scan(&st, &n); err != nil {
			return nil, err
		}
		status.FilesTracked += n
		switch FileStatus(st) {
		case FileSucceeded:
			status.FilesSucceeded = n
		case FileFailed:
			status.FilesFailed = n
		case FileSkipped:
			status.FilesSkipped = n
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if err := q.QueryRowContext(ctx, "SELECT COUNT(*) FROM chunk_results").Scan(&status.ChunksRecorded); err != nil {
		return nil, err
	}

	var pageCount, pageSize int
	if err := q.QueryRowContext(ctx, "PRAGMA page_count").Scan(&pageCount); err == nil {
		_ = q.QueryRowContext(ctx, "PRAGMA page_size").Scan(&pageSize)
		status.DatabaseSizeMB = float64(pageCount*pageSize) / (1024 * 1024)
	}
	return status, nil
}

func (s *SQLiteStorage) GetStatus(ctx context.Context) (*LedgerStatus, error) {
	return s.getStatusWithQuerier(ctx, s.querier())
}

// sqliteTx wraps a SQL transaction
type sqliteTx struct {
	tx      *sql.Tx
	storage *SQLiteStorage
}

func (t *sqliteTx) Commit() error {
	return t.tx.Commit()
}

func (t *sqliteTx) Rollback() error {
	return t.tx.Rollback()
}

func (t *sqliteTx) querier() querier {
	return t.tx
}

func (t *sqliteTx) CreateRun(ctx context.Context, run *Run) error {
	return t.storage.createRunWithQuerier(ctx, t.querier(), run)
}

func (t *sqliteTx) FinishRun(ctx context.Context, run *Run) error {
	return t.storage.finishRunWithQuerier(ctx, t.querier(), run)
}

func (t *sqliteTx) GetRun(ctx context.Context, id string) (*Run, error) {
	return t.storage.getRunWithQuerier(ctx, t.querier(), id)
}

func (t *sqliteTx) ListRuns(ctx context.Context, limit int) ([]*Run, error) {
	return t.storage.listRunsWithQuerier(ctx, t.querier(), limit)
}

func (t *sqliteTx) RecordFile(ctx context.Context, file *FileRecord, chunks []*ChunkRecord) error {
	return t.storage.recordFileWithQuerier(ctx, t.querier(), file, chunks)
}

func (t *sqliteTx) GetLatestFile(ctx context.Context, filePath string) (*FileRecord, error) {
	return t.storage.getLatestFileWithQuerier(ctx, t.querier(), filePath)
}

func (t *sqliteTx) GetLatestSuccess(ctx context.Context, filePath string) (*FileRecord, error) {
	return t.storage.getLatestSuccessWithQuerier(ctx, t.querier(), filePath)
}

func (t *sqliteTx) ListFilesByRun(ctx context.Context, runID string) ([]*FileRecord, error) {
	return t.storage.listFilesByRunWithQuerier(ctx, t.querier(), runID)
}

func (t *sqliteTx) ListChunkResults(ctx context.Context, fileID int64) ([]*ChunkRecord, error) {
	return t.storage.listChunkResultsWithQuerier(ctx, t.querier(), fileID)
}

func (t *sqliteTx) GetStatus(ctx context.Context) (*LedgerStatus, error) {
	return t.storage.getStatusWithQuerier(ctx, t.querier())
}

func (t *sqliteTx) Close() error {
	// Transactions don't close the underlying connection
	return nil
}

func (t *sqliteTx) BeginTx(ctx context.Context) (Tx, error) {
	return nil, ErrNestedTx
}
