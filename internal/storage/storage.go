package storage

import (
	"context"
	"time"

	"github.com/dshills/codenotate/pkg/types"
)

// Storage defines the interface for the processing ledger
type Storage interface {
	// Run operations
	CreateRun(ctx context.Context, run *Run) error
	FinishRun(ctx context.Context, run *Run) error
	GetRun(ctx context.Context, id string) (*Run, error)
	ListRuns(ctx context.Context, limit int) ([]*Run, error)

	// File operations
	RecordFile(ctx context.Context, file *FileRecord, chunks []*ChunkRecord) error
	GetLatestFile(ctx context.Context, filePath string) (*FileRecord, error)
	GetLatestSuccess(ctx context.Context, filePath string) (*FileRecord, error)
	ListFilesByRun(ctx context.Context, runID string) ([]*FileRecord, error)

	// Chunk operations
	ListChunkResults(ctx context.Context, fileID int64) ([]*ChunkRecord, error)

	// Status operations
	GetStatus(ctx context.Context) (*LedgerStatus, error)

	// Database operations
	Close() error
	BeginTx(ctx context.Context) (Tx, error)
}

// Tx represents a database transaction
type Tx interface {
	Commit() error
	Rollback() error
	Storage
}

// RunStatus is the lifecycle state of a run
type RunStatus string

const (
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunFailed    RunStatus = "failed"
	RunCancelled RunStatus = "cancelled"
)

// FileStatus is the outcome of one file
type FileStatus string

const (
	FileSucceeded FileStatus = "succeeded"
	FileFailed    FileStatus = "failed"
	FileSkipped   FileStatus = "skipped"
)

// Run is one batch invocation
type Run struct {
	ID            string // UUID; assigned by CreateRun when empty
	RootPath      string
	Language      string
	Provider      string
	Model         string
	FailurePolicy string
	DryRun        bool

	Status         RunStatus
	FilesTotal     int
	FilesSucceeded int
	FilesFailed    int
	FilesSkipped   int
	Error          string

	StartedAt  time.Time
	FinishedAt time.Time // Zero while running
}

// FileRecord is the outcome of one file within a run
type FileRecord struct {
	ID          int64
	RunID       string
	FilePath    string // Relative to the run root
	Language    string
	ContentHash [32]byte
	SizeBytes   int64
	Status      FileStatus
	Reason      string
	OutputPath  string

	ChunksTotal     int
	ChunksAnnotated int
	SuccessRate     float64
	CommentLines    int
	Duration        time.Duration
	ProcessedAt     time.Time
}

// ChunkRecord is the outcome of one chunk
type ChunkRecord struct {
	ID         int64
	FileID     int64
	ChunkIndex int
	Name       string
	StartLine  int
	EndLine    int
	Success    bool
	Attempts   int
	Issues     []types.Issue
}

// LedgerStatus summarises the ledger. File counts are taken from the latest
// record of each distinct path.
type LedgerStatus struct {
	Runs           int
	LastRun        *Run
	FilesTracked   int
	FilesSucceeded int
	FilesFailed    int
	FilesSkipped   int
	ChunksRecorded int
	DatabaseSizeMB float64
}
