// Package storage provides the SQLite processing ledger.
//
// The ledger records every batch run, the outcome of each file in the run,
// and the per-chunk results behind it. It lets a later run skip files whose
// content hash already succeeded (resume) and backs the status report.
//
// # Database Schema
//
// Tables:
//   - runs: one row per batch run (UUID id, settings, counters, timing)
//   - files: per-file outcome within a run (content hash, status, reason, metrics)
//   - chunk_results: per-chunk outcome (line range, attempts, issues as JSON)
//   - schema_version: applied migrations
//
// Deleting a run cascades to its files and their chunk results.
//
// # Build Modes
//
// The default build uses modernc.org/sqlite (pure Go). Building with the
// sqlite_cgo tag switches to github.com/mattn/go-sqlite3:
//
//	CGO_ENABLED=1 go build -tags sqlite_cgo ./...
//
// # Transactions
//
// BeginTx returns a Tx that implements Storage, so a caller can record
// several files atomically:
//
//	tx, err := store.BeginTx(ctx)
//	if err != nil {
//	    return err
//	}
//	defer tx.Rollback()
//	if err := tx.RecordFile(ctx, rec, chunks); err != nil {
//	    return err
//	}
//	return tx.Commit()
//
// SQLiteStorage serialises access through a single connection, so it is
// safe for concurrent use by the batch runner's workers.
package storage
