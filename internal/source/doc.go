// Package source discovers and reads the files to annotate.
//
// Discovery walks a directory tree, keeps files whose extension belongs to a
// language policy, and skips generated outputs, backups, build directories
// and files above the size cap. Reading decodes the file from its language's
// encoding into UTF-8 text and records the raw content hash used by the
// ledger to skip unchanged files.
package source
