// Package database provides SQLite-based storage for fieldlink.
//
// RenderDB stores:
//   - The latest version of every rendered document, keyed by source
//   - One render run per pass, with its full report as JSON
//
// The watch command uses the stored document hashes to skip snapshots whose
// content did not change, and the history command reads the render runs.
// SQLite is provided by modernc.org/sqlite, which needs no cgo.
package database
