package ports

import "time"

// Storage persists search history and cached reports.
// The backing store (bbolt) is project-scoped: each projectID gets its own
// namespace. Concurrent reads are safe; writes are serialized by the adapter.
//
// Crash safety: every Save/Append must be transactional. A crash mid-write
// must not corrupt previously committed data.
type Storage interface {
	// SaveReport caches a report under key (a fingerprint of the request and
	// the files it read). Overwrites any prior report for the key.
	SaveReport(projectID, key string, report *SearchReport) error

	// LoadReport retrieves a cached report.
	// Returns nil, nil if nothing is cached for key.
	LoadReport(projectID, key string) (*SearchReport, error)

	// AppendHistory records a finished search.
	AppendHistory(projectID string, entry HistoryEntry) error

	// ListHistory returns up to limit entries, newest first. limit <= 0
	// means all.
	ListHistory(projectID string, limit int) ([]HistoryEntry, error)

	// DeleteProject removes all data (history + cache) for a project.
	// Idempotent: deleting a nonexistent project is not an error.
	DeleteProject(projectID string) error
}

// HistoryEntry summarizes one search run.
type HistoryEntry struct {
	ID           string        `json:"id" msgpack:"id"`
	At           time.Time     `json:"at" msgpack:"at"`
	Queries      []string      `json:"queries" msgpack:"queries"`
	Mode         Mode          `json:"mode" msgpack:"mode"`
	Roots        []string      `json:"roots" msgpack:"roots"`
	Matches      int           `json:"matches" msgpack:"matches"`
	Errors       int           `json:"errors" msgpack:"errors"`
	FilesScanned int           `json:"files_scanned" msgpack:"scanned"`
	Elapsed      time.Duration `json:"elapsed" msgpack:"elapsed"`
	Cached       bool          `json:"cached" msgpack:"cached"`
}
