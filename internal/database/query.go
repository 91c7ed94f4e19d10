package database

import (
	"database/sql"
	"time"
)

const deletionColumns = `
	SELECT id, run_id, timestamp, action, path, file_name, extension,
	       base_key, counterpart, counterparts, size, match_reason, error_message
	FROM deletions
`

const runColumns = `
	SELECT id, root, dry_run, started_at, finished_at, files_scanned, lossy_files,
	       lossless_keys, candidates, deleted, vanished, failed, bytes_freed,
	       status, error_message
	FROM runs
`

// GetRecentDeletions returns the N most recent actions
func (d *DeletionDB) GetRecentDeletions(limit int) ([]DeletionRecord, error) {
	return d.queryDeletions(deletionColumns+`
	ORDER BY timestamp DESC, id DESC
	LIMIT ?
	`, limit)
}

// GetDeletionsByRun returns every action of one run, in the order they happened
func (d *DeletionDB) GetDeletionsByRun(runID string) ([]DeletionRecord, error) {
	return d.queryDeletions(deletionColumns+`
	WHERE run_id = ?
	ORDER BY id ASC
	`, runID)
}

// GetDeletionsByAction returns actions filtered by type
func (d *DeletionDB) GetDeletionsByAction(action string, limit int) ([]DeletionRecord, error) {
	return d.queryDeletions(deletionColumns+`
	WHERE action = ?
	ORDER BY timestamp DESC, id DESC
	LIMIT ?
	`, action, limit)
}

// GetDeletionsByPath returns actions matching a path pattern (SQL LIKE syntax)
func (d *DeletionDB) GetDeletionsByPath(pathPattern string, limit int) ([]DeletionRecord, error) {
	return d.queryDeletions(deletionColumns+`
	WHERE path LIKE ?
	ORDER BY timestamp DESC, id DESC
	LIMIT ?
	`, pathPattern, limit)
}

// GetRecentRuns returns the N most recently started runs
func (d *DeletionDB) GetRecentRuns(limit int) ([]RunRecord, error) {
	return d.queryRuns(runColumns+`
	ORDER BY started_at DESC
	LIMIT ?
	`, limit)
}

// GetRun returns a single run, or sql.ErrNoRows
func (d *DeletionDB) GetRun(runID string) (*RunRecord, error) {
	runs, err := d.queryRuns(runColumns+`WHERE id = ?`, runID)
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, sql.ErrNoRows
	}
	return &runs[0], nil
}

// DeletionStats holds aggregated statistics
type DeletionStats struct {
	Runs            int
	TotalDeletions  int
	TotalDryRun     int
	TotalSkipped    int
	TotalErrors     int
	TotalSpaceFreed int64
	ByExtension     map[string]int
	StartDate       time.Time
	EndDate         time.Time
}

// GetDeletionStats returns statistics for the last N days
func (d *DeletionDB) GetDeletionStats(days int) (*DeletionStats, error) {
	now := time.Now()
	since := now.AddDate(0, 0, -days)

	stats := &DeletionStats{
		StartDate:   since,
		EndDate:     now,
		ByExtension: make(map[string]int),
	}

	err := d.db.QueryRow(`
		SELECT
			COUNT(CASE WHEN action = 'DELETE' THEN 1 END),
			COUNT(CASE WHEN action = 'DRY_RUN' THEN 1 END),
			COUNT(CASE WHEN action = 'SKIP' THEN 1 END),
			COUNT(CASE WHEN action = 'ERROR' THEN 1 END),
			COALESCE(SUM(CASE WHEN action = 'DELETE' THEN size ELSE 0 END), 0)
		FROM deletions
		WHERE timestamp >= ?
	`, since).Scan(&stats.TotalDeletions, &stats.TotalDryRun, &stats.TotalSkipped, &stats.TotalErrors, &stats.TotalSpaceFreed)
	if err != nil {
		return nil, err
	}

	if err := d.db.QueryRow(`SELECT COUNT(*) FROM runs WHERE started_at >= ?`, since).Scan(&stats.Runs); err != nil {
		return nil, err
	}

	rows, err := d.db.Query(`
		SELECT extension, COUNT(*)
		FROM deletions
		WHERE action = 'DELETE' AND timestamp >= ?
		GROUP BY extension
	`, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var ext sql.NullString
		var count int
		if err := rows.Scan(&ext, &count); err != nil {
			return nil, err
		}
		stats.ByExtension[ext.String] = count
	}

	return stats, rows.Err()
}

// DeleteOldRecords removes actions and runs older than specified days
func (d *DeletionDB) DeleteOldRecords(olderThanDays int) (int64, error) {
	cutoff := time.Now().AddDate(0, 0, -olderThanDays)

	result, err := d.db.Exec(`DELETE FROM deletions WHERE timestamp < ?`, cutoff)
	if err != nil {
		return 0, err
	}
	if _, err := d.db.Exec(`DELETE FROM runs WHERE started_at < ?`, cutoff); err != nil {
		return 0, err
	}

	return result.RowsAffected()
}

func (d *DeletionDB) queryDeletions(query string, args ...interface{}) ([]DeletionRecord, error) {
	rows, err := d.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []DeletionRecord
	for rows.Next() {
		var r DeletionRecord
		var fileName, ext, counterpart, reason, errMsg sql.NullString

		err := rows.Scan(
			&r.ID, &r.RunID, &r.Timestamp, &r.Action, &r.Path, &fileName, &ext,
			&r.BaseKey, &counterpart, &r.Counterparts, &r.Size, &reason, &errMsg,
		)
		if err != nil {
			return nil, err
		}

		r.FileName = fileName.String
		r.Extension = ext.String
		r.Counterpart = counterpart.String
		r.MatchReason = reason.String
		r.ErrorMessage = errMsg.String

		records = append(records, r)
	}

	return records, rows.Err()
}

func (d *DeletionDB) queryRuns(query string, args ...interface{}) ([]RunRecord, error) {
	rows, err := d.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []RunRecord
	for rows.Next() {
		var r RunRecord
		var finished sql.NullTime
		var errMsg sql.NullString

		err := rows.Scan(
			&r.ID, &r.Root, &r.DryRun, &r.StartedAt, &finished, &r.FilesScanned, &r.LossyFiles,
			&r.LosslessKeys, &r.Candidates, &r.Deleted, &r.Vanished, &r.Failed, &r.BytesFreed,
			&r.Status, &errMsg,
		)
		if err != nil {
			return nil, err
		}
		if finished.Valid {
			r.FinishedAt = finished.Time
		}
		r.ErrorMessage = errMsg.String

		runs = append(runs, r)
	}

	return runs, rows.Err()
}
