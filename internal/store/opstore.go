package store

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"codectx/internal/models"
	sqlm "codectx/internal/storage/sqlite"
)

// timeLayout is RFC3339 with a fixed-width fractional second, so the
// lexicographic ORDER BY over started_at matches chronological order.
// RFC3339Nano trims trailing zeros and breaks that within a second.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// OpStore persists completed operation records across sessions. It is an
// optional component: callers treat a nil *OpStore as history disabled.
type OpStore struct {
	db *sql.DB
}

// Open creates or opens the history database at path and migrates it to
// the latest schema.
func Open(path string) (*OpStore, error) {
	if path == "" {
		return nil, errors.New("sqlite path required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	if err := (sqlm.Manager{}).UpToLatest(context.Background(), db); err != nil {
		db.Close()
		return nil, err
	}
	return &OpStore{db: db}, nil
}

func (s *OpStore) Close() error { return s.db.Close() }

// SaveOperation inserts one completed record.
func (s *OpStore) SaveOperation(ctx context.Context, rec models.OperationRecord) error {
	var ended any
	if rec.EndedAt != nil {
		ended = rec.EndedAt.UTC().Format(timeLayout)
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO operations(id,type,description,started_at,ended_at,duration_ms,mem_delta,cpu_delta,status,result)
         VALUES(?,?,?,?,?,?,?,?,?,?)`,
		rec.ID, rec.Type, rec.Description,
		rec.StartedAt.UTC().Format(timeLayout), ended,
		rec.Duration.Milliseconds(), rec.MemDelta, rec.CPUDelta,
		string(rec.Status), rec.Result)
	return err
}

// SaveRetrievalSample records one retrieval duration for an operation.
func (s *OpStore) SaveRetrievalSample(ctx context.Context, opID string, d time.Duration) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO retrieval_samples(op_id,duration_ms,created_at) VALUES(?,?,?)`,
		opID, d.Milliseconds(), time.Now().UTC().Format(timeLayout))
	return err
}

// RecentOperations returns up to limit records, most recent first.
func (s *OpStore) RecentOperations(ctx context.Context, limit int) ([]models.OperationRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id,type,description,started_at,ended_at,duration_ms,mem_delta,cpu_delta,status,result
         FROM operations ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []models.OperationRecord
	for rows.Next() {
		var rec models.OperationRecord
		var started string
		var ended sql.NullString
		var durMS int64
		var result sql.NullString
		var desc sql.NullString
		var status string
		if err := rows.Scan(&rec.ID, &rec.Type, &desc, &started, &ended, &durMS, &rec.MemDelta, &rec.CPUDelta, &status, &result); err != nil {
			return nil, err
		}
		rec.Description = desc.String
		rec.Result = result.String
		rec.Status = models.OperationStatus(status)
		rec.Duration = time.Duration(durMS) * time.Millisecond
		if t, err := time.Parse(time.RFC3339Nano, started); err == nil {
			rec.StartedAt = t
		}
		if ended.Valid {
			if t, err := time.Parse(time.RFC3339Nano, ended.String); err == nil {
				rec.EndedAt = &t
			}
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
