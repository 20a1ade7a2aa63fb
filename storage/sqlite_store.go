package storage

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/chhz0/dslproc/types"
	_ "modernc.org/sqlite" // 纯Go SQLite驱动
)

type SQLiteStorage struct {
	db *sql.DB
}

func NewSQLiteStorage(path string) (*SQLiteStorage, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, err
	}

	// 创建表结构
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS results (
			id TEXT PRIMARY KEY,
			run_id TEXT NOT NULL,
			seq INTEGER NOT NULL,
			type TEXT NOT NULL,
			options TEXT NOT NULL,
			status INTEGER NOT NULL,
			error TEXT,
			duration INTEGER,
			finished_at DATETIME NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_results_run ON results(run_id, seq);
	`)
	if err != nil {
		db.Close()
		return nil, err
	}

	return &SQLiteStorage{db: db}, nil
}

func (s *SQLiteStorage) SaveResult(ctx context.Context, result *types.Result) error {
	if result.ID == "" {
		result.ID = generateID()
	}
	opts, err := result.Options.MarshalJSON()
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO results
		(id, run_id, seq, type, options, status, error, duration, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		result.ID, result.RunID, result.Seq, result.Type, string(opts),
		int(result.Status), result.Error, int64(result.Duration), result.FinishedAt.UTC(),
	)
	return err
}

const selectResult = `SELECT id, run_id, seq, type, options, status, error, duration, finished_at FROM results`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanResult(row rowScanner) (*types.Result, error) {
	var (
		r        types.Result
		opts     string
		status   int
		errText  sql.NullString
		duration int64
	)
	if err := row.Scan(&r.ID, &r.RunID, &r.Seq, &r.Type, &opts, &status, &errText, &duration, &r.FinishedAt); err != nil {
		return nil, err
	}
	if err := r.Options.UnmarshalJSON([]byte(opts)); err != nil {
		return nil, err
	}
	r.Status = types.ItemStatus(status)
	r.Error = errText.String
	r.Duration = time.Duration(duration)
	return &r, nil
}

func (s *SQLiteStorage) GetResult(ctx context.Context, id string) (*types.Result, error) {
	r, err := scanResult(s.db.QueryRowContext(ctx, selectResult+` WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrResultNotFound
	}
	return r, err
}

func (s *SQLiteStorage) ListResults(ctx context.Context, runID string, limit int) ([]*types.Result, error) {
	if limit <= 0 {
		limit = -1 // SQLite: 负数表示不限
	}
	rows, err := s.db.QueryContext(ctx,
		selectResult+` WHERE run_id = ? ORDER BY seq ASC LIMIT ?`,
		runID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []*types.Result
	for rows.Next() {
		r, err := scanResult(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}
