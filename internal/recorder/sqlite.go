package recorder

import (
	"database/sql"
	"fmt"
	"log"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"quantdash/internal/model"
)

// SQLiteRecorder persists historical data to a SQLite database.
type SQLiteRecorder struct {
	db *sql.DB
	mu sync.Mutex
}

// NewSQLiteRecorder opens (or creates) the SQLite database and runs migrations.
func NewSQLiteRecorder(dbPath string) (*SQLiteRecorder, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// WAL so dashboards can read while requests write.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	r := &SQLiteRecorder{db: db}
	if err := r.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	log.Printf("[INFO] sqlite recorder opened: %s", dbPath)
	return r, nil
}

func (r *SQLiteRecorder) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS analyses (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp   INTEGER NOT NULL,
			request_id  TEXT,
			kind        TEXT NOT NULL,
			ticker      TEXT,
			outcome     TEXT NOT NULL,
			score       INTEGER,
			status      TEXT,
			price       REAL,
			change_pct  REAL,
			rsi         REAL,
			pe          REAL,
			commentary  TEXT,
			duration_ms INTEGER
		)`,
		`CREATE INDEX IF NOT EXISTS idx_analyses_ts ON analyses(timestamp)`,
		`CREATE INDEX IF NOT EXISTS idx_analyses_ticker ON analyses(ticker)`,

		`CREATE TABLE IF NOT EXISTS corpus_checks (
			id              INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp       INTEGER NOT NULL,
			vector_store_id TEXT,
			state           TEXT NOT NULL,
			completed       INTEGER,
			in_progress     INTEGER,
			failed          INTEGER,
			total           INTEGER,
			error           TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_corpus_ts ON corpus_checks(timestamp)`,
	}

	for _, s := range stmts {
		if _, err := r.db.Exec(s); err != nil {
			return fmt.Errorf("exec %q: %w", s[:40], err)
		}
	}
	return nil
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func ptr(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	return model.Float(v.Float64)
}

func (r *SQLiteRecorder) RecordAnalysis(rec *AnalysisRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	at := rec.At
	if at.IsZero() {
		at = time.Now()
	}
	_, err := r.db.Exec(`INSERT INTO analyses
		(timestamp, request_id, kind, ticker, outcome, score, status,
		 price, change_pct, rsi, pe, commentary, duration_ms)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		at.Unix(), rec.RequestID, rec.Kind, rec.Ticker, rec.Outcome, rec.Score, rec.Status,
		nullFloat(rec.Price), nullFloat(rec.ChangePct), nullFloat(rec.RSI), nullFloat(rec.PE),
		rec.Commentary, rec.Duration.Milliseconds(),
	)
	return err
}

func (r *SQLiteRecorder) RecordCorpusCheck(st *model.CorpusStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	at := st.CheckedAt
	if at.IsZero() {
		at = time.Now()
	}
	_, err := r.db.Exec(`INSERT INTO corpus_checks
		(timestamp, vector_store_id, state, completed, in_progress, failed, total, error)
		VALUES (?,?,?,?,?,?,?,?)`,
		at.Unix(), st.VectorStoreID, string(st.State),
		st.Completed, st.InProgress, st.Failed, st.Total, st.Err,
	)
	return err
}

// Recent returns the newest analyses first.
func (r *SQLiteRecorder) Recent(limit int) ([]AnalysisRecord, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := r.db.Query(`SELECT timestamp, request_id, kind, ticker, outcome, score, status,
		price, change_pct, rsi, pe, commentary, duration_ms
		FROM analyses ORDER BY timestamp DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []AnalysisRecord
	for rows.Next() {
		var (
			rec                   AnalysisRecord
			ts, durMS             int64
			reqID, ticker, status sql.NullString
			commentary            sql.NullString
			price, chg, rsi, pe   sql.NullFloat64
		)
		if err := rows.Scan(&ts, &reqID, &rec.Kind, &ticker, &rec.Outcome, &rec.Score, &status,
			&price, &chg, &rsi, &pe, &commentary, &durMS); err != nil {
			return nil, err
		}
		rec.At = time.Unix(ts, 0)
		rec.RequestID = reqID.String
		rec.Ticker = ticker.String
		rec.Status = status.String
		rec.Commentary = commentary.String
		rec.Price, rec.ChangePct, rec.RSI, rec.PE = ptr(price), ptr(chg), ptr(rsi), ptr(pe)
		rec.Duration = time.Duration(durMS) * time.Millisecond
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (r *SQLiteRecorder) Close() error {
	log.Println("[INFO] closing sqlite recorder")
	return r.db.Close()
}
