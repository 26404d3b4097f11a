package market

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// Manifest 记录某只股票日线文件的统计信息。
type Manifest struct {
	Symbol     string `json:"symbol"`
	MinDate    int64  `json:"min_date"`
	MaxDate    int64  `json:"max_date"`
	Rows       int64  `json:"rows"`
	LastSyncAt int64  `json:"last_sync_at"`
	Path       string `json:"path"`
}

// Store 以「每只股票一个 SQLite 文件」的方式保存日线数据。
type Store struct {
	root string

	mu  sync.Mutex
	dbs map[string]*sql.DB
}

func NewStore(root string) (*Store, error) {
	if root == "" {
		return nil, fmt.Errorf("data root 不能为空")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, err
	}
	return &Store{root: root, dbs: make(map[string]*sql.DB)}, nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var firstErr error
	for k, db := range s.dbs {
		if db == nil {
			continue
		}
		if err := db.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(s.dbs, k)
	}
	return firstErr
}

func (s *Store) db(symbol string) (*sql.DB, string, error) {
	if symbol == "" {
		return nil, "", fmt.Errorf("symbol 不能为空")
	}
	key := strings.ToUpper(symbol)
	s.mu.Lock()
	defer s.mu.Unlock()
	if db, ok := s.dbs[key]; ok && db != nil {
		return db, s.dbPath(symbol), nil
	}
	path := s.dbPath(symbol)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, "", err
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&cache=shared", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, "", err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if err := ensureSchema(db, symbol); err != nil {
		_ = db.Close()
		return nil, "", err
	}
	s.dbs[key] = db
	return db, path, nil
}

func (s *Store) dbPath(symbol string) string {
	dir := filepath.Join(s.root, strings.ToUpper(symbol))
	return filepath.Join(dir, "daily.db")
}

// InsertBars 批量写入日线（重复日期将被覆盖）。
func (s *Store) InsertBars(ctx context.Context, symbol string, bars []Bar) (int, error) {
	if len(bars) == 0 {
		return 0, nil
	}
	db, _, err := s.db(symbol)
	if err != nil {
		return 0, err
	}
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO bars (date, open, high, low, close, prev_close, volume, turnover)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(date) DO UPDATE SET
		    open=excluded.open,
		    high=excluded.high,
		    low=excluded.low,
		    close=excluded.close,
		    prev_close=excluded.prev_close,
		    volume=excluded.volume,
		    turnover=excluded.turnover`)
	if err != nil {
		_ = tx.Rollback()
		return 0, err
	}
	defer stmt.Close()
	count := 0
	for _, b := range bars {
		if _, err := stmt.ExecContext(ctx, b.Date, b.Open, b.High, b.Low, b.Close, b.PrevClose, b.Volume, b.Turnover); err != nil {
			_ = tx.Rollback()
			return 0, err
		}
		count++
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	if err := s.refreshManifest(ctx, db, symbol); err != nil {
		return count, err
	}
	return count, nil
}

// RangeBars 返回 [start, end] 闭区间内的日线，按日期升序。
func (s *Store) RangeBars(ctx context.Context, symbol string, start, end int64) ([]Bar, error) {
	db, _, err := s.db(symbol)
	if err != nil {
		return nil, err
	}
	rows, err := db.QueryContext(ctx, `
		SELECT date, open, high, low, close, prev_close, volume, turnover
		FROM bars WHERE date BETWEEN ? AND ? ORDER BY date`, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanBars(rows, symbol)
}

// BarOn 返回指定交易日的日线；不存在时返回 sql.ErrNoRows。
func (s *Store) BarOn(ctx context.Context, symbol string, date time.Time) (Bar, error) {
	db, _, err := s.db(symbol)
	if err != nil {
		return Bar{}, err
	}
	row := db.QueryRowContext(ctx, `
		SELECT date, open, high, low, close, prev_close, volume, turnover
		FROM bars WHERE date = ?`, DayTS(date))
	var b Bar
	if err := row.Scan(&b.Date, &b.Open, &b.High, &b.Low, &b.Close, &b.PrevClose, &b.Volume, &b.Turnover); err != nil {
		return Bar{}, err
	}
	b.Symbol = strings.ToUpper(symbol)
	return b, nil
}

// HistoryUntil 返回截至 until（含）的最近 lookback 根日线，按日期升序。
func (s *Store) HistoryUntil(ctx context.Context, symbol string, until time.Time, lookback int) ([]Bar, error) {
	if lookback <= 0 {
		return nil, nil
	}
	db, _, err := s.db(symbol)
	if err != nil {
		return nil, err
	}
	rows, err := db.QueryContext(ctx, `
		SELECT date, open, high, low, close, prev_close, volume, turnover
		FROM (
			SELECT * FROM bars WHERE date <= ? ORDER BY date DESC LIMIT ?
		) ORDER BY date`, DayTS(until), lookback)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanBars(rows, symbol)
}

// TradingDates 返回指定区间内已有数据的交易日，升序。
func (s *Store) TradingDates(ctx context.Context, symbol string, start, end time.Time) ([]time.Time, error) {
	db, _, err := s.db(symbol)
	if err != nil {
		return nil, err
	}
	rows, err := db.QueryContext(ctx, `SELECT date FROM bars WHERE date BETWEEN ? AND ? ORDER BY date`,
		DayTS(start), DayTS(end))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []time.Time
	for rows.Next() {
		var ts int64
		if err := rows.Scan(&ts); err != nil {
			return nil, err
		}
		out = append(out, time.Unix(ts, 0).UTC())
	}
	return out, rows.Err()
}

func (s *Store) Manifest(ctx context.Context, symbol string) (Manifest, error) {
	db, path, err := s.db(symbol)
	if err != nil {
		return Manifest{}, err
	}
	row := db.QueryRowContext(ctx, `SELECT symbol, min_date, max_date, rows, last_sync_at FROM manifest WHERE id=1`)
	var m Manifest
	if err := row.Scan(&m.Symbol, &m.MinDate, &m.MaxDate, &m.Rows, &m.LastSyncAt); err != nil {
		return Manifest{}, err
	}
	m.Path = path
	return m, nil
}

func (s *Store) refreshManifest(ctx context.Context, db *sql.DB, symbol string) error {
	now := time.Now().Unix()
	_, err := db.ExecContext(ctx, `
		UPDATE manifest
		SET min_date = (SELECT COALESCE(MIN(date), 0) FROM bars),
		    max_date = (SELECT COALESCE(MAX(date), 0) FROM bars),
		    rows = (SELECT COUNT(1) FROM bars),
		    last_sync_at = ?
		WHERE id = 1`, now)
	_ = symbol
	return err
}

func scanBars(rows *sql.Rows, symbol string) ([]Bar, error) {
	symbol = strings.ToUpper(symbol)
	var out []Bar
	for rows.Next() {
		var b Bar
		if err := rows.Scan(&b.Date, &b.Open, &b.High, &b.Low, &b.Close, &b.PrevClose, &b.Volume, &b.Turnover); err != nil {
			return nil, err
		}
		b.Symbol = symbol
		out = append(out, b)
	}
	return out, rows.Err()
}

func ensureSchema(db *sql.DB, symbol string) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS bars (
			date       INTEGER PRIMARY KEY,
			open       REAL NOT NULL,
			high       REAL NOT NULL,
			low        REAL NOT NULL,
			close      REAL NOT NULL,
			prev_close REAL NOT NULL DEFAULT 0,
			volume     REAL NOT NULL DEFAULT 0,
			turnover   REAL NOT NULL DEFAULT 0,
			inserted_at INTEGER NOT NULL DEFAULT (strftime('%s','now'))
		);`,
		`CREATE TABLE IF NOT EXISTS manifest (
			id INTEGER PRIMARY KEY CHECK (id = 1),
			symbol TEXT NOT NULL,
			min_date INTEGER NOT NULL DEFAULT 0,
			max_date INTEGER NOT NULL DEFAULT 0,
			rows INTEGER NOT NULL DEFAULT 0,
			last_sync_at INTEGER NOT NULL DEFAULT 0
		);`,
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}
	_, err := db.Exec(`INSERT OR IGNORE INTO manifest (id, symbol) VALUES (1, ?)`, strings.ToUpper(symbol))
	return err
}
