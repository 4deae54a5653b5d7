// Package store archives reports in SQLite.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"eth-rugcheck/internal/metrics"
	"eth-rugcheck/internal/risk"

	"github.com/ethereum/go-ethereum/common"
	_ "github.com/mattn/go-sqlite3"
)

var ErrNotFound = errors.New("no stored report")

const schema = `
CREATE TABLE IF NOT EXISTS reports (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	token TEXT NOT NULL,
	symbol TEXT,
	pair TEXT NOT NULL,
	chain_id INTEGER NOT NULL,
	generated_at INTEGER NOT NULL,
	liquidity TEXT NOT NULL,
	body TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_reports_token ON reports(token, generated_at);
`

// Summary is the listing row of a stored report.
type Summary struct {
	ID              int64                `json:"id"`
	Token           common.Address       `json:"token"`
	Symbol          string               `json:"symbol"`
	Pair            common.Address       `json:"pair"`
	ChainID         uint64               `json:"chainId"`
	GeneratedAt     time.Time            `json:"generatedAt"`
	LiquidityStatus risk.LiquidityStatus `json:"liquidityStatus"`
}

type SQLite struct {
	db      *sql.DB
	metrics *metrics.CheckerMetrics
}

func Open(path string, m *metrics.CheckerMetrics) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	// One writer keeps the file free of SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping %s: %w", path, err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	if m == nil {
		m = metrics.NewCheckerMetrics()
	}
	return &SQLite{db: db, metrics: m}, nil
}

func (s *SQLite) Close() error { return s.db.Close() }

// Save stores r and returns its row id.
func (s *SQLite) Save(ctx context.Context, r *risk.RiskReport) (int64, error) {
	body, err := json.Marshal(r)
	if err != nil {
		return 0, fmt.Errorf("marshal report: %w", err)
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO reports (token, symbol, pair, chain_id, generated_at, liquidity, body)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		r.Pair.Target.Hex(), r.Token.Label(), r.Pair.Pair.Hex(), int64(r.ChainID),
		r.GeneratedAt.UnixNano(), string(r.LiquidityStatus), string(body))
	if err != nil {
		return 0, fmt.Errorf("insert report: %w", err)
	}
	s.metrics.ReportsStored.Inc()
	return res.LastInsertId()
}

// Latest returns the most recent report for token.
func (s *SQLite) Latest(ctx context.Context, token common.Address) (*risk.RiskReport, error) {
	var body string
	err := s.db.QueryRowContext(ctx,
		`SELECT body FROM reports WHERE token = ? ORDER BY generated_at DESC, id DESC LIMIT 1`,
		token.Hex()).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w for %s", ErrNotFound, token.Hex())
	}
	if err != nil {
		return nil, fmt.Errorf("query latest: %w", err)
	}

	var r risk.RiskReport
	if err := json.Unmarshal([]byte(body), &r); err != nil {
		return nil, fmt.Errorf("decode stored report: %w", err)
	}
	return &r, nil
}

// List returns up to limit summaries, newest first.
func (s *SQLite) List(ctx context.Context, limit int) ([]Summary, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, token, symbol, pair, chain_id, generated_at, liquidity
		 FROM reports ORDER BY generated_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query reports: %w", err)
	}
	defer rows.Close()

	var out []Summary
	for rows.Next() {
		var (
			sum          Summary
			token, pair  string
			symbol       sql.NullString
			chainID, gen int64
			liquidity    string
		)
		if err := rows.Scan(&sum.ID, &token, &symbol, &pair, &chainID, &gen, &liquidity); err != nil {
			return nil, fmt.Errorf("scan report: %w", err)
		}
		sum.Token = common.HexToAddress(token)
		sum.Symbol = symbol.String
		sum.Pair = common.HexToAddress(pair)
		sum.ChainID = uint64(chainID)
		sum.GeneratedAt = time.Unix(0, gen).UTC()
		sum.LiquidityStatus = risk.LiquidityStatus(liquidity)
		out = append(out, sum)
	}
	return out, rows.Err()
}
