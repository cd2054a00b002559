package repository

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

// ErrNotFound is returned when a scan id is unknown.
var ErrNotFound = errors.New("scan not found")

// ScanRecord is one persisted scan result.
type ScanRecord struct {
	ID                string    `json:"id"`
	URL               string    `json:"url"`
	Domain            string    `json:"domain"`
	Mode              string    `json:"mode"`
	AIPrediction      int       `json:"ai_prediction"`
	AIProbability     float64   `json:"ai_probability"`
	HeuristicScore    int       `json:"heuristic_score"`
	CombinedRiskScore float64   `json:"combined_risk_score"`
	RiskLevel         string    `json:"risk_level"`
	Reasons           []string  `json:"reasons,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
}

// DomainCount is an aggregate row of TopRiskyDomains.
type DomainCount struct {
	Domain string `json:"domain"`
	Count  int    `json:"count"`
}

// ScanDB is the sqlite-backed scan history.
type ScanDB struct {
	db *sql.DB
}

func (d *ScanDB) InitDB(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("could not create directory for db: %v", err)
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return fmt.Errorf("could not open db: %v", err)
	}

	// Every connection to ":memory:" is a separate database.
	if path == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		return fmt.Errorf("could not connect to db (check permissions): %v", err)
	}

	d.db = db

	if _, err := d.db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		return fmt.Errorf("failed to set WAL mode: %v", err)
	}

	q := `
	CREATE TABLE IF NOT EXISTS scans (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT UNIQUE NOT NULL,
		url TEXT NOT NULL,
		domain TEXT,
		mode TEXT,
		ai_prediction INTEGER,
		ai_probability REAL,
		heuristic_score INTEGER,
		combined_risk_score REAL,
		risk_level TEXT,
		reasons TEXT,
		created_at INTEGER
	);

	CREATE INDEX IF NOT EXISTS idx_scans_domain ON scans(domain);
	`
	if _, err = d.db.Exec(q); err != nil {
		return fmt.Errorf("could not init tables: %v", err)
	}

	return nil
}

// RecordScans inserts recs in one transaction and returns their new ids.
func (d *ScanDB) RecordScans(recs []ScanRecord) ([]string, error) {
	tx, err := d.db.Begin()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	query := `
	INSERT INTO scans (id, url, domain, mode, ai_prediction, ai_probability,
		heuristic_score, combined_risk_score, risk_level, reasons, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	stmt, err := tx.Prepare(query)
	if err != nil {
		return nil, err
	}
	defer stmt.Close()

	now := time.Now().UTC().UnixMilli()
	ids := make([]string, 0, len(recs))

	for _, r := range recs {
		reasons, err := json.Marshal(r.Reasons)
		if err != nil {
			return nil, fmt.Errorf("encode reasons for %s: %w", r.URL, err)
		}
		id := uuid.NewString()
		if _, err := stmt.Exec(id, r.URL, r.Domain, r.Mode, r.AIPrediction, r.AIProbability,
			r.HeuristicScore, r.CombinedRiskScore, r.RiskLevel, string(reasons), now); err != nil {
			return nil, fmt.Errorf("insert scan %s: %w", r.URL, err)
		}
		ids = append(ids, id)
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return ids, nil
}

const scanColumns = `id, url, domain, mode, ai_prediction, ai_probability,
	heuristic_score, combined_risk_score, risk_level, reasons, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*ScanRecord, error) {
	var (
		r       ScanRecord
		reasons sql.NullString
		created int64
	)
	err := row.Scan(&r.ID, &r.URL, &r.Domain, &r.Mode, &r.AIPrediction, &r.AIProbability,
		&r.HeuristicScore, &r.CombinedRiskScore, &r.RiskLevel, &reasons, &created)
	if err != nil {
		return nil, err
	}
	if reasons.Valid && reasons.String != "" && reasons.String != "null" {
		if err := json.Unmarshal([]byte(reasons.String), &r.Reasons); err != nil {
			return nil, fmt.Errorf("decode reasons of scan %s: %w", r.ID, err)
		}
	}
	r.CreatedAt = time.UnixMilli(created).UTC()
	return &r, nil
}

func (d *ScanDB) GetScan(id string) (*ScanRecord, error) {
	row := d.db.QueryRow("SELECT "+scanColumns+" FROM scans WHERE id = ?", id)
	r, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return r, err
}

// RecentScans returns up to limit scans, newest first.
func (d *ScanDB) RecentScans(limit int) ([]ScanRecord, error) {
	rows, err := d.db.Query("SELECT "+scanColumns+" FROM scans ORDER BY seq DESC LIMIT ?", limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []ScanRecord{}
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

// TopRiskyDomains counts scans at or above minScore per domain, most
// frequent first.
func (d *ScanDB) TopRiskyDomains(minScore float64, limit int) ([]DomainCount, error) {
	query := `
	SELECT domain, COUNT(*) AS hits FROM scans
	WHERE combined_risk_score >= ? AND domain != ''
	GROUP BY domain
	ORDER BY hits DESC, domain ASC
	LIMIT ?
	`
	rows, err := d.db.Query(query, minScore, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []DomainCount{}
	for rows.Next() {
		var dc DomainCount
		if err := rows.Scan(&dc.Domain, &dc.Count); err != nil {
			return nil, err
		}
		out = append(out, dc)
	}
	return out, rows.Err()
}

func (d *ScanDB) Close() error {
	if d.db == nil {
		return nil
	}
	return d.db.Close()
}
