// Package store persists cycle reports and memory snapshots to SQLite.
// The journal is a write-through collaborator of the reprocessing service;
// core cycle logic never depends on it succeeding.
package store

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	_ "modernc.org/sqlite"

	"github.com/xiy/rmm-mcp/pkg/types"
)

//go:embed schema.sql
var schemaSQL string

// Stats summarizes journal counters for dashboards.
type Stats struct {
	Memories  int64
	Adaptive  int64
	Cycles    int64
	Corrected int64
	Dissonant int64
}

// Journal is a SQLite-backed cycle journal and snapshot store.
type Journal struct {
	db     *sql.DB
	logger *log.Logger
}

// Open opens and initializes the journal database.
func Open(ctx context.Context, dbPath string, logger *log.Logger) (*Journal, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("mkdir db dir: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	j := &Journal{db: db, logger: logger}
	if err := j.init(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return j, nil
}

func (j *Journal) init(ctx context.Context) error {
	for _, stmt := range strings.Split(schemaSQL, ";") {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if _, err := j.db.ExecContext(ctx, stmt+";"); err != nil {
			return fmt.Errorf("run schema stmt: %w", err)
		}
	}
	return nil
}

// InsertCycle stores one completed cycle report.
func (j *Journal) InsertCycle(ctx context.Context, rep types.CycleReport) error {
	ts := rep.CreatedAt.UTC()
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	const q = `INSERT INTO cycles (
		id, memory_id, outcome, signal, agreement_shift, mischievous_shift,
		strength, valence, reprocessing_count, duration_ms, created_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := j.db.ExecContext(ctx, q,
		rep.ID,
		rep.MemoryID,
		string(rep.Outcome),
		string(rep.Signal),
		rep.AgreementShift,
		rep.MischievousShift,
		rep.Strength,
		rep.Valence,
		rep.ReprocessingCount,
		rep.DurationMS,
		ts.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("insert cycle: %w", err)
	}
	return nil
}

// UpsertSnapshot stores the latest state of a memory.
func (j *Journal) UpsertSnapshot(ctx context.Context, m types.Memory) error {
	scores := m.ValueAlignment
	if scores == nil {
		scores = map[string]float64{}
	}
	scoresJSON, err := json.Marshal(scores)
	if err != nil {
		return fmt.Errorf("marshal scores: %w", err)
	}

	adaptive := 0
	if m.IsAdaptive {
		adaptive = 1
	}

	const q = `INSERT INTO snapshots (
		memory_id, content, current_inference, initial_valence, current_valence,
		strength, reprocessing_count, is_adaptive, agreement_shift, mischievous_shift,
		scores_json, updated_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(memory_id) DO UPDATE SET
		content = excluded.content,
		current_inference = excluded.current_inference,
		initial_valence = excluded.initial_valence,
		current_valence = excluded.current_valence,
		strength = excluded.strength,
		reprocessing_count = excluded.reprocessing_count,
		is_adaptive = excluded.is_adaptive,
		agreement_shift = excluded.agreement_shift,
		mischievous_shift = excluded.mischievous_shift,
		scores_json = excluded.scores_json,
		updated_at = excluded.updated_at`
	_, err = j.db.ExecContext(ctx, q,
		m.Identifier,
		m.Content,
		m.CurrentInference,
		m.InitialValence,
		m.CurrentValence,
		m.Strength,
		m.ReprocessingCount,
		adaptive,
		m.AgreementShift,
		m.MischievousShift,
		string(scoresJSON),
		time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("upsert snapshot: %w", err)
	}
	return nil
}

// ListSnapshots returns every persisted memory state, sorted by identifier.
func (j *Journal) ListSnapshots(ctx context.Context) ([]types.Memory, error) {
	const q = `SELECT memory_id, content, current_inference, initial_valence, current_valence,
		strength, reprocessing_count, is_adaptive, agreement_shift, mischievous_shift, scores_json
	FROM snapshots ORDER BY memory_id ASC`
	rows, err := j.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	defer rows.Close()

	out := make([]types.Memory, 0)
	for rows.Next() {
		var (
			m          types.Memory
			adaptive   int
			scoresJSON string
		)
		if err := rows.Scan(
			&m.Identifier,
			&m.Content,
			&m.CurrentInference,
			&m.InitialValence,
			&m.CurrentValence,
			&m.Strength,
			&m.ReprocessingCount,
			&adaptive,
			&m.AgreementShift,
			&m.MischievousShift,
			&scoresJSON,
		); err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		m.IsAdaptive = adaptive == 1
		if err := json.Unmarshal([]byte(scoresJSON), &m.ValueAlignment); err != nil {
			m.ValueAlignment = map[string]float64{}
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// RecentCycles returns the newest cycle reports, newest first.
func (j *Journal) RecentCycles(ctx context.Context, limit int) ([]types.CycleReport, error) {
	if limit <= 0 {
		limit = 20
	}
	const q = `SELECT id, memory_id, outcome, signal, agreement_shift, mischievous_shift,
		strength, valence, reprocessing_count, duration_ms, created_at
	FROM cycles ORDER BY created_at DESC LIMIT ?`
	rows, err := j.db.QueryContext(ctx, q, limit)
	if err != nil {
		return nil, fmt.Errorf("list cycles: %w", err)
	}
	defer rows.Close()

	out := make([]types.CycleReport, 0, limit)
	for rows.Next() {
		var (
			rep       types.CycleReport
			outcome   string
			signal    string
			createdAt string
		)
		if err := rows.Scan(
			&rep.ID,
			&rep.MemoryID,
			&outcome,
			&signal,
			&rep.AgreementShift,
			&rep.MischievousShift,
			&rep.Strength,
			&rep.Valence,
			&rep.ReprocessingCount,
			&rep.DurationMS,
			&createdAt,
		); err != nil {
			return nil, fmt.Errorf("scan cycle: %w", err)
		}
		rep.Outcome = types.Outcome(outcome)
		rep.Signal = types.Signal(signal)
		if ts, err := time.Parse(time.RFC3339Nano, createdAt); err == nil {
			rep.CreatedAt = ts
		}
		out = append(out, rep)
	}
	return out, rows.Err()
}

// Stats returns journal counters for dashboards.
func (j *Journal) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	if err := j.db.QueryRowContext(ctx, `SELECT count(*) FROM snapshots`).Scan(&st.Memories); err != nil {
		return st, fmt.Errorf("count snapshots: %w", err)
	}
	if err := j.db.QueryRowContext(ctx, `SELECT count(*) FROM snapshots WHERE is_adaptive = 1`).Scan(&st.Adaptive); err != nil {
		return st, fmt.Errorf("count adaptive: %w", err)
	}
	if err := j.db.QueryRowContext(ctx, `SELECT count(*) FROM cycles`).Scan(&st.Cycles); err != nil {
		return st, fmt.Errorf("count cycles: %w", err)
	}
	if err := j.db.QueryRowContext(ctx, `SELECT count(*) FROM cycles WHERE outcome = ?`, string(types.OutcomeCorrected)).Scan(&st.Corrected); err != nil {
		return st, fmt.Errorf("count corrected: %w", err)
	}
	if err := j.db.QueryRowContext(ctx, `SELECT count(*) FROM cycles WHERE outcome = ?`, string(types.OutcomeDissonance)).Scan(&st.Dissonant); err != nil {
		return st, fmt.Errorf("count dissonant: %w", err)
	}
	return st, nil
}

// Close closes the underlying database.
func (j *Journal) Close() error {
	return j.db.Close()
}
