// Package history persists every generated question set to PostgreSQL so
// past runs for a keyword can be listed.
package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/related-questions/internal/news"
	"github.com/Adithya-Monish-Kumar-K/related-questions/internal/questions"
	"github.com/Adithya-Monish-Kumar-K/related-questions/pkg/postgres"
)

const schema = `
CREATE TABLE IF NOT EXISTS question_runs (
    id             BIGSERIAL PRIMARY KEY,
    keyword        TEXT        NOT NULL,
    date_from      DATE        NOT NULL,
    date_to        DATE        NOT NULL,
    question_count INTEGER     NOT NULL,
    questions      JSONB       NOT NULL,
    created_at     TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_question_runs_keyword_created
    ON question_runs (keyword, created_at DESC);
`

// Run is one stored pipeline result.
type Run struct {
	ID            int64                `json:"id"`
	Keyword       string               `json:"keyword"`
	DateFrom      string               `json:"date_from"`
	DateTo        string               `json:"date_to"`
	QuestionCount int                  `json:"question_count"`
	Questions     []questions.Question `json:"questions"`
	CreatedAt     time.Time            `json:"created_at"`
}

// Store reads and writes question runs.
type Store struct {
	db     *postgres.Client
	now    func() time.Time
	logger *slog.Logger
}

func NewStore(db *postgres.Client) *Store {
	return &Store{
		db:     db,
		now:    time.Now,
		logger: slog.Default().With("component", "history-store"),
	}
}

// EnsureSchema creates the question_runs table if it is missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.DB.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("creating question_runs schema: %w", err)
	}
	return nil
}

// Record stores the questions generated for req and returns the new run id.
func (s *Store) Record(ctx context.Context, req questions.Request, qs []questions.Question) (int64, error) {
	if qs == nil {
		qs = []questions.Question{}
	}
	data, err := json.Marshal(qs)
	if err != nil {
		return 0, fmt.Errorf("marshaling questions: %w", err)
	}
	var id int64
	err = s.db.InTx(ctx, func(tx *sql.Tx) error {
		return tx.QueryRowContext(ctx,
			`INSERT INTO question_runs (keyword, date_from, date_to, question_count, questions, created_at)
			 VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`,
			req.Keyword,
			req.DateFrom.Format(news.DateLayout),
			req.DateTo.Format(news.DateLayout),
			len(qs),
			data,
			s.now().UTC(),
		).Scan(&id)
	})
	if err != nil {
		return 0, fmt.Errorf("recording question run for %q: %w", req.Keyword, err)
	}
	s.logger.Debug("question run recorded", "id", id, "keyword", req.Keyword, "questions", len(qs))
	return id, nil
}

// Recent returns the latest runs for keyword, newest first.
func (s *Store) Recent(ctx context.Context, keyword string, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.DB.QueryContext(ctx,
		`SELECT id, keyword, date_from, date_to, question_count, questions, created_at
		 FROM question_runs WHERE keyword = $1
		 ORDER BY created_at DESC, id DESC LIMIT $2`,
		keyword, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying question runs: %w", err)
	}
	defer rows.Close()

	runs := make([]Run, 0, limit)
	for rows.Next() {
		var (
			run      Run
			from, to time.Time
			data     []byte
		)
		if err := rows.Scan(&run.ID, &run.Keyword, &from, &to, &run.QuestionCount, &data, &run.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning question run: %w", err)
		}
		run.DateFrom = from.Format(news.DateLayout)
		run.DateTo = to.Format(news.DateLayout)
		if err := json.Unmarshal(data, &run.Questions); err != nil {
			return nil, fmt.Errorf("decoding questions of run %d: %w", run.ID, err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating question runs: %w", err)
	}
	return runs, nil
}
