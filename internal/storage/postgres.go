// Package storage holds the optional collective-feedback store. A nil
// store is fully functional: every hook becomes a no-op or pass-through,
// matching a deployment without a database.
package storage

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"log/slog"

	_ "github.com/lib/pq"
)

// FeedbackStore keeps per-article and per-category interaction counters in
// PostgreSQL and derives a small score adjustment from them.
type FeedbackStore struct {
	db *sql.DB
}

// Open connects and initializes the schema. Callers typically wrap this in
// retry.WithRetry at startup.
func Open(connectionString string) (*FeedbackStore, error) {
	db, err := sql.Open("postgres", connectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s := &FeedbackStore{db: db}
	if err := s.initSchema(); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	slog.Info("feedback store connected")
	return s, nil
}

func (s *FeedbackStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS news_feedback (
		id SERIAL PRIMARY KEY,
		url_hash VARCHAR(64) UNIQUE NOT NULL,
		url TEXT NOT NULL,
		category VARCHAR(50),
		likes INTEGER NOT NULL DEFAULT 0,
		dislikes INTEGER NOT NULL DEFAULT 0,
		clicks INTEGER NOT NULL DEFAULT 0,
		updated_at TIMESTAMP NOT NULL DEFAULT NOW()
	);

	CREATE INDEX IF NOT EXISTS idx_news_feedback_hash ON news_feedback(url_hash);

	CREATE TABLE IF NOT EXISTS category_stats (
		category VARCHAR(50) PRIMARY KEY,
		views INTEGER NOT NULL DEFAULT 0,
		reading_seconds BIGINT NOT NULL DEFAULT 0,
		updated_at TIMESTAMP NOT NULL DEFAULT NOW()
	);
	`

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

func (s *FeedbackStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Track records one user interaction against an article and its category.
func (s *FeedbackStore) Track(url, action, category string, readingSeconds int) error {
	if s == nil || s.db == nil {
		return nil
	}

	col := ""
	switch action {
	case "like":
		col = "likes"
	case "dislike":
		col = "dislikes"
	case "click":
		col = "clicks"
	default:
		return fmt.Errorf("unknown feedback action %q", action)
	}

	query := fmt.Sprintf(`
		INSERT INTO news_feedback (url_hash, url, category, %s, updated_at)
		VALUES ($1, $2, $3, 1, NOW())
		ON CONFLICT (url_hash) DO UPDATE SET %s = news_feedback.%s + 1, updated_at = NOW()
	`, col, col, col)
	if _, err := s.db.Exec(query, hashURL(url), url, category); err != nil {
		return fmt.Errorf("failed to track feedback: %w", err)
	}

	if readingSeconds > 0 && category != "" {
		_, err := s.db.Exec(`
			INSERT INTO category_stats (category, views, reading_seconds, updated_at)
			VALUES ($1, 1, $2, NOW())
			ON CONFLICT (category) DO UPDATE SET
				views = category_stats.views + 1,
				reading_seconds = category_stats.reading_seconds + $2,
				updated_at = NOW()
		`, category, readingSeconds)
		if err != nil {
			return fmt.Errorf("failed to update category stats: %w", err)
		}
	}
	return nil
}

// AdjustScore applies a bounded collective-feedback modifier to a final
// score: at most +/-5 from the like/dislike balance. A nil store or any
// query error returns the base score unchanged.
func (s *FeedbackStore) AdjustScore(base int, url, category string) int {
	if s == nil || s.db == nil {
		return base
	}

	var likes, dislikes int
	err := s.db.QueryRow(
		`SELECT likes, dislikes FROM news_feedback WHERE url_hash = $1`,
		hashURL(url),
	).Scan(&likes, &dislikes)
	if err == sql.ErrNoRows {
		return base
	}
	if err != nil {
		slog.Warn("feedback lookup failed, keeping base score", "error", err)
		return base
	}

	total := likes + dislikes
	if total == 0 {
		return base
	}
	modifier := (likes - dislikes) * 5 / total
	adjusted := base + modifier
	if adjusted < 0 {
		adjusted = 0
	}
	if adjusted > 100 {
		adjusted = 100
	}
	return adjusted
}

// Stats returns feedback counters for diagnostics.
func (s *FeedbackStore) Stats() (map[string]int, error) {
	if s == nil || s.db == nil {
		return map[string]int{}, nil
	}

	stats := make(map[string]int)
	var total int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM news_feedback`).Scan(&total); err != nil {
		return nil, err
	}
	stats["tracked_articles"] = total

	rows, err := s.db.Query(`SELECT category, views FROM category_stats ORDER BY views DESC`)
	if err != nil {
		return stats, nil
	}
	defer rows.Close()
	for rows.Next() {
		var cat string
		var views int
		if err := rows.Scan(&cat, &views); err != nil {
			continue
		}
		stats["views_"+cat] = views
	}
	return stats, nil
}

func hashURL(url string) string {
	h := sha256.Sum256([]byte(url))
	return hex.EncodeToString(h[:])
}
