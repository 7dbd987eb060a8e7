package postgres

import (
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/talentforge/matching-engine/internal/domain"
)

// StatsRepo aggregates candidate attempt history from the raw attempt tables.
// Aggregates are recomputed on every call so the signals always reflect the
// latest attempts.
type StatsRepo struct{ Pool PgxPool }

// NewStatsRepo constructs a StatsRepo with the given pool.
func NewStatsRepo(p PgxPool) *StatsRepo { return &StatsRepo{Pool: p} }

// BatchStats returns stats for every requested id. Candidates with no history
// get zero-valued summaries so callers never need a presence check.
func (r *StatsRepo) BatchStats(ctx domain.Context, userIDs []string) (map[string]domain.UserStats, error) {
	tracer := otel.Tracer("repo.stats")
	ctx, span := tracer.Start(ctx, "stats.BatchStats")
	defer span.End()
	span.SetAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation", "SELECT"),
		attribute.Int("stats.batch_size", len(userIDs)),
	)

	out := make(map[string]domain.UserStats, len(userIDs))
	for _, id := range userIDs {
		out[id] = domain.UserStats{}
	}
	if len(userIDs) == 0 {
		return out, nil
	}

	if err := r.collectAttempts(ctx, "assessment_attempts", userIDs, out, func(s *domain.UserStats) *domain.StatSummary {
		return &s.Tests
	}); err != nil {
		return nil, err
	}
	if err := r.collectAttempts(ctx, "interview_attempts", userIDs, out, func(s *domain.UserStats) *domain.StatSummary {
		return &s.Interviews
	}); err != nil {
		return nil, err
	}
	if err := r.collectLeaderboard(ctx, userIDs, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *StatsRepo) collectAttempts(ctx domain.Context, table string, userIDs []string, out map[string]domain.UserStats, pick func(*domain.UserStats) *domain.StatSummary) error {
	q := fmt.Sprintf(`SELECT user_id, AVG(score), MAX(score), COUNT(*)
	      FROM %s
	      WHERE user_id = ANY($1) AND status = 'completed'
	      GROUP BY user_id`, table)
	rows, err := r.Pool.Query(ctx, q, userIDs)
	if err != nil {
		return fmt.Errorf("op=stats.batch: %s: %w", table, err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			id      string
			summary domain.StatSummary
		)
		if err := rows.Scan(&id, &summary.AverageScore, &summary.HighestScore, &summary.Total); err != nil {
			return fmt.Errorf("op=stats.batch: %s: %w", table, err)
		}
		stats := out[id]
		*pick(&stats) = summary
		out[id] = stats
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("op=stats.batch: %s: %w", table, err)
	}
	return nil
}

func (r *StatsRepo) collectLeaderboard(ctx domain.Context, userIDs []string, out map[string]domain.UserStats) error {
	// One row per user: the most recent period's standing.
	q := `SELECT DISTINCT ON (user_id) user_id, points, average_score, rank
	      FROM leaderboard_entries
	      WHERE user_id = ANY($1)
	      ORDER BY user_id, period_start DESC`
	rows, err := r.Pool.Query(ctx, q, userIDs)
	if err != nil {
		return fmt.Errorf("op=stats.batch: leaderboard_entries: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			id string
			lb domain.LeaderboardStats
		)
		if err := rows.Scan(&id, &lb.Points, &lb.AverageScore, &lb.Rank); err != nil {
			return fmt.Errorf("op=stats.batch: leaderboard_entries: %w", err)
		}
		stats := out[id]
		stats.Leaderboard = lb
		out[id] = stats
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("op=stats.batch: leaderboard_entries: %w", err)
	}
	return nil
}
