package postgres

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/talentforge/matching-engine/internal/domain"
)

// PostingRepo persists job postings and their matching state.
type PostingRepo struct{ Pool PgxPool }

// NewPostingRepo constructs a PostingRepo with the given pool.
func NewPostingRepo(p PgxPool) *PostingRepo { return &PostingRepo{Pool: p} }

// Get loads a posting, including its cached match results, by id.
func (r *PostingRepo) Get(ctx domain.Context, id string) (domain.JobPosting, error) {
	tracer := otel.Tracer("repo.postings")
	ctx, span := tracer.Start(ctx, "postings.Get")
	defer span.End()
	span.SetAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation", "SELECT"),
		attribute.String("db.sql.table", "job_postings"),
	)
	q := `SELECT id, title, description, requirements, status, matching_status,
	             COALESCE(match_error, ''), COALESCE(match_cache_key, ''),
	             matched_candidates, last_matched_at, updated_at
	      FROM job_postings WHERE id=$1`
	row := r.Pool.QueryRow(ctx, q, id)
	var (
		p       domain.JobPosting
		results []byte
	)
	if err := row.Scan(&p.ID, &p.Title, &p.Description, &p.Requirements, &p.Status,
		&p.MatchStatus, &p.MatchError, &p.CacheKey, &results, &p.LastMatchedAt, &p.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.JobPosting{}, fmt.Errorf("op=posting.get: %w", domain.ErrNotFound)
		}
		return domain.JobPosting{}, fmt.Errorf("op=posting.get: %w", err)
	}
	if len(results) > 0 {
		if err := json.Unmarshal(results, &p.CachedResults); err != nil {
			return domain.JobPosting{}, fmt.Errorf("op=posting.get: decode cached results: %w", err)
		}
	}
	return p, nil
}

// ClaimForMatching moves a posting into processing with one conditional
// update. Only a published posting that is not already processing is
// claimable; a false return means some other run holds the claim or the
// posting is not eligible.
func (r *PostingRepo) ClaimForMatching(ctx domain.Context, id string) (bool, error) {
	tracer := otel.Tracer("repo.postings")
	ctx, span := tracer.Start(ctx, "postings.ClaimForMatching")
	defer span.End()
	span.SetAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation", "UPDATE"),
		attribute.String("db.sql.table", "job_postings"),
	)
	q := `UPDATE job_postings
	      SET matching_status=$2, match_error=NULL, updated_at=now()
	      WHERE id=$1 AND status=$3 AND matching_status <> $2`
	tag, err := r.Pool.Exec(ctx, q, id, domain.MatchProcessing, domain.PostingPublished)
	if err != nil {
		return false, fmt.Errorf("op=posting.claim: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// SaveMatchResults persists a completed run, replacing any prior result list.
func (r *PostingRepo) SaveMatchResults(ctx domain.Context, id string, results []domain.MatchResult, cacheKey string, matchedAt time.Time) error {
	tracer := otel.Tracer("repo.postings")
	ctx, span := tracer.Start(ctx, "postings.SaveMatchResults")
	defer span.End()
	span.SetAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation", "UPDATE"),
		attribute.String("db.sql.table", "job_postings"),
	)
	if results == nil {
		results = []domain.MatchResult{}
	}
	encoded, err := json.Marshal(results)
	if err != nil {
		return fmt.Errorf("op=posting.save_results: encode results: %w", err)
	}
	q := `UPDATE job_postings
	      SET matching_status=$2, matched_candidates=$3, match_cache_key=$4,
	          last_matched_at=$5, match_error=NULL, updated_at=now()
	      WHERE id=$1`
	tag, err := r.Pool.Exec(ctx, q, id, domain.MatchCompleted, encoded, cacheKey, matchedAt.UTC())
	if err != nil {
		return fmt.Errorf("op=posting.save_results: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("op=posting.save_results: %w", domain.ErrNotFound)
	}
	return nil
}

// MarkMatchFailed records a terminal failure with its reason.
func (r *PostingRepo) MarkMatchFailed(ctx domain.Context, id string, reason string) error {
	tracer := otel.Tracer("repo.postings")
	ctx, span := tracer.Start(ctx, "postings.MarkMatchFailed")
	defer span.End()
	span.SetAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation", "UPDATE"),
		attribute.String("db.sql.table", "job_postings"),
	)
	q := `UPDATE job_postings
	      SET matching_status=$2, match_error=$3, updated_at=now()
	      WHERE id=$1`
	tag, err := r.Pool.Exec(ctx, q, id, domain.MatchFailed, reason)
	if err != nil {
		return fmt.Errorf("op=posting.mark_failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("op=posting.mark_failed: %w", domain.ErrNotFound)
	}
	return nil
}

// FailStuck sweeps postings stuck in processing since before cutoff to
// failed, returning how many rows changed.
func (r *PostingRepo) FailStuck(ctx domain.Context, cutoff time.Time, reason string) (int64, error) {
	tracer := otel.Tracer("repo.postings")
	ctx, span := tracer.Start(ctx, "postings.FailStuck")
	defer span.End()
	span.SetAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation", "UPDATE"),
		attribute.String("db.sql.table", "job_postings"),
	)
	q := `UPDATE job_postings
	      SET matching_status=$1, match_error=$2, updated_at=now()
	      WHERE matching_status=$3 AND updated_at < $4`
	tag, err := r.Pool.Exec(ctx, q, domain.MatchFailed, reason, domain.MatchProcessing, cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("op=posting.fail_stuck: %w", err)
	}
	return tag.RowsAffected(), nil
}
