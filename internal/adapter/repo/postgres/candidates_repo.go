package postgres

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/talentforge/matching-engine/internal/domain"
	"github.com/talentforge/matching-engine/internal/match"
)

// CandidateRepo loads the candidate pool: active users joined with their most
// recent parsed CV document.
type CandidateRepo struct{ Pool PgxPool }

// NewCandidateRepo constructs a CandidateRepo with the given pool.
func NewCandidateRepo(p PgxPool) *CandidateRepo { return &CandidateRepo{Pool: p} }

// ListPool returns up to limit candidates with normalized profiles, most
// recently updated CVs first. Rows whose stored profile cannot be parsed are
// logged and skipped rather than failing the whole pool.
func (r *CandidateRepo) ListPool(ctx domain.Context, limit int) ([]domain.Candidate, error) {
	tracer := otel.Tracer("repo.candidates")
	ctx, span := tracer.Start(ctx, "candidates.ListPool")
	defer span.End()
	span.SetAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation", "SELECT"),
		attribute.String("db.sql.table", "cv_documents"),
	)
	q := `SELECT DISTINCT ON (c.user_id)
	             c.user_id, c.id, c.profile,
	             u.name, u.email, COALESCE(u.profile_image, '')
	      FROM cv_documents c
	      JOIN users u ON u.id = c.user_id
	      WHERE c.status = 'processed' AND u.active
	      ORDER BY c.user_id, c.updated_at DESC
	      LIMIT $1`
	rows, err := r.Pool.Query(ctx, q, limit)
	if err != nil {
		return nil, fmt.Errorf("op=candidate.list_pool: %w", err)
	}
	defer rows.Close()

	var out []domain.Candidate
	for rows.Next() {
		var (
			c   domain.Candidate
			raw []byte
		)
		if err := rows.Scan(&c.UserID, &c.CVID, &raw, &c.Name, &c.Email, &c.ProfileImage); err != nil {
			return nil, fmt.Errorf("op=candidate.list_pool: %w", err)
		}
		profile, err := match.ParseProfile(raw)
		if err != nil {
			slog.Warn("skipping candidate with malformed profile",
				slog.String("user_id", c.UserID), slog.Any("error", err))
			continue
		}
		c.Profile = profile
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("op=candidate.list_pool: %w", err)
	}
	return out, nil
}

// GetByUserID loads one candidate's latest processed CV.
func (r *CandidateRepo) GetByUserID(ctx domain.Context, userID string) (domain.Candidate, error) {
	tracer := otel.Tracer("repo.candidates")
	ctx, span := tracer.Start(ctx, "candidates.GetByUserID")
	defer span.End()
	span.SetAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation", "SELECT"),
		attribute.String("db.sql.table", "cv_documents"),
	)
	q := `SELECT c.user_id, c.id, c.profile,
	             u.name, u.email, COALESCE(u.profile_image, '')
	      FROM cv_documents c
	      JOIN users u ON u.id = c.user_id
	      WHERE c.user_id = $1 AND c.status = 'processed'
	      ORDER BY c.updated_at DESC
	      LIMIT 1`
	row := r.Pool.QueryRow(ctx, q, userID)
	var (
		c   domain.Candidate
		raw []byte
	)
	if err := row.Scan(&c.UserID, &c.CVID, &raw, &c.Name, &c.Email, &c.ProfileImage); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Candidate{}, fmt.Errorf("op=candidate.get: %w", domain.ErrNotFound)
		}
		return domain.Candidate{}, fmt.Errorf("op=candidate.get: %w", err)
	}
	profile, err := match.ParseProfile(raw)
	if err != nil {
		return domain.Candidate{}, fmt.Errorf("op=candidate.get: %w", err)
	}
	c.Profile = profile
	return c, nil
}
