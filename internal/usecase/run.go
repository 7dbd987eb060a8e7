package usecase

import (
	"fmt"
	"log/slog"
	"math"
	"sort"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/talentforge/matching-engine/internal/adapter/observability"
	"github.com/talentforge/matching-engine/internal/domain"
	"github.com/talentforge/matching-engine/internal/match"
)

// SemanticScorer scores a candidate batch against a job description. It never
// fails: degraded paths return neutral scores for the whole batch.
type SemanticScorer interface {
	ScoreBatch(ctx domain.Context, jobDescription string, candidates []domain.Candidate) map[string]int
}

// Final composite weights. Interview performance dominates; the remaining
// signals are renormalized from their raw weights (ai 0.15, keyword 0.10,
// test 0.05) into the other 30%.
const (
	interviewWeight = 0.70
	aiRawWeight     = 0.15
	kwRawWeight     = 0.10
	testRawWeight   = 0.05
)

// RunService executes one matching run end to end.
type RunService struct {
	Postings   domain.PostingRepository
	Candidates domain.CandidateRepository
	Stats      domain.StatsRepository
	Matcher    SemanticScorer

	PoolLimit       int
	TierOneMinScore int
	TierOneLimit    int
	ResultLimit     int
}

// NewRunService wires a RunService with the given pipeline limits.
func NewRunService(postings domain.PostingRepository, candidates domain.CandidateRepository, stats domain.StatsRepository, matcher SemanticScorer, poolLimit, tierOneMinScore, tierOneLimit, resultLimit int) RunService {
	return RunService{
		Postings:        postings,
		Candidates:      candidates,
		Stats:           stats,
		Matcher:         matcher,
		PoolLimit:       poolLimit,
		TierOneMinScore: tierOneMinScore,
		TierOneLimit:    tierOneLimit,
		ResultLimit:     resultLimit,
	}
}

// Execute runs the matching pipeline for one claimed posting: pool fetch,
// tier-one lexical filter, batch semantic scoring, stats aggregation, final
// composite, persist. Repo failures mark the posting failed; the run is not
// retried.
func (s RunService) Execute(ctx domain.Context, payload domain.MatchTaskPayload) error {
	tracer := otel.Tracer("usecase.run")
	ctx, span := tracer.Start(ctx, "run.Execute")
	defer span.End()
	span.SetAttributes(attribute.String("match.job_id", payload.JobID))
	start := time.Now()

	p, err := s.Postings.Get(ctx, payload.JobID)
	if err != nil {
		// Nothing to mark when the posting itself is gone.
		return fmt.Errorf("op=run.execute: %w", err)
	}

	keywords := match.ExtractKeywords(p.Description + "\n" + string(p.Requirements))

	pool, err := s.Candidates.ListPool(ctx, s.PoolLimit)
	if err != nil {
		return s.fail(ctx, payload.JobID, "candidate pool fetch failed", err)
	}

	survivors := s.tierOne(keywords, pool)
	span.SetAttributes(
		attribute.Int("match.pool_size", len(pool)),
		attribute.Int("match.tier_one_survivors", len(survivors)),
	)

	cacheKey := domain.MatchCacheKey(p.Description, p.Requirements)
	if len(survivors) == 0 {
		if err := s.Postings.SaveMatchResults(ctx, payload.JobID, nil, cacheKey, time.Now().UTC()); err != nil {
			return s.fail(ctx, payload.JobID, "persist failed", err)
		}
		observability.ObserveRun(0, nil)
		slog.Info("match run completed with empty pool",
			slog.String("job_id", payload.JobID),
			slog.String("run_id", payload.RunID),
			slog.Int("pool_size", len(pool)))
		return nil
	}

	batch := make([]domain.Candidate, len(survivors))
	ids := make([]string, len(survivors))
	for i, sc := range survivors {
		batch[i] = sc.Candidate
		ids[i] = sc.Candidate.UserID
	}

	aiScores := s.Matcher.ScoreBatch(ctx, p.Description, batch)

	stats, err := s.Stats.BatchStats(ctx, ids)
	if err != nil {
		return s.fail(ctx, payload.JobID, "stats aggregation failed", err)
	}

	results := s.compose(survivors, aiScores, stats)
	if err := s.Postings.SaveMatchResults(ctx, payload.JobID, results, cacheKey, time.Now().UTC()); err != nil {
		return s.fail(ctx, payload.JobID, "persist failed", err)
	}

	finalScores := make([]int, len(results))
	for i, r := range results {
		finalScores[i] = r.MatchScore
	}
	observability.ObserveRun(len(survivors), finalScores)
	slog.Info("match run completed",
		slog.String("job_id", payload.JobID),
		slog.String("run_id", payload.RunID),
		slog.Int("pool_size", len(pool)),
		slog.Int("survivors", len(survivors)),
		slog.Int("results", len(results)),
		slog.Duration("elapsed", time.Since(start)))
	return nil
}

func (s RunService) fail(ctx domain.Context, jobID, stage string, err error) error {
	reason := stage + ": " + err.Error()
	if markErr := s.Postings.MarkMatchFailed(ctx, jobID, reason); markErr != nil {
		slog.Error("failed to mark match run failed",
			slog.String("job_id", jobID), slog.Any("error", markErr))
	}
	return fmt.Errorf("op=run.execute: %s: %w", stage, err)
}

// tierOne scores the pool lexically, drops candidates under the threshold,
// and keeps the top slots by keyword score.
func (s RunService) tierOne(kw domain.KeywordSet, pool []domain.Candidate) []match.ScoredCandidate {
	scored := make([]match.ScoredCandidate, 0, len(pool))
	for _, c := range pool {
		lex := match.ScoreLexical(kw, c.Profile)
		if lex.Keyword < s.TierOneMinScore {
			continue
		}
		scored = append(scored, match.ScoredCandidate{Candidate: c, Lexical: lex})
	}
	match.RankByKeyword(scored)
	if len(scored) > s.TierOneLimit {
		scored = scored[:s.TierOneLimit]
	}
	return scored
}

func (s RunService) compose(survivors []match.ScoredCandidate, aiScores map[string]int, stats map[string]domain.UserStats) []domain.MatchResult {
	results := make([]domain.MatchResult, 0, len(survivors))
	for _, sc := range survivors {
		userStats := stats[sc.Candidate.UserID]
		ai := aiScores[sc.Candidate.UserID]
		testScore := userStats.Tests.AverageScore
		interviewScore := userStats.Interviews.AverageScore

		blended := (float64(ai)*aiRawWeight +
			float64(sc.Lexical.Keyword)*kwRawWeight +
			testScore*testRawWeight) / (aiRawWeight + kwRawWeight + testRawWeight)
		final := match.Clamp(math.Round(interviewScore*interviewWeight + blended*(1-interviewWeight)))

		results = append(results, domain.MatchResult{
			UserID:     sc.Candidate.UserID,
			CVID:       sc.Candidate.CVID,
			MatchScore: final,
			Breakdown: domain.ScoreBreakdown{
				AIScore:        ai,
				KeywordScore:   sc.Lexical.Keyword,
				InterviewScore: match.Clamp(interviewScore),
				TestScore:      match.Clamp(testScore),
			},
			User: domain.CandidateInfo{
				ID:           sc.Candidate.UserID,
				Name:         sc.Candidate.Name,
				Email:        sc.Candidate.Email,
				ProfileImage: sc.Candidate.ProfileImage,
			},
		})
	}
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].MatchScore != results[j].MatchScore {
			return results[i].MatchScore > results[j].MatchScore
		}
		return results[i].UserID < results[j].UserID
	})
	if len(results) > s.ResultLimit {
		results = results[:s.ResultLimit]
	}
	return results
}
