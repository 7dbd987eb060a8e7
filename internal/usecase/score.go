package usecase

import (
	"github.com/talentforge/matching-engine/internal/domain"
	"github.com/talentforge/matching-engine/internal/match"
)

// ScoreDetail is the per-candidate breakdown served by the manual lookup
// endpoint. FullMatch blends the lexical scores with historical performance
// using the detail-view weights, not the run pipeline's ranking weights.
type ScoreDetail struct {
	JobID      string `json:"jobId"`
	UserID     string `json:"userId"`
	CVID       string `json:"cvId"`
	Skills     int    `json:"skillsMatch"`
	Experience int    `json:"experienceMatch"`
	Education  int    `json:"educationMatch"`
	Keyword    int    `json:"keywordScore"`
	TestScore  int    `json:"testScore"`
	Interview  int    `json:"interviewScore"`
	FullMatch  int    `json:"fullMatchScore"`
}

// ScoreService serves on-demand score breakdowns for one candidate against
// one posting, independent of any stored run.
type ScoreService struct {
	Postings   domain.PostingRepository
	Candidates domain.CandidateRepository
	Stats      domain.StatsRepository
}

// NewScoreService wires a ScoreService.
func NewScoreService(postings domain.PostingRepository, candidates domain.CandidateRepository, stats domain.StatsRepository) ScoreService {
	return ScoreService{Postings: postings, Candidates: candidates, Stats: stats}
}

// Detail computes the lexical breakdown and full match score of one candidate
// against one posting.
func (s ScoreService) Detail(ctx domain.Context, jobID, userID string) (ScoreDetail, error) {
	p, err := s.Postings.Get(ctx, jobID)
	if err != nil {
		return ScoreDetail{}, err
	}
	c, err := s.Candidates.GetByUserID(ctx, userID)
	if err != nil {
		return ScoreDetail{}, err
	}
	stats, err := s.Stats.BatchStats(ctx, []string{userID})
	if err != nil {
		return ScoreDetail{}, err
	}

	keywords := match.ExtractKeywords(p.Description + "\n" + string(p.Requirements))
	lex := match.ScoreLexical(keywords, c.Profile)
	userStats := stats[userID]

	return ScoreDetail{
		JobID:      jobID,
		UserID:     userID,
		CVID:       c.CVID,
		Skills:     lex.Skills,
		Experience: lex.Experience,
		Education:  lex.Education,
		Keyword:    lex.Keyword,
		TestScore:  match.Clamp(userStats.Tests.AverageScore),
		Interview:  match.Clamp(userStats.Interviews.AverageScore),
		FullMatch:  match.FullMatchScore(lex, userStats.Tests.AverageScore, userStats.Interviews.AverageScore),
	}, nil
}
