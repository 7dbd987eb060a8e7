// Package domain holds the matching engine's entities, ports, and error taxonomy.
package domain

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"time"
)

// Error taxonomy (sentinels)
var (
	ErrInvalidArgument = errors.New("invalid argument")
	ErrNotFound        = errors.New("not found")
	ErrConflict        = errors.New("conflict")
	// ErrAIUnavailable is returned when the completion capability is not configured.
	ErrAIUnavailable = errors.New("ai service unavailable")
	// ErrUpstreamTimeout covers timeouts, aborts, and connection resets against
	// the completion API; it is the retryable class.
	ErrUpstreamTimeout = errors.New("upstream timeout")
	ErrSchemaInvalid   = errors.New("schema invalid")
	ErrInternal        = errors.New("internal error")
)

// FieldViolation reports one schema validation failure.
type FieldViolation struct {
	Path    string
	Message string
}

// SchemaError carries the raw payload and per-field diagnostics produced when
// a completion reply fails JSON parsing or schema validation. It unwraps to
// ErrSchemaInvalid so callers can classify it with errors.Is.
type SchemaError struct {
	Payload string
	Fields  []FieldViolation
	Reason  string
}

func (e *SchemaError) Error() string {
	if len(e.Fields) > 0 {
		return "schema invalid: " + e.Reason + " (" + e.Fields[0].Path + ": " + e.Fields[0].Message + ")"
	}
	return "schema invalid: " + e.Reason
}

func (e *SchemaError) Unwrap() error { return ErrSchemaInvalid }

// MatchStatus is the matching state machine of a job posting.
// Transitions: idle -> processing -> completed | failed.
type MatchStatus string

const (
	MatchIdle       MatchStatus = "idle"
	MatchProcessing MatchStatus = "processing"
	MatchCompleted  MatchStatus = "completed"
	MatchFailed     MatchStatus = "failed"
)

// Posting lifecycle values owned by the surrounding job-CRUD subsystem. The
// engine only cares whether a posting is published.
const (
	PostingDraft     = "draft"
	PostingPublished = "published"
	PostingClosed    = "closed"
)

// JobPosting is the engine's view of a recruiter posting. The engine reads
// Description/Requirements and writes only the four matching-specific fields
// (MatchStatus, CacheKey, CachedResults, LastMatchedAt).
type JobPosting struct {
	ID            string
	Title         string
	Description   string
	Requirements  json.RawMessage
	Status        string
	MatchStatus   MatchStatus
	MatchError    string
	CacheKey      string
	CachedResults []MatchResult
	LastMatchedAt *time.Time
	UpdatedAt     time.Time
}

// Candidate is one entry of the candidate pool: a normalized profile plus the
// denormalized display fields attached to match results.
type Candidate struct {
	UserID       string
	CVID         string
	Profile      Profile
	Name         string
	Email        string
	ProfileImage string
}

// Profile is the canonical résumé shape. Upstream documents are duck-typed
// (skills as bare strings or tagged objects, every field optional); the
// normalization boundary in internal/match always produces this record so
// scoring never re-checks shapes.
type Profile struct {
	Summary        string
	Skills         []string
	Experience     []ExperienceEntry
	Education      []EducationEntry
	Projects       []ProjectEntry
	Certifications []string
}

// ExperienceEntry is one position held by a candidate.
type ExperienceEntry struct {
	Title       string
	Company     string
	Description string
	StartDate   *time.Time
	EndDate     *time.Time
	Current     bool
}

// EducationEntry is one degree held by a candidate.
type EducationEntry struct {
	Degree string
	Field  string
	School string
}

// ProjectEntry is one project with its technology list.
type ProjectEntry struct {
	Name         string
	Description  string
	Technologies []string
}

// KeywordSet is the structured keyword view of a job description. Derived and
// ephemeral; recomputed per run, never persisted.
type KeywordSet struct {
	Technologies []string
	Skills       []string
	Positions    []string
	Education    []string
}

// ScoreBreakdown are the per-signal components of a match, each in [0,100].
type ScoreBreakdown struct {
	AIScore        int `json:"aiScore"`
	KeywordScore   int `json:"keywordScore"`
	InterviewScore int `json:"interviewScore"`
	TestScore      int `json:"testScore"`
}

// CandidateInfo is the denormalized display block attached to a result entry.
type CandidateInfo struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Email        string `json:"email"`
	ProfileImage string `json:"profileImage"`
}

// MatchResult is one ranked entry of a completed run. A run's result set
// replaces any prior cached list wholesale.
type MatchResult struct {
	UserID     string         `json:"userId"`
	CVID       string         `json:"cvId"`
	MatchScore int            `json:"matchScore"`
	Breakdown  ScoreBreakdown `json:"breakdown"`
	User       CandidateInfo  `json:"user"`
}

// StatSummary aggregates one attempt history; zero-valued when no attempts exist.
type StatSummary struct {
	AverageScore float64
	HighestScore float64
	Total        int
}

// LeaderboardStats is the most recent period's standing; Rank is nil when the
// candidate has no leaderboard entry.
type LeaderboardStats struct {
	Points       int
	AverageScore float64
	Rank         *int
}

// UserStats are per-candidate historical signals, recomputed from the raw
// attempt tables on every run. Freshness matters more than compute cost here,
// so they are intentionally never cached.
type UserStats struct {
	Tests       StatSummary
	Interviews  StatSummary
	Leaderboard LeaderboardStats
}

// MatchTaskPayload is the queued unit of work for one matching run.
type MatchTaskPayload struct {
	RunID string `json:"run_id"`
	JobID string `json:"job_id"`
}

// MatchCacheKey hashes a posting's description and requirements. A stored key
// equal to the current hash means the cached result list is still valid.
func MatchCacheKey(description string, requirements []byte) string {
	h := sha256.New()
	h.Write([]byte(description))
	h.Write(requirements)
	return hex.EncodeToString(h.Sum(nil))
}

// Repositories (ports)

type PostingRepository interface {
	Get(ctx Context, id string) (JobPosting, error)
	// ClaimForMatching admits a run with a single conditional update: the
	// posting moves to processing only if it is published and not already
	// processing. Returns false when another run holds the claim.
	ClaimForMatching(ctx Context, id string) (bool, error)
	// SaveMatchResults persists a completed run: the replacement result list,
	// the new cache key, a fresh lastMatchedAt, and status completed.
	SaveMatchResults(ctx Context, id string, results []MatchResult, cacheKey string, matchedAt time.Time) error
	MarkMatchFailed(ctx Context, id string, reason string) error
	// FailStuck sweeps postings stuck in processing since before cutoff to
	// failed, returning how many were swept.
	FailStuck(ctx Context, cutoff time.Time, reason string) (int64, error)
}

type CandidateRepository interface {
	// ListPool returns up to limit active candidates with normalized profiles.
	ListPool(ctx Context, limit int) ([]Candidate, error)
	GetByUserID(ctx Context, userID string) (Candidate, error)
}

type StatsRepository interface {
	// BatchStats returns stats for every requested id; candidates without
	// history get zero-valued summaries, never a missing entry.
	BatchStats(ctx Context, userIDs []string) (map[string]UserStats, error)
}

// Queue (port)

type Queue interface {
	EnqueueMatch(ctx Context, payload MatchTaskPayload) (string, error)
}

// ChatMessage is one role-tagged message of a completion request. The JSON
// shape matches the OpenAI-compatible wire format.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// CompletionClient (port)
//
// Complete returns trimmed free text. CompleteJSON switches the remote call
// into JSON mode and validates the reply against the supplied JSON Schema;
// failures carry a *SchemaError. Both fail fast with ErrAIUnavailable when
// the capability is not configured.
type CompletionClient interface {
	Enabled() bool
	Complete(ctx Context, msgs []ChatMessage) (string, error)
	CompleteJSON(ctx Context, msgs []ChatMessage, schema []byte) ([]byte, error)
}

// Context aliases context.Context; adapters and usecases pass context.Context
// through.
type Context = context.Context
