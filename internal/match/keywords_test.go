package match

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractKeywords(t *testing.T) {
	t.Parallel()
	desc := `We are hiring a Senior Backend Engineer. You will build Go and Python
services on PostgreSQL and Redis, deploy with Docker and Kubernetes, and
mentor the team with strong communication and leadership. Bachelor's degree
in computer science preferred.`

	kw := ExtractKeywords(desc)

	assert.Contains(t, kw.Technologies, "go")
	assert.Contains(t, kw.Technologies, "python")
	assert.Contains(t, kw.Technologies, "postgresql")
	assert.Contains(t, kw.Technologies, "redis")
	assert.Contains(t, kw.Technologies, "docker")
	assert.Contains(t, kw.Technologies, "kubernetes")
	assert.Contains(t, kw.Skills, "communication")
	assert.Contains(t, kw.Skills, "leadership")
	assert.Contains(t, kw.Positions, "engineer")
	assert.Contains(t, kw.Education, "bachelor")
}

func TestExtractKeywordsWordBoundaries(t *testing.T) {
	t.Parallel()
	// "django" must not surface "go"; "good" must not either.
	kw := ExtractKeywords("We build good django applications.")
	assert.NotContains(t, kw.Technologies, "go")
	assert.Contains(t, kw.Technologies, "django")
}

func TestExtractKeywordsNoMatches(t *testing.T) {
	t.Parallel()
	kw := ExtractKeywords("Wanted: someone to water the office plants twice weekly.")
	assert.Empty(t, kw.Technologies)
	assert.Empty(t, kw.Skills)
	assert.Empty(t, kw.Positions)
	assert.Empty(t, kw.Education)
}

func TestExtractKeywordsEmptyInput(t *testing.T) {
	t.Parallel()
	kw := ExtractKeywords("")
	assert.Empty(t, kw.Technologies)
	assert.Empty(t, kw.Positions)
}
