package classify

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sentinelstack/sentinel-heal/internal/models"
)

func TestClassifyExactComponentMatch(t *testing.T) {
	c := New()
	got := c.Classify(models.Issue{Component: "dependencies", Description: "whatever"})
	require.Equal(t, models.LayerProject, got.Layer)
	assert.Equal(t, float64(95), got.Confidence)
	assert.Contains(t, got.MatchedPatterns, "component:dependencies")
}

func TestClassifyPatternVoting(t *testing.T) {
	c := New()
	got := c.Classify(models.Issue{
		Component:   "advisor-frontend",
		Description: "build failed: webpack could not compile entry bundle",
	})
	require.Equal(t, models.LayerProject, got.Layer)
	assert.Greater(t, got.Confidence, float64(0))
	assert.LessOrEqual(t, got.Confidence, float64(100))
	assert.NotEmpty(t, got.MatchedPatterns)
}

func TestClassifyContextLayer(t *testing.T) {
	c := New()
	got := c.Classify(models.Issue{
		Component:   "advisor",
		Description: "stored naming convention conflicts with team style guide preference",
	})
	assert.Equal(t, models.LayerContext, got.Layer)
}

func TestClassifyDefaultsToProject(t *testing.T) {
	c := New()
	got := c.Classify(models.Issue{Component: "zzz", Description: "qqq"})
	require.Equal(t, models.LayerProject, got.Layer)
	assert.Equal(t, float64(50), got.Confidence)
	assert.Empty(t, got.MatchedPatterns)
}

func TestClassifyDeterministic(t *testing.T) {
	c := New()
	issue := models.Issue{
		Component:   "runner",
		Description: "hook registry missing plugin manifest and git branch drift",
	}
	first := c.Classify(issue)
	second := c.Classify(issue)
	assert.Equal(t, first, second)
}

func TestClassifyConfidenceBounds(t *testing.T) {
	c := New()
	issues := []models.Issue{
		{Component: "core", Description: "scheduler stall"},
		{Component: "x", Description: "test coverage dropped and build broke and git conflict"},
		{Component: "y", Description: ""},
		{Component: "conventions", Description: "naming drift"},
	}
	for _, issue := range issues {
		got := c.Classify(issue)
		assert.GreaterOrEqual(t, got.Confidence, float64(0))
		assert.LessOrEqual(t, got.Confidence, float64(100))
		assert.True(t, got.Layer.Valid())
	}
}
