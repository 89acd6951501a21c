package optimizer_test

import (
	"testing"
	"time"

	"template-store/internal/models"
	"template-store/internal/templates/optimizer"

	"github.com/stretchr/testify/assert"
)

func freshTemplate(trend, energy int) models.Template {
	return models.Template{
		ID:             "t1",
		Title:          "Test",
		Category:       "Technology",
		PromptContent:  "A surreal neon cityscape with bold black linework and Ben-Day dots.",
		TrendIntensity: trend,
		EnergyScore:    energy,
		RemixCount:     10,
		UpdatedAt:      time.Now(),
	}
}

func TestComplexity(t *testing.T) {
	assert.Equal(t, 0.0, optimizer.Complexity(""))

	// Single repeated character has zero entropy
	assert.Equal(t, 0.0, optimizer.Complexity("aaaaaaa"))

	varied := optimizer.Complexity("The quick brown fox jumps over the lazy dog 0123456789")
	assert.Greater(t, varied, 40.0)
	assert.LessOrEqual(t, varied, 100.0)
}

func TestShouldEvolve(t *testing.T) {
	assert.False(t, optimizer.ShouldEvolve(freshTemplate(80, 80)))

	assert.True(t, optimizer.ShouldEvolve(freshTemplate(40, 80)), "low trend should evolve")
	assert.True(t, optimizer.ShouldEvolve(freshTemplate(80, 50)), "low energy should evolve")

	stale := freshTemplate(80, 80)
	stale.UpdatedAt = time.Now().AddDate(0, 0, -45)
	assert.True(t, optimizer.ShouldEvolve(stale), "stale template should evolve")
}

func TestRecommendAction(t *testing.T) {
	assert.Equal(t, "peak", optimizer.RecommendAction(freshTemplate(90, 80)))
	assert.Equal(t, "boost", optimizer.RecommendAction(freshTemplate(70, 80)))
	assert.Equal(t, "evolve", optimizer.RecommendAction(freshTemplate(45, 80)))
	assert.Equal(t, "archive", optimizer.RecommendAction(freshTemplate(10, 80)))
}

func TestStatusBand(t *testing.T) {
	assert.Equal(t, "peak", optimizer.StatusBand(85))
	assert.Equal(t, "trending", optimizer.StatusBand(60))
	assert.Equal(t, "active", optimizer.StatusBand(30))
	assert.Equal(t, "declining", optimizer.StatusBand(29))
}

func TestAnalyzeIncludesSuggestions(t *testing.T) {
	weak := freshTemplate(20, 30)
	weak.RemixCount = 0

	analysis := optimizer.Analyze(weak)
	assert.True(t, analysis.ShouldEvolve)
	assert.NotEmpty(t, analysis.Suggestions)
	assert.Equal(t, optimizer.Suggestions(weak), analysis.Suggestions)

	// Healthy templates still report an empty (non-null) list
	assert.NotNil(t, optimizer.Analyze(freshTemplate(90, 90)).Suggestions)
}

func TestSuggestions(t *testing.T) {
	weak := models.Template{
		TrendIntensity: 20,
		EnergyScore:    30,
		RemixCount:     0,
		Category:       "Finance",
		PromptContent:  "aaa",
	}
	suggestions := optimizer.Suggestions(weak)
	assert.Len(t, suggestions, 4)

	strong := freshTemplate(90, 90)
	assert.Empty(t, optimizer.Suggestions(strong))
}

func TestPortfolioMetrics_SharesSumToHundred(t *testing.T) {
	templates := []models.Template{
		{ID: "a", TrendIntensity: 80, EnergyScore: 80},
		{ID: "b", TrendIntensity: 40, EnergyScore: 40},
	}

	metrics := optimizer.PortfolioMetrics(templates)
	assert.InDelta(t, 100.0, metrics["a"]+metrics["b"], 0.001)
	assert.Greater(t, metrics["a"], metrics["b"])
}

func TestBuildPortfolioReport(t *testing.T) {
	templates := []models.Template{
		{ID: "a", Title: "A", TrendIntensity: 90, EnergyScore: 95},
		{ID: "b", Title: "B", TrendIntensity: 70, EnergyScore: 60},
		{ID: "c", Title: "C", TrendIntensity: 30, EnergyScore: 40},
	}

	report := optimizer.BuildPortfolioReport(templates)
	assert.Equal(t, 3, report.TotalTemplates)
	assert.Equal(t, "a", report.TopPerformers[0].ID)
	assert.Equal(t, "c", report.NeedsAttention[len(report.NeedsAttention)-1].ID)

	// 2 of 3 templates at or above 70 trend intensity
	assert.InDelta(t, 66.6, report.PortfolioHealth, 0.1)
	assert.InDelta(t, 63.3, report.AverageTrendIntensity, 0.1)
}

func TestBuildPortfolioReport_Empty(t *testing.T) {
	report := optimizer.BuildPortfolioReport(nil)
	assert.Equal(t, 0, report.TotalTemplates)
	assert.Empty(t, report.TopPerformers)
}
