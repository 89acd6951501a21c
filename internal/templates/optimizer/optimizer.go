package optimizer

import (
	"fmt"
	"math"
	"time"

	"template-store/internal/models"
)

// Analysis is the outcome of scoring a single template.
type Analysis struct {
	ShouldEvolve      bool     `json:"shouldEvolve"`
	RecommendedAction string   `json:"recommendedAction"`
	ComplexityScore   float64  `json:"complexityScore"`
	Status            string   `json:"status"`
	Suggestions       []string `json:"suggestions"`
}

// PortfolioReport summarizes the whole catalog's performance.
type PortfolioReport struct {
	TotalTemplates        int             `json:"totalTemplates"`
	AverageTrendIntensity float64         `json:"averageTrendIntensity"`
	AverageEnergyScore    float64         `json:"averageEnergyScore"`
	TopPerformers         []RankedEntry   `json:"topPerformers"`
	NeedsAttention        []RankedEntry   `json:"needsAttention"`
	PortfolioHealth       float64         `json:"portfolioHealth"`
}

type RankedEntry struct {
	ID                string  `json:"id"`
	Title             string  `json:"title"`
	Category          string  `json:"category"`
	TrendIntensity    int     `json:"trendIntensity"`
	EnergyScore       int     `json:"energyScore"`
	OptimizationScore float64 `json:"optimizationScore"`
}

// Analyze scores one template: Shannon entropy of its prompt content,
// trend-banded status and an evolve recommendation.
func Analyze(template models.Template) Analysis {
	return Analysis{
		ShouldEvolve:      ShouldEvolve(template),
		RecommendedAction: RecommendAction(template),
		ComplexityScore:   Complexity(template.PromptContent),
		Status:            StatusBand(template.TrendIntensity),
		Suggestions:       Suggestions(template),
	}
}

// Complexity computes a simplified Shannon entropy of the content,
// normalized to a 0-100 scale.
func Complexity(content string) float64 {
	if content == "" {
		return 0
	}

	charCounts := make(map[rune]int)
	total := 0
	for _, r := range content {
		charCounts[r]++
		total++
	}

	var entropy float64
	for _, count := range charCounts {
		p := float64(count) / float64(total)
		entropy -= p * math.Log2(p)
	}

	return math.Min(100, (entropy/8)*100)
}

// ShouldEvolve reports whether a template is a candidate for evolution:
// declining trend, low energy, or no update for over a month.
func ShouldEvolve(template models.Template) bool {
	daysSinceUpdate := time.Since(template.UpdatedAt).Hours() / 24

	return template.TrendIntensity < 50 ||
		template.EnergyScore < 60 ||
		daysSinceUpdate > 30
}

// RecommendAction maps trend intensity to the next action.
func RecommendAction(template models.Template) string {
	intensity := template.TrendIntensity

	switch {
	case intensity >= 85:
		return "peak"
	case intensity >= 60:
		return "boost"
	case intensity >= 30:
		return "evolve"
	default:
		return "archive"
	}
}

// StatusBand buckets trend intensity for display.
func StatusBand(trendIntensity int) string {
	switch {
	case trendIntensity >= 85:
		return "peak"
	case trendIntensity >= 60:
		return "trending"
	case trendIntensity >= 30:
		return "active"
	default:
		return "declining"
	}
}

// Suggestions generates concrete evolution steps for a template.
func Suggestions(template models.Template) []string {
	suggestions := []string{}

	if template.TrendIntensity < 40 {
		suggestions = append(suggestions, "Research emerging trends in "+template.Category)
	}
	if template.EnergyScore < 50 {
		suggestions = append(suggestions, "Add more vibrant psychedelic elements")
	}
	if template.RemixCount < 5 {
		suggestions = append(suggestions, "Promote template to increase remix adoption")
	}
	if Complexity(template.PromptContent) < 30 {
		suggestions = append(suggestions, "Enhance prompt complexity with sacred geometry")
	}

	return suggestions
}

// PortfolioMetrics weights each template by its share of the catalog's
// total trend + energy score.
func PortfolioMetrics(templates []models.Template) map[string]float64 {
	metrics := make(map[string]float64, len(templates))

	var totalScore float64
	for _, t := range templates {
		totalScore += float64(t.TrendIntensity + t.EnergyScore)
	}

	for _, t := range templates {
		score := float64(t.TrendIntensity + t.EnergyScore)
		if totalScore > 0 {
			metrics[t.ID] = (score / totalScore) * 100
		} else {
			metrics[t.ID] = 0
		}
	}

	return metrics
}

// BuildPortfolioReport ranks the catalog by optimization score.
func BuildPortfolioReport(templates []models.Template) PortfolioReport {
	report := PortfolioReport{TotalTemplates: len(templates)}
	if len(templates) == 0 {
		return report
	}

	metrics := PortfolioMetrics(templates)

	var trendSum, energySum float64
	healthy := 0
	ranked := make([]RankedEntry, 0, len(templates))
	for _, t := range templates {
		trendSum += float64(t.TrendIntensity)
		energySum += float64(t.EnergyScore)
		if t.TrendIntensity >= 70 {
			healthy++
		}
		ranked = append(ranked, RankedEntry{
			ID:                t.ID,
			Title:             t.Title,
			Category:          t.Category,
			TrendIntensity:    t.TrendIntensity,
			EnergyScore:       t.EnergyScore,
			OptimizationScore: metrics[t.ID],
		})
	}

	// Insertion sort keeps the ranking stable for equal scores
	for i := 1; i < len(ranked); i++ {
		for j := i; j > 0 && ranked[j].OptimizationScore > ranked[j-1].OptimizationScore; j-- {
			ranked[j], ranked[j-1] = ranked[j-1], ranked[j]
		}
	}

	report.AverageTrendIntensity = round1(trendSum / float64(len(templates)))
	report.AverageEnergyScore = round1(energySum / float64(len(templates)))
	report.PortfolioHealth = float64(healthy) / float64(len(templates)) * 100

	top := 5
	if top > len(ranked) {
		top = len(ranked)
	}
	report.TopPerformers = ranked[:top]

	tail := 3
	if tail > len(ranked) {
		tail = len(ranked)
	}
	report.NeedsAttention = ranked[len(ranked)-tail:]

	return report
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

// String implements a compact description for logs.
func (a Analysis) String() string {
	return fmt.Sprintf("action=%s complexity=%.2f evolve=%t", a.RecommendedAction, a.ComplexityScore, a.ShouldEvolve)
}
