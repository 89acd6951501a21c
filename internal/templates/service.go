package templates

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"regexp"
	"strings"
	"time"

	"template-store/internal/logger"
	"template-store/internal/models"
	"template-store/internal/templates/generator"
	"template-store/internal/templates/optimizer"

	"github.com/google/uuid"
)

var ErrGenerationNotConfigured = errors.New("template generation not configured")

type DBLayer interface {
	CreateTemplate(ctx context.Context, template *models.Template) error
	GetTemplateByID(ctx context.Context, id string) (*models.Template, error)
	GetAllTemplates(ctx context.Context) ([]models.Template, error)
	GetTemplatesByCategory(ctx context.Context, category string) ([]models.Template, error)
	UpdateTemplate(ctx context.Context, template *models.Template) error
	DeleteTemplate(ctx context.Context, id string) error
}

type ResearchClient interface {
	Complete(ctx context.Context, messages []generator.Message) (string, error)
}

// TemplateService owns template content: storefront reads, admin CRUD,
// AI-backed generation and optimization. Research may be nil when the
// generation API is not configured.
type TemplateService struct {
	DB       DBLayer
	Research ResearchClient
	logger   *logger.Logger
}

func NewTemplateService(db DBLayer, research ResearchClient, log *logger.Logger) *TemplateService {
	return &TemplateService{DB: db, Research: research, logger: log}
}

// ---------------- CRUD ----------------

func (s *TemplateService) List(ctx context.Context, category string) ([]models.Template, error) {
	if category != "" {
		return s.DB.GetTemplatesByCategory(ctx, category)
	}
	return s.DB.GetAllTemplates(ctx)
}

func (s *TemplateService) Get(ctx context.Context, id string) (*models.Template, error) {
	return s.DB.GetTemplateByID(ctx, id)
}

func (s *TemplateService) Create(ctx context.Context, req models.CreateTemplateRequest) (*models.Template, error) {
	template := &models.Template{
		ID:             uuid.New().String(),
		Title:          req.Title,
		Category:       req.Category,
		Narrative:      req.Narrative,
		PromptContent:  req.PromptContent,
		TrendIntensity: 50,
		EnergyScore:    50,
	}
	if req.TrendIntensity != nil {
		template.TrendIntensity = *req.TrendIntensity
	}
	if req.EnergyScore != nil {
		template.EnergyScore = *req.EnergyScore
	}
	if req.RemixCount != nil {
		template.RemixCount = *req.RemixCount
	}

	if err := s.DB.CreateTemplate(ctx, template); err != nil {
		return nil, fmt.Errorf("failed to create template: %w", err)
	}

	s.logger.Info("TEMPLATE", fmt.Sprintf("Created template %s (%s)", template.ID, template.Title))
	return template, nil
}

func (s *TemplateService) Update(ctx context.Context, id string, req models.UpdateTemplateRequest) (*models.Template, error) {
	template, err := s.DB.GetTemplateByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Title != nil {
		template.Title = *req.Title
	}
	if req.Category != nil {
		template.Category = *req.Category
	}
	if req.Narrative != nil {
		template.Narrative = *req.Narrative
	}
	if req.PromptContent != nil {
		template.PromptContent = *req.PromptContent
	}
	if req.TrendIntensity != nil {
		template.TrendIntensity = *req.TrendIntensity
	}
	if req.EnergyScore != nil {
		template.EnergyScore = *req.EnergyScore
	}
	if req.RemixCount != nil {
		template.RemixCount = *req.RemixCount
	}

	if err := s.DB.UpdateTemplate(ctx, template); err != nil {
		return nil, err
	}
	return template, nil
}

func (s *TemplateService) Delete(ctx context.Context, id string) error {
	return s.DB.DeleteTemplate(ctx, id)
}

// ---------------- GENERATION ----------------

var (
	titleRe     = regexp.MustCompile(`(?i)TITLE:\s*(.+)`)
	narrativeRe = regexp.MustCompile(`(?i)NARRATIVE:\s*(.+)`)
	promptRe    = regexp.MustCompile(`(?is)PROMPT:\s*(.+?)(?:\n\n|$)`)
)

// Generate researches a topic through the external API, asks it for an art
// prompt and persists the result as a new template. The API is treated as
// an opaque text transformer; any response shape is tolerated via parsing
// fallbacks.
func (s *TemplateService) Generate(ctx context.Context, topic, category string) (*models.Template, error) {
	if s.Research == nil {
		return nil, ErrGenerationNotConfigured
	}

	researchPrompt := fmt.Sprintf(`Research the current cultural context, trends, and narratives around: %s.
Focus on: recent news, social media discourse, emerging themes, and cultural significance.
Be concise and focus on what's happening NOW.`, topic)

	culturalContext, err := s.Research.Complete(ctx, []generator.Message{
		{Role: "system", Content: "You are a cultural researcher analyzing real-time trends and narratives for artistic expression."},
		{Role: "user", Content: researchPrompt},
	})
	if err != nil {
		return nil, fmt.Errorf("trend research failed: %w", err)
	}

	generationPrompt := fmt.Sprintf(`Based on this cultural research about "%s":

%s

Create a psychedelic art prompt that:
1. Captures the essence of the topic with a surreal visual metaphor
2. Uses underground comix aesthetic
3. Reveals truth through satire
4. Is 2-3 sentences maximum

Also suggest:
- A catchy title (3-5 words)
- A narrative tag (one sentence describing the metaphor)

Format your response as:
TITLE: [title]
NARRATIVE: [narrative]
PROMPT: [prompt]`, topic, culturalContext)

	aiResponse, err := s.Research.Complete(ctx, []generator.Message{
		{Role: "system", Content: `You are an expert at creating psychedelic art prompts in the style of underground comix.
Your prompts combine bold black linework, neon colors, Ben-Day dots and truth-revealing satirical themes.`},
		{Role: "user", Content: generationPrompt},
	})
	if err != nil {
		return nil, fmt.Errorf("template generation failed: %w", err)
	}

	title, narrative, promptContent := parseGeneration(aiResponse, topic)

	if category == "" {
		category = "General"
	}

	template := &models.Template{
		ID:             uuid.New().String(),
		Title:          title,
		Category:       category,
		Narrative:      narrative,
		PromptContent:  promptContent,
		TrendIntensity: 60 + rand.Intn(40),
		EnergyScore:    70 + rand.Intn(30),
		RemixCount:     0,
	}

	if err := s.DB.CreateTemplate(ctx, template); err != nil {
		return nil, fmt.Errorf("failed to persist generated template: %w", err)
	}

	s.logger.Info("TEMPLATE", fmt.Sprintf("Generated template %s for topic %q", template.ID, topic))
	return template, nil
}

func parseGeneration(aiResponse, topic string) (title, narrative, promptContent string) {
	title = topic + " Vision"
	narrative = "A psychedelic exploration"
	promptContent = aiResponse

	if m := titleRe.FindStringSubmatch(aiResponse); m != nil {
		title = strings.TrimSpace(m[1])
	}
	if m := narrativeRe.FindStringSubmatch(aiResponse); m != nil {
		narrative = strings.TrimSpace(m[1])
	}
	if m := promptRe.FindStringSubmatch(aiResponse); m != nil {
		promptContent = strings.TrimSpace(m[1])
	}
	return title, narrative, promptContent
}

// ResearchTrends asks the external API for trending topics around a query.
func (s *TemplateService) ResearchTrends(ctx context.Context, query string) (string, error) {
	if s.Research == nil {
		return "", ErrGenerationNotConfigured
	}

	return s.Research.Complete(ctx, []generator.Message{
		{Role: "system", Content: "You are a trend researcher analyzing current cultural movements, news, and social discourse."},
		{Role: "user", Content: fmt.Sprintf(`What are the most significant trending topics and narratives right now related to: %s?
Focus on: breaking news, viral content, emerging movements, cultural shifts. List 3-5 specific trends with brief context.`, query)},
	})
}

// ---------------- OPTIMIZATION ----------------

type EvolveOutcome struct {
	Evolved  bool             `json:"evolved"`
	Reason   string           `json:"reason,omitempty"`
	Template *models.Template `json:"template,omitempty"`
	Err      error            `json:"-"`
}

// Evolve runs the evolution of a template as an explicit asynchronous task
// with a bounded wait. The work happens off the request goroutine and is
// collected through a result channel; a slow store cannot hang the caller.
func (s *TemplateService) Evolve(ctx context.Context, id string, timeout time.Duration) (*EvolveOutcome, error) {
	template, err := s.DB.GetTemplateByID(ctx, id)
	if err != nil {
		return nil, err
	}

	resultCh := make(chan EvolveOutcome, 1)

	taskCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	go func() {
		analysis := optimizer.Analyze(*template)
		if !analysis.ShouldEvolve {
			resultCh <- EvolveOutcome{
				Evolved:  false,
				Reason:   "Template is performing well, evolution not recommended",
				Template: template,
			}
			return
		}

		// Bounded boost; scores are clamped to 100
		template.TrendIntensity = clampScore(template.TrendIntensity + 15)
		template.EnergyScore = clampScore(template.EnergyScore + 10)

		if err := s.DB.UpdateTemplate(taskCtx, template); err != nil {
			resultCh <- EvolveOutcome{Err: err}
			return
		}

		resultCh <- EvolveOutcome{Evolved: true, Template: template}
	}()

	select {
	case outcome := <-resultCh:
		if outcome.Err != nil {
			return nil, outcome.Err
		}
		return &outcome, nil
	case <-taskCtx.Done():
		s.logger.Error("OPTIMIZE", fmt.Sprintf("Evolution of template %s timed out", id))
		return nil, taskCtx.Err()
	}
}

func clampScore(v int) int {
	if v > 100 {
		return 100
	}
	return v
}
