package templates_test

import (
	"context"
	"testing"
	"time"

	"template-store/internal/logger"
	"template-store/internal/models"
	"template-store/internal/templates"
	"template-store/internal/templates/db"
	"template-store/internal/templates/generator"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type MockDBLayer struct {
	mock.Mock
}

func (m *MockDBLayer) CreateTemplate(ctx context.Context, template *models.Template) error {
	args := m.Called(ctx, template)
	return args.Error(0)
}

func (m *MockDBLayer) GetTemplateByID(ctx context.Context, id string) (*models.Template, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Template), args.Error(1)
}

func (m *MockDBLayer) GetAllTemplates(ctx context.Context) ([]models.Template, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Template), args.Error(1)
}

func (m *MockDBLayer) GetTemplatesByCategory(ctx context.Context, category string) ([]models.Template, error) {
	args := m.Called(ctx, category)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Template), args.Error(1)
}

func (m *MockDBLayer) UpdateTemplate(ctx context.Context, template *models.Template) error {
	args := m.Called(ctx, template)
	return args.Error(0)
}

func (m *MockDBLayer) DeleteTemplate(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// FakeResearch replays canned responses in order.
type FakeResearch struct {
	responses []string
	calls     int
}

func (f *FakeResearch) Complete(ctx context.Context, messages []generator.Message) (string, error) {
	if f.calls >= len(f.responses) {
		return "", assert.AnError
	}
	response := f.responses[f.calls]
	f.calls++
	return response, nil
}

func TestCreate_DefaultsScores(t *testing.T) {
	dbMock := new(MockDBLayer)

	var created *models.Template
	dbMock.On("CreateTemplate", mock.Anything, mock.AnythingOfType("*models.Template")).
		Run(func(args mock.Arguments) {
			created = args.Get(1).(*models.Template)
		}).Return(nil)

	svc := templates.NewTemplateService(dbMock, nil, logger.NewLogger())

	_, err := svc.Create(context.Background(), models.CreateTemplateRequest{
		Title:         "Test",
		Category:      "Tech",
		Narrative:     "N",
		PromptContent: "P",
	})
	assert.NoError(t, err)
	assert.Equal(t, 50, created.TrendIntensity)
	assert.Equal(t, 50, created.EnergyScore)
	assert.NotEmpty(t, created.ID)
}

func TestUpdate_PartialFields(t *testing.T) {
	dbMock := new(MockDBLayer)

	existing := &models.Template{ID: "t1", Title: "Old", Category: "Tech", TrendIntensity: 40}
	dbMock.On("GetTemplateByID", mock.Anything, "t1").Return(existing, nil)
	dbMock.On("UpdateTemplate", mock.Anything, mock.AnythingOfType("*models.Template")).Return(nil)

	svc := templates.NewTemplateService(dbMock, nil, logger.NewLogger())

	newTitle := "New"
	updated, err := svc.Update(context.Background(), "t1", models.UpdateTemplateRequest{Title: &newTitle})
	assert.NoError(t, err)
	assert.Equal(t, "New", updated.Title)
	assert.Equal(t, "Tech", updated.Category, "untouched fields keep their value")
	assert.Equal(t, 40, updated.TrendIntensity)
}

func TestUpdate_NotFound(t *testing.T) {
	dbMock := new(MockDBLayer)
	dbMock.On("GetTemplateByID", mock.Anything, "ghost").Return(nil, db.ErrTemplateNotFound)

	svc := templates.NewTemplateService(dbMock, nil, logger.NewLogger())

	_, err := svc.Update(context.Background(), "ghost", models.UpdateTemplateRequest{})
	assert.ErrorIs(t, err, db.ErrTemplateNotFound)
}

func TestGenerate_NotConfigured(t *testing.T) {
	svc := templates.NewTemplateService(new(MockDBLayer), nil, logger.NewLogger())

	_, err := svc.Generate(context.Background(), "crypto crash", "")
	assert.ErrorIs(t, err, templates.ErrGenerationNotConfigured)
}

func TestGenerate_ParsesStructuredResponse(t *testing.T) {
	dbMock := new(MockDBLayer)
	research := &FakeResearch{responses: []string{
		"Cultural context about the topic.",
		"TITLE: Melting Servers\nNARRATIVE: Data centers as candle wax\nPROMPT: Rows of servers melting into neon puddles, underground comix style.",
	}}

	var created *models.Template
	dbMock.On("CreateTemplate", mock.Anything, mock.AnythingOfType("*models.Template")).
		Run(func(args mock.Arguments) {
			created = args.Get(1).(*models.Template)
		}).Return(nil)

	svc := templates.NewTemplateService(dbMock, research, logger.NewLogger())

	template, err := svc.Generate(context.Background(), "AI data centers", "Technology")
	assert.NoError(t, err)
	assert.Equal(t, "Melting Servers", template.Title)
	assert.Equal(t, "Data centers as candle wax", template.Narrative)
	assert.Contains(t, template.PromptContent, "melting into neon puddles")
	assert.Equal(t, "Technology", template.Category)

	assert.GreaterOrEqual(t, created.TrendIntensity, 60)
	assert.LessOrEqual(t, created.TrendIntensity, 99)
	assert.GreaterOrEqual(t, created.EnergyScore, 70)
	assert.LessOrEqual(t, created.EnergyScore, 99)
}

func TestGenerate_FallbackOnUnstructuredResponse(t *testing.T) {
	dbMock := new(MockDBLayer)
	research := &FakeResearch{responses: []string{
		"context",
		"Just a blob of prose with no markers at all.",
	}}

	dbMock.On("CreateTemplate", mock.Anything, mock.AnythingOfType("*models.Template")).Return(nil)

	svc := templates.NewTemplateService(dbMock, research, logger.NewLogger())

	template, err := svc.Generate(context.Background(), "meme stocks", "")
	assert.NoError(t, err)
	assert.Equal(t, "meme stocks Vision", template.Title)
	assert.Equal(t, "Just a blob of prose with no markers at all.", template.PromptContent)
	assert.Equal(t, "General", template.Category)
}

func TestEvolve_BoostsUnderperformer(t *testing.T) {
	dbMock := new(MockDBLayer)

	weak := &models.Template{ID: "t1", TrendIntensity: 40, EnergyScore: 50, UpdatedAt: time.Now()}
	dbMock.On("GetTemplateByID", mock.Anything, "t1").Return(weak, nil)
	dbMock.On("UpdateTemplate", mock.Anything, mock.AnythingOfType("*models.Template")).Return(nil)

	svc := templates.NewTemplateService(dbMock, nil, logger.NewLogger())

	outcome, err := svc.Evolve(context.Background(), "t1", 5*time.Second)
	assert.NoError(t, err)
	assert.True(t, outcome.Evolved)
	assert.Equal(t, 55, outcome.Template.TrendIntensity)
	assert.Equal(t, 60, outcome.Template.EnergyScore)
}

func TestEvolve_HealthyTemplateSkipped(t *testing.T) {
	dbMock := new(MockDBLayer)

	healthy := &models.Template{ID: "t2", TrendIntensity: 90, EnergyScore: 90, UpdatedAt: time.Now()}
	dbMock.On("GetTemplateByID", mock.Anything, "t2").Return(healthy, nil)

	svc := templates.NewTemplateService(dbMock, nil, logger.NewLogger())

	outcome, err := svc.Evolve(context.Background(), "t2", 5*time.Second)
	assert.NoError(t, err)
	assert.False(t, outcome.Evolved)
	assert.NotEmpty(t, outcome.Reason)
	dbMock.AssertNotCalled(t, "UpdateTemplate", mock.Anything, mock.Anything)
}

func TestEvolve_ClampsScores(t *testing.T) {
	dbMock := new(MockDBLayer)

	// Stale enough to evolve despite high scores
	stale := &models.Template{ID: "t3", TrendIntensity: 95, EnergyScore: 95, UpdatedAt: time.Now().AddDate(0, -2, 0)}
	dbMock.On("GetTemplateByID", mock.Anything, "t3").Return(stale, nil)
	dbMock.On("UpdateTemplate", mock.Anything, mock.AnythingOfType("*models.Template")).Return(nil)

	svc := templates.NewTemplateService(dbMock, nil, logger.NewLogger())

	outcome, err := svc.Evolve(context.Background(), "t3", 5*time.Second)
	assert.NoError(t, err)
	assert.True(t, outcome.Evolved)
	assert.Equal(t, 100, outcome.Template.TrendIntensity)
	assert.Equal(t, 100, outcome.Template.EnergyScore)
}
