package template_api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"template-store/internal/auth"
	"template-store/internal/logger"
	"template-store/internal/models"
	"template-store/internal/templates"
	"template-store/internal/templates/db"
	"template-store/internal/templates/optimizer"
	"template-store/internal/utils"

	"github.com/gin-gonic/gin"
)

const evolveTimeout = 10 * time.Second

// Handler exposes the admin/content surface: template CRUD, AI generation,
// trend research and portfolio optimization.
type Handler struct {
	TemplateService *templates.TemplateService
	Logger          *logger.Logger
}

func NewHandler(templateService *templates.TemplateService, log *logger.Logger) *Handler {
	return &Handler{
		TemplateService: templateService,
		Logger:          log,
	}
}

func (h *Handler) ListTemplates(c *gin.Context) {
	list, err := h.TemplateService.List(c.Request.Context(), c.Query("category"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, utils.ErrorResponse("Failed to fetch templates", err.Error()))
		return
	}
	c.JSON(http.StatusOK, utils.SuccessResponse("Templates fetched", list))
}

func (h *Handler) GetTemplate(c *gin.Context) {
	template, err := h.TemplateService.Get(c.Request.Context(), c.Param("templateId"))
	if err != nil {
		if errors.Is(err, db.ErrTemplateNotFound) {
			c.JSON(http.StatusNotFound, utils.ErrorResponse("Template not found", err.Error()))
			return
		}
		c.JSON(http.StatusInternalServerError, utils.ErrorResponse("Failed to fetch template", err.Error()))
		return
	}
	c.JSON(http.StatusOK, utils.SuccessResponse("Template fetched", template))
}

func (h *Handler) CreateTemplate(c *gin.Context) {
	var req models.CreateTemplateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, utils.ErrorResponse("Invalid request payload", err.Error()))
		return
	}

	template, err := h.TemplateService.Create(c.Request.Context(), req)
	if err != nil {
		c.JSON(http.StatusInternalServerError, utils.ErrorResponse("Failed to create template", err.Error()))
		return
	}

	h.audit(c, "CREATE", template.ID)
	c.JSON(http.StatusCreated, utils.SuccessResponse("Template created", template))
}

func (h *Handler) UpdateTemplate(c *gin.Context) {
	var req models.UpdateTemplateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, utils.ErrorResponse("Invalid request payload", err.Error()))
		return
	}

	template, err := h.TemplateService.Update(c.Request.Context(), c.Param("templateId"), req)
	if err != nil {
		if errors.Is(err, db.ErrTemplateNotFound) {
			c.JSON(http.StatusNotFound, utils.ErrorResponse("Template not found", err.Error()))
			return
		}
		c.JSON(http.StatusInternalServerError, utils.ErrorResponse("Failed to update template", err.Error()))
		return
	}

	h.audit(c, "UPDATE", template.ID)
	c.JSON(http.StatusOK, utils.SuccessResponse("Template updated", template))
}

func (h *Handler) DeleteTemplate(c *gin.Context) {
	if err := h.TemplateService.Delete(c.Request.Context(), c.Param("templateId")); err != nil {
		if errors.Is(err, db.ErrTemplateNotFound) {
			c.JSON(http.StatusNotFound, utils.ErrorResponse("Template not found", err.Error()))
			return
		}
		c.JSON(http.StatusInternalServerError, utils.ErrorResponse("Failed to delete template", err.Error()))
		return
	}

	h.audit(c, "DELETE", c.Param("templateId"))
	c.JSON(http.StatusOK, utils.SuccessResponse("Template deleted", nil))
}

// GenerateTemplate researches a topic and creates a template from the result.
func (h *Handler) GenerateTemplate(c *gin.Context) {
	var req models.GenerateTemplateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, utils.ErrorResponse("Invalid request payload", err.Error()))
		return
	}

	template, err := h.TemplateService.Generate(c.Request.Context(), req.Topic, req.Category)
	if err != nil {
		if errors.Is(err, templates.ErrGenerationNotConfigured) {
			c.JSON(http.StatusServiceUnavailable, utils.ErrorResponse("Template generation not configured", err.Error()))
			return
		}
		h.Logger.Error("TEMPLATE", fmt.Sprintf("GenerateTemplate: %v", err))
		c.JSON(http.StatusBadGateway, utils.ErrorResponse("Template generation failed", err.Error()))
		return
	}

	h.audit(c, "GENERATE", template.ID)
	c.JSON(http.StatusCreated, utils.SuccessResponse("Template generated", template))
}

func (h *Handler) ResearchTrends(c *gin.Context) {
	var req models.TrendResearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, utils.ErrorResponse("Invalid request payload", err.Error()))
		return
	}

	trends, err := h.TemplateService.ResearchTrends(c.Request.Context(), req.Query)
	if err != nil {
		if errors.Is(err, templates.ErrGenerationNotConfigured) {
			c.JSON(http.StatusServiceUnavailable, utils.ErrorResponse("Trend research not configured", err.Error()))
			return
		}
		c.JSON(http.StatusBadGateway, utils.ErrorResponse("Trend research failed", err.Error()))
		return
	}

	c.JSON(http.StatusOK, utils.SuccessResponse("Trend research complete", gin.H{"trends": trends}))
}

// AnalyzeTemplate scores one template and recommends an optimization action.
func (h *Handler) AnalyzeTemplate(c *gin.Context) {
	template, err := h.TemplateService.Get(c.Request.Context(), c.Param("templateId"))
	if err != nil {
		if errors.Is(err, db.ErrTemplateNotFound) {
			c.JSON(http.StatusNotFound, utils.ErrorResponse("Template not found", err.Error()))
			return
		}
		c.JSON(http.StatusInternalServerError, utils.ErrorResponse("Failed to fetch template", err.Error()))
		return
	}

	analysis := optimizer.Analyze(*template)
	c.JSON(http.StatusOK, utils.SuccessResponse("Template analyzed", analysis))
}

// PortfolioReport aggregates optimization metrics across all templates.
func (h *Handler) PortfolioReport(c *gin.Context) {
	list, err := h.TemplateService.List(c.Request.Context(), "")
	if err != nil {
		c.JSON(http.StatusInternalServerError, utils.ErrorResponse("Failed to fetch templates", err.Error()))
		return
	}

	report := optimizer.BuildPortfolioReport(list)
	c.JSON(http.StatusOK, utils.SuccessResponse("Portfolio report built", report))
}

// EvolveTemplate boosts an underperforming template. The evolution runs as
// a bounded asynchronous task inside the service.
func (h *Handler) EvolveTemplate(c *gin.Context) {
	outcome, err := h.TemplateService.Evolve(c.Request.Context(), c.Param("templateId"), evolveTimeout)
	if err != nil {
		switch {
		case errors.Is(err, db.ErrTemplateNotFound):
			c.JSON(http.StatusNotFound, utils.ErrorResponse("Template not found", err.Error()))
		case errors.Is(err, context.DeadlineExceeded):
			c.JSON(http.StatusGatewayTimeout, utils.ErrorResponse("Evolution timed out", err.Error()))
		default:
			c.JSON(http.StatusInternalServerError, utils.ErrorResponse("Failed to evolve template", err.Error()))
		}
		return
	}

	h.audit(c, "EVOLVE", c.Param("templateId"))
	c.JSON(http.StatusOK, utils.SuccessResponse("Evolution complete", outcome))
}

// audit records which authenticated admin performed a mutation.
func (h *Handler) audit(c *gin.Context, action, templateID string) {
	admin := auth.AdminID(c)
	if admin == "" {
		admin = "unknown"
	}
	h.Logger.LogSecurity("TEMPLATE_AUDIT", fmt.Sprintf("%s %s by %s", action, templateID, admin))
}
