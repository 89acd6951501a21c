package models

import (
	"time"

	"github.com/uptrace/bun"
)

// Template is a sellable art-prompt record. Templates are read-mostly
// content; purchases reference them by ID without reserving them.
type Template struct {
	bun.BaseModel `bun:"table:templates"`

	ID             string    `bun:"id,pk" json:"id"`
	Title          string    `bun:"title,notnull" json:"title"`
	Category       string    `bun:"category,notnull" json:"category"`
	Narrative      string    `bun:"narrative,notnull" json:"narrative"`
	PromptContent  string    `bun:"prompt_content,notnull" json:"promptContent"`
	TrendIntensity int       `bun:"trend_intensity,notnull,default:50" json:"trendIntensity"`
	EnergyScore    int       `bun:"energy_score,notnull,default:50" json:"energyScore"`
	RemixCount     int       `bun:"remix_count,notnull,default:0" json:"remixCount"`
	CreatedAt      time.Time `bun:"created_at,notnull" json:"createdAt"`
	UpdatedAt      time.Time `bun:"updated_at,notnull" json:"updatedAt"`
}

type CreateTemplateRequest struct {
	Title          string `json:"title" binding:"required"`
	Category       string `json:"category" binding:"required"`
	Narrative      string `json:"narrative" binding:"required"`
	PromptContent  string `json:"promptContent" binding:"required"`
	TrendIntensity *int   `json:"trendIntensity,omitempty"`
	EnergyScore    *int   `json:"energyScore,omitempty"`
	RemixCount     *int   `json:"remixCount,omitempty"`
}

// UpdateTemplateRequest carries partial updates; nil fields are untouched.
type UpdateTemplateRequest struct {
	Title          *string `json:"title,omitempty"`
	Category       *string `json:"category,omitempty"`
	Narrative      *string `json:"narrative,omitempty"`
	PromptContent  *string `json:"promptContent,omitempty"`
	TrendIntensity *int    `json:"trendIntensity,omitempty"`
	EnergyScore    *int    `json:"energyScore,omitempty"`
	RemixCount     *int    `json:"remixCount,omitempty"`
}

type GenerateTemplateRequest struct {
	Topic    string `json:"topic" binding:"required,min=3"`
	Category string `json:"category,omitempty"`
}

type TrendResearchRequest struct {
	Query string `json:"query" binding:"required,min=1"`
}
