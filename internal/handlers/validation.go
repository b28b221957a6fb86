package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/smaehq/smae-backend/internal/services"
)

type ValidationHandler struct {
	validationService services.ValidationService
}

func NewValidationHandler(validationService services.ValidationService) *ValidationHandler {
	return &ValidationHandler{validationService: validationService}
}

func (vh *ValidationHandler) History(c *gin.Context) {
	skillID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	validations, err := vh.validationService.History(c.Request.Context(), skillID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"validations": validations})
}

func (vh *ValidationHandler) Submit(c *gin.Context) {
	skillID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var req struct {
		Level        int             `json:"level"`
		EvidenceType string          `json:"evidence_type"`
		Evidence     string          `json:"evidence"`
		Passed       bool            `json:"passed"`
		Analysis     json.RawMessage `json:"analysis"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	result, err := vh.validationService.Submit(c.Request.Context(), services.SubmitValidationInput{
		SkillID:      skillID,
		Level:        req.Level,
		EvidenceType: req.EvidenceType,
		Evidence:     req.Evidence,
		Passed:       req.Passed,
		Analysis:     req.Analysis,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	body := gin.H{
		"validation": result.Validation,
		"skill":      result.Skill,
		"fail_count": result.FailCount,
	}
	if result.Suggestion != "" {
		body["suggestion"] = result.Suggestion
	}
	c.JSON(http.StatusOK, body)
}

func (vh *ValidationHandler) Panic(c *gin.Context) {
	validationID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	result, err := vh.validationService.Panic(c.Request.Context(), validationID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"new_level": result.NewLevel})
}

func (vh *ValidationHandler) Cooldown(c *gin.Context) {
	skillID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	status, err := vh.validationService.Cooldown(c.Request.Context(), skillID)
	if err != nil {
		respondError(c, err)
		return
	}
	body := gin.H{"can_attempt": status.CanAttempt}
	if status.Reason != "" {
		body["reason"] = status.Reason
	}
	if status.CooldownEnd != nil {
		body["cooldown_end"] = status.CooldownEnd
		body["remaining_ms"] = status.RemainingMS
	}
	c.JSON(http.StatusOK, body)
}
