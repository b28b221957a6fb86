package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/smaehq/smae-backend/internal/services"
)

type SkillHandler struct {
	skillService services.SkillService
}

func NewSkillHandler(skillService services.SkillService) *SkillHandler {
	return &SkillHandler{skillService: skillService}
}

func parseIDParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name})
		return uuid.Nil, false
	}
	return id, true
}

func (sh *SkillHandler) List(c *gin.Context) {
	skills, err := sh.skillService.List(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"skills": skills})
}

func (sh *SkillHandler) Get(c *gin.Context) {
	skillID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	skill, err := sh.skillService.Get(c.Request.Context(), skillID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"skill": skill})
}

func (sh *SkillHandler) Create(c *gin.Context) {
	var req struct {
		Name            string      `json:"name"`
		Category        string      `json:"category"`
		Requirements    []uuid.UUID `json:"requirements"`
		IsHito          bool        `json:"is_hito"`
		IsReinforcement bool        `json:"is_reinforcement"`
		ParentSkillID   *uuid.UUID  `json:"parent_skill_id"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	skill, err := sh.skillService.Create(c.Request.Context(), services.CreateSkillInput{
		Name:            req.Name,
		Category:        req.Category,
		Requirements:    req.Requirements,
		IsHito:          req.IsHito,
		IsReinforcement: req.IsReinforcement,
		ParentSkillID:   req.ParentSkillID,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"skill": skill})
}

func (sh *SkillHandler) Update(c *gin.Context) {
	skillID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var req struct {
		Name         *string      `json:"name"`
		Category     *string      `json:"category"`
		IsHito       *bool        `json:"is_hito"`
		Requirements *[]uuid.UUID `json:"requirements"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	skill, err := sh.skillService.Update(c.Request.Context(), skillID, services.UpdateSkillInput{
		Name:         req.Name,
		Category:     req.Category,
		IsHito:       req.IsHito,
		Requirements: req.Requirements,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"skill": skill})
}

func (sh *SkillHandler) Delete(c *gin.Context) {
	skillID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	if err := sh.skillService.Delete(c.Request.Context(), skillID); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (sh *SkillHandler) LevelUp(c *gin.Context) {
	skillID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	skill, err := sh.skillService.LevelUp(c.Request.Context(), skillID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"skill": skill})
}

func (sh *SkillHandler) FastForward(c *gin.Context) {
	skillID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var req struct {
		Hours int `json:"hours"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	skill, err := sh.skillService.FastForward(c.Request.Context(), skillID, req.Hours)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"skill": skill})
}
