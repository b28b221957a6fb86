package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/smaehq/smae-backend/internal/services"
)

type MentorHandler struct {
	mentorService services.MentorService
}

func NewMentorHandler(mentorService services.MentorService) *MentorHandler {
	return &MentorHandler{mentorService: mentorService}
}

func (mh *MentorHandler) AnalyzeEvidence(c *gin.Context) {
	var req struct {
		SkillName    string `json:"skill_name"`
		Level        int    `json:"level"`
		EvidenceType string `json:"evidence_type"`
		Evidence     string `json:"evidence"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if req.SkillName == "" || req.Evidence == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "skill_name and evidence are required"})
		return
	}
	analysis, err := mh.mentorService.AnalyzeEvidence(c.Request.Context(), req.SkillName, req.Level, req.EvidenceType, req.Evidence)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": "analysis unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"analysis": analysis})
}

func (mh *MentorHandler) GenerateMicroCurriculum(c *gin.Context) {
	var req struct {
		SkillName string `json:"skill_name"`
		Level     int    `json:"level"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if req.SkillName == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "skill_name is required"})
		return
	}
	curriculum, err := mh.mentorService.GenerateMicroCurriculum(c.Request.Context(), req.SkillName, req.Level)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": "curriculum unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"curriculum": curriculum})
}
