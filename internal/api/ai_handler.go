package api

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"resumebuilder/internal/analysis"
	"resumebuilder/internal/api/middleware"
	"resumebuilder/internal/metrics"
	"resumebuilder/internal/repository"
)

// AIHandler serves the analysis, cover letter and optimization routes.
type AIHandler struct {
	resumes  *repository.Resumes
	analyzer analysis.Analyzer
}

func NewAIHandler(resumes *repository.Resumes, analyzer analysis.Analyzer) *AIHandler {
	return &AIHandler{resumes: resumes, analyzer: analyzer}
}

// Analyze scores the resume, stores the result on it and returns the result.
func (h *AIHandler) Analyze(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}

	ctx := c.Request.Context()
	item, err := h.resumes.Get(ctx, userID, c.Param("id"))
	if err != nil {
		replyLookupError(c, "get resume for analysis failed", err)
		return
	}

	result := h.analyzer.Analyze(item)
	metrics.IncAnalyses()

	if _, err := h.resumes.SaveAnalysis(ctx, userID, c.Param("id"), result); err != nil {
		replyLookupError(c, "save analysis failed", err)
		return
	}

	middleware.LoggerFromContext(c).Info("resume analyzed",
		slog.Uint64("resume_id", uint64(item.ID)),
		slog.Int("ats_score", result.ATSScore),
	)
	c.JSON(http.StatusOK, result)
}

// CoverLetter fills the cover letter template for a job.
func (h *AIHandler) CoverLetter(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}

	var req analysis.JobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	item, err := h.resumes.Get(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		replyLookupError(c, "get resume for cover letter failed", err)
		return
	}

	letter, err := analysis.CoverLetter(item, req)
	if err != nil {
		middleware.LoggerFromContext(c).Error("cover letter failed", slog.Any("error", err))
		Internal(c)
		return
	}
	c.JSON(http.StatusOK, gin.H{"coverLetter": letter})
}

// Optimize returns optimization hints for a job description.
func (h *AIHandler) Optimize(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}

	var req analysis.JobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	if _, err := h.resumes.Get(c.Request.Context(), userID, c.Param("id")); err != nil {
		replyLookupError(c, "get resume for optimize failed", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"suggestions": analysis.Optimize(req)})
}
