package api

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"resumebuilder/internal/api/middleware"
	"resumebuilder/internal/metrics"
	"resumebuilder/internal/pdf"
	"resumebuilder/internal/repository"
	"resumebuilder/internal/resume"
	"resumebuilder/internal/storage"
	"resumebuilder/internal/tasks"
)

const (
	maxResumeBodyBytes = 1 << 20
	downloadLinkTTL    = 5 * time.Minute
)

// ResumeRenderer prints a resume to PDF bytes. *pdf.Service implements it.
type ResumeRenderer interface {
	Render(ctx context.Context, r resume.Resume) ([]byte, error)
}

// ResumeHandler serves the owner-scoped resume routes.
type ResumeHandler struct {
	resumes  *repository.Resumes
	users    *repository.Users
	renderer ResumeRenderer
	queue    tasks.Enqueuer
	storage  storage.ObjectStore
}

// NewResumeHandler builds the handler. queue and store may be nil, which
// disables the archive routes.
func NewResumeHandler(
	resumes *repository.Resumes,
	users *repository.Users,
	renderer ResumeRenderer,
	queue tasks.Enqueuer,
	store storage.ObjectStore,
) *ResumeHandler {
	return &ResumeHandler{
		resumes:  resumes,
		users:    users,
		renderer: renderer,
		queue:    queue,
		storage:  store,
	}
}

// ListResumes returns the caller's resumes, newest first.
func (h *ResumeHandler) ListResumes(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}

	items, err := h.resumes.List(c.Request.Context(), userID)
	if err != nil {
		middleware.LoggerFromContext(c).Error("list resumes failed", slog.Any("error", err))
		Internal(c)
		return
	}
	c.JSON(http.StatusOK, items)
}

// GetResume returns one of the caller's resumes.
func (h *ResumeHandler) GetResume(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}

	item, err := h.resumes.Get(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		replyLookupError(c, "get resume failed", err)
		return
	}
	c.JSON(http.StatusOK, item)
}

// CreateResume stores a new resume from the request body. With
// ?prefill=profile an absent personalInfo is filled from the account.
func (h *ResumeHandler) CreateResume(c *gin.Context) {
	h.save(c, "")
}

// SaveResume merges the request body over the resume named in the path, or
// creates a new resume when the id does not match one of the caller's.
func (h *ResumeHandler) SaveResume(c *gin.Context) {
	h.save(c, c.Param("id"))
}

func (h *ResumeHandler) save(c *gin.Context, id string) {
	userID, ok := middleware.UserID(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}

	ctx := c.Request.Context()
	logger := middleware.LoggerFromContext(c)

	raw, err := io.ReadAll(io.LimitReader(c.Request.Body, maxResumeBodyBytes))
	if err != nil {
		BadRequest(c, "could not read request body")
		return
	}
	patch, err := resume.DecodePatch(raw)
	if err != nil {
		if errors.Is(err, resume.ErrValidation) {
			BadRequest(c, err.Error())
			return
		}
		logger.Error("decode resume payload failed", slog.Any("error", err))
		Internal(c)
		return
	}

	if id == "" && c.Query("prefill") == "profile" && patch.PersonalInfo == nil {
		user, err := h.users.FindByID(ctx, userID)
		if err != nil {
			logger.Error("load profile for prefill failed", slog.Any("error", err))
			Internal(c)
			return
		}
		patch.PersonalInfo = &resume.PersonalInfo{Name: user.Name, Email: user.Email}
	}

	saved, created, err := h.resumes.Upsert(ctx, userID, id, patch)
	if err != nil {
		logger.Error("save resume failed", slog.Any("error", err))
		Internal(c)
		return
	}

	logger.Info("resume saved",
		slog.Uint64("resume_id", uint64(saved.ID)),
		slog.Bool("created", created),
	)
	c.JSON(http.StatusOK, saved)
}

// DeleteResume removes the caller's resume and its archived PDF.
func (h *ResumeHandler) DeleteResume(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}

	ctx := c.Request.Context()
	logger := middleware.LoggerFromContext(c)

	archived, err := h.resumes.ArchivedPDFKey(ctx, userID, c.Param("id"))
	if err != nil {
		replyLookupError(c, "lookup resume before delete failed", err)
		return
	}

	if err := h.resumes.Delete(ctx, userID, c.Param("id")); err != nil {
		replyLookupError(c, "delete resume failed", err)
		return
	}

	if archived != "" && h.storage != nil {
		if err := h.storage.DeleteObject(ctx, archived); err != nil {
			logger.Warn("remove archived pdf failed", slog.String("key", archived), slog.Any("error", err))
		}
	}

	c.JSON(http.StatusOK, gin.H{"msg": "Resume removed"})
}

// GeneratePDF renders the resume and returns it as an attachment.
func (h *ResumeHandler) GeneratePDF(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}

	ctx := c.Request.Context()
	logger := middleware.LoggerFromContext(c)

	item, err := h.resumes.Get(ctx, userID, c.Param("id"))
	if err != nil {
		replyLookupError(c, "get resume for pdf failed", err)
		return
	}

	started := time.Now()
	data, err := h.renderer.Render(ctx, item)
	metrics.ObservePDFRender(started, err)
	if err != nil {
		logger.Error("pdf generation failed",
			slog.Uint64("resume_id", uint64(item.ID)),
			slog.Bool("timeout", errors.Is(err, pdf.ErrRenderTimeout)),
			slog.Any("error", err),
		)
		Internal(c)
		return
	}

	c.Header("Content-Disposition", pdf.Disposition(item.PersonalInfo.Name))
	c.Header("Content-Length", strconv.Itoa(len(data)))
	c.Data(http.StatusOK, "application/pdf", data)
}

// ArchivePDF queues a background render that stores the PDF in object storage.
func (h *ResumeHandler) ArchivePDF(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}
	if h.queue == nil || h.storage == nil {
		Unavailable(c, "PDF archive is not configured")
		return
	}

	ctx := c.Request.Context()
	logger := middleware.LoggerFromContext(c)

	item, err := h.resumes.Get(ctx, userID, c.Param("id"))
	if err != nil {
		replyLookupError(c, "get resume for archive failed", err)
		return
	}

	task, err := tasks.NewPDFArchiveTask(item.ID, userID, middleware.GetCorrelationID(c))
	if err != nil {
		logger.Error("build archive task failed", slog.Any("error", err))
		Internal(c)
		return
	}

	info, err := h.queue.EnqueueContext(ctx, task)
	if err != nil {
		logger.Error("enqueue archive task failed", slog.Any("error", err))
		Internal(c)
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"msg":     "PDF archive request accepted",
		"task_id": info.ID,
	})
}

// GetPDFLink returns a short-lived download link for the archived PDF.
func (h *ResumeHandler) GetPDFLink(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}
	if h.storage == nil {
		Unavailable(c, "PDF archive is not configured")
		return
	}

	ctx := c.Request.Context()

	item, err := h.resumes.Get(ctx, userID, c.Param("id"))
	if err != nil {
		replyLookupError(c, "get resume for link failed", err)
		return
	}
	key, err := h.resumes.ArchivedPDFKey(ctx, userID, c.Param("id"))
	if err != nil {
		replyLookupError(c, "get archived pdf key failed", err)
		return
	}
	if key == "" {
		Conflict(c, "PDF has not been archived yet")
		return
	}

	url, err := h.storage.PresignedURL(ctx, key, downloadLinkTTL, pdf.Filename(item.PersonalInfo.Name))
	if err != nil {
		middleware.LoggerFromContext(c).Error("presign pdf link failed", slog.Any("error", err))
		Internal(c)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"url":        url,
		"expires_in": int(downloadLinkTTL.Seconds()),
	})
}

func replyLookupError(c *gin.Context, logMsg string, err error) {
	if errors.Is(err, repository.ErrNotFound) {
		NotFound(c, msgResumeNotFound)
		return
	}
	middleware.LoggerFromContext(c).Error(logMsg, slog.Any("error", err))
	Internal(c)
}
