package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/hibiken/asynq"

	"resumebuilder/internal/errcode"
	"resumebuilder/internal/repository"
	"resumebuilder/internal/resume"
	"resumebuilder/internal/storage"
	"resumebuilder/internal/tasks"
)

// ResumeStore is the repository surface the archive task needs.
type ResumeStore interface {
	FindByID(ctx context.Context, id uint) (resume.Resume, error)
	SetPDFObjectKey(ctx context.Context, id uint, key string) (string, error)
}

// ResumeRenderer prints a resume to PDF bytes.
type ResumeRenderer interface {
	Render(ctx context.Context, r resume.Resume) ([]byte, error)
}

// PDFArchiveHandler renders a resume, uploads the PDF and tells the owner.
type PDFArchiveHandler struct {
	resumes  ResumeStore
	renderer ResumeRenderer
	store    storage.ObjectStore
	notifier Notifier
	logger   *slog.Logger
}

func NewPDFArchiveHandler(
	resumes ResumeStore,
	renderer ResumeRenderer,
	store storage.ObjectStore,
	notifier Notifier,
	logger *slog.Logger,
) *PDFArchiveHandler {
	return &PDFArchiveHandler{
		resumes:  resumes,
		renderer: renderer,
		store:    store,
		notifier: notifier,
		logger:   logger,
	}
}

// ProcessTask implements asynq.Handler.
func (h *PDFArchiveHandler) ProcessTask(ctx context.Context, t *asynq.Task) (retErr error) {
	payload, err := tasks.ParsePDFArchivePayload(t.Payload())
	if err != nil {
		h.logger.Error("unmarshal task payload failed", slog.Any("error", err))
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}

	log := h.logger.With(
		slog.String("correlation_id", payload.CorrelationID),
		slog.Uint64("resume_id", uint64(payload.ResumeID)),
		slog.Uint64("user_id", uint64(payload.UserID)),
	)
	log.Info("starting pdf archive task")

	res, err := h.resumes.FindByID(ctx, payload.ResumeID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			log.Warn("resume not found, skipping task")
			h.notify(ctx, log, payload.UserID, NotifyMessage{
				Status:        StatusError,
				ResumeID:      payload.ResumeID,
				CorrelationID: payload.CorrelationID,
				ErrorCode:     errcode.ResumeMissing,
				ErrorMessage:  "resume was deleted before it could be archived",
			})
			return nil
		}
		log.Error("query resume failed", slog.Any("error", err))
		return err
	}
	if res.UserID != payload.UserID {
		log.Warn("resume owner changed, skipping task")
		return nil
	}

	defer func() {
		if retErr == nil || !isFinalAsynqAttempt(ctx) {
			return
		}
		h.notify(ctx, log, res.UserID, NotifyMessage{
			Status:        StatusError,
			ResumeID:      res.ID,
			CorrelationID: payload.CorrelationID,
			ErrorCode:     errcode.SystemError,
			ErrorMessage:  strings.TrimSpace(retErr.Error()),
		})
	}()

	data, err := h.renderer.Render(ctx, res)
	if err != nil {
		log.Error("render pdf failed", slog.Any("error", err))
		return err
	}

	key := storage.PDFObjectKey(res.UserID)
	if err := h.store.PutPDF(ctx, key, data); err != nil {
		log.Error("upload pdf failed", slog.Any("error", err))
		return err
	}

	previous, err := h.resumes.SetPDFObjectKey(ctx, res.ID, key)
	if err != nil {
		log.Error("record pdf object key failed", slog.Any("error", err))
		if delErr := h.store.DeleteObject(ctx, key); delErr != nil {
			log.Warn("remove orphaned pdf failed", slog.Any("error", delErr))
		}
		return err
	}
	if previous != "" && previous != key {
		if err := h.store.DeleteObject(ctx, previous); err != nil {
			log.Warn("remove previous archived pdf failed", slog.String("key", previous), slog.Any("error", err))
		}
	}

	h.notify(ctx, log, res.UserID, NotifyMessage{
		Status:        StatusCompleted,
		ResumeID:      res.ID,
		CorrelationID: payload.CorrelationID,
		ErrorCode:     errcode.OK,
	})

	log.Info("pdf archive task completed", slog.String("key", key), slog.Int("bytes", len(data)))
	return nil
}

func (h *PDFArchiveHandler) notify(ctx context.Context, log *slog.Logger, userID uint, msg NotifyMessage) {
	if h.notifier == nil {
		return
	}
	if err := h.notifier.Notify(ctx, userID, msg); err != nil {
		log.Error("publish notification failed", slog.Any("error", err))
	}
}

func isFinalAsynqAttempt(ctx context.Context) bool {
	retryCount, ok1 := asynq.GetRetryCount(ctx)
	maxRetry, ok2 := asynq.GetMaxRetry(ctx)
	if !ok1 || !ok2 {
		return false
	}
	return retryCount >= maxRetry
}
