package tasks

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
)

// Task types shared by the API (producer) and the worker (consumer).
const (
	TypePDFArchive = "pdf:archive"
)

// QueueDefault is the only queue the worker listens on.
const QueueDefault = "default"

// Enqueuer is satisfied by *asynq.Client.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// PDFArchivePayload identifies the resume to render and store.
type PDFArchivePayload struct {
	ResumeID      uint   `json:"resume_id"`
	UserID        uint   `json:"user_id"`
	CorrelationID string `json:"correlation_id"`
}

// NewPDFArchiveTask builds a render-and-store task for one resume.
func NewPDFArchiveTask(resumeID, userID uint, correlationID string) (*asynq.Task, error) {
	payload, err := json.Marshal(PDFArchivePayload{
		ResumeID:      resumeID,
		UserID:        userID,
		CorrelationID: correlationID,
	})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypePDFArchive, payload, asynq.MaxRetry(3), asynq.Queue(QueueDefault)), nil
}

// ParsePDFArchivePayload decodes a task payload.
func ParsePDFArchivePayload(data []byte) (PDFArchivePayload, error) {
	var p PDFArchivePayload
	if err := json.Unmarshal(data, &p); err != nil {
		return PDFArchivePayload{}, fmt.Errorf("decode %s payload: %w", TypePDFArchive, err)
	}
	if p.ResumeID == 0 {
		return PDFArchivePayload{}, fmt.Errorf("decode %s payload: resume id missing", TypePDFArchive)
	}
	return p, nil
}
