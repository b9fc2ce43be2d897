package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"resumebuilder/internal/database"
	"resumebuilder/internal/resume"
)

// ErrNotFound is returned for ids that do not exist or belong to another owner.
// Callers must not distinguish the two cases.
var ErrNotFound = errors.New("resume not found")

// Resumes persists resume documents scoped to their owner.
type Resumes struct {
	db *gorm.DB
}

// NewResumes builds a Resumes repository.
func NewResumes(db *gorm.DB) *Resumes {
	return &Resumes{db: db}
}

// List returns the owner's resumes, newest first.
func (r *Resumes) List(ctx context.Context, ownerID uint) ([]resume.Resume, error) {
	var rows []database.Resume
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", ownerID).
		Order("created_at DESC").
		Order("id DESC").
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list resumes: %w", err)
	}

	out := make([]resume.Resume, 0, len(rows))
	for _, row := range rows {
		item, err := toDomain(row)
		if err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return out, nil
}

// Get returns one resume owned by ownerID.
func (r *Resumes) Get(ctx context.Context, ownerID uint, id string) (resume.Resume, error) {
	row, err := r.find(ctx, ownerID, id)
	if err != nil {
		return resume.Resume{}, err
	}
	return toDomain(*row)
}

// Upsert merges p over the owner's resume with the given id, or creates a new
// resume when id is empty or does not match one of the owner's resumes. The
// boolean result reports whether a resume was created.
func (r *Resumes) Upsert(ctx context.Context, ownerID uint, id string, p resume.Patch) (resume.Resume, bool, error) {
	if strings.TrimSpace(id) == "" {
		created, err := r.Create(ctx, ownerID, p)
		return created, true, err
	}

	row, err := r.find(ctx, ownerID, id)
	switch {
	case errors.Is(err, ErrNotFound):
		created, err := r.Create(ctx, ownerID, p)
		return created, true, err
	case err != nil:
		return resume.Resume{}, false, err
	}

	template, sections := p.Merge(resume.Template(row.Template), row.Content.Data())
	updates := map[string]any{
		"template": string(template),
		"content":  datatypes.NewJSONType(sections),
	}
	if err := r.db.WithContext(ctx).Model(row).Updates(updates).Error; err != nil {
		return resume.Resume{}, false, fmt.Errorf("update resume %d: %w", row.ID, err)
	}
	if err := r.db.WithContext(ctx).First(row, row.ID).Error; err != nil {
		return resume.Resume{}, false, fmt.Errorf("reload resume %d: %w", row.ID, err)
	}

	updated, err := toDomain(*row)
	return updated, false, err
}

// Create stores a new resume for ownerID built from p.
func (r *Resumes) Create(ctx context.Context, ownerID uint, p resume.Patch) (resume.Resume, error) {
	template, sections := p.NewSections()
	row := database.Resume{
		UserID:   ownerID,
		Template: string(template),
		Content:  datatypes.NewJSONType(sections),
	}
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		return resume.Resume{}, fmt.Errorf("create resume: %w", err)
	}
	// Read back what the column stored so timestamps match later reads.
	if err := r.db.WithContext(ctx).First(&row, row.ID).Error; err != nil {
		return resume.Resume{}, fmt.Errorf("reload resume %d: %w", row.ID, err)
	}
	return toDomain(row)
}

// Delete removes the owner's resume permanently.
func (r *Resumes) Delete(ctx context.Context, ownerID uint, id string) error {
	resumeID, ok := parseID(id)
	if !ok {
		return ErrNotFound
	}

	res := r.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", resumeID, ownerID).
		Delete(&database.Resume{})
	if res.Error != nil {
		return fmt.Errorf("delete resume %d: %w", resumeID, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// SaveAnalysis replaces the stored analysis of the owner's resume.
func (r *Resumes) SaveAnalysis(ctx context.Context, ownerID uint, id string, a resume.Analysis) (resume.Resume, error) {
	row, err := r.find(ctx, ownerID, id)
	if err != nil {
		return resume.Resume{}, err
	}

	if a.Suggestions == nil {
		a.Suggestions = []string{}
	}
	data, err := json.Marshal(a)
	if err != nil {
		return resume.Resume{}, fmt.Errorf("marshal analysis: %w", err)
	}

	if err := r.db.WithContext(ctx).Model(row).Update("analysis", datatypes.JSON(data)).Error; err != nil {
		return resume.Resume{}, fmt.Errorf("save analysis for resume %d: %w", row.ID, err)
	}
	if err := r.db.WithContext(ctx).First(row, row.ID).Error; err != nil {
		return resume.Resume{}, fmt.Errorf("reload resume %d: %w", row.ID, err)
	}
	return toDomain(*row)
}

// ArchivedPDFKey returns the object key of the last archived PDF, or "" when
// the resume has never been archived.
func (r *Resumes) ArchivedPDFKey(ctx context.Context, ownerID uint, id string) (string, error) {
	row, err := r.find(ctx, ownerID, id)
	if err != nil {
		return "", err
	}
	return row.PdfObjectKey, nil
}

// FindByID loads a resume without an owner check. It is meant for background
// tasks that were enqueued by an owner-checked request.
func (r *Resumes) FindByID(ctx context.Context, id uint) (resume.Resume, error) {
	var row database.Resume
	if err := r.db.WithContext(ctx).First(&row, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return resume.Resume{}, ErrNotFound
		}
		return resume.Resume{}, fmt.Errorf("query resume %d: %w", id, err)
	}
	return toDomain(row)
}

// SetPDFObjectKey records where the archived PDF of a resume is stored and
// returns the key it replaces. Archiving is not an edit, so updatedAt is kept.
func (r *Resumes) SetPDFObjectKey(ctx context.Context, id uint, key string) (string, error) {
	var row database.Resume
	if err := r.db.WithContext(ctx).Select("id", "pdf_object_key").First(&row, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("query resume %d: %w", id, err)
	}

	if err := r.db.WithContext(ctx).
		Model(&database.Resume{}).
		Where("id = ?", id).
		UpdateColumn("pdf_object_key", key).Error; err != nil {
		return "", fmt.Errorf("set pdf object key for resume %d: %w", id, err)
	}
	return row.PdfObjectKey, nil
}

func (r *Resumes) find(ctx context.Context, ownerID uint, id string) (*database.Resume, error) {
	resumeID, ok := parseID(id)
	if !ok {
		return nil, ErrNotFound
	}

	var row database.Resume
	if err := r.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", resumeID, ownerID).
		First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("query resume %d: %w", resumeID, err)
	}
	return &row, nil
}

func parseID(id string) (uint, bool) {
	v, err := strconv.ParseUint(strings.TrimSpace(id), 10, 64)
	if err != nil || v == 0 {
		return 0, false
	}
	return uint(v), true
}

func toDomain(row database.Resume) (resume.Resume, error) {
	sections := row.Content.Data()
	sections.Normalize()

	out := resume.Resume{
		ID:        row.ID,
		UserID:    row.UserID,
		Template:  resume.Template(row.Template),
		Sections:  sections,
		CreatedAt: row.CreatedAt,
		UpdatedAt: row.UpdatedAt,
	}

	if len(row.Analysis) > 0 && string(row.Analysis) != "null" {
		var a resume.Analysis
		if err := json.Unmarshal(row.Analysis, &a); err != nil {
			return resume.Resume{}, fmt.Errorf("decode analysis of resume %d: %w", row.ID, err)
		}
		out.Analysis = &a
	}
	return out, nil
}
