package database

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"resumebuilder/internal/resume"
)

// User is an account that owns resumes.
type User struct {
	gorm.Model
	Name         string   `gorm:"size:128"`
	Email        string   `gorm:"uniqueIndex;size:255"`
	PasswordHash string   `gorm:"size:255"`
	GoogleID     *string  `gorm:"uniqueIndex;size:64"`
	Resumes      []Resume `gorm:"constraint:OnDelete:CASCADE"`
}

// Resume stores one resume document. The user-authored sections live in a
// single JSONB column; analysis is a separate nullable JSONB column that is
// only written by the analyzer. Rows are hard-deleted.
type Resume struct {
	ID           uint `gorm:"primarykey"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
	UserID       uint                                 `gorm:"index;not null"`
	User         User                                 `gorm:"constraint:OnDelete:CASCADE"`
	Template     string                               `gorm:"size:32;not null"`
	Content      datatypes.JSONType[resume.Sections] `gorm:"type:jsonb"`
	Analysis     datatypes.JSON                       `gorm:"type:jsonb"`
	PdfObjectKey string                               `gorm:"size:512"`
}

// Migrate creates or updates the schema for all models.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(&User{}, &Resume{})
}
