package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"resumebuilder/internal/database"
)

var (
	ErrUserNotFound = errors.New("user not found")
	ErrEmailTaken   = errors.New("email already registered")
)

// Users persists accounts.
type Users struct {
	db *gorm.DB
}

// NewUsers builds a Users repository.
func NewUsers(db *gorm.DB) *Users {
	return &Users{db: db}
}

// Create inserts a new account. Emails are compared case-insensitively.
func (u *Users) Create(ctx context.Context, user *database.User) error {
	user.Email = normalizeEmail(user.Email)

	if _, err := u.FindByEmail(ctx, user.Email); err == nil {
		return ErrEmailTaken
	} else if !errors.Is(err, ErrUserNotFound) {
		return err
	}

	if err := u.db.WithContext(ctx).Create(user).Error; err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

// FindByID loads an account by id.
func (u *Users) FindByID(ctx context.Context, id uint) (*database.User, error) {
	var user database.User
	if err := u.db.WithContext(ctx).First(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("query user %d: %w", id, err)
	}
	return &user, nil
}

// FindByEmail loads an account by email.
func (u *Users) FindByEmail(ctx context.Context, email string) (*database.User, error) {
	var user database.User
	if err := u.db.WithContext(ctx).Where("email = ?", normalizeEmail(email)).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("query user by email: %w", err)
	}
	return &user, nil
}

// FindOrCreateGoogle returns the account linked to a Google subject, linking an
// existing account with the same email or creating a new one as needed.
func (u *Users) FindOrCreateGoogle(ctx context.Context, subject, email, name string) (*database.User, error) {
	var user database.User
	err := u.db.WithContext(ctx).Where("google_id = ?", subject).First(&user).Error
	if err == nil {
		return &user, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("query user by google id: %w", err)
	}

	existing, err := u.FindByEmail(ctx, email)
	switch {
	case err == nil:
		if err := u.db.WithContext(ctx).Model(existing).Update("google_id", subject).Error; err != nil {
			return nil, fmt.Errorf("link google account: %w", err)
		}
		existing.GoogleID = &subject
		return existing, nil
	case !errors.Is(err, ErrUserNotFound):
		return nil, err
	}

	created := database.User{
		Name:     name,
		Email:    email,
		GoogleID: &subject,
	}
	if err := u.Create(ctx, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
