package store

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"neurochat/pkg/domain"
)

// IdentityGormStore implements IdentityStore on a local SQLite database.
type IdentityGormStore struct {
	db *gorm.DB
}

// NewIdentityStore opens the identity database and runs auto-migrations.
func NewIdentityStore(path string) (*IdentityGormStore, error) {
	db, err := openSQLite(path)
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&UserModel{}); err != nil {
		return nil, fmt.Errorf("auto migrate: %w", err)
	}
	return &IdentityGormStore{db: db}, nil
}

// CreateUser registers a new user. Returns ErrDuplicateKey when username,
// email, or phone is already taken; the existing registration is unaffected.
func (s *IdentityGormStore) CreateUser(username, email, phone, passwordHash string) (domain.User, error) {
	model := UserModel{
		ID:           uuid.NewString(),
		Username:     username,
		Email:        email,
		Phone:        phone,
		PasswordHash: passwordHash,
		CreatedAt:    time.Now().UTC(),
	}
	err := s.db.Transaction(func(tx *gorm.DB) error {
		return tx.Create(&model).Error
	})
	if err != nil {
		return domain.User{}, translateError(err)
	}
	return userFromModel(model), nil
}

// GetUserByIdentifier resolves a username, email, or phone to a user.
func (s *IdentityGormStore) GetUserByIdentifier(identifier string) (domain.User, bool, error) {
	var model UserModel
	err := s.db.
		Where("username = ? OR email = ? OR phone = ?", identifier, identifier, identifier).
		First(&model).Error
	if err != nil {
		if translateError(err) == ErrNotFound {
			return domain.User{}, false, nil
		}
		return domain.User{}, false, err
	}
	return userFromModel(model), true, nil
}

// GetUserByID returns a user by ID.
func (s *IdentityGormStore) GetUserByID(id string) (domain.User, bool, error) {
	var model UserModel
	if err := s.db.First(&model, "id = ?", id).Error; err != nil {
		if translateError(err) == ErrNotFound {
			return domain.User{}, false, nil
		}
		return domain.User{}, false, err
	}
	return userFromModel(model), true, nil
}

// UpdatePassword replaces the stored hash for a user.
func (s *IdentityGormStore) UpdatePassword(userID, passwordHash string) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&UserModel{}).Where("id = ?", userID).
			Update("password_hash", passwordHash)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
}

func userFromModel(m UserModel) domain.User {
	return domain.User{
		ID:           m.ID,
		Username:     m.Username,
		Email:        m.Email,
		Phone:        m.Phone,
		PasswordHash: m.PasswordHash,
		CreatedAt:    m.CreatedAt,
	}
}
