package store

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"neurochat/pkg/audit"
	"neurochat/pkg/domain"
)

// ImageGormStore implements ImageStore on a local SQLite database.
type ImageGormStore struct {
	db       *gorm.DB
	recorder audit.Recorder
}

// NewImageStore opens the image-history database and runs auto-migrations.
func NewImageStore(path string) (*ImageGormStore, error) {
	db, err := openSQLite(path)
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&ImageModel{}); err != nil {
		return nil, fmt.Errorf("auto migrate: %w", err)
	}
	return &ImageGormStore{db: db, recorder: audit.Nop{}}, nil
}

// SetRecorder installs the usage-log recorder.
func (s *ImageGormStore) SetRecorder(rec audit.Recorder) {
	if rec == nil {
		rec = audit.Nop{}
	}
	s.recorder = rec
}

// InsertImage records one generated image for a user.
func (s *ImageGormStore) InsertImage(userID, prompt, path string, params map[string]string) (domain.ImageRecord, error) {
	model := ImageModel{
		ID:        uuid.NewString(),
		UserID:    userID,
		Prompt:    prompt,
		Path:      path,
		CreatedAt: time.Now().UTC(),
	}
	if len(params) > 0 {
		raw, err := json.Marshal(params)
		if err != nil {
			return domain.ImageRecord{}, fmt.Errorf("marshal params: %w", err)
		}
		model.Params = datatypes.JSON(raw)
	}
	err := s.db.Transaction(func(tx *gorm.DB) error {
		return tx.Create(&model).Error
	})
	if err != nil {
		return domain.ImageRecord{}, translateError(err)
	}
	s.recorder.Record(userID, "Generated image", fmt.Sprintf("Prompt: %s", contentPreview(prompt)))
	return imageFromModel(model), nil
}

// ListImages returns the user's image history. No ordering is guaranteed.
func (s *ImageGormStore) ListImages(userID string) ([]domain.ImageRecord, error) {
	var models []ImageModel
	if err := s.db.Where("user_id = ?", userID).Find(&models).Error; err != nil {
		return nil, err
	}
	records := make([]domain.ImageRecord, 0, len(models))
	for _, m := range models {
		records = append(records, imageFromModel(m))
	}
	return records, nil
}

// DeleteImages removes every record matching (userID, prompt). There is no
// uniqueness constraint on prompts, so duplicates are all removed.
func (s *ImageGormStore) DeleteImages(userID, prompt string) error {
	err := s.db.Transaction(func(tx *gorm.DB) error {
		return tx.Delete(&ImageModel{}, "user_id = ? AND prompt = ?", userID, prompt).Error
	})
	if err != nil {
		return translateError(err)
	}
	s.recorder.Record(userID, "Deleted image history", fmt.Sprintf("Prompt: %s", contentPreview(prompt)))
	return nil
}

func imageFromModel(m ImageModel) domain.ImageRecord {
	record := domain.ImageRecord{
		ID:        m.ID,
		UserID:    m.UserID,
		Prompt:    m.Prompt,
		Path:      m.Path,
		CreatedAt: m.CreatedAt,
	}
	if len(m.Params) > 0 {
		params := make(map[string]string)
		if err := json.Unmarshal(m.Params, &params); err == nil {
			record.Params = params
		}
	}
	return record
}
