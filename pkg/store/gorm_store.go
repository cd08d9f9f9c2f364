package store

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"neurochat/pkg/audit"
	"neurochat/pkg/domain"
)

// ChatGormStore implements ChatStore on a local SQLite database.
//
// Every mutating operation runs in its own transaction scope: open, act,
// commit-or-rollback. No long-lived handle semantics leak to callers, so the
// store is safe to call from any goroutine.
type ChatGormStore struct {
	db         *gorm.DB
	exportRoot string
	recorder   audit.Recorder
}

// NewChatStore opens the chat database and runs auto-migrations.
// exportRoot is the base directory for per-user chat exports.
func NewChatStore(path, exportRoot string) (*ChatGormStore, error) {
	db, err := openSQLite(path)
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&ChatModel{}, &MessageModel{}, &UsageLogModel{}, &DocumentModel{}); err != nil {
		return nil, fmt.Errorf("auto migrate: %w", err)
	}
	return &ChatGormStore{db: db, exportRoot: exportRoot, recorder: audit.Nop{}}, nil
}

// SetRecorder installs the usage-log recorder. The recorder is invoked after
// each operation commits; its failures never affect the operation itself.
func (s *ChatGormStore) SetRecorder(rec audit.Recorder) {
	if rec == nil {
		rec = audit.Nop{}
	}
	s.recorder = rec
}

// AppendUsage inserts one usage-log row. Implements audit.Appender; the
// table is authoritative for usage statistics.
func (s *ChatGormStore) AppendUsage(entry domain.UsageLogEntry) error {
	model := UsageLogModel{
		UserID:    entry.UserID,
		Action:    entry.Action,
		Details:   entry.Details,
		CreatedAt: entry.CreatedAt,
	}
	return s.db.Create(&model).Error
}

// CreateChat inserts a new chat with created_at == updated_at. Returns
// ErrDuplicateKey when chatID already exists; the existing row is untouched.
func (s *ChatGormStore) CreateChat(userID, chatID, name, model string) (string, error) {
	now := time.Now().UTC()
	chat := ChatModel{
		ID:        chatID,
		UserID:    userID,
		Name:      name,
		Model:     model,
		CreatedAt: now,
		UpdatedAt: now,
	}
	err := s.db.Transaction(func(tx *gorm.DB) error {
		return tx.Create(&chat).Error
	})
	if err != nil {
		return "", translateError(err)
	}
	s.recorder.Record(userID, "Created chat", fmt.Sprintf("Chat: %s, Model: %s", name, model))
	return chatID, nil
}

// RenameChat updates the display name and bumps updated_at.
func (s *ChatGormStore) RenameChat(chatID, newName string) error {
	var userID string
	err := s.db.Transaction(func(tx *gorm.DB) error {
		chat, err := chatForUpdate(tx, chatID)
		if err != nil {
			return err
		}
		userID = chat.UserID
		return tx.Model(&ChatModel{}).Where("id = ?", chatID).
			Updates(map[string]any{"name": newName, "updated_at": time.Now().UTC()}).Error
	})
	if err != nil {
		return translateError(err)
	}
	s.recorder.Record(userID, "Renamed chat", fmt.Sprintf("Chat ID: %s, New name: %s", chatID, newName))
	return nil
}

// UpdateChatModel rebinds the chat to a different model identifier and
// bumps updated_at.
func (s *ChatGormStore) UpdateChatModel(chatID, newModel string) error {
	var userID string
	err := s.db.Transaction(func(tx *gorm.DB) error {
		chat, err := chatForUpdate(tx, chatID)
		if err != nil {
			return err
		}
		userID = chat.UserID
		return tx.Model(&ChatModel{}).Where("id = ?", chatID).
			Updates(map[string]any{"model": newModel, "updated_at": time.Now().UTC()}).Error
	})
	if err != nil {
		return translateError(err)
	}
	s.recorder.Record(userID, "Changed chat model", fmt.Sprintf("Chat ID: %s, New model: %s", chatID, newModel))
	return nil
}

// DeleteChat removes the chat and all of its messages in one transaction.
// Returns ErrNotFound when the chat is absent, distinguishing "nothing to
// do" from success.
func (s *ChatGormStore) DeleteChat(chatID string) error {
	var userID, name string
	err := s.db.Transaction(func(tx *gorm.DB) error {
		chat, err := chatForUpdate(tx, chatID)
		if err != nil {
			return err
		}
		userID, name = chat.UserID, chat.Name
		if err := tx.Delete(&MessageModel{}, "chat_id = ?", chatID).Error; err != nil {
			return err
		}
		return tx.Delete(&ChatModel{}, "id = ?", chatID).Error
	})
	if err != nil {
		return translateError(err)
	}
	s.recorder.Record(userID, "Deleted chat", fmt.Sprintf("Chat: %s (ID: %s)", name, chatID))
	return nil
}

// GetChat returns chat metadata.
func (s *ChatGormStore) GetChat(chatID string) (domain.Chat, bool, error) {
	var model ChatModel
	if err := s.db.First(&model, "id = ?", chatID).Error; err != nil {
		if translateError(err) == ErrNotFound {
			return domain.Chat{}, false, nil
		}
		return domain.Chat{}, false, err
	}
	return chatFromModel(model), true, nil
}

// ListChatsForUser returns the user's chats, most recently active first.
func (s *ChatGormStore) ListChatsForUser(userID string) ([]domain.Chat, error) {
	var models []ChatModel
	err := s.db.Where("user_id = ?", userID).
		Order("updated_at DESC").
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	chats := make([]domain.Chat, 0, len(models))
	for _, m := range models {
		chats = append(chats, chatFromModel(m))
	}
	s.recorder.Record(userID, "Loaded chats", fmt.Sprintf("Found %d chats", len(chats)))
	return chats, nil
}

// AppendMessage inserts a message and bumps the parent chat's updated_at to
// the same timestamp, in one transaction.
func (s *ChatGormStore) AppendMessage(chatID, role, content string) error {
	now := time.Now().UTC()
	var userID string
	err := s.db.Transaction(func(tx *gorm.DB) error {
		chat, err := chatForUpdate(tx, chatID)
		if err != nil {
			return err
		}
		userID = chat.UserID
		msg := MessageModel{
			ChatID:    chatID,
			Role:      role,
			Content:   content,
			CreatedAt: now,
		}
		if err := tx.Create(&msg).Error; err != nil {
			return err
		}
		return tx.Model(&ChatModel{}).Where("id = ?", chatID).
			Update("updated_at", now).Error
	})
	if err != nil {
		return translateError(err)
	}
	s.recorder.Record(userID, fmt.Sprintf("Added %s message", roleLabel(role)),
		fmt.Sprintf("Chat ID: %s, Content: %s", chatID, contentPreview(content)))
	return nil
}

// ListMessages returns the chat's messages in insertion order. A missing or
// empty chat yields an empty slice, not an error.
func (s *ChatGormStore) ListMessages(chatID string) ([]domain.Message, error) {
	var models []MessageModel
	err := s.db.Where("chat_id = ?", chatID).
		Order("id ASC").
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	messages := make([]domain.Message, 0, len(models))
	for _, m := range models {
		messages = append(messages, domain.Message{
			ID:        m.ID,
			ChatID:    m.ChatID,
			Role:      m.Role,
			Content:   m.Content,
			CreatedAt: m.CreatedAt,
		})
	}
	return messages, nil
}

// UploadDocument stores uploaded-document metadata.
func (s *ChatGormStore) UploadDocument(userID, name, path string) (string, error) {
	model := DocumentModel{
		ID:         uuid.NewString(),
		UserID:     userID,
		Name:       name,
		Path:       path,
		UploadedAt: time.Now().UTC(),
	}
	err := s.db.Transaction(func(tx *gorm.DB) error {
		return tx.Create(&model).Error
	})
	if err != nil {
		return "", translateError(err)
	}
	s.recorder.Record(userID, "Uploaded document", fmt.Sprintf("Document: %s", name))
	return model.ID, nil
}

// ListDocuments returns the user's documents, newest upload first.
func (s *ChatGormStore) ListDocuments(userID string) ([]domain.Document, error) {
	var models []DocumentModel
	err := s.db.Where("user_id = ?", userID).
		Order("uploaded_at DESC").
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	docs := make([]domain.Document, 0, len(models))
	for _, m := range models {
		docs = append(docs, domain.Document{
			ID:         m.ID,
			UserID:     m.UserID,
			Name:       m.Name,
			Path:       m.Path,
			UploadedAt: m.UploadedAt,
		})
	}
	return docs, nil
}

// DeleteDocument removes a document's metadata row.
func (s *ChatGormStore) DeleteDocument(documentID string) error {
	var userID, name string
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var doc DocumentModel
		if err := tx.First(&doc, "id = ?", documentID).Error; err != nil {
			return err
		}
		userID, name = doc.UserID, doc.Name
		return tx.Delete(&DocumentModel{}, "id = ?", documentID).Error
	})
	if err != nil {
		return translateError(err)
	}
	s.recorder.Record(userID, "Deleted document", fmt.Sprintf("Document: %s", name))
	return nil
}

func chatForUpdate(tx *gorm.DB, chatID string) (ChatModel, error) {
	var chat ChatModel
	if err := tx.First(&chat, "id = ?", chatID).Error; err != nil {
		return ChatModel{}, err
	}
	return chat, nil
}

func chatFromModel(m ChatModel) domain.Chat {
	return domain.Chat{
		ID:        m.ID,
		UserID:    m.UserID,
		Name:      m.Name,
		Model:     m.Model,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}

func roleLabel(role string) string {
	if role == domain.RoleUser {
		return "user"
	}
	return "assistant"
}

func contentPreview(content string) string {
	runes := []rune(content)
	if len(runes) > 30 {
		return string(runes[:30]) + "..."
	}
	return content
}
