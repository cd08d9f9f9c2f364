package store

import (
	"neurochat/pkg/domain"
)

// IdentityStore persists user records and resolves login identifiers.
type IdentityStore interface {
	CreateUser(username, email, phone, passwordHash string) (domain.User, error)
	GetUserByIdentifier(identifier string) (domain.User, bool, error)
	GetUserByID(id string) (domain.User, bool, error)
	UpdatePassword(userID, passwordHash string) error
}

// ChatStore persists chats, their ordered messages, uploaded-document
// metadata, and the usage log, and produces exports and statistics.
type ChatStore interface {
	CreateChat(userID, chatID, name, model string) (string, error)
	RenameChat(chatID, newName string) error
	UpdateChatModel(chatID, newModel string) error
	DeleteChat(chatID string) error
	GetChat(chatID string) (domain.Chat, bool, error)
	ListChatsForUser(userID string) ([]domain.Chat, error)
	AppendMessage(chatID, role, content string) error
	ListMessages(chatID string) ([]domain.Message, error)
	ExportChat(chatID string, format domain.ExportFormat) (string, error)
	UsageStatistics(userID string, windowDays int) (domain.UsageStats, error)

	UploadDocument(userID, name, path string) (string, error)
	ListDocuments(userID string) ([]domain.Document, error)
	DeleteDocument(documentID string) error
}

// ImageStore persists generated-image history, independent of chat storage.
type ImageStore interface {
	InsertImage(userID, prompt, path string, params map[string]string) (domain.ImageRecord, error)
	ListImages(userID string) ([]domain.ImageRecord, error)
	// DeleteImages removes every record matching (userID, prompt).
	DeleteImages(userID, prompt string) error
}
