package store

import (
	"time"

	"gorm.io/datatypes"
)

// GORM models used for persistence.
type UserModel struct {
	ID           string    `gorm:"primaryKey"`
	Username     string    `gorm:"uniqueIndex;not null"`
	Email        string    `gorm:"uniqueIndex;not null"`
	Phone        string    `gorm:"uniqueIndex;not null"`
	PasswordHash string    `gorm:"not null"`
	CreatedAt    time.Time `gorm:"not null"`
}

func (UserModel) TableName() string { return "users" }

type ChatModel struct {
	ID        string    `gorm:"primaryKey"`
	UserID    string    `gorm:"not null;index"`
	Name      string    `gorm:"not null"`
	Model     string    `gorm:"not null"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null;index"`
}

func (ChatModel) TableName() string { return "chats" }

type MessageModel struct {
	ID        int64     `gorm:"primaryKey;autoIncrement"`
	ChatID    string    `gorm:"not null;index"`
	Role      string    `gorm:"not null"`
	Content   string    `gorm:"not null"`
	CreatedAt time.Time `gorm:"not null;index"`
}

func (MessageModel) TableName() string { return "messages" }

type UsageLogModel struct {
	ID        int64  `gorm:"primaryKey;autoIncrement"`
	UserID    string `gorm:"not null;index"`
	Action    string `gorm:"not null"`
	Details   string
	CreatedAt time.Time `gorm:"not null;index"`
}

func (UsageLogModel) TableName() string { return "usage_logs" }

type DocumentModel struct {
	ID         string    `gorm:"primaryKey"`
	UserID     string    `gorm:"not null;index"`
	Name       string    `gorm:"not null"`
	Path       string    `gorm:"not null"`
	UploadedAt time.Time `gorm:"not null;index"`
}

func (DocumentModel) TableName() string { return "documents" }

type ImageModel struct {
	ID        string `gorm:"primaryKey"`
	UserID    string `gorm:"not null;index"`
	Prompt    string `gorm:"not null;index"`
	Path      string `gorm:"not null"`
	Params    datatypes.JSON
	CreatedAt time.Time `gorm:"not null"`
}

func (ImageModel) TableName() string { return "image_history" }
