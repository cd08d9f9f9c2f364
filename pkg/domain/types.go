package domain

import "time"

// Message roles. Role alternation is not enforced; consecutive same-role
// messages are valid (e.g. after a prompt edit).
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ExportFormat names a chat export rendering.
type ExportFormat string

const (
	ExportText ExportFormat = "txt"
	ExportJSON ExportFormat = "json"
)

// User is an account record. Username, email, and phone are each
// globally unique.
type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	Phone        string    `json:"phone"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Chat is a named conversation owned by one user and bound to a model
// identifier. UpdatedAt advances on every message insert, rename, and
// model change.
type Chat struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Name      string    `json:"name"`
	Model     string    `json:"model"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Message belongs to exactly one chat and is totally ordered within it
// by its auto-assigned ID.
type Message struct {
	ID        int64     `json:"id"`
	ChatID    string    `json:"chatId"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"timestamp"`
}

// UsageLogEntry is one append-only audit record.
type UsageLogEntry struct {
	ID        int64     `json:"id"`
	UserID    string    `json:"userId"`
	Action    string    `json:"action"`
	Details   string    `json:"details,omitempty"`
	CreatedAt time.Time `json:"timestamp"`
}

// ImageRecord is one generated-image history entry.
type ImageRecord struct {
	ID        string            `json:"id"`
	UserID    string            `json:"userId"`
	Prompt    string            `json:"prompt"`
	Path      string            `json:"imagePath"`
	Params    map[string]string `json:"params,omitempty"`
	CreatedAt time.Time         `json:"timestamp"`
}

// Document is uploaded-document metadata. The file itself lives in the
// per-user file store.
type Document struct {
	ID         string    `json:"id"`
	UserID     string    `json:"userId"`
	Name       string    `json:"name"`
	Path       string    `json:"path"`
	UploadedAt time.Time `json:"uploadedAt"`
}

// UsageStats aggregates message activity for one user over a trailing
// window. Absent map keys mean zero.
type UsageStats struct {
	UserMessages      int            `json:"user_messages"`
	AssistantMessages int            `json:"assistant_messages"`
	TotalMessages     int            `json:"total_messages"`
	ModelUsage        map[string]int `json:"model_usage"`
	DailyUsage        map[string]int `json:"daily_usage"`
	PeriodDays        int            `json:"period_days"`
}
