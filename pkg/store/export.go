package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"neurochat/pkg/domain"
)

// appDisplayName labels assistant messages in text exports.
const appDisplayName = "NeuroChat"

type exportMessage struct {
	Role      string `json:"role"`
	Content   string `json:"content"`
	Timestamp string `json:"timestamp"`
}

type exportDocument struct {
	ChatID     string          `json:"chat_id"`
	ChatName   string          `json:"chat_name"`
	Model      string          `json:"model"`
	ExportedAt string          `json:"exported_at"`
	Messages   []exportMessage `json:"messages"`
}

// ExportChat serializes chat metadata plus ordered messages to a plain-text
// or JSON file under the owner's export directory and returns the path.
// The filename embeds the sanitized chat name and a timestamp so repeated
// exports never collide. Returns ErrNotFound when the chat is absent.
func (s *ChatGormStore) ExportChat(chatID string, format domain.ExportFormat) (string, error) {
	var chat ChatModel
	if err := s.db.First(&chat, "id = ?", chatID).Error; err != nil {
		if translateError(err) == ErrNotFound {
			return "", ErrNotFound
		}
		return "", err
	}
	messages, err := s.ListMessages(chatID)
	if err != nil {
		return "", err
	}

	exportDir := filepath.Join(s.exportRoot, chat.UserID, "exports")
	if err := os.MkdirAll(exportDir, 0o755); err != nil {
		return "", fmt.Errorf("create export dir: %w", err)
	}

	now := time.Now().UTC()
	base := fmt.Sprintf("%s_%s", sanitizeFilename(chat.Name), now.Format("20060102_150405"))

	var path string
	switch format {
	case domain.ExportJSON:
		path = filepath.Join(exportDir, base+".json")
		err = writeJSONExport(path, chat, messages, now)
	default:
		path = filepath.Join(exportDir, base+".txt")
		err = writeTextExport(path, chat, messages, now)
	}
	if err != nil {
		return "", err
	}

	s.recorder.Record(chat.UserID, "Exported chat",
		fmt.Sprintf("Chat: %s, Format: %s, Path: %s", chat.Name, format, path))
	return path, nil
}

func writeJSONExport(path string, chat ChatModel, messages []domain.Message, now time.Time) error {
	doc := exportDocument{
		ChatID:     chat.ID,
		ChatName:   chat.Name,
		Model:      chat.Model,
		ExportedAt: now.Format(time.RFC3339),
		Messages:   make([]exportMessage, 0, len(messages)),
	}
	for _, msg := range messages {
		doc.Messages = append(doc.Messages, exportMessage{
			Role:      msg.Role,
			Content:   msg.Content,
			Timestamp: msg.CreatedAt.Format(time.RFC3339),
		})
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal export: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write export: %w", err)
	}
	return nil
}

func writeTextExport(path string, chat ChatModel, messages []domain.Message, now time.Time) error {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Chat: %s\n", chat.Name))
	sb.WriteString(fmt.Sprintf("Model: %s\n", chat.Model))
	sb.WriteString(fmt.Sprintf("Exported: %s\n", now.Format(time.RFC3339)))
	sb.WriteString(strings.Repeat("-", 50) + "\n\n")
	for _, msg := range messages {
		who := appDisplayName
		if msg.Role == domain.RoleUser {
			who = "You"
		}
		sb.WriteString(fmt.Sprintf("%s (%s):\n%s\n\n", who, msg.CreatedAt.Format(time.RFC3339), msg.Content))
	}
	if err := os.WriteFile(path, []byte(sb.String()), 0o644); err != nil {
		return fmt.Errorf("write export: %w", err)
	}
	return nil
}

func sanitizeFilename(name string) string {
	name = strings.TrimSpace(name)
	name = strings.ReplaceAll(name, " ", "_")
	name = strings.ReplaceAll(name, string(os.PathSeparator), "_")
	name = strings.ReplaceAll(name, "/", "_")
	name = filepath.Base(name)
	if name == "" || name == "." {
		return "chat"
	}
	return name
}
