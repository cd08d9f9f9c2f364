package store

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"neurochat/pkg/domain"
)

func TestExportChatJSONRoundTrip(t *testing.T) {
	s := newTestChatStore(t)
	mustCreateChat(t, s, "user-1", "chat-1", "Trip Planning", "mistral:7b")
	if err := s.AppendMessage("chat-1", domain.RoleUser, "Where should I go?"); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := s.AppendMessage("chat-1", domain.RoleAssistant, "Try Lisbon."); err != nil {
		t.Fatalf("append: %v", err)
	}

	path, err := s.ExportChat("chat-1", domain.ExportJSON)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if filepath.Ext(path) != ".json" {
		t.Fatalf("expected .json file, got %s", path)
	}
	if !strings.Contains(path, filepath.Join("user-1", "exports")) {
		t.Fatalf("export should live under the owner's export dir: %s", path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read export: %v", err)
	}
	var doc exportDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("unmarshal export: %v", err)
	}
	if doc.ChatID != "chat-1" || doc.ChatName != "Trip Planning" || doc.Model != "mistral:7b" {
		t.Fatalf("unexpected export header %+v", doc)
	}

	msgs, err := s.ListMessages("chat-1")
	if err != nil {
		t.Fatalf("list messages: %v", err)
	}
	if len(doc.Messages) != len(msgs) {
		t.Fatalf("export has %d messages, store has %d", len(doc.Messages), len(msgs))
	}
	for i, m := range doc.Messages {
		if m.Role != msgs[i].Role || m.Content != msgs[i].Content {
			t.Fatalf("message %d mismatch: export %+v store %+v", i, m, msgs[i])
		}
	}
}

func TestExportChatTextFormat(t *testing.T) {
	s := newTestChatStore(t)
	mustCreateChat(t, s, "user-1", "chat-1", "Notes", "mistral:7b")
	if err := s.AppendMessage("chat-1", domain.RoleUser, "hello"); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := s.AppendMessage("chat-1", domain.RoleAssistant, "hi!"); err != nil {
		t.Fatalf("append: %v", err)
	}

	path, err := s.ExportChat("chat-1", domain.ExportText)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read export: %v", err)
	}
	text := string(data)
	if !strings.HasPrefix(text, "Chat: Notes\nModel: mistral:7b\n") {
		t.Fatalf("unexpected header:\n%s", text)
	}
	if !strings.Contains(text, strings.Repeat("-", 50)) {
		t.Fatalf("missing separator line")
	}
	if !strings.Contains(text, "You (") || !strings.Contains(text, "NeuroChat (") {
		t.Fatalf("missing sender labels:\n%s", text)
	}
	if !strings.Contains(text, "hello") || !strings.Contains(text, "hi!") {
		t.Fatalf("missing message content:\n%s", text)
	}
}

func TestExportChatMissing(t *testing.T) {
	s := newTestChatStore(t)
	if _, err := s.ExportChat("ghost", domain.ExportJSON); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestExportFilenameSanitized(t *testing.T) {
	s := newTestChatStore(t)
	mustCreateChat(t, s, "user-1", "chat-1", "my/evil chat", "mistral:7b")
	path, err := s.ExportChat("chat-1", domain.ExportText)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	base := filepath.Base(path)
	if strings.ContainsAny(base, "/ ") {
		t.Fatalf("filename not sanitized: %s", base)
	}
	if !strings.HasPrefix(base, "my_evil_chat_") {
		t.Fatalf("unexpected export filename %s", base)
	}
}
