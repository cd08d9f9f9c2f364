// Package app is the session controller: it owns the open chat surfaces of
// the logged-in user, dispatches generation work to background tasks, and
// keeps every store write on the calling goroutine.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"neurochat/pkg/ai"
	"neurochat/pkg/audit"
	"neurochat/pkg/docs"
	"neurochat/pkg/domain"
	"neurochat/pkg/storage"
	"neurochat/pkg/store"
	"neurochat/pkg/task"
)

const (
	defaultChatName    = "New Chat"
	documentExcerptMax = 4000
)

// Config holds the dependencies of one user session.
type Config struct {
	User      domain.User
	Chats     store.ChatStore
	Images    store.ImageStore
	Generator ai.TextGenerator
	Files     *storage.FileStore
	Backup    storage.ObjectStore
	Recorder  audit.Recorder

	DefaultModel    string
	GenerateTimeout time.Duration
}

// Controller mediates between the UI layer and the stores for one user.
type Controller struct {
	user      domain.User
	chats     store.ChatStore
	images    store.ImageStore
	generator ai.TextGenerator
	files     *storage.FileStore
	backup    storage.ObjectStore
	recorder  audit.Recorder

	defaultModel    string
	generateTimeout time.Duration

	mu       sync.Mutex
	surfaces map[string]*surface
	closed   bool
}

// surface is one open chat view. At most one task is outstanding per surface.
type surface struct {
	chatID  string
	pending *task.Task
}

// New wires a controller for the given user.
func New(cfg Config) (*Controller, error) {
	if strings.TrimSpace(cfg.User.ID) == "" {
		return nil, errors.New("controller requires a user")
	}
	if cfg.Chats == nil {
		return nil, errors.New("controller requires a chat store")
	}
	if cfg.Generator == nil {
		return nil, errors.New("controller requires a text generator")
	}
	if cfg.DefaultModel == "" {
		return nil, errors.New("controller requires a default model")
	}
	if cfg.GenerateTimeout <= 0 {
		cfg.GenerateTimeout = 120 * time.Second
	}
	if cfg.Recorder == nil {
		cfg.Recorder = audit.Nop{}
	}
	return &Controller{
		user:            cfg.User,
		chats:           cfg.Chats,
		images:          cfg.Images,
		generator:       cfg.Generator,
		files:           cfg.Files,
		backup:          cfg.Backup,
		recorder:        cfg.Recorder,
		defaultModel:    cfg.DefaultModel,
		generateTimeout: cfg.GenerateTimeout,
		surfaces:        make(map[string]*surface),
	}, nil
}

// EnsureChat returns the user's most recent chat, creating an initial one
// with the default model when none exist.
func (c *Controller) EnsureChat() (domain.Chat, error) {
	chats, err := c.chats.ListChatsForUser(c.user.ID)
	if err != nil {
		return domain.Chat{}, fmt.Errorf("list chats: %w", err)
	}
	if len(chats) > 0 {
		return chats[0], nil
	}
	return c.CreateChat(defaultChatName, "")
}

// CreateChat creates a chat owned by the session user. An empty model falls
// back to the configured default.
func (c *Controller) CreateChat(name, model string) (domain.Chat, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		name = defaultChatName
	}
	if strings.TrimSpace(model) == "" {
		model = c.defaultModel
	}
	chatID := uuid.NewString()
	if _, err := c.chats.CreateChat(c.user.ID, chatID, name, model); err != nil {
		return domain.Chat{}, err
	}
	chat, ok, err := c.chats.GetChat(chatID)
	if err != nil {
		return domain.Chat{}, err
	}
	if !ok {
		return domain.Chat{}, ErrChatNotFound
	}
	return chat, nil
}

// OpenChat verifies ownership and opens a surface for the chat. Opening an
// already-open chat is a no-op.
func (c *Controller) OpenChat(chatID string) error {
	if _, err := c.ownedChat(chatID); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	if _, ok := c.surfaces[chatID]; !ok {
		c.surfaces[chatID] = &surface{chatID: chatID}
	}
	return nil
}

// ListChats returns the user's chats, most recently updated first.
func (c *Controller) ListChats() ([]domain.Chat, error) {
	return c.chats.ListChatsForUser(c.user.ID)
}

// Messages returns the chat's messages in insertion order.
func (c *Controller) Messages(chatID string) ([]domain.Message, error) {
	if _, err := c.ownedChat(chatID); err != nil {
		return nil, err
	}
	return c.chats.ListMessages(chatID)
}

// RenameChat renames an owned chat.
func (c *Controller) RenameChat(chatID, newName string) error {
	if _, err := c.ownedChat(chatID); err != nil {
		return err
	}
	return c.chats.RenameChat(chatID, newName)
}

// ChangeChatModel switches the model used for subsequent responses.
func (c *Controller) ChangeChatModel(chatID, newModel string) error {
	if _, err := c.ownedChat(chatID); err != nil {
		return err
	}
	return c.chats.UpdateChatModel(chatID, newModel)
}

// DeleteChat tears down the chat's surface, then removes the chat and its
// messages.
func (c *Controller) DeleteChat(chatID string) error {
	if _, err := c.ownedChat(chatID); err != nil {
		return err
	}
	c.CloseSurface(chatID)
	return c.chats.DeleteChat(chatID)
}

// ExportChat writes the chat transcript to the export directory and returns
// the file path.
func (c *Controller) ExportChat(chatID string, format domain.ExportFormat) (string, error) {
	if _, err := c.ownedChat(chatID); err != nil {
		return "", err
	}
	path, err := c.chats.ExportChat(chatID, format)
	if err != nil {
		return "", err
	}
	c.backupArtifact(path, "exports")
	return path, nil
}

// Stats aggregates the user's message activity over the trailing window.
func (c *Controller) Stats(windowDays int) (domain.UsageStats, error) {
	return c.chats.UsageStatistics(c.user.ID, windowDays)
}

// SendMessage appends the user's message and dispatches the model call on a
// background task. The append happens before dispatch so the message is
// durable even if generation fails.
func (c *Controller) SendMessage(ctx context.Context, chatID, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return errors.New("message text required")
	}
	chat, err := c.ownedChat(chatID)
	if err != nil {
		return err
	}
	history, err := c.chats.ListMessages(chatID)
	if err != nil {
		return fmt.Errorf("load history: %w", err)
	}
	if err := c.chats.AppendMessage(chatID, domain.RoleUser, text); err != nil {
		return fmt.Errorf("save user message: %w", err)
	}
	prompt := buildPrompt(history, text)
	return c.dispatch(ctx, chatID, func(taskCtx context.Context) (string, error) {
		return c.generator.Generate(taskCtx, chat.Model, prompt)
	})
}

// QueryDocument appends the question as a user message and dispatches a task
// that extracts the document's text and asks the model about it.
func (c *Controller) QueryDocument(ctx context.Context, chatID, documentID, question string) error {
	question = strings.TrimSpace(question)
	if question == "" {
		return errors.New("question required")
	}
	chat, err := c.ownedChat(chatID)
	if err != nil {
		return err
	}
	doc, err := c.findDocument(documentID)
	if err != nil {
		return err
	}
	if err := c.chats.AppendMessage(chatID, domain.RoleUser, question); err != nil {
		return fmt.Errorf("save user message: %w", err)
	}
	return c.dispatch(ctx, chatID, func(taskCtx context.Context) (string, error) {
		text, err := docs.Extract(doc.Name, doc.Path)
		if err != nil {
			return "", fmt.Errorf("extract document: %w", err)
		}
		prompt := fmt.Sprintf("Document %q:\n%s\n\nQuestion: %s", doc.Name, docs.Excerpt(text, documentExcerptMax), question)
		return c.generator.Generate(taskCtx, chat.Model, prompt)
	})
}

// Await blocks for the surface's outstanding task, appends the assistant
// message on success, and returns the generated text. A typed gateway
// failure is returned as-is; nothing is appended for it.
func (c *Controller) Await(chatID string) (string, error) {
	c.mu.Lock()
	s, ok := c.surfaces[chatID]
	if !ok {
		c.mu.Unlock()
		return "", ErrSurfaceNotOpen
	}
	pending := s.pending
	c.mu.Unlock()
	if pending == nil {
		return "", ErrNoPendingTask
	}

	var outcome task.Outcome
	select {
	case outcome = <-pending.Outcome():
	case <-pending.Canceled():
		return "", context.Canceled
	}
	pending.Join()

	c.mu.Lock()
	if s.pending == pending {
		s.pending = nil
	}
	c.mu.Unlock()

	if outcome.Err != nil {
		return "", outcome.Err
	}
	if err := c.chats.AppendMessage(chatID, domain.RoleAssistant, outcome.Text); err != nil {
		return "", fmt.Errorf("save assistant message: %w", err)
	}
	return outcome.Text, nil
}

// CloseSurface cancels and joins the surface's outstanding task, then
// forgets the surface. Closing an unopened surface is a no-op.
func (c *Controller) CloseSurface(chatID string) {
	c.mu.Lock()
	var pending *task.Task
	if s, ok := c.surfaces[chatID]; ok {
		delete(c.surfaces, chatID)
		pending = s.pending
		s.pending = nil
	}
	c.mu.Unlock()
	if pending == nil {
		return
	}
	pending.Cancel()
	pending.Join()
}

// Close tears down every surface concurrently and marks the controller
// unusable. It must complete before the stores are released.
func (c *Controller) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	pendings := make([]*task.Task, 0, len(c.surfaces))
	for _, s := range c.surfaces {
		if s.pending != nil {
			pendings = append(pendings, s.pending)
			s.pending = nil
		}
	}
	c.surfaces = make(map[string]*surface)
	c.mu.Unlock()

	var g errgroup.Group
	for _, pending := range pendings {
		pending := pending
		g.Go(func() error {
			pending.Cancel()
			pending.Join()
			return nil
		})
	}
	return g.Wait()
}

// UploadDocument stores the document file and records its metadata.
func (c *Controller) UploadDocument(name string, r io.Reader) (domain.Document, error) {
	if c.files == nil {
		return domain.Document{}, errors.New("file storage not configured")
	}
	path, err := c.files.Save(c.user.ID, storage.KindDocument, name, r)
	if err != nil {
		return domain.Document{}, err
	}
	id, err := c.chats.UploadDocument(c.user.ID, name, path)
	if err != nil {
		return domain.Document{}, err
	}
	return domain.Document{ID: id, UserID: c.user.ID, Name: name, Path: path}, nil
}

// ListDocuments returns the user's uploaded documents.
func (c *Controller) ListDocuments() ([]domain.Document, error) {
	return c.chats.ListDocuments(c.user.ID)
}

// DeleteDocument removes the document's metadata and file.
func (c *Controller) DeleteDocument(documentID string) error {
	doc, err := c.findDocument(documentID)
	if err != nil {
		return err
	}
	if err := c.chats.DeleteDocument(documentID); err != nil {
		return err
	}
	if c.files != nil {
		if err := c.files.Remove(doc.Path); err != nil {
			slog.Warn("document file removal failed", "path", doc.Path, "err", err)
		}
	}
	return nil
}

// SaveGeneratedImage stores the image bytes and records the history entry.
func (c *Controller) SaveGeneratedImage(prompt, filename string, image io.Reader, params map[string]string) (domain.ImageRecord, error) {
	if c.files == nil || c.images == nil {
		return domain.ImageRecord{}, errors.New("image storage not configured")
	}
	path, err := c.files.Save(c.user.ID, storage.KindImage, filename, image)
	if err != nil {
		return domain.ImageRecord{}, err
	}
	record, err := c.images.InsertImage(c.user.ID, prompt, path, params)
	if err != nil {
		return domain.ImageRecord{}, err
	}
	c.recorder.Record(c.user.ID, "Generated image", prompt)
	c.backupArtifact(path, "images")
	return record, nil
}

// ListImages returns the user's generated-image history.
func (c *Controller) ListImages() ([]domain.ImageRecord, error) {
	if c.images == nil {
		return nil, errors.New("image storage not configured")
	}
	return c.images.ListImages(c.user.ID)
}

// DeleteImagesByPrompt removes every history entry matching the prompt,
// along with the stored files.
func (c *Controller) DeleteImagesByPrompt(prompt string) error {
	if c.images == nil {
		return errors.New("image storage not configured")
	}
	records, err := c.images.ListImages(c.user.ID)
	if err != nil {
		return err
	}
	if err := c.images.DeleteImages(c.user.ID, prompt); err != nil {
		return err
	}
	if c.files != nil {
		for _, record := range records {
			if record.Prompt != prompt {
				continue
			}
			if err := c.files.Remove(record.Path); err != nil {
				slog.Warn("image file removal failed", "path", record.Path, "err", err)
			}
		}
	}
	c.recorder.Record(c.user.ID, "Deleted image history", prompt)
	return nil
}

// EditImagePrompt replaces an image's prompt: the history entries for the
// old prompt are deleted, then the regenerated image is recorded under the
// new prompt.
func (c *Controller) EditImagePrompt(oldPrompt, newPrompt, filename string, image io.Reader, params map[string]string) (domain.ImageRecord, error) {
	if err := c.DeleteImagesByPrompt(oldPrompt); err != nil {
		return domain.ImageRecord{}, err
	}
	return c.SaveGeneratedImage(newPrompt, filename, image, params)
}

func (c *Controller) dispatch(ctx context.Context, chatID string, fn func(context.Context) (string, error)) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	s, ok := c.surfaces[chatID]
	if !ok {
		return ErrSurfaceNotOpen
	}
	if s.pending != nil && !s.pending.Done() {
		return ErrTaskInFlight
	}
	s.pending = task.Run(ctx, c.generateTimeout, fn)
	return nil
}

func (c *Controller) ownedChat(chatID string) (domain.Chat, error) {
	chat, ok, err := c.chats.GetChat(chatID)
	if err != nil {
		return domain.Chat{}, err
	}
	if !ok {
		return domain.Chat{}, ErrChatNotFound
	}
	if chat.UserID != c.user.ID {
		return domain.Chat{}, ErrChatForbidden
	}
	return chat, nil
}

func (c *Controller) findDocument(documentID string) (domain.Document, error) {
	items, err := c.chats.ListDocuments(c.user.ID)
	if err != nil {
		return domain.Document{}, err
	}
	for _, doc := range items {
		if doc.ID == documentID {
			return doc, nil
		}
	}
	return domain.Document{}, ErrDocumentNotFound
}

func (c *Controller) backupArtifact(path, prefix string) {
	if c.backup == nil {
		return
	}
	key := fmt.Sprintf("%s/%s/%s", c.user.ID, prefix, filenameOf(path))
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := storage.BackupFile(ctx, c.backup, path, key, "application/octet-stream"); err != nil {
		slog.Warn("artifact backup failed", "path", path, "err", err)
	}
}

func filenameOf(path string) string {
	if idx := strings.LastIndexAny(path, `/\`); idx >= 0 {
		return path[idx+1:]
	}
	return path
}

// buildPrompt renders the running transcript the way the model expects it:
// history lines, then the new user line.
func buildPrompt(history []domain.Message, userInput string) string {
	var sb strings.Builder
	for _, msg := range history {
		if msg.Role == domain.RoleUser {
			sb.WriteString("You: ")
		} else {
			sb.WriteString("AI: ")
		}
		sb.WriteString(msg.Content)
		sb.WriteString("\n")
	}
	sb.WriteString("You: ")
	sb.WriteString(userInput)
	return sb.String()
}
