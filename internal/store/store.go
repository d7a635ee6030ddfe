// Package store persists conversations on the local filesystem. Each
// conversation is a directory holding a JSON document, an optional pending
// checkpoint for an in-flight deliberation, and an advisory lock file. All
// writes are atomic: data lands in a temp file first and is renamed into
// place, so a reader never observes a partially-written document.
package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/synod-dev/synod/internal/council"
	"github.com/synod-dev/synod/internal/errors"
	"github.com/synod-dev/synod/internal/logging"
)

const (
	conversationFileName = "conversation.json"
	pendingFileName      = "pending.json"

	// maxTitleLen bounds titles derived from the first user message.
	maxTitleLen = 60
)

// Message is one entry in a conversation: a user question or an assistant
// answer carrying the full deliberation session that produced it.
type Message struct {
	Role      string           `json:"role"`
	Content   string           `json:"content"`
	Session   *council.Session `json:"session,omitempty"`
	CreatedAt time.Time        `json:"created_at"`
}

// Conversation is the stored document.
type Conversation struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Messages  []Message `json:"messages"`
}

// Summary is the listing view of a conversation.
type Summary struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	MessageCount int       `json:"message_count"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Store is a file-backed conversation store. It serializes its own access;
// cross-process exclusion is the advisory lock's job.
type Store struct {
	baseDir string
	logger  *logging.Logger
	mu      sync.RWMutex
}

// New creates a Store rooted at baseDir, creating the directory if needed.
func New(baseDir string, logger *logging.Logger) (*Store, error) {
	if logger == nil {
		logger = logging.NopLogger()
	}
	dir := filepath.Join(baseDir, "conversations")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}
	return &Store{baseDir: dir, logger: logger}, nil
}

// Create starts a new conversation titled after the first user content.
func (s *Store) Create(firstContent string) (*Conversation, error) {
	now := time.Now()
	conv := &Conversation{
		ID:        uuid.NewString(),
		Title:     DeriveTitle(firstContent),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.Save(conv); err != nil {
		return nil, err
	}
	return conv, nil
}

// Load reads a conversation by ID. Documents stored in the older
// stage-keyed shape are normalized into the canonical round model here,
// once, so nothing downstream ever branches on shape.
func (s *Store) Load(id string) (*Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.load(id)
}

func (s *Store) load(id string) (*Conversation, error) {
	data, err := os.ReadFile(s.conversationPath(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NewConversationError(id, "load", errors.ErrConversationNotFound)
		}
		return nil, errors.NewConversationError(id, "load", err)
	}

	conv, err := decodeConversation(data)
	if err != nil {
		return nil, errors.NewConversationError(id, "load", fmt.Errorf("%w: %v", errors.ErrConversationCorrupted, err))
	}
	return conv, nil
}

// Save persists a conversation atomically, bumping UpdatedAt.
func (s *Store) Save(conv *Conversation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.save(conv)
}

func (s *Store) save(conv *Conversation) error {
	if conv.ID == "" {
		return errors.NewConversationError("", "save", errors.ErrInvalidInput)
	}
	conv.UpdatedAt = time.Now()

	data, err := json.MarshalIndent(conv, "", "  ")
	if err != nil {
		return errors.NewConversationError(conv.ID, "save", err)
	}

	dir := s.conversationDir(conv.ID)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return errors.NewConversationError(conv.ID, "save", err)
	}
	if err := atomicWriteFile(filepath.Join(dir, conversationFileName), data, 0644); err != nil {
		return errors.NewConversationError(conv.ID, "save", err)
	}
	return nil
}

// AppendMessage loads, appends, and saves under one write lock, so two
// in-process appenders cannot lose each other's message.
func (s *Store) AppendMessage(id string, msg Message) (*Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, err := s.load(id)
	if err != nil {
		return nil, err
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now()
	}
	conv.Messages = append(conv.Messages, msg)
	if err := s.save(conv); err != nil {
		return nil, err
	}
	return conv, nil
}

// List returns summaries for every stored conversation, most recently
// updated first. Unreadable entries are skipped, not fatal: one corrupted
// document must not hide the rest.
func (s *Store) List() ([]Summary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read store directory: %w", err)
	}

	var summaries []Summary
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		data, err := os.ReadFile(filepath.Join(s.baseDir, entry.Name(), conversationFileName))
		if err != nil {
			continue
		}
		conv, err := decodeConversation(data)
		if err != nil {
			s.logger.Warn("skipping unreadable conversation", "id", entry.Name(), "error", err)
			continue
		}
		summaries = append(summaries, Summary{
			ID:           conv.ID,
			Title:        conv.Title,
			MessageCount: len(conv.Messages),
			UpdatedAt:    conv.UpdatedAt,
		})
	}

	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].UpdatedAt.After(summaries[j].UpdatedAt)
	})
	return summaries, nil
}

// Delete removes a conversation and everything under it.
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	dir := s.conversationDir(id)
	if _, err := os.Stat(dir); err != nil {
		if os.IsNotExist(err) {
			return errors.NewConversationError(id, "delete", errors.ErrConversationNotFound)
		}
		return errors.NewConversationError(id, "delete", err)
	}
	if err := os.RemoveAll(dir); err != nil {
		return errors.NewConversationError(id, "delete", err)
	}
	return nil
}

// Exists reports whether a conversation is stored without loading it.
func (s *Store) Exists(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, err := os.Stat(s.conversationPath(id))
	return err == nil
}

// DeriveTitle produces a conversation title from its first user content:
// the first line, truncated on a word boundary where possible.
func DeriveTitle(content string) string {
	title := strings.TrimSpace(content)
	if i := strings.IndexByte(title, '\n'); i >= 0 {
		title = strings.TrimSpace(title[:i])
	}
	if title == "" {
		return "New conversation"
	}
	if len(title) <= maxTitleLen {
		return title
	}
	cut := title[:maxTitleLen]
	// Back off a mid-rune cut before looking for a word boundary.
	for len(cut) > 0 && !utf8.ValidString(cut) {
		cut = cut[:len(cut)-1]
	}
	if i := strings.LastIndexByte(cut, ' '); i > maxTitleLen/2 {
		cut = cut[:i]
	}
	return cut + "…"
}

func (s *Store) conversationDir(id string) string {
	return filepath.Join(s.baseDir, id)
}

func (s *Store) conversationPath(id string) string {
	return filepath.Join(s.conversationDir(id), conversationFileName)
}

// atomicWriteFile writes data to a temp file in the target's directory,
// syncs it, then renames it into place.
func atomicWriteFile(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)

	tmpFile, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmpFile.Write(data); err != nil {
		tmpFile.Close()
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmpFile.Sync(); err != nil {
		tmpFile.Close()
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Chmod(tmpPath, perm); err != nil {
		return fmt.Errorf("failed to set permissions: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	success = true
	return nil
}
