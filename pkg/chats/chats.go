// Package chats stores chat sessions as JSON files with a metadata index.
//
// Each chat is one <id>.json file of messages; metadata.json is the ordered
// index, most recently active first.
package chats

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/documind/documind/pkg/query"
)

// ErrNotFound is returned for unknown chat IDs.
var ErrNotFound = errors.New("chat not found")

// Meta is one entry in the chat index.
type Meta struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
	UserID    int64  `json:"user_id"`
	Username  string `json:"username,omitempty"`
}

// Message is one chat turn. Assistant messages carry the citation fields.
type Message struct {
	Sender          string          `json:"sender"`
	Text            string          `json:"text"`
	Timestamp       string          `json:"timestamp"`
	CitedFiles      []string        `json:"cited_files,omitempty"`
	ConfidenceScore *int            `json:"confidence_score,omitempty"`
	SourceSnippets  []query.Snippet `json:"source_snippets,omitempty"`
}

// Store persists chats under one directory.
type Store struct {
	dir    string
	logger *slog.Logger

	mu sync.Mutex
}

// Open creates the chats directory and metadata index when absent.
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create chats directory: %w", err)
	}
	s := &Store{
		dir:    dir,
		logger: slog.Default().With("component", "chats"),
	}
	if _, err := os.Stat(s.metadataPath()); os.IsNotExist(err) {
		if err := s.saveMetadata([]Meta{}); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Create starts a new chat and prepends it to the index.
func (s *Store) Create(title string, userID int64) (*Meta, error) {
	if title == "" {
		title = "New Chat"
	}
	now := time.Now().Format(time.RFC3339)
	meta := Meta{
		ID:        uuid.NewString(),
		Title:     title,
		CreatedAt: now,
		UpdatedAt: now,
		UserID:    userID,
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	index, err := s.loadMetadata()
	if err != nil {
		return nil, err
	}
	index = append([]Meta{meta}, index...)
	if err := s.saveMetadata(index); err != nil {
		return nil, err
	}
	if err := s.writeMessages(meta.ID, []Message{}); err != nil {
		return nil, err
	}
	return &meta, nil
}

// ForUser lists a user's chats, most recently active first.
func (s *Store) ForUser(userID int64) ([]Meta, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	index, err := s.loadMetadata()
	if err != nil {
		return nil, err
	}
	chats := make([]Meta, 0)
	for _, meta := range index {
		if meta.UserID == userID {
			chats = append(chats, meta)
		}
	}
	return chats, nil
}

// All lists every chat with usernames resolved through the given lookup.
func (s *Store) All(resolveUsername func(userID int64) string) ([]Meta, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	index, err := s.loadMetadata()
	if err != nil {
		return nil, err
	}
	for i := range index {
		index[i].Username = "Unknown"
		if resolveUsername != nil {
			if name := resolveUsername(index[i].UserID); name != "" {
				index[i].Username = name
			}
		}
	}
	return index, nil
}

// OwnerOf returns the chat's owning user.
func (s *Store) OwnerOf(chatID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	index, err := s.loadMetadata()
	if err != nil {
		return 0, err
	}
	for _, meta := range index {
		if meta.ID == chatID {
			return meta.UserID, nil
		}
	}
	return 0, ErrNotFound
}

// Delete removes a chat file and its index entry.
func (s *Store) Delete(chatID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.chatPath(chatID)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove chat file: %w", err)
	}

	index, err := s.loadMetadata()
	if err != nil {
		return err
	}
	kept := index[:0]
	for _, meta := range index {
		if meta.ID != chatID {
			kept = append(kept, meta)
		}
	}
	return s.saveMetadata(kept)
}

// Messages returns a chat's history; unknown chats return an empty list.
func (s *Store) Messages(chatID string) ([]Message, error) {
	data, err := os.ReadFile(s.chatPath(chatID))
	if os.IsNotExist(err) {
		return []Message{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read chat %s: %w", chatID, err)
	}

	var messages []Message
	if err := json.Unmarshal(data, &messages); err != nil {
		return nil, fmt.Errorf("corrupt chat file %s: %w", chatID, err)
	}
	return messages, nil
}

// SaveMessages replaces a chat's history and moves it to the top of the
// index with a fresh updated_at.
func (s *Store) SaveMessages(chatID string, messages []Message) error {
	if err := s.writeMessages(chatID, messages); err != nil {
		return err
	}
	return s.touch(chatID)
}

// UpdateTitle renames a chat.
func (s *Store) UpdateTitle(chatID, title string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	index, err := s.loadMetadata()
	if err != nil {
		return err
	}
	for i := range index {
		if index[i].ID == chatID {
			index[i].Title = title
			return s.saveMetadata(index)
		}
	}
	return ErrNotFound
}

// RecordExchange appends a question and its answer to a chat. The first
// exchange titles the chat from the question.
func (s *Store) RecordExchange(chatID, question string, resp *query.Response) error {
	messages, err := s.Messages(chatID)
	if err != nil {
		return err
	}

	now := time.Now().Format(time.RFC3339)
	confidence := resp.ConfidenceScore
	messages = append(messages,
		Message{Sender: "user", Text: question, Timestamp: now},
		Message{
			Sender:          "assistant",
			Text:            resp.Answer,
			Timestamp:       now,
			CitedFiles:      resp.CitedFiles,
			ConfidenceScore: &confidence,
			SourceSnippets:  resp.SourceSnippets,
		},
	)
	if err := s.SaveMessages(chatID, messages); err != nil {
		return err
	}

	if len(messages) <= 2 {
		if err := s.UpdateTitle(chatID, autoTitle(question)); err != nil && !errors.Is(err, ErrNotFound) {
			return err
		}
	}
	return nil
}

func autoTitle(question string) string {
	if len(question) > 30 {
		return question[:30] + "..."
	}
	return question
}

func (s *Store) touch(chatID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	index, err := s.loadMetadata()
	if err != nil {
		return err
	}
	for i := range index {
		if index[i].ID != chatID {
			continue
		}
		meta := index[i]
		meta.UpdatedAt = time.Now().Format(time.RFC3339)
		index = append(index[:i], index[i+1:]...)
		index = append([]Meta{meta}, index...)
		return s.saveMetadata(index)
	}
	return nil
}

func (s *Store) metadataPath() string {
	return filepath.Join(s.dir, "metadata.json")
}

func (s *Store) chatPath(chatID string) string {
	return filepath.Join(s.dir, chatID+".json")
}

func (s *Store) loadMetadata() ([]Meta, error) {
	data, err := os.ReadFile(s.metadataPath())
	if err != nil {
		return nil, fmt.Errorf("failed to read chat index: %w", err)
	}
	var index []Meta
	if err := json.Unmarshal(data, &index); err != nil {
		return nil, fmt.Errorf("corrupt chat index: %w", err)
	}
	return index, nil
}

func (s *Store) saveMetadata(index []Meta) error {
	data, err := json.MarshalIndent(index, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(s.metadataPath(), data, 0o644); err != nil {
		return fmt.Errorf("failed to write chat index: %w", err)
	}
	return nil
}

func (s *Store) writeMessages(chatID string, messages []Message) error {
	data, err := json.MarshalIndent(messages, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(s.chatPath(chatID), data, 0o644); err != nil {
		return fmt.Errorf("failed to write chat %s: %w", chatID, err)
	}
	return nil
}

// JSONExport is the JSON export envelope.
type JSONExport struct {
	ExportDate    string    `json:"export_date"`
	TotalMessages int       `json:"total_messages"`
	ChatHistory   []Message `json:"chat_history"`
}

// ExportJSON wraps a history for download.
func ExportJSON(messages []Message) JSONExport {
	return JSONExport{
		ExportDate:    time.Now().Format(time.RFC3339),
		TotalMessages: len(messages),
		ChatHistory:   messages,
	}
}

// ExportText renders a history as plain text.
func ExportText(messages []Message) string {
	var b strings.Builder
	b.WriteString("DocuMind AI - Chat History\n")
	b.WriteString("Exported: " + time.Now().Format("2006-01-02 15:04:05") + "\n")
	b.WriteString(strings.Repeat("=", 60) + "\n\n")

	for _, msg := range messages {
		timestamp := msg.Timestamp
		if timestamp == "" {
			timestamp = "N/A"
		}
		sender := msg.Sender
		if sender == "" {
			sender = "Unknown"
		}
		fmt.Fprintf(&b, "[%s] %s\n%s\n", timestamp, sender, msg.Text)
		if msg.ConfidenceScore != nil {
			fmt.Fprintf(&b, "Confidence: %d%%\n", *msg.ConfidenceScore)
		}
		b.WriteString(strings.Repeat("-", 60) + "\n\n")
	}
	return b.String()
}
