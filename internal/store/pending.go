package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/synod-dev/synod/internal/council"
	"github.com/synod-dev/synod/internal/errors"
)

// The pending checkpoint is a sub-document beside the conversation file,
// written after every completion during an in-flight deliberation and
// removed on terminal events. Store satisfies council.PendingStore.

// LoadPending returns the checkpoint for a conversation.
func (s *Store) LoadPending(conversationID string) (*council.PendingState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.readPending(conversationID)
}

// MarkStarted records the start of a stage, discarding partial data from
// any previous attempt at the same stage.
func (s *Store) MarkStarted(conversationID string, state council.PendingState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	state.StageComplete = false
	state.Partial = nil
	state.UpdatedAt = time.Now()
	return s.writePending(conversationID, &state)
}

// AppendPartial adds one arrived response to the in-flight stage.
func (s *Store) AppendPartial(conversationID string, resp council.ParticipantResponse) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, err := s.readPending(conversationID)
	if err != nil {
		return err
	}
	state.Partial = append(state.Partial, resp)
	state.UpdatedAt = time.Now()
	return s.writePending(conversationID, state)
}

// MarkComplete seals the in-flight stage with its finished round.
func (s *Store) MarkComplete(conversationID string, round council.Round) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, err := s.readPending(conversationID)
	if err != nil {
		return err
	}
	state.Rounds = append(state.Rounds, round)
	state.StageComplete = true
	state.Partial = nil
	state.UpdatedAt = time.Now()
	return s.writePending(conversationID, state)
}

// ClearPending removes the checkpoint. Clearing an absent checkpoint is
// not an error.
func (s *Store) ClearPending(conversationID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := os.Remove(s.pendingPath(conversationID))
	if err != nil && !os.IsNotExist(err) {
		return errors.NewConversationError(conversationID, "clear-pending", err)
	}
	return nil
}

func (s *Store) readPending(conversationID string) (*council.PendingState, error) {
	data, err := os.ReadFile(s.pendingPath(conversationID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.ErrNoPendingState
		}
		return nil, errors.NewConversationError(conversationID, "load-pending", err)
	}

	var state council.PendingState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, errors.NewConversationError(conversationID, "load-pending",
			fmt.Errorf("%w: %v", errors.ErrConversationCorrupted, err))
	}
	return &state, nil
}

func (s *Store) writePending(conversationID string, state *council.PendingState) error {
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return errors.NewConversationError(conversationID, "save-pending", err)
	}
	dir := s.conversationDir(conversationID)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return errors.NewConversationError(conversationID, "save-pending", err)
	}
	if err := atomicWriteFile(filepath.Join(dir, pendingFileName), data, 0644); err != nil {
		return errors.NewConversationError(conversationID, "save-pending", err)
	}
	return nil
}

func (s *Store) pendingPath(conversationID string) string {
	return filepath.Join(s.conversationDir(conversationID), pendingFileName)
}
