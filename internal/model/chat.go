package model

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ChatStatus is the run state of a chat session.
type ChatStatus string

// Chat statuses.
const (
	ChatStatusIdle    ChatStatus = "Idle"
	ChatStatusRunning ChatStatus = "Running"
	ChatStatusStopped ChatStatus = "Stopped"
)

// ErrInvalidChatStatus is returned when decoding an unknown status.
var ErrInvalidChatStatus = errors.New("invalid chat status")

// Chat input validation errors.
var (
	ErrPromptRequired   = errors.New("prompt is required")
	ErrChatNameRequired = errors.New("name is required")
)

// Valid reports whether s is a known status.
func (s ChatStatus) Valid() bool {
	switch s {
	case ChatStatusIdle, ChatStatusRunning, ChatStatusStopped:
		return true
	}
	return false
}

// MarshalText implements encoding.TextMarshaler.
func (s ChatStatus) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidChatStatus, string(s))
	}
	return []byte(s), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *ChatStatus) UnmarshalText(text []byte) error {
	status := ChatStatus(text)
	if !status.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidChatStatus, string(text))
	}
	*s = status
	return nil
}

// ChatUserMessageInput is a message sent by a user to an agent or team.
type ChatUserMessageInput struct {
	Prompt                string     `json:"prompt"`
	IsPrivateChat         bool       `json:"is_private_chat"`
	LocalChatMessageRefID *string    `json:"local_chat_message_ref_id,omitempty"`
	AgentID               *uuid.UUID `json:"agent_id,omitempty"`
	TeamID                *uuid.UUID `json:"team_id,omitempty"`
	ParentID              *uuid.UUID `json:"parent_id,omitempty"`
}

// Validate checks required fields.
func (in *ChatUserMessageInput) Validate() error {
	if strings.TrimSpace(in.Prompt) == "" {
		return ErrPromptRequired
	}
	return nil
}

// ChatMessageInput is a message posted into an existing chat.
type ChatMessageInput struct {
	Prompt                string     `json:"prompt"`
	ChatID                *uuid.UUID `json:"chat_id,omitempty"`
	LocalChatMessageRefID *string    `json:"local_chat_message_ref_id,omitempty"`
	ParentID              *uuid.UUID `json:"parent_id,omitempty"`
}

// Validate checks required fields.
func (in *ChatMessageInput) Validate() error {
	if strings.TrimSpace(in.Prompt) == "" {
		return ErrPromptRequired
	}
	return nil
}

// ChatInput creates a chat with an agent or a team.
type ChatInput struct {
	Name    string     `json:"name"`
	AgentID *uuid.UUID `json:"agent_id,omitempty"`
	TeamID  *uuid.UUID `json:"team_id,omitempty"`
}

// Validate checks required fields.
func (in *ChatInput) Validate() error {
	if strings.TrimSpace(in.Name) == "" {
		return ErrChatNameRequired
	}
	return nil
}

// ChatOutput describes a chat.
type ChatOutput struct {
	Name         string         `json:"name"`
	AgentID      *uuid.UUID     `json:"agent_id,omitempty"`
	Agent        map[string]any `json:"agent,omitempty"`
	TeamID       *uuid.UUID     `json:"team_id,omitempty"`
	Team         map[string]any `json:"team,omitempty"`
	SenderUserID uuid.UUID      `json:"sender_user_id"`
	SenderUser   map[string]any `json:"sender_user,omitempty"`
	AccountID    uuid.UUID      `json:"account_id"`
}

// ChatMessageOutput is a stored chat message.
type ChatMessageOutput struct {
	ID              uuid.UUID        `json:"id"`
	ParentID        *uuid.UUID       `json:"parent_id,omitempty"`
	Parent          map[string]any   `json:"parent,omitempty"`
	SessionID       string           `json:"session_id"`
	AgentID         *uuid.UUID       `json:"agent_id,omitempty"`
	Agent           map[string]any   `json:"agent,omitempty"`
	TeamID          *uuid.UUID       `json:"team_id,omitempty"`
	Team            map[string]any   `json:"team,omitempty"`
	SenderUserID    uuid.UUID        `json:"sender_user_id"`
	SenderUser      map[string]any   `json:"sender_user,omitempty"`
	SenderAccountID uuid.UUID        `json:"sender_account_id"`
	Message         map[string]any   `json:"message"`
	Thoughts        []map[string]any `json:"thoughts,omitempty"`
	CreatedOn       time.Time        `json:"created_on"`
}

// NegotiateOutput carries the realtime connection URL for a chat client.
type NegotiateOutput struct {
	URL string `json:"url"`
}

// ChatStopInput stops a running chat.
type ChatStopInput struct {
	IsPrivateChat bool       `json:"is_private_chat"`
	AgentID       *uuid.UUID `json:"agent_id,omitempty"`
	TeamID        *uuid.UUID `json:"team_id,omitempty"`
}

// Validate is a no-op; ChatStopInput has no required fields.
func (in *ChatStopInput) Validate() error {
	return nil
}
