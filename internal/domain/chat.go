package domain

import (
	"fmt"
	"time"
)

type Role string

const (
	RoleUser Role = "user"
	RoleBot  Role = "bot"
)

// ChatMessage is a single immutable chat turn. The JSON shape matches what
// the web client stores under conversations_<userId>.
type ChatMessage struct {
	ID      string `json:"id"`
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// NewChatMessage builds a message with a time-based id of the form
// <unix-millis>-<role>.
func NewChatMessage(now time.Time, role Role, content string) ChatMessage {
	return ChatMessage{
		ID:      fmt.Sprintf("%d-%s", now.UnixMilli(), role),
		Role:    role,
		Content: content,
	}
}
