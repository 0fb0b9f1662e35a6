package domain

import "strings"

const (
	DefaultConversationTitle = "New Conversation"
	titleMaxRunes            = 30
)

// Conversation is a titled, ordered sequence of chat messages owned by one user.
type Conversation struct {
	ID       string        `json:"id"`
	Title    string        `json:"title"`
	Messages []ChatMessage `json:"messages"`
}

// Profile is the display identity kept under the userInfo key.
type Profile struct {
	Username string `json:"username"`
	Email    string `json:"email"`
}

// TitleFromContent derives a conversation title from the first user message.
func TitleFromContent(content string) string {
	r := []rune(content)
	if len(r) > titleMaxRunes {
		r = r[:titleMaxRunes]
	}
	return string(r)
}

// NormalizeUserID lowercases an identity so every casing of the same login
// maps to one storage partition.
func NormalizeUserID(userID string) string {
	return strings.ToLower(strings.TrimSpace(userID))
}

// ConversationsKey is the storage key holding a user's conversation list.
func ConversationsKey(userID string) string {
	return "conversations_" + NormalizeUserID(userID)
}
