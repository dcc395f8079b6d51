package models

// Message roles for session memory.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// Message is one turn in a chat session.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}
