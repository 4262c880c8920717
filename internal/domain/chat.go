package domain

// Chat roles understood by OpenAI-compatible endpoints.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ChatMessage is one message of a generative FAQ prompt.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}
