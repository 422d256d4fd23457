package domain

// ChatMessage is the provider-agnostic chat message shape sent to the NLU
// model.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Message roles recorded in the message log.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)
