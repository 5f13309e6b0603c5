package model

// Role of a chat message author.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message represents a chat message in the conversation
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// NewSystemMessage, NewUserMessage and NewAssistantMessage are small helpers
// for building conversations in callers and tests.
func NewSystemMessage(content string) Message {
	return Message{Role: RoleSystem, Content: content}
}

func NewUserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

func NewAssistantMessage(content string) Message {
	return Message{Role: RoleAssistant, Content: content}
}

// SystemPrompt returns the content of the first system message, if any.
func SystemPrompt(messages []Message) (string, bool) {
	for _, m := range messages {
		if m.Role == RoleSystem {
			return m.Content, true
		}
	}
	return "", false
}

// APIModel describes a model as reported by a provider. It is never persisted.
type APIModel struct {
	ID      string       `json:"id"`
	Name    string       `json:"name"`
	Details ModelDetails `json:"details"`
}

// ModelDetails carries optional capability information. Remote APIs fill
// MaxTokens/Description from the local catalog; Ollama reports the rest.
type ModelDetails struct {
	MaxTokens         int    `json:"maxTokens,omitempty"`
	Description       string `json:"description,omitempty"`
	Format            string `json:"format,omitempty"`
	Family            string `json:"family,omitempty"`
	ParameterSize     string `json:"parameterSize,omitempty"`
	QuantizationLevel string `json:"quantizationLevel,omitempty"`
	SupportsTools     bool   `json:"supportsTools,omitempty"`
}
