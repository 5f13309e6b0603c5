package testutil

import (
	"net/http"
	"strings"
	"testing"

	"chatgate/model"
)

// TestMessages returns a sample conversation with a system prompt.
func TestMessages() []model.Message {
	return []model.Message{
		model.NewSystemMessage("You are terse."),
		model.NewUserMessage("Hello, how are you?"),
		model.NewAssistantMessage("Fine."),
		model.NewUserMessage("Can you help me with a task?"),
	}
}

// SingleUserMessage returns a one message conversation.
func SingleUserMessage(content string) []model.Message {
	return []model.Message{model.NewUserMessage(content)}
}

// NDJSONBody renders Ollama chat chunks for the given tokens, ending with a
// done chunk.
func NDJSONBody(tokens ...string) string {
	var sb strings.Builder
	for _, tok := range tokens {
		sb.WriteString(`{"message":{"role":"assistant","content":"` + tok + `"},"done":false}` + "\n")
	}
	sb.WriteString(`{"message":{"role":"assistant","content":""},"done":true}` + "\n")
	return sb.String()
}

// SSEBody renders chat completion chunks for the given tokens, ending with
// the [DONE] sentinel.
func SSEBody(tokens ...string) string {
	var sb strings.Builder
	for _, tok := range tokens {
		sb.WriteString(`data: {"choices":[{"delta":{"content":"` + tok + `"}}]}` + "\n\n")
	}
	sb.WriteString("data: [DONE]\n\n")
	return sb.String()
}

// WriteStream writes body in one flushed response with the given content type.
func WriteStream(t *testing.T, w http.ResponseWriter, contentType, body string) {
	t.Helper()
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte(body)); err != nil {
		t.Errorf("write stream: %v", err)
	}
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
}
