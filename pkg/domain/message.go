package domain

// Role identifies the author of a conversation message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one entry of the conversation history sent to the model.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Conversation is the ordered, append-only history of a chain.
type Conversation []Message

// Append returns the conversation with a new message at the end.
func (c Conversation) Append(role Role, content string) Conversation {
	return append(c, Message{Role: role, Content: content})
}

// Clone returns an independent copy, safe to hand to a transport.
func (c Conversation) Clone() Conversation {
	out := make(Conversation, len(c))
	copy(out, c)
	return out
}
