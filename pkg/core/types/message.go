package types

import "time"

// Speaker identifies who produced a thread entry.
type Speaker string

const (
	SpeakerUser Speaker = "user"
	SpeakerAI   Speaker = "ai"
)

// ThreadEntry is one line in an AI participant's conversation thread.
type ThreadEntry struct {
	ID          string    `json:"id"`
	Speaker     Speaker   `json:"speaker"`
	SpeakerName string    `json:"speaker_name,omitempty"`
	Text        string    `json:"text"`
	Timestamp   time.Time `json:"timestamp"`
}

// Message is a chat-completion message sent to the language model.
type Message struct {
	Role    string `json:"role"` // "system", "user" or "assistant"
	Content string `json:"content"`
}

// Chat-completion roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Thread is one AI participant's conversation record.
type Thread struct {
	AIID      string        `json:"ai_id"`
	Entries   []ThreadEntry `json:"entries"`
	Summary   string        `json:"summary"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// Last returns up to n trailing entries.
func (t Thread) Last(n int) []ThreadEntry {
	if n <= 0 || len(t.Entries) <= n {
		return t.Entries
	}
	return t.Entries[len(t.Entries)-n:]
}
