package aibackend

// Role identifies who produced a transcript message.
type Role string

// Transcript message roles
const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// TranscriptMessage is one turn of a conversation in the provider-agnostic
// transcript form. Time is a display timestamp (e.g. "15:04"), carried as an
// opaque string.
type TranscriptMessage struct {
	Role    Role   `json:"msgtype"`
	Content string `json:"content"`
	Time    string `json:"time,omitempty"`
}

// Transcript is the provider-agnostic chat history representation used by
// Session.LoadTranscript / Session.SaveTranscript. It is the exchange format
// between sessions of different providers and whatever persistence layer the
// surrounding application uses; this package never touches disk for it.
type Transcript struct {
	ID       uint32              `json:"id"`
	Title    string              `json:"title"`
	Time     string              `json:"time"`
	Messages []TranscriptMessage `json:"content"`
}

// History is the in-memory conversation state every provider session carries:
// the ordered message list plus the last user prompt (for regeneration).
// Providers embed it and map the neutral roles onto their wire format when
// building requests. Fields are exported so provider snapshots can marshal it.
type History struct {
	Messages   []TranscriptMessage `json:"messages"`
	LastPrompt string              `json:"last_prompt,omitempty"`
	ChatID     uint32              `json:"chat_id,omitempty"`
	Title      string              `json:"title,omitempty"`
	Time       string              `json:"time,omitempty"`
}

// Push appends one message.
func (h *History) Push(role Role, content string) {
	h.Messages = append(h.Messages, TranscriptMessage{Role: role, Content: content})
}

// Withdraw removes the trailing assistant turn (or turns) and the user turn
// beneath it, returning that user turn's content. LastPrompt is rewound to
// the previous surviving user turn.
func (h *History) Withdraw() (string, error) {
	for len(h.Messages) > 0 && h.Messages[len(h.Messages)-1].Role != RoleUser {
		h.Messages = h.Messages[:len(h.Messages)-1]
	}
	if len(h.Messages) == 0 {
		return "", ErrNoUserMessage
	}
	prompt := h.Messages[len(h.Messages)-1].Content
	h.Messages = h.Messages[:len(h.Messages)-1]

	h.LastPrompt = ""
	for i := len(h.Messages) - 1; i >= 0; i-- {
		if h.Messages[i].Role == RoleUser {
			h.LastPrompt = h.Messages[i].Content
			break
		}
	}
	return prompt, nil
}

// Clear drops all messages and the last prompt.
func (h *History) Clear() {
	h.Messages = nil
	h.LastPrompt = ""
}

// LoadTranscript replaces the history with a transcript's content.
func (h *History) LoadTranscript(t *Transcript) {
	h.Messages = append([]TranscriptMessage(nil), t.Messages...)
	h.ChatID = t.ID
	h.Title = t.Title
	h.Time = t.Time
}

// SaveTranscript converts the history back to the transcript form.
func (h *History) SaveTranscript() *Transcript {
	return &Transcript{
		ID:       h.ChatID,
		Title:    h.Title,
		Time:     h.Time,
		Messages: append([]TranscriptMessage(nil), h.Messages...),
	}
}
