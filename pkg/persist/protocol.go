package persist

// MessageType names a protocol message.
type MessageType string

// The complete message vocabulary. Envelopes with any other type are ignored.
const (
	// SaveContent asks the worker to debounce-schedule a write (UI -> worker).
	SaveContent MessageType = "SAVE_CONTENT"
	// LoadContent asks the worker for the persisted record (UI -> worker).
	LoadContent MessageType = "LOAD_CONTENT"
	// FlushNow cancels pending timers and writes immediately (UI -> worker).
	FlushNow MessageType = "FLUSH_NOW"
	// ContentLoaded carries the persisted record, or none (worker -> UI).
	ContentLoaded MessageType = "CONTENT_LOADED"
)

// Envelope is the message passed between the endpoints. On the wire it is
// {"type": "...", "content": "..."} with content omitted when absent.
type Envelope struct {
	Type    MessageType `json:"type"`
	Content *string     `json:"content,omitempty"`

	// ack receives the outcome of a FLUSH_NOW once the worker has handled it.
	// It only survives in-process transports.
	ack chan error
}

// Text returns the content and whether it was present.
func (e Envelope) Text() (string, bool) {
	if e.Content == nil {
		return "", false
	}
	return *e.Content, true
}

func withContent(t MessageType, text string) Envelope {
	return Envelope{Type: t, Content: &text}
}

// SaveMessage builds a SAVE_CONTENT envelope.
func SaveMessage(text string) Envelope {
	return withContent(SaveContent, text)
}

// LoadMessage builds a LOAD_CONTENT envelope.
func LoadMessage() Envelope {
	return Envelope{Type: LoadContent}
}

// FlushMessage builds a FLUSH_NOW envelope.
func FlushMessage(text string) Envelope {
	return withContent(FlushNow, text)
}

// LoadedMessage builds a CONTENT_LOADED envelope; found=false encodes a
// missing record.
func LoadedMessage(text string, found bool) Envelope {
	if !found {
		return Envelope{Type: ContentLoaded}
	}
	return withContent(ContentLoaded, text)
}
