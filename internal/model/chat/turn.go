package chat

// Role identifies who authored a turn.
type Role string

const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
)

// Turn is one appended unit of a transcript. Once appended it is never modified.
type Turn struct {
	ID        string `json:"id"`
	Role      Role   `json:"role"`
	Content   string `json:"content"`
	Timestamp int64  `json:"timestamp"` // unix milliseconds
	ImageRef  string `json:"imageUrl,omitempty"`
	AudioRef  string `json:"audioUrl,omitempty"`
	Emotion   string `json:"emotion,omitempty"`
	Gesture   string `json:"gesture,omitempty"`
}

// HasAudio reports whether a voice payload is attached.
func (t Turn) HasAudio() bool {
	return t.AudioRef != ""
}

// Annotation is the structured metadata parsed out of a raw model reply.
// Empty Emotion or Gesture means the field is unset.
type Annotation struct {
	CleanedText string `json:"cleanedText"`
	Emotion     string `json:"emotion,omitempty"`
	Gesture     string `json:"gesture,omitempty"`
}
