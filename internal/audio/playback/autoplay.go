package playback

import (
	"sync"

	"github.com/aisuru/companion/backend/internal/model/chat"
)

// Autoplay decides which turn plays its voice without a user gesture: only the
// newest model turn, only when it carries audio, and only the first time it is
// rendered.
type Autoplay struct {
	mu       sync.Mutex
	rendered map[string]struct{}
}

// NewAutoplay returns a policy that treats existing as already rendered, so a
// resumed transcript never autoplays.
func NewAutoplay(existing []chat.Turn) *Autoplay {
	a := &Autoplay{rendered: make(map[string]struct{}, len(existing))}
	for _, t := range existing {
		a.rendered[t.ID] = struct{}{}
	}
	return a
}

// Render marks every turn as rendered and returns the id of the turn that
// should autoplay, or "" when none should.
func (a *Autoplay) Render(turns []chat.Turn) string {
	a.mu.Lock()
	defer a.mu.Unlock()

	candidate := ""
	for i := len(turns) - 1; i >= 0; i-- {
		if turns[i].Role != chat.RoleModel {
			continue
		}
		if turns[i].HasAudio() {
			if _, seen := a.rendered[turns[i].ID]; !seen {
				candidate = turns[i].ID
			}
		}
		break
	}

	for _, t := range turns {
		a.rendered[t.ID] = struct{}{}
	}
	return candidate
}
