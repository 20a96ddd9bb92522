package playback

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/aisuru/companion/backend/internal/model/chat"
)

func modelTurn(id, audio string) chat.Turn {
	return chat.Turn{ID: id, Role: chat.RoleModel, Content: "hi", AudioRef: audio}
}

func userTurn(id string) chat.Turn {
	return chat.Turn{ID: id, Role: chat.RoleUser, Content: "hello"}
}

func TestAutoplayOnlyNewestModelTurn(t *testing.T) {
	a := NewAutoplay(nil)

	turns := []chat.Turn{userTurn("u1"), modelTurn("m1", "AAAA"), userTurn("u2"), modelTurn("m2", "BBBB")}
	assert.Equal(t, "m2", a.Render(turns))
	// Re-rendering the same transcript never replays.
	assert.Equal(t, "", a.Render(turns))
}

func TestAutoplayPreloadedHistoryIsSilent(t *testing.T) {
	existing := []chat.Turn{userTurn("u1"), modelTurn("m1", "AAAA")}
	a := NewAutoplay(existing)
	assert.Equal(t, "", a.Render(existing))

	next := append(existing, userTurn("u2"), modelTurn("m2", "CCCC"))
	assert.Equal(t, "m2", a.Render(next))
}

func TestAutoplaySkipsTurnWithoutAudio(t *testing.T) {
	a := NewAutoplay(nil)
	turns := []chat.Turn{userTurn("u1"), modelTurn("m1", "AAAA"), userTurn("u2"), modelTurn("m2", "")}
	assert.Equal(t, "", a.Render(turns))
}

func TestAutoplayUserTurnLast(t *testing.T) {
	a := NewAutoplay(nil)
	assert.Equal(t, "m1", a.Render([]chat.Turn{userTurn("u1"), modelTurn("m1", "AAAA"), userTurn("u2")}))
}
