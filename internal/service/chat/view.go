package chat

import (
	"github.com/aisuru/companion/backend/internal/analysis/expression"
	"github.com/aisuru/companion/backend/internal/model/chat"
)

// TurnView is a turn as presented to clients.
type TurnView struct {
	chat.Turn
	Autoplay   bool                   `json:"autoplay"`
	Expression *expression.Expression `json:"expression,omitempty"`
}

// NewTurnView decorates t. Model turns carry the avatar expression derived
// from their markers.
func NewTurnView(t chat.Turn, autoplay bool) TurnView {
	view := TurnView{Turn: t, Autoplay: autoplay}
	if t.Role == chat.RoleModel {
		expr := expression.Analyze(t.Emotion, t.Gesture)
		view.Expression = &expr
	}
	return view
}

func viewPtr(v TurnView) *TurnView { return &v }
