package chat

// EventType names a session change pushed to subscribers.
type EventType string

const (
	EventUser   EventType = "user"
	EventTyping EventType = "typing"
	EventTurn   EventType = "turn"
	EventReset  EventType = "reset"
	EventClosed EventType = "closed"
)

const subscriberBuffer = 16

// Event is a change to a session.
type Event struct {
	Type   EventType `json:"type"`
	Turn   *TurnView `json:"turn,omitempty"`
	Typing bool      `json:"typing"`
}

// Subscribe streams session events until cancel is called or the session
// closes. Events are dropped for subscribers that fall behind.
func (s *Session) Subscribe() (events <-chan Event, cancel func()) {
	ch := make(chan Event, subscriberBuffer)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	id := s.nextWatch
	s.nextWatch++
	s.watchers[id] = ch
	s.mu.Unlock()

	return ch, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if _, ok := s.watchers[id]; ok {
			delete(s.watchers, id)
			close(ch)
		}
	}
}

func (s *Session) publish(evt Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ch := range s.watchers {
		select {
		case ch <- evt:
		default:
			s.logger.Debug().Str("event", string(evt.Type)).Msg("subscriber lagging, event dropped")
		}
	}
}
