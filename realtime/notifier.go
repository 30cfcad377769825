package realtime

import (
	"github.com/rs/zerolog/log"

	"github.com/mythologiq/hearthlink-core/domain"
)

// Broadcaster adapts the registry to the orchestrator's push interface.
// Delivery is best-effort; partial delivery is logged, never surfaced.
type Broadcaster struct {
	registry *Registry
}

// NewBroadcaster constructs a Broadcaster over a registry.
func NewBroadcaster(registry *Registry) *Broadcaster {
	return &Broadcaster{registry: registry}
}

func (b *Broadcaster) TurnAdvanced(sessionID, previousHolder, newHolder string) {
	b.push(NewTurnAdvanced(sessionID, previousHolder, newHolder))
}

func (b *Broadcaster) MessagePosted(sessionID string, msg *domain.Message) {
	b.push(NewMessagePosted(sessionID, msg))
}

func (b *Broadcaster) ParticipantJoined(sessionID string, p *domain.Participant) {
	b.push(NewParticipantJoined(sessionID, p))
}

func (b *Broadcaster) SessionStateChanged(sessionID string, status domain.ChatSessionStatus) {
	var kind FrameKind
	switch status {
	case domain.ChatSessionPaused:
		kind = FrameSessionPaused
	case domain.ChatSessionActive:
		kind = FrameSessionResumed
	case domain.ChatSessionEnded:
		kind = FrameSessionEnded
	default:
		return
	}
	b.push(NewSessionEvent(kind, sessionID))
}

func (b *Broadcaster) push(frame Frame) {
	attempted, delivered := b.registry.Broadcast(frame)
	if delivered < attempted {
		log.Debug().Str("frame", string(frame.Type)).Int("attempted", attempted).
			Int("delivered", delivered).Msg("partial broadcast delivery")
	}
}
