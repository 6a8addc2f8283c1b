package conversation

import (
	"errors"
	"sync"
	"time"

	"github.com/MegaGrindStone/research-web-ui/internal/models"
	"github.com/MegaGrindStone/research-web-ui/internal/stream"
	"github.com/google/uuid"
)

// ErrTurnPending is returned by StartTurn while a previous turn is still in flight.
var ErrTurnPending = errors.New("a turn is already in flight")

// Change describes the effect applying an envelope had on conversation state, so callers
// know what to persist and publish.
type Change int

const (
	// ChangeNone means the envelope was ignored.
	ChangeNone Change = iota
	// ChangeMessageCreated means the turn's assistant message came into existence.
	ChangeMessageCreated
	// ChangeMessageUpdated means the assistant message grew at the tail.
	ChangeMessageUpdated
	// ChangeResearchReplaced means a new snapshot replaced the previous one.
	ChangeResearchReplaced
	// ChangeTurnEnded means the done sentinel closed the turn.
	ChangeTurnEnded
)

// State owns one conversation: its ordered transcript, the latest research snapshot, and
// the turn lifecycle. Nothing else mutates these. Its methods are safe to call from the
// request handler and the turn goroutine concurrently.
type State struct {
	mu sync.Mutex

	id       string
	messages []models.Message
	research models.ResearchData

	// pending is set while a turn is in flight. live additionally marks that the tail
	// message is the turn's assistant message, so deltas extend it instead of appending.
	pending bool
	live    bool
}

// NewState creates conversation state seeded with persisted history.
func NewState(id string, history []models.Message, research models.ResearchData) *State {
	return &State{
		id:       id,
		messages: append([]models.Message(nil), history...),
		research: research,
	}
}

// ID returns the conversation id.
func (s *State) ID() string {
	return s.id
}

// StartTurn opens a new turn with the user's message and returns it. The previous research
// snapshot is discarded before the request goes out so stale records never show during
// loading. Only one turn may be in flight per conversation; a second StartTurn fails with
// ErrTurnPending.
func (s *State) StartTurn(text string) (models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.pending {
		return models.Message{}, ErrTurnPending
	}

	msg := models.Message{
		ID:        uuid.New().String(),
		Role:      models.RoleUser,
		Content:   text,
		Timestamp: time.Now(),
	}
	s.messages = append(s.messages, msg)
	s.research = models.ResearchData{}
	s.pending = true
	s.live = false

	return msg, nil
}

// Apply mutates the state according to env and reports what changed, together with a copy
// of the affected message when there is one. Envelopes arriving while no turn is open are
// ignored, which also covers anything a misbehaving source sends after done.
func (s *State) Apply(env stream.Envelope) (Change, models.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.pending {
		return ChangeNone, models.Message{}
	}

	switch env.Kind {
	case stream.KindResearchData:
		s.research = env.Data
		return ChangeResearchReplaced, models.Message{}
	case stream.KindDelta:
		return s.extendTail(env.Delta)
	case stream.KindDone:
		s.pending = false
		s.live = false
		return ChangeTurnEnded, models.Message{}
	default:
		return ChangeNone, models.Message{}
	}
}

// Fail closes the turn with a user-facing notice in the transcript. The notice lands in the
// turn's assistant message, after whatever partial answer already streamed in, so the
// one-assistant-message shape of a turn holds on failures too.
func (s *State) Fail(notice string) (Change, models.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.pending {
		return ChangeNone, models.Message{}
	}

	text := notice
	if s.live && len(s.messages) > 0 && s.messages[len(s.messages)-1].Content != "" {
		text = "\n\n" + notice
	}
	change, msg := s.extendTail(text)
	s.pending = false
	s.live = false
	return change, msg
}

// Cancel closes the turn leaving the transcript in whatever partial form it reached. No
// notice is synthesized, cancellation is not a failure.
func (s *State) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.pending = false
	s.live = false
}

// extendTail appends text to the live assistant message, creating it on the turn's first
// delta. Callers must hold mu.
func (s *State) extendTail(text string) (Change, models.Message) {
	if s.live {
		last := len(s.messages) - 1
		s.messages[last].Content += text
		return ChangeMessageUpdated, s.messages[last]
	}

	msg := models.Message{
		ID:        uuid.New().String(),
		Role:      models.RoleAssistant,
		Content:   text,
		Timestamp: time.Now(),
	}
	s.messages = append(s.messages, msg)
	s.live = true
	return ChangeMessageCreated, msg
}

// Pending reports whether a turn is in flight.
func (s *State) Pending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.pending
}

// LiveMessageID returns the id of the assistant message currently receiving deltas, or an empty
// string when no message is streaming.
func (s *State) LiveMessageID() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.pending || !s.live {
		return ""
	}
	return s.messages[len(s.messages)-1].ID
}

// Messages returns a copy of the transcript.
func (s *State) Messages() []models.Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]models.Message(nil), s.messages...)
}

// Research returns the current snapshot.
func (s *State) Research() models.ResearchData {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.research
}
