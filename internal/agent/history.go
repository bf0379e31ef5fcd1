package agent

import (
	"sync"

	"github.com/google/uuid"

	"github.com/haasonsaas/scout/pkg/models"
)

// DefaultMaxHistory is the retained-turn cap applied when none is configured.
const DefaultMaxHistory = 100

// Conversation holds the model-facing turn list for one session plus the
// parallel display list consumed by observers. The two are appended together
// on tool events and final-result capture; only Turns is ever sent to the
// model. A Conversation is owned by a single session driver and is
// internally locked only because observers may snapshot it concurrently.
type Conversation struct {
	mu        sync.Mutex
	sessionID string
	turns     []models.Turn
	display   []models.DisplayTurn
}

// NewConversation creates an empty conversation with a fresh session id.
func NewConversation() *Conversation {
	return &Conversation{sessionID: uuid.NewString()}
}

// NewConversationWithID creates an empty conversation bound to an existing
// session id.
func NewConversationWithID(sessionID string) *Conversation {
	if sessionID == "" {
		return NewConversation()
	}
	return &Conversation{sessionID: sessionID}
}

// SessionID returns the current session id.
func (c *Conversation) SessionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessionID
}

// Append adds a turn to the model-facing list and mirrors it into the
// display list.
func (c *Conversation) Append(turn models.Turn) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.turns = append(c.turns, turn)
	c.display = append(c.display, models.DisplayTurn{
		Role:      turn.Role,
		Content:   turn.Text(),
		CreatedAt: turn.CreatedAt,
	})
}

// AppendDisplay adds an observer-only entry (tool calls, final results)
// without touching the model-facing list.
func (c *Conversation) AppendDisplay(turn models.DisplayTurn) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.display = append(c.display, turn)
}

// Turns returns a snapshot of the model-facing turn list.
func (c *Conversation) Turns() []models.Turn {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]models.Turn, len(c.turns))
	copy(out, c.turns)
	return out
}

// Display returns a snapshot of the display list.
func (c *Conversation) Display() []models.DisplayTurn {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]models.DisplayTurn, len(c.display))
	copy(out, c.display)
	return out
}

// Len reports the model-facing turn count.
func (c *Conversation) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.turns)
}

// IsFresh reports whether no turns have been recorded yet. The first user
// turn of a fresh conversation gets the task-framing wrapper.
func (c *Conversation) IsFresh() bool {
	return c.Len() == 0
}

// TrimTo drops the oldest turns in bulk so at most max remain. The display
// list is left intact; observers keep the full transcript.
func (c *Conversation) TrimTo(max int) int {
	if max <= 0 {
		max = DefaultMaxHistory
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	excess := len(c.turns) - max
	if excess <= 0 {
		return 0
	}
	c.turns = append([]models.Turn(nil), c.turns[excess:]...)
	return excess
}

// Restore replaces the turn list, used when loading persisted history.
func (c *Conversation) Restore(turns []models.Turn) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.turns = append([]models.Turn(nil), turns...)
	c.display = c.display[:0]
	for _, t := range turns {
		c.display = append(c.display, models.DisplayTurn{
			Role:      t.Role,
			Content:   t.Text(),
			CreatedAt: t.CreatedAt,
		})
	}
}

// Clear drops all turns and display entries and rotates to a fresh session
// id, which it returns. Clearing twice leaves the conversation in the same
// state as clearing once: empty, with a usable id.
func (c *Conversation) Clear() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.turns = nil
	c.display = nil
	c.sessionID = uuid.NewString()
	return c.sessionID
}
