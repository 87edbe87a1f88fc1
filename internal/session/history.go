package session

import (
	"errors"
	"fmt"

	"github.com/google/uuid"

	"chatd/pkg/types"
)

// History is an ordered conversation bounded by a turn limit. Turns are
// evicted oldest first, two at a time, so roles keep alternating.
type History struct {
	limit int
	turns []types.Turn
}

// NewHistory returns an empty history. limit <= 0 means unbounded.
func NewHistory(limit int) *History { return &History{limit: limit} }

func (h *History) Len() int { return len(h.turns) }

// Turns returns a copy of the conversation.
func (h *History) Turns() []types.Turn {
	out := make([]types.Turn, len(h.turns))
	copy(out, h.turns)
	return out
}

// AppendPair adds a user turn and its answer, then enforces the limit. It
// returns how many turns were evicted.
func (h *History) AppendPair(input, answer string) int {
	h.turns = append(h.turns,
		types.Turn{ID: uuid.NewString(), Role: types.RoleUser, Content: input},
		types.Turn{ID: uuid.NewString(), Role: types.RoleAssistant, Content: answer},
	)
	evicted := 0
	for h.limit > 0 && len(h.turns) > h.limit {
		evicted += h.EvictOldest()
	}
	return evicted
}

// EvictOldest drops the two oldest turns (or the only one left).
func (h *History) EvictOldest() int {
	n := min(2, len(h.turns))
	h.turns = append(h.turns[:0], h.turns[n:]...)
	return n
}

// Replace installs turns after checking that they alternate user/assistant.
func (h *History) Replace(turns []types.Turn) error {
	if err := ValidateTurns(turns); err != nil {
		return err
	}
	h.turns = append(h.turns[:0], turns...)
	for h.limit > 0 && len(h.turns) > h.limit {
		h.EvictOldest()
	}
	return nil
}

// Reset empties the history.
func (h *History) Reset() { h.turns = h.turns[:0] }

var errOddHistory = errors.New("history must hold complete user/assistant pairs")

// ValidateTurns checks the pairing invariant: an even number of turns whose
// roles alternate starting with the user.
func ValidateTurns(turns []types.Turn) error {
	if len(turns)%2 != 0 {
		return errOddHistory
	}
	for i, t := range turns {
		want := types.RoleUser
		if i%2 == 1 {
			want = types.RoleAssistant
		}
		if t.Role != want {
			return fmt.Errorf("turn %d: role %q, want %q", i, t.Role, want)
		}
	}
	return nil
}
