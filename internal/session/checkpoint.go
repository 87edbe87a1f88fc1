package session

import (
	"fmt"

	"chatd/internal/state"
	"chatd/pkg/types"
)

// Checkpoint is what a session needs to pick up a conversation later.
type Checkpoint struct {
	History  []types.Turn
	Snapshot *state.Snapshot
}

// Checkpoint copies the conversation and the current snapshot. The snapshot
// blob is shared, not copied; snapshots are never modified in place.
func (s *Session) Checkpoint() Checkpoint {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Checkpoint{History: s.history.Turns(), Snapshot: s.snapshot}
}

// Resume replaces the conversation with cp, cancelling any generation in
// flight. A snapshot taken for another model or window is dropped and the
// next turn re-renders the conversation in full. It reports whether the
// snapshot was kept.
func (s *Session) Resume(cp Checkpoint) (bool, error) {
	s.respondMu.Lock()
	defer s.respondMu.Unlock()
	if err := ValidateTurns(cp.History); err != nil {
		return false, fmt.Errorf("session: resume: %w", err)
	}
	s.cancelInflight(true)

	s.mu.Lock()
	defer s.mu.Unlock()
	before := len(cp.History)
	if err := s.history.Replace(cp.History); err != nil {
		return false, fmt.Errorf("session: resume: %w", err)
	}
	s.output.Reset()
	s.state = StateIdle
	s.snapshot = cp.Snapshot
	s.tokenCount = 0
	if s.snapshot == nil {
		return false, nil
	}
	if s.history.Len() != before {
		s.dropSnapshotLocked("eviction")
		return false, nil
	}
	if !s.snapshotUsableLocked() {
		s.log.Info().Msg("stored snapshot not usable; next turn re-renders the conversation")
		return false, nil
	}
	s.tokenCount = s.snapshot.TokenCount
	s.metrics.snapshotTaken(s.snapshot.Size)
	return true, nil
}
