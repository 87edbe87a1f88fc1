package session

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"chatd/pkg/types"
)

func requirePaired(t *testing.T, turns []types.Turn) {
	t.Helper()
	require.Zero(t, len(turns)%2, "odd history length %d", len(turns))
	require.NoError(t, ValidateTurns(turns))
}

func TestHistoryEvictsOldestPair(t *testing.T) {
	h := NewHistory(4)
	h.AppendPair("q1", "a1")
	h.AppendPair("q2", "a2")
	evicted := h.AppendPair("q3", "a3")

	require.Equal(t, 2, evicted)
	turns := h.Turns()
	require.Len(t, turns, 4)
	require.Equal(t, "q2", turns[0].Content)
	require.Equal(t, "a3", turns[3].Content)
	requirePaired(t, turns)
}

func TestHistoryAssignsDistinctIDs(t *testing.T) {
	h := NewHistory(0)
	h.AppendPair("q", "a")
	h.AppendPair("q", "a")
	seen := map[string]bool{}
	for _, turn := range h.Turns() {
		require.NotEmpty(t, turn.ID)
		require.False(t, seen[turn.ID])
		seen[turn.ID] = true
	}
}

func TestHistoryPairingUnderRandomLimits(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	for i := 0; i < 200; i++ {
		limit := 2 + rng.Intn(9)
		h := NewHistory(limit)
		for j := rng.Intn(20); j > 0; j-- {
			if rng.Intn(5) == 0 {
				h.EvictOldest()
			} else {
				h.AppendPair("q", "a")
			}
			require.LessOrEqual(t, h.Len(), limit)
			requirePaired(t, h.Turns())
		}
	}
}

func TestHistoryTurnsIsACopy(t *testing.T) {
	h := NewHistory(0)
	h.AppendPair("q", "a")
	turns := h.Turns()
	turns[0].Content = "changed"
	require.Equal(t, "q", h.Turns()[0].Content)
}

func TestValidateTurns(t *testing.T) {
	require.NoError(t, ValidateTurns(nil))
	require.Error(t, ValidateTurns([]types.Turn{{Role: types.RoleUser}}))
	require.Error(t, ValidateTurns([]types.Turn{{Role: types.RoleAssistant}, {Role: types.RoleUser}}))

	h := NewHistory(2)
	err := h.Replace([]types.Turn{
		{Role: types.RoleUser, Content: "1"}, {Role: types.RoleAssistant, Content: "2"},
		{Role: types.RoleUser, Content: "3"}, {Role: types.RoleAssistant, Content: "4"},
	})
	require.NoError(t, err)
	require.Equal(t, "3", h.Turns()[0].Content)
}
