package engine_test

import (
	"errors"
	"runtime"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"chatd/internal/engine"
	"chatd/internal/engine/enginetest"
)

func TestSequentialMarksOnlyLastForOutput(t *testing.T) {
	b := engine.Sequential([]engine.Token{1, 2, 3}, 5)
	require.Equal(t, []int{5, 6, 7}, b.Positions)
	require.Equal(t, []bool{false, false, true}, b.Logits)
	require.Equal(t, 3, b.Len())
	require.Zero(t, engine.Sequential(nil, 0).Len())
}

func TestAdvanceSplitsByBatchSize(t *testing.T) {
	m := enginetest.New("m", 64)
	h, err := engine.Open(m, engine.ContextParams{WindowSize: 64, BatchSize: 4})
	require.NoError(t, err)
	defer h.Close()

	toks := make([]engine.Token, 10)
	for i := range toks {
		toks[i] = engine.Token('a' + i)
	}
	h.Advance(engine.Sequential(toks, 0))
	steps := m.Steps()
	require.Len(t, steps, 3)
	require.Equal(t, 4, steps[0].Len())
	require.Equal(t, 2, steps[2].Len())
	require.Equal(t, []int{8, 9}, steps[2].Positions)
	require.True(t, steps[2].Logits[1])
}

func TestAdvanceFailureIsFatal(t *testing.T) {
	m := enginetest.New("m", 32)
	m.FailDecodeAt(1, errors.New("kv cache full"))

	var got *engine.FatalError
	h, err := engine.Open(m, engine.ContextParams{WindowSize: 32}, engine.WithFatalHandler(func(err *engine.FatalError) {
		got = err
		runtime.Goexit()
	}))
	require.NoError(t, err)

	var wg sync.WaitGroup
	wg.Add(1)
	reached := false
	go func() {
		defer wg.Done()
		defer h.Close()
		h.Advance(engine.Sequential([]engine.Token{1, 2}, 0))
		reached = true
	}()
	wg.Wait()

	require.False(t, reached, "worker must not continue after a fatal step")
	require.NotNil(t, got)
	require.True(t, engine.IsFatal(got))
	require.Equal(t, "decode", got.Op)
	opened, closed := m.Contexts()
	require.Equal(t, 1, opened)
	require.Equal(t, 1, closed)
}

func TestAdvanceStatusFailureIsFatal(t *testing.T) {
	m := enginetest.New("m", 32)
	m.FailDecodeAt(2, &engine.StatusError{Call: "llama_decode", Status: 1})

	var got *engine.FatalError
	h, err := engine.Open(m, engine.ContextParams{WindowSize: 32, BatchSize: 2}, engine.WithFatalHandler(func(err *engine.FatalError) {
		got = err
		runtime.Goexit()
	}))
	require.NoError(t, err)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer h.Close()
		h.Advance(engine.Sequential([]engine.Token{1, 2, 3, 4}, 0))
	}()
	wg.Wait()

	require.NotNil(t, got)
	var se *engine.StatusError
	require.True(t, errors.As(got, &se))
	require.Equal(t, int32(1), se.Status)
	require.Equal(t, "decode", got.Op)
	require.Len(t, m.Steps(), 2)
}

func TestCloseIsIdempotent(t *testing.T) {
	m := enginetest.New("m", 16)
	h, err := engine.Open(m, engine.ContextParams{WindowSize: 16})
	require.NoError(t, err)
	require.NoError(t, h.Close())
	require.NoError(t, h.Close())
	_, closed := m.Contexts()
	require.Equal(t, 1, closed)
	_, err = h.State()
	require.Error(t, err)
}

func TestOpenRejectsBadParams(t *testing.T) {
	_, err := engine.Open(nil, engine.ContextParams{WindowSize: 8})
	require.Error(t, err)
	_, err = engine.Open(enginetest.New("m", 8), engine.ContextParams{})
	require.Error(t, err)
}

func TestStateRoundTripThroughHandle(t *testing.T) {
	m := enginetest.New("m", 32)
	h, err := engine.Open(m, engine.ContextParams{WindowSize: 32})
	require.NoError(t, err)
	defer h.Close()
	h.Advance(engine.Sequential([]engine.Token{7, 8, 9}, 0))
	blob, err := h.State()
	require.NoError(t, err)
	require.Len(t, blob, h.StateSize())

	h2, err := engine.Open(m, engine.ContextParams{WindowSize: 32})
	require.NoError(t, err)
	defer h2.Close()
	require.NoError(t, h2.SetState(blob))
	// Continuing at position 3 only works if the memory was restored.
	h2.Advance(engine.Sequential([]engine.Token{10}, 3))
	require.Equal(t, 16, h2.StateSize())
}

func TestFingerprint(t *testing.T) {
	a := engine.Fingerprint("model-a", 2048)
	require.Len(t, a, 64)
	require.Equal(t, a, engine.Fingerprint("model-a", 2048))
	require.NotEqual(t, a, engine.Fingerprint("model-a", 4096))
	require.NotEqual(t, a, engine.Fingerprint("model-b", 2048))
}

func TestStubLoadWithoutLlamaTag(t *testing.T) {
	if engine.Available() {
		t.Skip("built with llama support")
	}
	_, err := engine.Load("/models/x.gguf", engine.ModelParams{})
	require.Error(t, err)
	require.True(t, engine.IsDependencyUnavailable(err))
}
