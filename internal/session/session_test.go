package session

import (
	"context"
	"encoding/binary"
	"errors"
	"runtime"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"chatd/internal/codec"
	"chatd/internal/engine"
	"chatd/internal/engine/enginetest"
	"chatd/internal/template"
	"chatd/pkg/types"
)

// testTemplate keeps token arithmetic readable: one token per byte plus BOS.
var testTemplate = template.Template{
	Preset:       "test",
	User:         template.Affix{Prefix: "U:", Suffix: "\n"},
	Bot:          template.Affix{Prefix: "A:", Suffix: "\n"},
	StopSequence: "<|end|>",
}

func newSession(t *testing.T, m *enginetest.Model, mutate func(*Config), opts ...Option) *Session {
	t.Helper()
	cfg := Config{Template: testTemplate, Seed: 1}
	if mutate != nil {
		mutate(&cfg)
	}
	opts = append([]Option{WithFatalHandler(func(err *engine.FatalError) {
		t.Errorf("unexpected engine failure: %v", err)
		runtime.Goexit()
	})}, opts...)
	s, err := New(m, cfg, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func respond(t *testing.T, s *Session, input string) ([]string, Result) {
	t.Helper()
	st, err := s.Respond(context.Background(), input)
	require.NoError(t, err)
	var frags []string
	for f := range st.Fragments() {
		frags = append(frags, f)
	}
	return frags, st.Wait()
}

func requireContextsReleased(t *testing.T, m *enginetest.Model) {
	t.Helper()
	opened, closed := m.Contexts()
	require.Equal(t, opened, closed, "every evaluation context must be closed")
}

func tokensOf(data []byte) []engine.Token {
	out := make([]engine.Token, len(data)/4)
	for i := range out {
		out[i] = engine.Token(int32(binary.LittleEndian.Uint32(data[4*i:])))
	}
	return out
}

func TestStopSequenceSplitAcrossTokens(t *testing.T) {
	m := enginetest.New("m", 4096)
	m.Say("Hello", "<", "|e", "nd|", ">", "never")
	s := newSession(t, m, nil)

	frags, res := respond(t, s, "hi")
	require.Equal(t, []string{"Hello"}, frags)
	require.Equal(t, FinishStop, res.FinishReason)
	require.Equal(t, "Hello", res.Content)
	require.Equal(t, 5, res.Usage.CompletionTokens)

	// Prefill plus one step per fed token; the token completing the marker
	// is never fed.
	require.Len(t, m.Steps(), 5)

	hist := s.History()
	require.Len(t, hist, 2)
	require.Equal(t, types.RoleUser, hist[0].Role)
	require.Equal(t, "hi", hist[0].Content)
	require.Equal(t, "Hello", hist[1].Content)
	// Marker bytes were fed back, so resident memory no longer matches.
	require.Nil(t, s.Checkpoint().Snapshot)
	require.Zero(t, s.TokenCount())
	requireContextsReleased(t, m)
}

func TestHistoryLimitEvictsOldestPair(t *testing.T) {
	m := enginetest.New("m", 4096)
	m.Say("one")
	m.Say("two")
	m.Say("three")
	s := newSession(t, m, func(c *Config) { c.HistoryLimit = 4 })

	for _, in := range []string{"q1", "q2", "q3"} {
		_, res := respond(t, s, in)
		require.Equal(t, FinishEOS, res.FinishReason)
	}
	hist := s.History()
	require.Len(t, hist, 4)
	require.Equal(t, []string{"q2", "two", "q3", "three"},
		[]string{hist[0].Content, hist[1].Content, hist[2].Content, hist[3].Content})
	// Resident memory still holds the evicted pair.
	require.Nil(t, s.Checkpoint().Snapshot)
}

func TestFitToWindowEvictsBeforeGenerating(t *testing.T) {
	m := enginetest.New("m", 4096)
	m.Say(strings.Split("rrrrrrrrrr", "")...)
	m.Say("ok")
	s := newSession(t, m, func(c *Config) { c.MaxTokenCount = 50 })
	require.Equal(t, 50, s.MaxTokenCount())

	_, res := respond(t, s, "qqqqqqqqqq")
	require.Equal(t, FinishEOS, res.FinishReason)
	// BOS + "U:qqqqqqqqqq\nA:" + reply + closing "\n".
	require.Equal(t, 27, s.TokenCount())

	steps := len(m.Steps())
	second := strings.Repeat("x", 30)
	frags, res := respond(t, s, second)
	require.Equal(t, []string{"ok"}, frags)
	require.Equal(t, FinishEOS, res.FinishReason)

	prefill := m.Steps()[steps]
	require.Equal(t, 0, prefill.Positions[0], "eviction forces a full render")
	require.Equal(t, enginetest.BOS, prefill.Tokens[0])
	require.Equal(t, m.TokenCount("U:"+second+"\nA:", true), prefill.Len())

	hist := s.History()
	require.Len(t, hist, 2)
	require.Equal(t, second, hist[0].Content)
	require.LessOrEqual(t, s.TokenCount(), s.MaxTokenCount())
}

func TestOpenFailureKeepsHistory(t *testing.T) {
	m := enginetest.New("m", 4096)
	m.Say(strings.Split("rrrrrrrrrr", "")...)
	s := newSession(t, m, func(c *Config) { c.MaxTokenCount = 50 })
	respond(t, s, "qqqqqqqqqq")
	before := s.History()
	require.Len(t, before, 2)

	m.FailNewContext(errors.New("out of memory"))
	_, err := s.Respond(context.Background(), strings.Repeat("x", 30))
	require.Error(t, err)
	require.Equal(t, before, s.History())
	require.Zero(t, s.Evictions())
	require.NotNil(t, s.Checkpoint().Snapshot)
}

func TestWindowExhaustionUsesRecovery(t *testing.T) {
	m := enginetest.New("m", 4096)
	m.Say("short")
	var got string
	s := newSession(t, m, func(c *Config) { c.MaxTokenCount = 50 },
		WithRecovery(func(input string) string { got = input; return "too long" }))

	_, res := respond(t, s, "hey")
	require.Equal(t, FinishEOS, res.FinishReason)
	opened, _ := m.Contexts()

	long := strings.Repeat("z", 60)
	frags, res := respond(t, s, long)
	require.Equal(t, []string{"too long"}, frags)
	require.Equal(t, FinishFull, res.FinishReason)
	require.NoError(t, res.Err)
	require.Equal(t, long, got)
	require.Equal(t, "too long", s.Output())
	require.Equal(t, StateIdle, s.State())

	// The whole history was evicted trying to fit; nothing was appended.
	require.Empty(t, s.History())
	require.Zero(t, s.TokenCount())
	again, _ := m.Contexts()
	require.Equal(t, opened, again, "no context is opened for input that cannot fit")
}

func TestDefaultRecoveryText(t *testing.T) {
	m := enginetest.New("m", 16)
	s := newSession(t, m, nil)
	frags, res := respond(t, s, strings.Repeat("z", 20))
	require.Equal(t, []string{DefaultFallbackText}, frags)
	require.Equal(t, FinishFull, res.FinishReason)
}

func TestRespondSupersedesInflight(t *testing.T) {
	m := enginetest.New("m", 4096)
	m.Enqueue(enginetest.Reply{Repeat: "x"})
	m.Say("farewell")
	s := newSession(t, m, func(c *Config) { c.StreamBuffer = 1 })

	first, err := s.Respond(context.Background(), "hi")
	require.NoError(t, err)
	require.Equal(t, "x", <-first.Fragments())

	second, err := s.Respond(context.Background(), "bye")
	require.NoError(t, err)

	res1 := first.Wait()
	require.Equal(t, FinishCancelled, res1.FinishReason)
	text, res2 := second.Collect()
	require.Equal(t, "farewell", text)
	require.Equal(t, FinishEOS, res2.FinishReason)

	hist := s.History()
	require.Len(t, hist, 2)
	require.Equal(t, "bye", hist[0].Content)
	require.Equal(t, "farewell", hist[1].Content)
	requireContextsReleased(t, m)
}

func TestStopIsIdempotent(t *testing.T) {
	m := enginetest.New("m", 4096)
	s := newSession(t, m, func(c *Config) { c.StreamBuffer = 1 })

	s.Stop()
	require.Equal(t, StateIdle, s.State())

	run := func(stops int) Result {
		m.Enqueue(enginetest.Reply{Repeat: "x"})
		st, err := s.Respond(context.Background(), "go")
		require.NoError(t, err)
		<-st.Fragments()
		for i := 0; i < stops; i++ {
			s.Stop()
		}
		return st.Wait()
	}
	once := run(1)
	twice := run(2)
	require.Equal(t, FinishCancelled, once.FinishReason)
	require.Equal(t, once.FinishReason, twice.FinishReason)
	require.Empty(t, s.History(), "cancelled exchanges are discarded by default")
	require.Equal(t, StateIdle, s.State())

	s.Stop()
	requireContextsReleased(t, m)
}

func TestKeepPartialAppendsStoppedAnswer(t *testing.T) {
	m := enginetest.New("m", 4096)
	m.Enqueue(enginetest.Reply{Pieces: []string{" partial"}, Repeat: " x"})
	s := newSession(t, m, func(c *Config) { c.StreamBuffer = 1; c.KeepPartial = true })

	st, err := s.Respond(context.Background(), "go")
	require.NoError(t, err)
	require.Equal(t, " partial", <-st.Fragments())
	s.Stop()
	res := st.Wait()
	require.Equal(t, FinishCancelled, res.FinishReason)

	hist := s.History()
	require.Len(t, hist, 2)
	require.Equal(t, strings.TrimSpace(res.Content), hist[1].Content)
	require.True(t, strings.HasPrefix(hist[1].Content, "partial"))
	require.Nil(t, s.Checkpoint().Snapshot)
	require.Zero(t, s.TokenCount())
}

func TestKeepPartialDiscardsSupersededAnswer(t *testing.T) {
	m := enginetest.New("m", 4096)
	m.Enqueue(enginetest.Reply{Repeat: "x"})
	m.Say("done")
	s := newSession(t, m, func(c *Config) { c.StreamBuffer = 1; c.KeepPartial = true })

	first, err := s.Respond(context.Background(), "a")
	require.NoError(t, err)
	<-first.Fragments()
	second, err := s.Respond(context.Background(), "b")
	require.NoError(t, err)
	_, _ = second.Collect()
	require.Equal(t, FinishCancelled, first.Wait().FinishReason)

	hist := s.History()
	require.Len(t, hist, 2)
	require.Equal(t, "b", hist[0].Content)
}

func TestCallerContextCancelsGeneration(t *testing.T) {
	m := enginetest.New("m", 4096)
	m.Enqueue(enginetest.Reply{Repeat: "x"})
	s := newSession(t, m, func(c *Config) { c.StreamBuffer = 1 })

	ctx, cancel := context.WithCancel(context.Background())
	st, err := s.Respond(ctx, "go")
	require.NoError(t, err)
	<-st.Fragments()
	cancel()
	require.Equal(t, FinishCancelled, st.Wait().FinishReason)
}

func TestWindowInvariantAcrossTurns(t *testing.T) {
	m := enginetest.New("m", 4096)
	s := newSession(t, m, func(c *Config) { c.MaxTokenCount = 40; c.HistoryLimit = 6 })

	replies := []enginetest.Reply{
		{Pieces: []string{"abc"}},
		{Pieces: []string{"defghij"}},
		{Repeat: "y"},
		{Pieces: []string{"k", "<|end|>"}},
		{Pieces: []string{"lmnopqrstu"}},
		{Repeat: "zz"},
		{Pieces: []string{"v"}},
	}
	for i, r := range replies {
		m.Enqueue(r)
		_, res := respond(t, s, strings.Repeat("q", 3+i))
		require.NotEqual(t, FinishError, res.FinishReason)
		require.LessOrEqual(t, s.TokenCount(), s.MaxTokenCount(), "turn %d", i)
		requirePaired(t, s.History())
	}
	for _, step := range m.Steps() {
		for _, pos := range step.Positions {
			require.Less(t, pos, s.MaxTokenCount())
		}
	}
	requireContextsReleased(t, m)
}

func TestLengthFinishDropsSnapshot(t *testing.T) {
	m := enginetest.New("m", 4096)
	m.Enqueue(enginetest.Reply{Repeat: "y"})
	s := newSession(t, m, func(c *Config) { c.MaxTokenCount = 20 })

	_, res := respond(t, s, "go")
	require.Equal(t, FinishLength, res.FinishReason)
	// BOS + "U:go\nA:" is 8 tokens; the rest of the window was generated.
	require.Equal(t, 12, res.Usage.CompletionTokens)
	require.Len(t, s.History(), 2)
	require.Nil(t, s.Checkpoint().Snapshot)
	require.Zero(t, s.TokenCount())
}

func TestSnapshotMatchesFullRender(t *testing.T) {
	m := enginetest.New("m", 4096)
	m.Say(strings.Split("Hi there", "")...)
	m.Say("Fine")
	s := newSession(t, m, nil)

	_, res := respond(t, s, "hello")
	require.Equal(t, FinishEOS, res.FinishReason)
	cp := s.Checkpoint()
	require.NotNil(t, cp.Snapshot)
	require.Equal(t, cp.Snapshot.TokenCount, s.TokenCount())
	require.Equal(t, s.Fingerprint(), cp.Snapshot.Fingerprint)

	steps := len(m.Steps())
	_, res = respond(t, s, "how are you")
	require.Equal(t, FinishEOS, res.FinishReason)

	// Restored memory plus the incremental prefill is exactly the full
	// render of the same conversation.
	prefill := m.Steps()[steps]
	require.Equal(t, cp.Snapshot.TokenCount, prefill.Positions[0])
	resident := append(tokensOf(cp.Snapshot.Data), prefill.Tokens...)
	full, err := m.Tokenize(testTemplate.Render(cp.History, "how are you", false), true)
	require.NoError(t, err)
	require.Equal(t, full, resident)
	require.Equal(t, len(full), res.Usage.PromptTokens+cp.Snapshot.TokenCount)
}

func TestDroppedBotPrefixRendersInFull(t *testing.T) {
	tpl, err := template.ForPreset(template.Llama)
	require.NoError(t, err)
	m := enginetest.New("m", 4096)
	m.Say("H", "i")
	m.Say("Fine")
	s := newSession(t, m, func(c *Config) { c.Template = tpl })

	_, res := respond(t, s, "hello")
	require.Equal(t, FinishEOS, res.FinishReason)
	cp := s.Checkpoint()
	require.Len(t, cp.History, 2)
	require.Nil(t, cp.Snapshot)
	require.Zero(t, s.TokenCount())

	steps := len(m.Steps())
	_, res = respond(t, s, "how are you")
	require.Equal(t, FinishEOS, res.FinishReason)

	prefill := m.Steps()[steps]
	require.Equal(t, 0, prefill.Positions[0])
	full, err := m.Tokenize(tpl.Render(cp.History, "how are you", false), true)
	require.NoError(t, err)
	require.Equal(t, full, prefill.Tokens)
}

func TestResumeDropsMismatchedSnapshot(t *testing.T) {
	m := enginetest.New("m", 4096)
	m.Say("one")
	m.Say("two")
	s := newSession(t, m, nil)
	respond(t, s, "q1")

	cp := s.Checkpoint()
	require.NotNil(t, cp.Snapshot)
	foreign := *cp.Snapshot
	foreign.Fingerprint = engine.Fingerprint("other-model", s.MaxTokenCount())
	kept, err := s.Resume(Checkpoint{History: cp.History, Snapshot: &foreign})
	require.NoError(t, err)
	require.False(t, kept)
	require.Zero(t, s.TokenCount())

	steps := len(m.Steps())
	_, res := respond(t, s, "q2")
	require.Equal(t, FinishEOS, res.FinishReason)
	prefill := m.Steps()[steps]
	require.Equal(t, 0, prefill.Positions[0])
	require.Equal(t, enginetest.BOS, prefill.Tokens[0])
}

func TestResumeAcrossSessions(t *testing.T) {
	m := enginetest.New("m", 4096)
	m.Say("one")
	a := newSession(t, m, nil)
	respond(t, a, "q1")
	cp := a.Checkpoint()

	b := newSession(t, m, nil)
	kept, err := b.Resume(cp)
	require.NoError(t, err)
	require.True(t, kept)
	require.Equal(t, cp.Snapshot.TokenCount, b.TokenCount())
	require.Equal(t, cp.History, b.History())

	_, err = b.Resume(Checkpoint{History: cp.History[:1]})
	require.Error(t, err)
}

func TestEncodingErrorLeavesConversationUntouched(t *testing.T) {
	m := enginetest.New("m", 4096)
	m.Say("one")
	s := newSession(t, m, nil)
	respond(t, s, "q1")
	before := s.Checkpoint()
	count := s.TokenCount()

	m.FailTokenize(errors.New("invalid byte sequence"))
	st, err := s.Respond(context.Background(), "q2")
	require.Nil(t, st)
	require.Error(t, err)
	require.True(t, codec.IsEncodingError(err))

	require.Equal(t, before.History, s.History())
	require.Equal(t, before.Snapshot, s.Checkpoint().Snapshot)
	require.Equal(t, count, s.TokenCount())
	require.Equal(t, StateIdle, s.State())
}

func TestEngineFailureIsFatal(t *testing.T) {
	m := enginetest.New("m", 4096)
	m.Say("never")
	m.FailDecodeAt(1, errors.New("kv cache corrupted"))

	var (
		mu  sync.Mutex
		got *engine.FatalError
	)
	s, err := New(m, Config{Template: testTemplate}, WithFatalHandler(func(err *engine.FatalError) {
		mu.Lock()
		got = err
		mu.Unlock()
		runtime.Goexit()
	}))
	require.NoError(t, err)
	defer s.Close()

	st, err := s.Respond(context.Background(), "hi")
	require.NoError(t, err)
	res := st.Wait()
	require.Equal(t, FinishError, res.FinishReason)
	require.True(t, engine.IsFatal(res.Err))

	mu.Lock()
	require.NotNil(t, got)
	require.Equal(t, "decode", got.Op)
	mu.Unlock()
	require.Empty(t, s.History())
	require.Equal(t, StateIdle, s.State())
	requireContextsReleased(t, m)
}

func TestEmptyInputIsANoop(t *testing.T) {
	m := enginetest.New("m", 4096)
	s := newSession(t, m, nil)
	frags, res := respond(t, s, "")
	require.Empty(t, frags)
	require.Equal(t, FinishEmpty, res.FinishReason)
	opened, _ := m.Contexts()
	require.Zero(t, opened)
}

func TestOutputProjection(t *testing.T) {
	m := enginetest.New("m", 4096)
	m.Say("  hi", " there \n")
	m.Say("  ", "\n")
	s := newSession(t, m, nil)

	respond(t, s, "q1")
	require.Equal(t, "hi there", s.Output())
	require.Equal(t, "  hi there \n", s.History()[1].Content)

	respond(t, s, "q2")
	require.Equal(t, "...", s.Output())
}

func TestSplitCharacterIsReassembled(t *testing.T) {
	m := enginetest.New("m", 4096)
	m.Say("price: ", "\xe2\x82", "\xac")
	s := newSession(t, m, nil)

	frags, res := respond(t, s, "cost?")
	require.Equal(t, []string{"price: ", "€"}, frags)
	require.Equal(t, "price: €", res.Content)
	require.NotNil(t, s.Checkpoint().Snapshot)
}

func TestClearHistory(t *testing.T) {
	m := enginetest.New("m", 4096)
	m.Say("one")
	s := newSession(t, m, nil)
	respond(t, s, "q1")
	require.NotZero(t, s.TokenCount())

	require.NoError(t, s.ClearHistory())
	require.Empty(t, s.History())
	require.Nil(t, s.Checkpoint().Snapshot)
	require.Zero(t, s.TokenCount())
	require.Empty(t, s.Output())
}

func TestClearHistoryCancelsInflight(t *testing.T) {
	m := enginetest.New("m", 4096)
	m.Enqueue(enginetest.Reply{Repeat: "x"})
	s := newSession(t, m, func(c *Config) { c.StreamBuffer = 1 })

	st, err := s.Respond(context.Background(), "go")
	require.NoError(t, err)
	<-st.Fragments()
	require.NoError(t, s.ClearHistory())

	select {
	case <-st.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("generation still running after ClearHistory")
	}
	require.Equal(t, FinishCancelled, st.Wait().FinishReason)
	require.Empty(t, s.History())
}

func TestClearHistoryOnClosedSession(t *testing.T) {
	m := enginetest.New("m", 4096)
	m.Say("one")
	s := newSession(t, m, nil)
	respond(t, s, "q1")
	require.NoError(t, s.Close())

	err := s.ClearHistory()
	require.True(t, IsClosed(err), "got %v", err)
	require.Len(t, s.History(), 2)
}

func TestCompleteLeavesConversationAlone(t *testing.T) {
	m := enginetest.New("m", 4096)
	m.Say("one")
	m.Say(" world")
	s := newSession(t, m, nil)
	respond(t, s, "q1")
	before := s.Checkpoint()

	text, res, err := s.Complete(context.Background(), "hello")
	require.NoError(t, err)
	require.Equal(t, " world", text)
	require.Equal(t, FinishEOS, res.FinishReason)
	require.Equal(t, m.TokenCount("hello", true), res.Usage.PromptTokens)
	require.Equal(t, before.History, s.History())
	require.Equal(t, before.Snapshot, s.Checkpoint().Snapshot)
	require.Equal(t, "one", s.Output())
}

func TestSamplerConfiguredOnce(t *testing.T) {
	m := enginetest.New("m", 4096)
	m.Say("a")
	m.Say("b")
	s := newSession(t, m, func(c *Config) { c.TopK = 7; c.TopP = 0.5; c.Temperature = 0.3; c.Seed = 99 })
	respond(t, s, "1")
	respond(t, s, "2")

	params := m.SamplerParams()
	require.Len(t, params, 1)
	require.Equal(t, engine.SamplerParams{TopK: 7, TopP: 0.5, Temperature: 0.3, Seed: 99}, params[0])
}

func TestUsageAndMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg)
	m := enginetest.New("m", 4096)
	m.Say("a", "b", "c")
	var hooked []Result
	s := newSession(t, m, nil, WithMetrics(metrics), WithFinishHook(func(r Result) { hooked = append(hooked, r) }))

	_, res := respond(t, s, "go")
	require.Equal(t, m.TokenCount("U:go\nA:", true), res.Usage.PromptTokens)
	require.Equal(t, 3, res.Usage.CompletionTokens)
	require.Equal(t, res.Usage.PromptTokens+3, res.Usage.TotalTokens())
	require.Equal(t, res.Usage, s.LastUsage())
	require.Len(t, hooked, 1)

	require.Equal(t, 1.0, testutil.ToFloat64(metrics.finishes.WithLabelValues("eos")))
	require.Equal(t, 3.0, testutil.ToFloat64(metrics.completionTokens))
	snap := s.Checkpoint().Snapshot
	require.NotNil(t, snap)
	require.Equal(t, float64(snap.Size), testutil.ToFloat64(metrics.snapshotBytes))
}

func TestNewRejectsBadConfig(t *testing.T) {
	m := enginetest.New("m", 4096)
	_, err := New(m, Config{Template: testTemplate, TopP: 1.5})
	require.Error(t, err)
	_, err = New(nil, Config{})
	require.Error(t, err)

	s, err := New(m, Config{})
	require.NoError(t, err)
	require.Equal(t, template.Default, s.Template().Preset)
	require.Equal(t, DefaultMaxTokenCount, s.MaxTokenCount())
	require.NoError(t, s.Close())
	_, err = s.Respond(context.Background(), "hi")
	require.True(t, IsClosed(err))
}

func TestTrainedWindowCapsMaxTokens(t *testing.T) {
	s := newSession(t, enginetest.New("m", 512), nil)
	require.Equal(t, 512, s.MaxTokenCount())
}

func TestSnapshotSurvivesCancelledTurn(t *testing.T) {
	m := enginetest.New("m", 4096)
	m.Say("one")
	m.Enqueue(enginetest.Reply{Repeat: "x"})
	s := newSession(t, m, func(c *Config) { c.StreamBuffer = 1 })
	respond(t, s, "q1")
	snap := s.Checkpoint().Snapshot
	require.NotNil(t, snap)

	st, err := s.Respond(context.Background(), "q2")
	require.NoError(t, err)
	<-st.Fragments()
	s.Stop()
	require.Equal(t, FinishCancelled, st.Wait().FinishReason)

	require.Same(t, snap, s.Checkpoint().Snapshot)
	require.Equal(t, snap.TokenCount, s.TokenCount())
}
