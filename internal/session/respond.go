package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"chatd/internal/engine"
	"chatd/internal/state"
	"chatd/pkg/types"
)

type mode int

const (
	modeChat mode = iota
	modeCompletion
)

// plan is the outcome of prepare: what to feed and where.
type plan struct {
	mode    mode
	input   string
	handle  *engine.Handle
	tokens  []engine.Token
	start   int
	full    bool
	evicted int
}

// Respond starts generating the answer to input. A generation already in
// flight is cancelled and awaited first. Encoding failures are returned
// without touching the conversation. The returned stream always ends; when
// the input cannot fit the window it carries the recovery fragment and
// finishes with FinishFull.
func (s *Session) Respond(ctx context.Context, input string) (*Stream, error) {
	s.respondMu.Lock()
	defer s.respondMu.Unlock()
	if s.isClosed() {
		return nil, ErrClosed
	}
	if input == "" {
		res := Result{FinishReason: FinishEmpty}
		s.metrics.observeFinish(res)
		return finishedStream(res), nil
	}
	s.cancelInflight(true)

	s.setState(StatePreparing)
	p, err := s.prepareChat(input)
	if err != nil {
		s.setState(StateIdle)
		return nil, err
	}
	if p.full {
		return s.exhausted(input), nil
	}
	return s.start(ctx, p), nil
}

// Complete feeds prompt to the model verbatim and returns the generated
// text. The conversation, its snapshot and the output projection are left
// untouched. Like Respond it supersedes a generation in flight.
func (s *Session) Complete(ctx context.Context, prompt string) (string, Result, error) {
	s.respondMu.Lock()
	if s.isClosed() {
		s.respondMu.Unlock()
		return "", Result{}, ErrClosed
	}
	if prompt == "" {
		s.respondMu.Unlock()
		return "", Result{FinishReason: FinishEmpty}, nil
	}
	s.cancelInflight(true)
	s.setState(StatePreparing)
	toks, err := s.codec.Encode(prompt)
	if err != nil {
		s.setState(StateIdle)
		s.respondMu.Unlock()
		return "", Result{}, fmt.Errorf("session: %w", err)
	}
	if len(toks) >= s.maxTokens {
		s.setState(StateIdle)
		s.respondMu.Unlock()
		text := s.recover(prompt)
		return text, Result{Content: text, FinishReason: FinishFull}, nil
	}
	h, err := s.open()
	if err != nil {
		s.setState(StateIdle)
		s.respondMu.Unlock()
		return "", Result{}, err
	}
	st := s.start(ctx, plan{mode: modeCompletion, input: prompt, handle: h, tokens: toks})
	s.respondMu.Unlock()

	text, res := st.Collect()
	return text, res, res.Err
}

func (s *Session) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *Session) open() (*engine.Handle, error) {
	opts := []engine.HandleOption{engine.WithSampler(s.sampler), engine.WithLogger(s.log)}
	if s.onFatal != nil {
		opts = append(opts, engine.WithFatalHandler(s.onFatal))
	}
	h, err := engine.Open(s.model, engine.ContextParams{
		WindowSize: s.maxTokens,
		BatchSize:  s.cfg.BatchSize,
		Threads:    s.cfg.Threads,
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("session: %w", err)
	}
	return h, nil
}

// prepareChat renders and encodes the turn, evicting history until it fits,
// then opens the context and restores resident memory when it can be reused.
// History is trimmed only once the turn is known to proceed: the input does
// not fit at all, or the context is open.
func (s *Session) prepareChat(input string) (plan, error) {
	s.mu.Lock()
	resident := s.snapshotUsableLocked()
	snap := s.snapshot
	turns := s.history.Turns()
	s.mu.Unlock()

	for {
		p, kept, err := s.fit(input, turns, resident, snap)
		if err != nil {
			return plan{}, err
		}
		if p.full {
			s.commitEviction(p.evicted, kept)
			return p, nil
		}

		h, err := s.open()
		if err != nil {
			return plan{}, err
		}
		s.commitEviction(p.evicted, kept)
		if p.start == 0 {
			p.handle = h
			return p, nil
		}
		if err := state.Restore(h, snap); err != nil {
			s.log.Warn().Err(err).Msg("snapshot restore failed; re-rendering conversation")
			_ = h.Close()
			s.mu.Lock()
			s.dropSnapshotLocked(restoreDropReason(err))
			s.mu.Unlock()
			resident, snap, turns = false, nil, kept
			continue
		}
		p.handle = h
		return p, nil
	}
}

// commitEviction replaces the history with the turns kept by fit.
func (s *Session) commitEviction(evicted int, kept []types.Turn) {
	if evicted == 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	// Resident memory still holds the evicted turns.
	_ = s.history.Replace(kept)
	s.dropSnapshotLocked("eviction")
	s.metrics.evicted(evicted)
	s.evictions.Add(uint64(evicted))
	s.log.Debug().Int("evicted", evicted).Msg("history evicted to fit window")
}

func restoreDropReason(err error) string {
	if state.IsMismatch(err) {
		return "mismatch"
	}
	return "corrupt"
}

// fit implements the window policy: while the rendered turn does not leave
// room for generation and history remains, evict the oldest pair and render
// again from scratch.
func (s *Session) fit(input string, turns []types.Turn, resident bool, snap *state.Snapshot) (plan, []types.Turn, error) {
	p := plan{mode: modeChat, input: input}
	toks, err := s.render(turns, input, resident)
	if err != nil {
		return plan{}, nil, err
	}
	count := len(toks)
	if resident {
		p.start = snap.TokenCount
		count += p.start
	}
	for count >= s.maxTokens && len(turns) > 0 {
		n := min(2, len(turns))
		turns = turns[n:]
		p.evicted += n
		p.start = 0
		if toks, err = s.render(turns, input, false); err != nil {
			return plan{}, nil, err
		}
		count = len(toks)
	}
	p.tokens = toks
	p.full = count >= s.maxTokens
	return p, turns, nil
}

func (s *Session) render(turns []types.Turn, input string, resident bool) ([]engine.Token, error) {
	text := s.tpl.Render(turns, input, resident)
	var (
		toks []engine.Token
		err  error
	)
	if resident {
		toks, err = s.codec.EncodeContinuation(text)
	} else {
		toks, err = s.codec.Encode(text)
	}
	if err != nil {
		return nil, fmt.Errorf("session: %w", err)
	}
	return toks, nil
}

// exhausted handles input that cannot fit even with an empty history.
func (s *Session) exhausted(input string) *Stream {
	s.setState(StateFull)
	text := s.recover(input)
	res := Result{Content: text, FinishReason: FinishFull}
	s.log.Info().Int("window", s.maxTokens).Msg("input exceeds context window")

	s.mu.Lock()
	s.output.Reset()
	s.output.WriteString(text)
	s.lastUsage = Usage{}
	s.state = StateIdle
	s.mu.Unlock()
	s.metrics.observeFinish(res)
	if s.onFinish != nil {
		s.onFinish(res)
	}
	return finishedStream(res, text)
}

// start launches the worker for p. Callers hold respondMu.
func (s *Session) start(ctx context.Context, p plan) *Stream {
	gctx, cancel := context.WithCancel(ctx)
	g := &generation{cancel: cancel, done: make(chan struct{})}
	st := newStream(s.cfg.StreamBuffer)

	s.mu.Lock()
	s.cur = g
	s.state = StateGenerating
	if p.mode == modeChat {
		s.output.Reset()
	}
	s.mu.Unlock()

	go s.run(gctx, g, st, p)
	return st
}

// outcome is what the decode loop leaves behind for completion.
type outcome struct {
	reason  FinishReason
	content strings.Builder
	// count is the number of tokens resident in the context.
	count int
	// advanced is the number of generated bytes fed back to the engine.
	advanced   int
	completion int
}

func (s *Session) run(ctx context.Context, g *generation, st *Stream, p plan) {
	defer close(g.done)
	defer g.cancel()
	h := p.handle
	defer h.Close()
	began := time.Now()
	finished := false
	// An engine failure may unwind this goroutine from inside Advance.
	defer func() {
		if finished {
			return
		}
		var err error = errors.New("generation aborted")
		if fe := h.Err(); fe != nil {
			err = fe
		}
		_ = h.Close()
		s.abort(g, st, p, err, time.Since(began))
	}()

	h.Advance(engine.Sequential(p.tokens, p.start))
	if h.Err() != nil {
		return
	}
	out := &outcome{count: p.start + len(p.tokens)}
	if p.mode == modeChat {
		s.mu.Lock()
		s.tokenCount = out.count
		s.mu.Unlock()
	}
	s.decode(ctx, st, h, p, out)
	if h.Err() != nil {
		return
	}
	if p.mode == modeChat {
		s.complete(g, h, p, out)
		if h.Err() != nil {
			return
		}
	}

	usage := Usage{PromptTokens: len(p.tokens), CompletionTokens: out.completion, Duration: time.Since(began)}
	res := Result{Content: out.content.String(), FinishReason: out.reason, Usage: usage}
	s.mu.Lock()
	s.lastUsage = usage
	if s.cur == g {
		s.cur = nil
	}
	s.state = StateIdle
	s.mu.Unlock()
	s.metrics.observeFinish(res)
	s.log.Debug().
		Str("reason", string(res.FinishReason)).
		Int("prompt_tokens", usage.PromptTokens).
		Int("completion_tokens", usage.CompletionTokens).
		Dur("duration", usage.Duration).
		Msg("generation finished")
	_ = h.Close()
	if p.mode == modeChat && s.onFinish != nil {
		s.onFinish(res)
	}
	finished = true
	st.finish(res)
}

// decode is the generation loop: sample, decode, scan for the stop
// sequence, deliver, feed the token back.
func (s *Session) decode(ctx context.Context, st *Stream, h *engine.Handle, p plan, out *outcome) {
	dec := s.codec.NewDecoder()
	dec.Reset()
	scan := NewStopScanner(s.stop)

	for {
		if out.count >= s.maxTokens {
			out.reason = FinishLength
			break
		}
		if ctx.Err() != nil {
			out.reason = FinishCancelled
			return
		}
		tok := h.Sample(-1)
		if h.Err() != nil {
			return
		}
		if s.model.IsEndOfGeneration(tok) {
			out.reason = FinishEOS
			break
		}
		out.completion++
		before := dec.Consumed()
		text, stopped := scan.Scan(dec.Decode(tok))
		if text != "" && !s.deliver(ctx, st, p, out, text) {
			out.reason = FinishCancelled
			return
		}
		if stopped {
			out.reason = FinishStop
			return
		}
		h.Advance(engine.Sequential([]engine.Token{tok}, out.count))
		if h.Err() != nil {
			return
		}
		out.count++
		out.advanced += dec.Consumed() - before
		if p.mode == modeChat {
			s.mu.Lock()
			s.tokenCount = out.count
			s.mu.Unlock()
		}
	}

	// The stream ended without a stop match: whatever is still held back
	// is legitimate output.
	tail, stopped := scan.Scan(dec.Flush())
	if !stopped {
		tail += scan.Flush()
	} else {
		out.reason = FinishStop
	}
	if tail != "" && !s.deliver(ctx, st, p, out, tail) {
		out.reason = FinishCancelled
	}
}

// deliver sends one fragment, giving up when ctx is cancelled.
func (s *Session) deliver(ctx context.Context, st *Stream, p plan, out *outcome, text string) bool {
	if ctx.Err() != nil {
		return false
	}
	select {
	case st.frags <- text:
	case <-ctx.Done():
		return false
	}
	out.content.WriteString(text)
	if p.mode == modeChat {
		s.mu.Lock()
		s.output.WriteString(text)
		s.mu.Unlock()
	}
	return true
}

// complete commits a finished chat turn: history, output projection and the
// snapshot that lets the next turn skip re-rendering.
func (s *Session) complete(g *generation, h *engine.Handle, p plan, out *outcome) {
	s.setState(StateFinishing)
	content := out.content.String()
	trimmed := strings.TrimSpace(content)

	var answer string
	appendTurn := false
	switch out.reason {
	case FinishCancelled:
		s.setState(StateCancelled)
		if s.cfg.KeepPartial && !g.superseded.Load() && trimmed != "" {
			answer, appendTurn = trimmed, true
		}
	default:
		if content != "" {
			answer, appendTurn = content, true
		}
	}

	// Resident memory matches a full render of the new history only when
	// the turn ended cleanly, every generated byte that was fed back is part
	// of the answer and the template renders the bot prefix unchanged.
	var snap *state.Snapshot
	if appendTurn && answer == content && out.advanced == len(content) &&
		(out.reason == FinishEOS || out.reason == FinishStop) && s.tpl.Resumable() {
		snap = s.closeTurn(h, out.count)
	}

	if h.Err() != nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.output.Reset()
	switch {
	case trimmed != "":
		s.output.WriteString(trimmed)
	case out.reason != FinishCancelled:
		s.output.WriteString("...")
	}
	if !appendTurn {
		// The conversation did not change; the previous snapshot, if any,
		// still describes it.
		if s.snapshot != nil {
			s.tokenCount = s.snapshot.TokenCount
		} else {
			s.tokenCount = 0
		}
		return
	}
	evicted := s.history.AppendPair(p.input, answer)
	s.metrics.evicted(evicted)
	s.evictions.Add(uint64(evicted))
	switch {
	case evicted > 0:
		s.dropSnapshotLocked("eviction")
	case snap == nil:
		s.dropSnapshotLocked("unclean_turn")
	default:
		s.snapshot = snap
		s.tokenCount = snap.TokenCount
		s.metrics.snapshotTaken(snap.Size)
	}
}

// closeTurn feeds the assistant closing marker and captures engine memory.
// It returns nil when the marker does not fit or capture fails.
func (s *Session) closeTurn(h *engine.Handle, count int) *state.Snapshot {
	closing := s.tpl.Closing()
	if closing != "" {
		toks, err := s.codec.EncodeContinuation(closing)
		if err != nil || count+len(toks) > s.maxTokens {
			return nil
		}
		h.Advance(engine.Sequential(toks, count))
		if h.Err() != nil {
			return nil
		}
		count += len(toks)
	}
	snap, err := state.Capture(h, count)
	if err != nil {
		s.log.Warn().Err(err).Msg("snapshot capture failed")
		return nil
	}
	return snap
}

// abort finishes a stream whose worker could not complete normally. The
// conversation is left as it was before the turn.
func (s *Session) abort(g *generation, st *Stream, p plan, err error, took time.Duration) {
	res := Result{FinishReason: FinishError, Err: err, Usage: Usage{PromptTokens: len(p.tokens), Duration: took}}
	s.mu.Lock()
	if p.mode == modeChat {
		s.dropSnapshotLocked("engine_failure")
	}
	if s.cur == g {
		s.cur = nil
	}
	s.state = StateIdle
	s.mu.Unlock()
	s.metrics.observeFinish(res)
	s.log.Error().Err(err).Msg("generation aborted")
	st.finish(res)
}
