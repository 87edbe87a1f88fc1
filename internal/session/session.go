// Package session runs a chat conversation against a loaded model.
//
// A Session owns the conversation history, the snapshot of engine memory
// taken after the last clean turn, and the token accounting for the context
// window. Respond renders the conversation, feeds it to a fresh evaluation
// context and streams the reply; only one generation runs at a time and a new
// Respond supersedes the one in flight.
package session

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	"chatd/internal/codec"
	"chatd/internal/engine"
	"chatd/internal/state"
	"chatd/internal/template"
	"chatd/pkg/types"
)

// State is the lifecycle phase of a session.
type State int32

const (
	StateIdle State = iota
	StatePreparing
	StateGenerating
	StateFinishing
	StateCancelled
	StateFull
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePreparing:
		return "preparing"
	case StateGenerating:
		return "generating"
	case StateFinishing:
		return "finishing"
	case StateCancelled:
		return "cancelled"
	case StateFull:
		return "full"
	}
	return fmt.Sprintf("state(%d)", int32(s))
}

// RecoveryFunc produces the fallback fragment emitted when input cannot fit
// the context window.
type RecoveryFunc func(input string) string

// Option customizes New.
type Option func(*Session)

// WithLogger sets the session logger.
func WithLogger(l zerolog.Logger) Option { return func(s *Session) { s.log = l } }

// WithRecovery replaces the window-exhaustion hook.
func WithRecovery(fn RecoveryFunc) Option {
	return func(s *Session) {
		if fn != nil {
			s.recover = fn
		}
	}
}

// WithFatalHandler is passed to every evaluation context the session opens.
func WithFatalHandler(fn engine.FatalHandler) Option { return func(s *Session) { s.onFatal = fn } }

// WithMetrics attaches prometheus collectors.
func WithMetrics(m *Metrics) Option { return func(s *Session) { s.metrics = m } }

// WithFinishHook is called after every chat turn ends, outside the session
// locks.
func WithFinishHook(fn func(Result)) Option { return func(s *Session) { s.onFinish = fn } }

// Session is one conversation bound to one model.
type Session struct {
	model     engine.Model
	codec     *codec.Codec
	tpl       template.Template
	cfg       Config
	stop      string
	maxTokens int
	sampler   engine.Sampler

	log      zerolog.Logger
	recover  RecoveryFunc
	onFatal  engine.FatalHandler
	metrics  *Metrics
	onFinish func(Result)

	// respondMu serializes Respond, Complete, ClearHistory and Resume so a
	// superseded generation is fully torn down before the next one starts.
	respondMu sync.Mutex

	mu         sync.Mutex
	history    *History
	snapshot   *state.Snapshot
	tokenCount int
	output     strings.Builder
	state      State
	lastUsage  Usage
	cur        *generation
	closed     bool

	evictions atomic.Uint64
}

// generation is the handle on one in-flight worker.
type generation struct {
	cancel     context.CancelFunc
	done       chan struct{}
	superseded atomic.Bool
}

// New creates a session for model. The sampler is configured once here and
// shared by every turn.
func New(model engine.Model, cfg Config, opts ...Option) (*Session, error) {
	if model == nil {
		return nil, fmt.Errorf("session: nil model")
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("session: %w", err)
	}
	maxTokens := cfg.MaxTokenCount
	if w := model.TrainedWindow(); w > 0 && w < maxTokens {
		maxTokens = w
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = rand.Uint32()
	}
	sampler, err := model.NewSampler(engine.SamplerParams{
		TopK:        cfg.TopK,
		TopP:        cfg.TopP,
		Temperature: cfg.Temperature,
		Seed:        seed,
	})
	if err != nil {
		return nil, fmt.Errorf("session: new sampler: %w", err)
	}
	s := &Session{
		model:     model,
		codec:     codec.New(model),
		tpl:       cfg.Template,
		cfg:       cfg,
		stop:      cfg.stopSequence(),
		maxTokens: maxTokens,
		sampler:   sampler,
		log:       zerolog.Nop(),
		history:   NewHistory(cfg.HistoryLimit),
	}
	s.recover = func(string) string { return s.cfg.FallbackText }
	for _, o := range opts {
		o(s)
	}
	return s, nil
}

// Stop requests cancellation of the generation in flight. It does not block
// and is a no-op when idle.
func (s *Session) Stop() {
	s.mu.Lock()
	g := s.cur
	s.mu.Unlock()
	if g != nil {
		g.cancel()
	}
}

// cancelInflight cancels the running generation, if any, and waits for its
// worker to exit. Callers hold respondMu.
func (s *Session) cancelInflight(supersede bool) {
	s.mu.Lock()
	g := s.cur
	s.mu.Unlock()
	if g == nil {
		return
	}
	if supersede {
		g.superseded.Store(true)
	}
	g.cancel()
	<-g.done
}

// ClearHistory cancels any generation in flight, then empties the history,
// discards the snapshot and resets the token accounting. A closed session is
// left untouched and reports ErrClosed.
func (s *Session) ClearHistory() error {
	s.respondMu.Lock()
	defer s.respondMu.Unlock()
	if s.isClosed() {
		return ErrClosed
	}
	s.cancelInflight(true)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.history.Reset()
	s.dropSnapshotLocked("clear")
	s.output.Reset()
	s.state = StateIdle
	s.log.Debug().Msg("history cleared")
	return nil
}

// Close cancels any generation in flight and releases the sampler.
func (s *Session) Close() error {
	s.respondMu.Lock()
	defer s.respondMu.Unlock()
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()
	s.cancelInflight(true)
	return s.sampler.Close()
}

// History returns a copy of the conversation.
func (s *Session) History() []types.Turn {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.history.Turns()
}

// Output returns the text of the current turn. Once a turn completes it is
// trimmed, or "..." when the turn produced only whitespace.
func (s *Session) Output() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.output.String()
}

// TokenCount is the number of tokens resident in engine memory.
func (s *Session) TokenCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tokenCount
}

// MaxTokenCount is the size of the context window.
func (s *Session) MaxTokenCount() int { return s.maxTokens }

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// LastUsage reports the metrics of the last finished generation.
func (s *Session) LastUsage() Usage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastUsage
}

// Evictions counts turns evicted over the session's lifetime.
func (s *Session) Evictions() uint64 { return s.evictions.Load() }

// Template returns the template the session renders with.
func (s *Session) Template() template.Template { return s.tpl }

// ModelID identifies the bound model.
func (s *Session) ModelID() string { return s.model.ID() }

// Fingerprint identifies the model and window snapshots are valid for.
func (s *Session) Fingerprint() string { return engine.Fingerprint(s.model.ID(), s.maxTokens) }

func (s *Session) setState(st State) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

func (s *Session) dropSnapshotLocked(reason string) {
	if s.snapshot != nil {
		s.log.Debug().Str("reason", reason).Int("tokens", s.snapshot.TokenCount).Msg("snapshot dropped")
		s.metrics.snapshotDropped(reason)
	}
	s.snapshot = nil
	s.tokenCount = 0
}

// snapshotUsableLocked reports whether the stored snapshot can seed the next
// turn. An unusable snapshot is dropped.
func (s *Session) snapshotUsableLocked() bool {
	snap := s.snapshot
	switch {
	case snap == nil:
		return false
	case snap.Fingerprint != s.Fingerprint():
		s.dropSnapshotLocked("mismatch")
	case snap.Size != len(snap.Data) || snap.TokenCount <= 0 || snap.TokenCount > s.maxTokens:
		s.dropSnapshotLocked("corrupt")
	case s.history.Len() == 0:
		s.dropSnapshotLocked("no_history")
	default:
		return true
	}
	return false
}
