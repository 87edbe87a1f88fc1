// Package enginetest provides a deterministic in-memory engine for tests.
//
// Text is tokenized one byte per token. Generated output comes from scripted
// replies: each evaluation context created by the model takes the next queued
// reply and samples its pieces in order, then the end token.
package enginetest

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	"chatd/internal/engine"
)

const (
	// BOS is the beginning-of-sequence token.
	BOS engine.Token = 256
	// EOS is the end-of-sequence token.
	EOS engine.Token = 257
	// firstPiece is the first id assigned to scripted pieces.
	firstPiece engine.Token = 1000
)

// Reply scripts one generation.
type Reply struct {
	// Pieces are sampled in order, followed by EOS.
	Pieces []string
	// Repeat, when set, is sampled forever after Pieces are exhausted.
	Repeat string
}

// Model is a scripted engine.Model.
type Model struct {
	mu       sync.Mutex
	id       string
	window   int
	addBOS   bool
	pieces   map[engine.Token][]byte
	byPiece  map[string]engine.Token
	replies  []Reply
	steps    []engine.Batch
	decodes  int
	failAt   int
	failErr  error
	tokErr   error
	ctxErr   error
	opened   int
	closed   int
	samplers []engine.SamplerParams
}

// New returns a model with the given identity and trained window.
func New(id string, window int) *Model {
	return &Model{
		id:      id,
		window:  window,
		addBOS:  true,
		pieces:  make(map[engine.Token][]byte),
		byPiece: make(map[string]engine.Token),
	}
}

// WithoutBOS disables the beginning-of-sequence convention.
func (m *Model) WithoutBOS() *Model {
	m.addBOS = false
	return m
}

// Enqueue queues scripted replies, one per future context.
func (m *Model) Enqueue(replies ...Reply) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range replies {
		for _, p := range r.Pieces {
			m.tokenFor(p)
		}
		if r.Repeat != "" {
			m.tokenFor(r.Repeat)
		}
	}
	m.replies = append(m.replies, replies...)
}

// Say queues a reply made of pieces.
func (m *Model) Say(pieces ...string) { m.Enqueue(Reply{Pieces: pieces}) }

// FailDecodeAt makes the n-th (1-based) Decode call fail with err.
func (m *Model) FailDecodeAt(n int, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failAt = n
	m.failErr = err
}

// FailNewContext makes every NewContext call fail with err.
func (m *Model) FailNewContext(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ctxErr = err
}

// FailTokenize makes every Tokenize call fail with err.
func (m *Model) FailTokenize(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokErr = err
}

// Steps returns every batch decoded so far, across contexts.
func (m *Model) Steps() []engine.Batch {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]engine.Batch(nil), m.steps...)
}

// Contexts reports how many contexts were opened and closed.
func (m *Model) Contexts() (opened, closed int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.opened, m.closed
}

// SamplerParams returns the parameters of every sampler created.
func (m *Model) SamplerParams() []engine.SamplerParams {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]engine.SamplerParams(nil), m.samplers...)
}

// TokenCount returns the number of tokens text encodes to.
func (m *Model) TokenCount(text string, addBOS bool) int {
	n := len(text)
	if addBOS && m.addBOS {
		n++
	}
	return n
}

func (m *Model) tokenFor(piece string) engine.Token {
	// Single bytes decode the same way the tokenizer produced them.
	if len(piece) == 1 {
		return engine.Token(piece[0])
	}
	if t, ok := m.byPiece[piece]; ok {
		return t
	}
	t := firstPiece + engine.Token(len(m.byPiece))
	m.byPiece[piece] = t
	m.pieces[t] = []byte(piece)
	return t
}

func (m *Model) ID() string { return m.id }
func (m *Model) TrainedWindow() int { return m.window }
func (m *Model) EndToken() engine.Token { return EOS }
func (m *Model) IsEndOfGeneration(tok engine.Token) bool { return tok == EOS }
func (m *Model) Close() error { return nil }

func (m *Model) VocabSize() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int(firstPiece) + len(m.byPiece)
}

func (m *Model) Tokenize(text string, addBOS bool) ([]engine.Token, error) {
	m.mu.Lock()
	err := m.tokErr
	m.mu.Unlock()
	if err != nil {
		return nil, err
	}
	out := make([]engine.Token, 0, len(text)+1)
	if addBOS && m.addBOS {
		out = append(out, BOS)
	}
	for i := 0; i < len(text); i++ {
		out = append(out, engine.Token(text[i]))
	}
	return out, nil
}

func (m *Model) Piece(tok engine.Token) []byte {
	if tok >= 0 && tok < 256 {
		return []byte{byte(tok)}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.pieces[tok]; ok {
		return append([]byte(nil), p...)
	}
	return nil
}

func (m *Model) NewContext(p engine.ContextParams) (engine.Context, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ctxErr != nil {
		return nil, m.ctxErr
	}
	c := &Context{model: m, params: p}
	if len(m.replies) > 0 {
		c.reply = m.replies[0]
		m.replies = m.replies[1:]
	}
	m.opened++
	return c, nil
}

func (m *Model) NewSampler(p engine.SamplerParams) (engine.Sampler, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.samplers = append(m.samplers, p)
	return sampler{}, nil
}

// Context is a scripted evaluation context.
type Context struct {
	model    *Model
	params   engine.ContextParams
	reply    Reply
	cursor   int
	resident []engine.Token
	closed   bool
}

// Resident returns the tokens currently held by the context.
func (c *Context) Resident() []engine.Token { return append([]engine.Token(nil), c.resident...) }

func (c *Context) Decode(b engine.Batch) error {
	m := c.model
	m.mu.Lock()
	m.decodes++
	fail := m.failAt > 0 && m.decodes == m.failAt
	failErr := m.failErr
	m.steps = append(m.steps, engine.Batch{
		Tokens:    append([]engine.Token(nil), b.Tokens...),
		Positions: append([]int(nil), b.Positions...),
		Logits:    append([]bool(nil), b.Logits...),
	})
	m.mu.Unlock()
	if fail {
		if failErr == nil {
			failErr = errors.New("decode failed")
		}
		return failErr
	}
	for i, pos := range b.Positions {
		if pos != len(c.resident) {
			return fmt.Errorf("position %d out of order (resident %d)", pos, len(c.resident))
		}
		if pos >= c.params.WindowSize {
			return fmt.Errorf("position %d exceeds window %d", pos, c.params.WindowSize)
		}
		c.resident = append(c.resident, b.Tokens[i])
	}
	return nil
}

func (c *Context) StateSize() int { return 4 * len(c.resident) }

func (c *Context) State() ([]byte, error) {
	out := make([]byte, 4*len(c.resident))
	for i, t := range c.resident {
		binary.LittleEndian.PutUint32(out[4*i:], uint32(t))
	}
	return out, nil
}

func (c *Context) SetState(data []byte) error {
	if len(data)%4 != 0 {
		return fmt.Errorf("bad state length %d", len(data))
	}
	c.resident = c.resident[:0]
	for i := 0; i < len(data); i += 4 {
		c.resident = append(c.resident, engine.Token(int32(binary.LittleEndian.Uint32(data[i:]))))
	}
	return nil
}

func (c *Context) Close() error {
	m := c.model
	m.mu.Lock()
	defer m.mu.Unlock()
	if !c.closed {
		c.closed = true
		m.closed++
	}
	return nil
}

// next returns the next scripted token for this context.
func (c *Context) next() engine.Token {
	m := c.model
	m.mu.Lock()
	defer m.mu.Unlock()
	if c.cursor < len(c.reply.Pieces) {
		p := c.reply.Pieces[c.cursor]
		c.cursor++
		return m.tokenFor(p)
	}
	if c.reply.Repeat != "" {
		return m.tokenFor(c.reply.Repeat)
	}
	return EOS
}

type sampler struct{}

func (sampler) Sample(ctx engine.Context, _ int) engine.Token {
	c, ok := ctx.(*Context)
	if !ok {
		return EOS
	}
	return c.next()
}

func (sampler) Close() error { return nil }
