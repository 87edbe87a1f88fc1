package engine

import (
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/rs/zerolog"
	"github.com/zeebo/blake3"
)

// FatalHandler receives unrecoverable engine failures. It must not return
// control to the generation loop; the default terminates the process.
type FatalHandler func(err *FatalError)

// Handle owns one evaluation context bound to a loaded model. Only one step may
// be in flight at a time.
type Handle struct {
	mu      sync.Mutex
	model   Model
	ctx     Context
	sampler Sampler
	params  ContextParams
	onFatal FatalHandler
	log     zerolog.Logger
	closed  bool
	failed  *FatalError
}

// HandleOption customizes Open.
type HandleOption func(*Handle)

// WithFatalHandler replaces the process-terminating default.
func WithFatalHandler(fn FatalHandler) HandleOption {
	return func(h *Handle) {
		if fn != nil {
			h.onFatal = fn
		}
	}
}

// WithSampler attaches the session sampler used by Sample.
func WithSampler(s Sampler) HandleOption { return func(h *Handle) { h.sampler = s } }

// WithLogger sets the logger used for fatal reporting.
func WithLogger(l zerolog.Logger) HandleOption { return func(h *Handle) { h.log = l } }

// Open creates a native context for model with fixed parameters.
func Open(model Model, params ContextParams, opts ...HandleOption) (*Handle, error) {
	if model == nil {
		return nil, errors.New("engine: nil model")
	}
	if params.WindowSize <= 0 {
		return nil, fmt.Errorf("engine: invalid window size %d", params.WindowSize)
	}
	if params.BatchSize <= 0 || params.BatchSize > params.WindowSize {
		params.BatchSize = params.WindowSize
	}
	h := &Handle{model: model, params: params, log: zerolog.Nop()}
	for _, o := range opts {
		o(h)
	}
	if h.onFatal == nil {
		h.onFatal = func(err *FatalError) {
			h.log.WithLevel(zerolog.FatalLevel).Err(err.Err).Str("op", err.Op).Msg("engine step failed")
			os.Exit(1)
		}
	}
	ctx, err := model.NewContext(params)
	if err != nil {
		return nil, fmt.Errorf("engine: new context: %w", err)
	}
	h.ctx = ctx
	return h, nil
}

// Params returns the context parameters fixed at Open.
func (h *Handle) Params() ContextParams { return h.params }

// Advance feeds a batch through the engine. Batches longer than the batch size
// are split into consecutive steps. An engine error is fatal.
func (h *Handle) Advance(b Batch) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		h.fail("advance", errors.New("context closed"))
		return
	}
	if len(b.Positions) != len(b.Tokens) || len(b.Logits) != len(b.Tokens) {
		h.fail("advance", fmt.Errorf("malformed batch: %d tokens, %d positions, %d logits",
			len(b.Tokens), len(b.Positions), len(b.Logits)))
		return
	}
	step := h.params.BatchSize
	for start := 0; start < len(b.Tokens); start += step {
		end := start + step
		if end > len(b.Tokens) {
			end = len(b.Tokens)
		}
		part := Batch{Tokens: b.Tokens[start:end], Positions: b.Positions[start:end], Logits: b.Logits[start:end]}
		if err := h.ctx.Decode(part); err != nil {
			h.fail("decode", err)
			return
		}
	}
}

// fail hands the error to the fatal handler. It is called with h.mu held; the
// lock is released first so a handler that unwinds the goroutine does not
// leave the handle locked.
func (h *Handle) fail(op string, err error) {
	fe := &FatalError{Op: op, Err: err}
	h.failed = fe
	h.mu.Unlock()
	defer h.mu.Lock()
	h.onFatal(fe)
}

// Err returns the failure handed to the fatal handler, if any. A handle that
// failed must not be advanced again.
func (h *Handle) Err() *FatalError {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.failed
}

// Sample draws the next token from the logits at index of the last step.
func (h *Handle) Sample(index int) Token {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.sampler == nil {
		h.fail("sample", errors.New("no sampler attached"))
		return h.model.EndToken()
	}
	return h.sampler.Sample(h.ctx, index)
}

// StateSize reports the engine-determined size of the resident memory.
func (h *Handle) StateSize() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.ctx.StateSize()
}

// State copies the resident memory.
func (h *Handle) State() ([]byte, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil, errors.New("engine: context closed")
	}
	return h.ctx.State()
}

// SetState writes back a blob produced by State.
func (h *Handle) SetState(data []byte) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return errors.New("engine: context closed")
	}
	return h.ctx.SetState(data)
}

// Fingerprint identifies the model binding and window size this handle was
// opened with. State blobs are only portable between equal fingerprints.
func (h *Handle) Fingerprint() string {
	return Fingerprint(h.model.ID(), h.params.WindowSize)
}

// Fingerprint hashes a model identity and window size.
func Fingerprint(modelID string, window int) string {
	hasher := blake3.New()
	_, _ = hasher.Write([]byte(modelID))
	var w [8]byte
	binary.LittleEndian.PutUint64(w[:], uint64(window))
	_, _ = hasher.Write(w[:])
	return hex.EncodeToString(hasher.Sum(nil))
}

// Close releases the native context. Safe to call more than once.
func (h *Handle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil
	}
	h.closed = true
	return h.ctx.Close()
}
