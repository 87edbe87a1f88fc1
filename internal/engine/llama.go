//go:build llama

package engine

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/hybridgroup/yzma/pkg/llama"
)

// llamaBuilt indicates this binary was compiled with real llama support.
const llamaBuilt = true

var (
	initOnce sync.Once
	initErr  error
)

// libDir resolves the directory holding the llama.cpp shared libraries.
func libDir() string {
	if v := strings.TrimSpace(os.Getenv("CHATD_LLAMA_LIB")); v != "" {
		return v
	}
	if exe, err := os.Executable(); err == nil {
		return filepath.Dir(exe)
	}
	return "."
}

func initBackend() {
	if err := llama.Load(libDir()); err != nil {
		initErr = ErrDependencyUnavailable(fmt.Sprintf("load llama.cpp libraries from %s: %v", libDir(), err))
		return
	}
	llama.Init()
}

// llamaModel owns the loaded weights.
type llamaModel struct {
	path  string
	model llama.Model
	vocab llama.Vocab
}

// Load loads a GGUF model through llama.cpp.
func Load(path string, params ModelParams) (Model, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("model path is empty")
	}
	initOnce.Do(initBackend)
	if initErr != nil {
		return nil, initErr
	}
	mp := llama.ModelDefaultParams()
	mp.NGpuLayers = int32(params.GPULayers)
	m, err := llama.ModelLoadFromFile(path, mp)
	if err != nil && params.GPULayers != 0 {
		// Retry on CPU when offload fails.
		mp.NGpuLayers = 0
		m, err = llama.ModelLoadFromFile(path, mp)
	}
	if err != nil {
		return nil, fmt.Errorf("load model %s: %w", path, err)
	}
	return &llamaModel{path: path, model: m, vocab: llama.ModelGetVocab(m)}, nil
}

func (m *llamaModel) ID() string { return m.path }

func (m *llamaModel) TrainedWindow() int { return int(llama.ModelNCtxTrain(m.model)) }

func (m *llamaModel) EndToken() Token { return Token(llama.VocabEOS(m.vocab)) }

func (m *llamaModel) IsEndOfGeneration(tok Token) bool {
	return llama.VocabIsEOG(m.vocab, llama.Token(tok))
}

func (m *llamaModel) VocabSize() int { return int(llama.VocabNTokens(m.vocab)) }

func (m *llamaModel) Tokenize(text string, addBOS bool) ([]Token, error) {
	raw := llama.Tokenize(m.vocab, text, addBOS, true)
	if len(raw) == 0 && text != "" {
		return nil, fmt.Errorf("tokenize: engine returned no tokens for %d bytes", len(text))
	}
	out := make([]Token, len(raw))
	for i, t := range raw {
		out[i] = Token(t)
	}
	return out, nil
}

func (m *llamaModel) Piece(tok Token) []byte {
	buf := make([]byte, 16)
	n := llama.TokenToPiece(m.vocab, llama.Token(tok), buf, 0, false)
	if n < 0 {
		buf = make([]byte, -n)
		n = llama.TokenToPiece(m.vocab, llama.Token(tok), buf, 0, false)
	}
	if n <= 0 {
		return nil
	}
	return buf[:n]
}

func (m *llamaModel) NewContext(p ContextParams) (Context, error) {
	c := &llamaContext{model: m, params: p}
	if err := c.init(); err != nil {
		return nil, err
	}
	return c, nil
}

func (m *llamaModel) NewSampler(p SamplerParams) (Sampler, error) {
	chain := llama.SamplerChainInit(llama.SamplerChainDefaultParams())
	if chain == 0 {
		return nil, errors.New("create sampler chain")
	}
	for _, st := range p.chain() {
		var smpl llama.Sampler
		switch st.kind {
		case stageTopK:
			smpl = llama.SamplerInitTopK(st.k)
		case stageTopP:
			smpl = llama.SamplerInitTopP(st.value, 1)
		case stageTemperature:
			smpl = llama.SamplerInitTempExt(st.value, 0, 1)
		case stageDist:
			smpl = llama.SamplerInitDist(st.seed)
		}
		llama.SamplerChainAdd(chain, smpl)
	}
	return &llamaSampler{s: chain}, nil
}

func (m *llamaModel) Close() error {
	llama.ModelFree(m.model)
	return nil
}

// llamaContext wraps a llama.cpp context. resident counts the positions held
// in its memory.
type llamaContext struct {
	model    *llamaModel
	params   ContextParams
	ctx      llama.Context
	resident int
}

func (c *llamaContext) init() error {
	cp := llama.ContextDefaultParams()
	cp.NCtx = uint32(c.params.WindowSize)
	cp.NBatch = uint32(c.params.BatchSize)
	if c.params.Threads > 0 {
		cp.NThreads = int32(c.params.Threads)
		cp.NThreadsBatch = int32(c.params.Threads)
	}
	ctx, err := llama.InitFromModel(c.model.model, cp)
	if err != nil {
		return fmt.Errorf("create context: %w", err)
	}
	c.ctx = ctx
	c.resident = 0
	return nil
}

func (c *llamaContext) Decode(b Batch) error {
	if len(b.Tokens) == 0 {
		return nil
	}
	// BatchGetOne positions tokens after the resident memory, so the caller's
	// positions must continue it.
	if b.Positions[0] != c.resident {
		return fmt.Errorf("non-contiguous batch: position %d, resident %d", b.Positions[0], c.resident)
	}
	toks := make([]llama.Token, len(b.Tokens))
	for i, t := range b.Tokens {
		toks[i] = llama.Token(t)
	}
	rc, err := llama.Decode(c.ctx, llama.BatchGetOne(toks))
	if err != nil {
		return err
	}
	if err := checkStatus("llama_decode", rc); err != nil {
		return err
	}
	c.resident += len(toks)
	return nil
}

func (c *llamaContext) StateSize() int { return int(llama.StateGetSize(c.ctx)) }

// State copies the context memory (KV cache and outputs) through the
// llama_state_get_data API.
func (c *llamaContext) State() ([]byte, error) {
	buf := make([]byte, llama.StateGetSize(c.ctx))
	if len(buf) == 0 {
		return nil, errors.New("engine reported an empty state")
	}
	if err := checkCopied("llama_state_get_data", llama.StateGetData(c.ctx, buf), len(buf)); err != nil {
		return nil, err
	}
	return buf, nil
}

// SetState installs memory captured by State, then resumes positions after
// the last restored cell.
func (c *llamaContext) SetState(data []byte) error {
	if len(data) == 0 {
		return errors.New("empty state blob")
	}
	if err := checkCopied("llama_state_set_data", llama.StateSetData(c.ctx, data), len(data)); err != nil {
		return err
	}
	mem, err := llama.GetMemory(c.ctx)
	if err != nil {
		return err
	}
	last, err := llama.MemorySeqPosMax(mem, 0)
	if err != nil {
		return err
	}
	c.resident = int(last) + 1
	return nil
}

func (c *llamaContext) Close() error {
	llama.Free(c.ctx)
	return nil
}

type llamaSampler struct{ s llama.Sampler }

func (s *llamaSampler) Sample(ctx Context, index int) Token {
	lc := ctx.(*llamaContext)
	return Token(llama.SamplerSample(s.s, lc.ctx, int32(index)))
}

func (s *llamaSampler) Close() error {
	llama.SamplerFree(s.s)
	return nil
}
