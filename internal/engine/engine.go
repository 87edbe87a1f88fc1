package engine

// Token is an opaque vocabulary id, meaningful only to the model that produced it.
type Token int32

// Model abstracts a loaded model. Concrete implementations (e.g., llama.cpp)
// should satisfy this interface; weights are read-only and may be shared.
type Model interface {
	// ID identifies the model binding (typically its file path).
	ID() string
	// TrainedWindow is the context size the model was trained with.
	TrainedWindow() int
	// EndToken is the end-of-sequence token.
	EndToken() Token
	// IsEndOfGeneration reports whether tok ends a generation (EOS, EOT, ...).
	IsEndOfGeneration(tok Token) bool
	VocabSize() int
	// Tokenize converts text to tokens. When addBOS is set the model's vocabulary
	// convention decides whether a beginning-of-sequence marker is prepended.
	Tokenize(text string, addBOS bool) ([]Token, error)
	// Piece returns the raw bytes a token renders to. A piece may be a partial
	// UTF-8 sequence.
	Piece(tok Token) []byte
	// NewContext creates an evaluation context bound to this model.
	NewContext(p ContextParams) (Context, error)
	// NewSampler creates a sampler configured once for a session.
	NewSampler(p SamplerParams) (Sampler, error)
	// Close releases the model weights.
	Close() error
}

// Context is a native evaluation context. It is not safe for concurrent Decode calls.
type Context interface {
	// Decode runs one engine step over the batch.
	Decode(b Batch) error
	// StateSize is the size in bytes of the context's resident memory.
	StateSize() int
	// State copies the resident memory into an opaque blob.
	State() ([]byte, error)
	// SetState replaces the resident memory with a blob produced by State.
	SetState(data []byte) error
	// Close releases the context.
	Close() error
}

// Sampler picks the next token given the logits at index of the last decoded batch.
type Sampler interface {
	Sample(ctx Context, index int) Token
	Close() error
}

// Batch is one engine step. Positions are absolute positions in the context
// window; Logits marks the entries whose output is needed for sampling.
type Batch struct {
	Tokens    []Token
	Positions []int
	Logits    []bool
}

// Len returns the number of tokens in the batch.
func (b Batch) Len() int { return len(b.Tokens) }

// Sequential builds a batch positioned from start, requesting output only for
// the last token.
func Sequential(tokens []Token, start int) Batch {
	b := Batch{
		Tokens:    tokens,
		Positions: make([]int, len(tokens)),
		Logits:    make([]bool, len(tokens)),
	}
	for i := range tokens {
		b.Positions[i] = start + i
	}
	if len(tokens) > 0 {
		b.Logits[len(tokens)-1] = true
	}
	return b
}

// ModelParams captures load-time options.
type ModelParams struct {
	// GPULayers is the number of layers to offload (-1 = all, 0 = CPU only).
	GPULayers int
}

// ContextParams fixes the evaluation context shape at construction.
type ContextParams struct {
	WindowSize int
	BatchSize  int
	Threads    int
}

// SamplerParams captures the sampling strategy, set once per session.
type SamplerParams struct {
	TopK        int
	TopP        float32
	Temperature float32
	Seed        uint32
}

type stageKind int

const (
	stageTopK stageKind = iota
	stageTopP
	stageTemperature
	stageDist
)

// samplerStage is one link of a sampling chain.
type samplerStage struct {
	kind  stageKind
	k     int32
	value float32
	seed  uint32
}

// chain lists the stages a backend builds for p, in order: top-k, top-p
// (keeping at least one candidate), temperature, then a seeded draw.
func (p SamplerParams) chain() []samplerStage {
	return []samplerStage{
		{kind: stageTopK, k: int32(p.TopK)},
		{kind: stageTopP, value: p.TopP},
		{kind: stageTemperature, value: p.Temperature},
		{kind: stageDist, seed: p.Seed},
	}
}
