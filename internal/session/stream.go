package session

import (
	"strings"
	"time"

	"chatd/pkg/types"
)

// FinishReason tells why a generation ended.
type FinishReason string

const (
	// FinishStop: the stop sequence was produced.
	FinishStop FinishReason = "stop"
	// FinishEOS: the model produced its end token.
	FinishEOS FinishReason = "eos"
	// FinishLength: the context window filled up during generation.
	FinishLength FinishReason = "length"
	// FinishCancelled: Stop, supersession or caller context cancellation.
	FinishCancelled FinishReason = "cancelled"
	// FinishFull: the input does not fit even with an empty history.
	FinishFull FinishReason = "full"
	// FinishEmpty: empty input; nothing was generated.
	FinishEmpty FinishReason = "empty"
	// FinishError: the engine failed.
	FinishError FinishReason = "error"
)

// Usage reports inference metrics for one generation.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	Duration         time.Duration
}

func (u Usage) TotalTokens() int { return u.PromptTokens + u.CompletionTokens }

// TokensPerSecond is the completion throughput.
func (u Usage) TokensPerSecond() float64 {
	if u.Duration <= 0 {
		return 0
	}
	return float64(u.CompletionTokens) / u.Duration.Seconds()
}

// Wire converts u to its API form.
func (u Usage) Wire() types.Usage {
	return types.Usage{
		PromptTokens:     u.PromptTokens,
		CompletionTokens: u.CompletionTokens,
		TotalTokens:      u.TotalTokens(),
		DurationMS:       u.Duration.Milliseconds(),
		TokensPerSecond:  u.TokensPerSecond(),
	}
}

// Result summarizes a finished generation.
type Result struct {
	// Content is every fragment that was delivered, concatenated.
	Content      string
	FinishReason FinishReason
	Usage        Usage
	Err          error
}

// Stream delivers the fragments of one generation in order. The fragment
// channel is closed when the generation ends.
type Stream struct {
	frags chan string
	done  chan struct{}
	res   Result
}

func newStream(buffer int) *Stream {
	return &Stream{frags: make(chan string, buffer), done: make(chan struct{})}
}

// finishedStream returns a stream that already ended with res, carrying
// fragments in its buffer.
func finishedStream(res Result, fragments ...string) *Stream {
	st := newStream(len(fragments))
	for _, f := range fragments {
		st.frags <- f
	}
	st.finish(res)
	return st
}

func (st *Stream) finish(res Result) {
	st.res = res
	close(st.frags)
	close(st.done)
}

// Fragments returns the channel of text fragments.
func (st *Stream) Fragments() <-chan string { return st.frags }

// Done is closed when the generation has ended.
func (st *Stream) Done() <-chan struct{} { return st.done }

// Wait blocks until the generation ends and returns its result. Fragments
// not yet received are discarded.
func (st *Stream) Wait() Result {
	for range st.frags {
	}
	<-st.done
	return st.res
}

// Collect receives every fragment and returns them joined with the result.
func (st *Stream) Collect() (string, Result) {
	var b strings.Builder
	for f := range st.frags {
		b.WriteString(f)
	}
	<-st.done
	return b.String(), st.res
}
