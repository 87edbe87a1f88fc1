// Package codec converts between model tokens and UTF-8 text.
package codec

import (
	"errors"
	"fmt"
	"unicode/utf8"

	"chatd/internal/engine"
)

// EncodingError reports text the model could not tokenize.
type EncodingError struct {
	Len int
	Err error
}

func (e *EncodingError) Error() string {
	return fmt.Sprintf("cannot encode %d bytes of input: %v", e.Len, e.Err)
}

func (e *EncodingError) Unwrap() error { return e.Err }

// IsEncodingError reports whether err is (or wraps) an EncodingError.
func IsEncodingError(err error) bool {
	var ee *EncodingError
	return errors.As(err, &ee)
}

var errNoTokens = errors.New("engine produced no tokens")

// Codec is stateless; per-generation decoding state lives in Decoder.
type Codec struct {
	model engine.Model
}

// New binds a codec to a model vocabulary.
func New(m engine.Model) *Codec { return &Codec{model: m} }

// Encode tokenizes a full render, prepending a beginning-of-sequence marker
// when the vocabulary requires one.
func (c *Codec) Encode(text string) ([]engine.Token, error) { return c.encode(text, true) }

// EncodeContinuation tokenizes text that continues resident context.
func (c *Codec) EncodeContinuation(text string) ([]engine.Token, error) {
	return c.encode(text, false)
}

func (c *Codec) encode(text string, addBOS bool) ([]engine.Token, error) {
	toks, err := c.model.Tokenize(text, addBOS)
	if err != nil {
		return nil, &EncodingError{Len: len(text), Err: err}
	}
	if len(toks) == 0 && text != "" {
		return nil, &EncodingError{Len: len(text), Err: errNoTokens}
	}
	return toks, nil
}

// DecodeAll renders tokens without carrying partial characters between calls.
func (c *Codec) DecodeAll(toks []engine.Token) string {
	d := c.NewDecoder()
	var out []byte
	for _, t := range toks {
		out = append(out, d.Decode(t)...)
	}
	return string(append(out, d.Flush()...))
}

// NewDecoder returns a decoder with its own accumulation buffer. Each
// generation must use its own decoder (or Reset a reused one).
func (c *Codec) NewDecoder() *Decoder { return &Decoder{model: c.model} }

// Decoder reassembles multi-byte characters split across tokens.
type Decoder struct {
	model    engine.Model
	pending  []byte
	consumed int
}

// Decode appends the token's bytes and returns the longest prefix made of
// complete characters. A trailing incomplete sequence is held until a later
// token completes it. Bytes that can never start a valid character are passed
// through unchanged.
func (d *Decoder) Decode(tok engine.Token) string {
	piece := d.model.Piece(tok)
	d.consumed += len(piece)
	d.pending = append(d.pending, piece...)
	if len(d.pending) == 0 {
		return ""
	}
	cut := incompleteTail(d.pending)
	out := string(d.pending[:cut])
	d.pending = append(d.pending[:0], d.pending[cut:]...)
	return out
}

// Pending reports how many bytes are held back.
func (d *Decoder) Pending() int { return len(d.pending) }

// Flush returns and clears whatever is held back.
func (d *Decoder) Flush() string {
	out := string(d.pending)
	d.pending = d.pending[:0]
	return out
}

// Consumed reports the total number of token bytes fed through Decode since
// the last Reset.
func (d *Decoder) Consumed() int { return d.consumed }

// Reset drops held-back bytes.
func (d *Decoder) Reset() {
	d.pending = d.pending[:0]
	d.consumed = 0
}

// incompleteTail returns the index where a trailing, still-completable UTF-8
// sequence starts, or len(b) when the buffer ends on a character boundary.
func incompleteTail(b []byte) int {
	// A rune is at most UTFMax bytes, so only the last UTFMax-1 bytes can
	// belong to an incomplete one.
	lo := len(b) - (utf8.UTFMax - 1)
	if lo < 0 {
		lo = 0
	}
	for i := len(b) - 1; i >= lo; i-- {
		if !utf8.RuneStart(b[i]) {
			continue
		}
		if utf8.FullRune(b[i:]) {
			return len(b)
		}
		return i
	}
	return len(b)
}
