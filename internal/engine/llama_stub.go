//go:build !llama

package engine

// This file provides a no-native stub for the llama backend. It is compiled
// when the 'llama' build tag is NOT set, keeping default builds and CI free of
// llama.cpp shared libraries. The real backend lives in llama.go.

// llamaBuilt indicates this binary was compiled with real llama support.
const llamaBuilt = false

// Load refuses to load models without the 'llama' build tag.
func Load(path string, params ModelParams) (Model, error) {
	return nil, ErrDependencyUnavailable("llama support not built (missing 'llama' build tag)")
}
