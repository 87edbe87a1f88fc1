package manager

import (
	"context"
	"fmt"

	"chatd/internal/engine"
	"chatd/internal/registry"
	"chatd/pkg/types"
)

// Helper: find model in registry by id, name or path.
func (m *Manager) getModel(ref string) (types.Model, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return registry.Find(m.registry, ref)
}

// loadModel runs the loader in the background so ctx can abandon a slow load.
// A model that finishes loading after ctx is done is closed.
func (m *Manager) loadModel(ctx context.Context, mdl types.Model) (engine.Model, error) {
	type result struct {
		model engine.Model
		err   error
	}
	ch := make(chan result, 1)
	go func() {
		model, err := m.loader(mdl.Path, m.modelParams)
		ch <- result{model, err}
	}()
	select {
	case r := <-ch:
		if r.err != nil {
			return nil, fmt.Errorf("load %s: %w", mdl.ID, r.err)
		}
		return r.model, nil
	case <-ctx.Done():
		go func() {
			if r := <-ch; r.err == nil {
				_ = r.model.Close()
			}
		}()
		return nil, ctx.Err()
	}
}

func infoOf(mdl types.Model) *ModelInfo {
	return &ModelInfo{ID: mdl.ID, Name: mdl.Name, Path: mdl.Path, Quant: mdl.Quant, Family: mdl.Family}
}
