package manager

import (
	"context"

	"chatd/internal/session"
	"chatd/pkg/types"
)

// current returns the live session, loading the default model on first use.
func (m *Manager) current(ctx context.Context) (*session.Session, error) {
	m.mu.RLock()
	sess, st := m.sess, m.state
	m.mu.RUnlock()
	if sess != nil {
		return sess, nil
	}
	if st == StateLoading {
		return nil, tooBusyError{modelID: "model loading"}
	}
	if m.defaultModel == "" {
		return nil, ErrNoModel
	}
	if err := m.EnsureModel(ctx, ""); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.sess == nil {
		return nil, ErrNoModel
	}
	return m.sess, nil
}

// Respond starts the next chat turn. See session.Session.Respond.
func (m *Manager) Respond(ctx context.Context, input string) (*session.Stream, error) {
	sess, err := m.current(ctx)
	if err != nil {
		return nil, err
	}
	return sess.Respond(ctx, input)
}

// Complete runs a one-shot completion outside the conversation.
func (m *Manager) Complete(ctx context.Context, prompt string) (string, session.Result, error) {
	sess, err := m.current(ctx)
	if err != nil {
		return "", session.Result{}, err
	}
	return sess.Complete(ctx, prompt)
}

// Stop cancels the generation in flight, if any.
func (m *Manager) Stop() {
	m.mu.RLock()
	sess := m.sess
	m.mu.RUnlock()
	if sess != nil {
		sess.Stop()
	}
}

// Clear empties the conversation and persists the empty state. It holds
// loadMu so the session cannot be unloaded between the clear and the save.
func (m *Manager) Clear() error {
	m.mu.RLock()
	st := m.state
	m.mu.RUnlock()
	if st == StateLoading {
		return tooBusyError{modelID: "model loading"}
	}
	m.loadMu.Lock()
	defer m.loadMu.Unlock()
	m.mu.RLock()
	sess, saver := m.sess, m.saver
	m.mu.RUnlock()
	if sess == nil {
		return ErrNoModel
	}
	if err := sess.ClearHistory(); err != nil {
		return err
	}
	saver.notify()
	m.publish("history_cleared", sess.ModelID(), nil)
	return nil
}

// History returns the conversation of the loaded model; empty when none is loaded.
func (m *Manager) History() []types.Turn {
	m.mu.RLock()
	sess := m.sess
	m.mu.RUnlock()
	if sess == nil {
		return []types.Turn{}
	}
	return sess.History()
}

// Output returns the text of the current or last turn.
func (m *Manager) Output() string {
	m.mu.RLock()
	sess := m.sess
	m.mu.RUnlock()
	if sess == nil {
		return ""
	}
	return sess.Output()
}
