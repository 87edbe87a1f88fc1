package manager

// Unload persists the conversation and releases the loaded model. An empty
// modelID means whatever is loaded.
func (m *Manager) Unload(modelID string) error {
	m.loadMu.Lock()
	defer m.loadMu.Unlock()
	m.mu.RLock()
	cur := m.cur
	m.mu.RUnlock()
	if cur == nil {
		if modelID == "" {
			modelID = "(none loaded)"
		}
		return ErrModelNotFound(modelID)
	}
	if modelID != "" && modelID != cur.ID {
		return ErrModelNotFound(modelID)
	}
	m.unloadLocked()
	return nil
}

// Close unloads the current model, if any.
func (m *Manager) Close() error {
	m.loadMu.Lock()
	defer m.loadMu.Unlock()
	m.unloadLocked()
	return nil
}

// unloadLocked tears down the current session. Callers hold loadMu.
func (m *Manager) unloadLocked() {
	m.mu.Lock()
	cur, sess, model, saver := m.cur, m.sess, m.model, m.saver
	m.cur, m.sess, m.model, m.saver = nil, nil, nil, nil
	m.state = StateUnloaded
	m.mu.Unlock()
	if sess == nil {
		return
	}
	m.publish("unload_start", cur.ID, nil)
	// closing cancels the generation in flight and waits for its worker
	if err := sess.Close(); err != nil {
		m.log.Warn().Err(err).Str("model", cur.ID).Msg("close session")
	}
	m.pastEvictions.Add(sess.Evictions())
	saver.stop()
	if err := model.Close(); err != nil {
		m.log.Warn().Err(err).Str("model", cur.ID).Msg("close model")
	}
	m.log.Info().Str("model", cur.ID).Msg("model unloaded")
	m.publish("unload_done", cur.ID, nil)
}
