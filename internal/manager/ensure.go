package manager

import (
	"context"

	"chatd/internal/session"
	"chatd/internal/store"
	"chatd/pkg/types"
)

// EnsureModel makes ref the loaded model, else no-op when it already is. An
// empty ref selects the default model. The current session, if any, is
// persisted and closed first; the new session resumes the conversation
// stored for the model.
func (m *Manager) EnsureModel(ctx context.Context, ref string) error {
	if ref == "" {
		ref = m.defaultModel
		if ref == "" {
			return ErrModelNotFound("(unspecified)")
		}
	}
	mdl, ok := m.getModel(ref)
	if !ok {
		return ErrModelNotFound(ref)
	}

	m.loadMu.Lock()
	defer m.loadMu.Unlock()

	m.mu.RLock()
	loaded := m.cur != nil && m.cur.ID == mdl.ID && m.sess != nil
	m.mu.RUnlock()
	if loaded {
		return nil
	}

	m.publish("ensure_start", mdl.ID, map[string]any{"path": mdl.Path})
	m.unloadLocked()
	m.setState(StateLoading, "")

	model, err := m.loadModel(ctx, mdl)
	if err != nil {
		m.fail(mdl.ID, err)
		return err
	}

	saver := newPersister(m.store, mdl.ID, mdl.ID, m.persistTimeout, m.log)
	opts := []session.Option{
		session.WithLogger(m.log.With().Str("model", mdl.ID).Logger()),
		session.WithMetrics(m.metrics),
		session.WithRecovery(m.recovery),
		session.WithFinishHook(func(session.Result) { saver.notify() }),
	}
	if m.onFatal != nil {
		opts = append(opts, session.WithFatalHandler(m.onFatal))
	}
	sess, err := session.New(model, m.sessCfg, opts...)
	if err != nil {
		_ = model.Close()
		m.fail(mdl.ID, err)
		return err
	}
	restored := m.restore(ctx, sess, mdl)
	saver.start(sess)

	m.mu.Lock()
	m.model = model
	m.sess = sess
	m.saver = saver
	m.cur = infoOf(mdl)
	m.state = StateReady
	m.err = ""
	m.mu.Unlock()
	m.loads.Add(1)

	m.log.Info().Str("model", mdl.ID).Int("window", sess.MaxTokenCount()).Int("turns", restored).Msg("model ready")
	m.publish("ensure_ready", mdl.ID, map[string]any{"window": sess.MaxTokenCount(), "restored_turns": restored})
	return nil
}

func (m *Manager) fail(modelID string, err error) {
	m.setState(StateError, err.Error())
	m.log.Error().Err(err).Str("model", modelID).Msg("model load failed")
	m.publish("ensure_error", modelID, map[string]any{"error": err.Error()})
}

// restore resumes the stored conversation for mdl and returns the number of
// turns restored. Failures are logged; the session then starts empty.
func (m *Manager) restore(ctx context.Context, sess *session.Session, mdl types.Model) int {
	if m.store == nil {
		return 0
	}
	cp, err := m.store.LoadCheckpoint(ctx, mdl.ID)
	if store.IsNotFound(err) {
		return 0
	}
	if err != nil {
		m.log.Warn().Err(err).Str("model", mdl.ID).Msg("load stored conversation")
		return 0
	}
	kept, err := sess.Resume(cp)
	if err != nil {
		m.log.Warn().Err(err).Str("model", mdl.ID).Msg("stored conversation rejected")
		return 0
	}
	if cp.Snapshot != nil && !kept {
		m.publish("snapshot_mismatch", mdl.ID, map[string]any{"fingerprint": cp.Snapshot.Fingerprint})
	}
	n := len(sess.History())
	m.publish("restore", mdl.ID, map[string]any{"turns": n, "snapshot_kept": kept})
	return n
}
