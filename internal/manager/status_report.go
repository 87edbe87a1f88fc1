package manager

import (
	"time"

	"chatd/pkg/types"
)

// Snapshot returns a read-only view of the manager state.
func (m *Manager) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var cur *ModelInfo
	if m.cur != nil {
		c := *m.cur
		cur = &c
	}
	return Snapshot{State: m.state, CurrentModel: cur, Err: m.err}
}

// Status builds a detailed status response for /status.
func (m *Manager) Status() types.StatusResponse {
	m.mu.RLock()
	state, errMsg, sess, cur := m.state, m.err, m.sess, m.cur
	m.mu.RUnlock()

	now := time.Now()
	resp := types.StatusResponse{
		State:          string(state),
		LastError:      errMsg,
		UptimeSeconds:  int64(now.Sub(m.startTime).Seconds()),
		ServerTimeUnix: now.Unix(),
		LoadsTotal:     m.loads.Load(),
		EvictionsTotal: m.pastEvictions.Load(),
	}
	if sess == nil || cur == nil {
		return resp
	}
	resp.ModelID = cur.ID
	resp.SessionState = sess.State().String()
	resp.Template = string(sess.Template().Preset)
	resp.TokenCount = sess.TokenCount()
	resp.MaxTokenCount = sess.MaxTokenCount()
	resp.HistoryLen = len(sess.History())
	resp.EvictionsTotal += sess.Evictions()
	if u := sess.LastUsage(); u.TotalTokens() > 0 {
		w := u.Wire()
		resp.LastUsage = &w
	}
	return resp
}
