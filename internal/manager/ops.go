package manager

import "context"

// Switch kicks off a background load of ref and returns an operation ID. The
// model must exist in the registry; load failures are reported through
// Status and the switch_error event. The caller context only bounds the
// registry check; the load itself runs detached.
func (m *Manager) Switch(ctx context.Context, ref string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	mdl, ok := m.getModel(ref)
	if !ok {
		return "", ErrModelNotFound(ref)
	}
	op := m.nextOpID()
	m.publish("switch_start", mdl.ID, map[string]any{"op": op})
	go func(opID string) {
		if err := m.EnsureModel(context.Background(), mdl.ID); err != nil {
			m.publish("switch_error", mdl.ID, map[string]any{"op": opID, "error": err.Error()})
			return
		}
		m.publish("switch_done", mdl.ID, map[string]any{"op": opID})
	}(op)
	return op, nil
}
