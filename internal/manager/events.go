package manager

// Event represents a manager lifecycle event: ensure_start, ensure_ready,
// ensure_error, restore, snapshot_mismatch, unload_start, unload_done,
// switch_start, switch_done, switch_error or history_cleared.
type Event struct {
	Name    string
	ModelID string
	Fields  map[string]any
}

// EventPublisher receives events from the manager. Implementations should be
// lightweight and non-blocking; Publish must not panic.
type EventPublisher interface {
	Publish(Event)
}

// noopPublisher is the default; it drops events.
type noopPublisher struct{}

func (noopPublisher) Publish(Event) {}
