// Package state captures and restores engine memory between turns.
package state

import (
	"errors"
	"fmt"

	"chatd/internal/engine"
)

var (
	// ErrSnapshotMismatch reports a snapshot taken for another model or
	// window size.
	ErrSnapshotMismatch = errors.New("state: snapshot fingerprint mismatch")
	// ErrSnapshotCorrupt reports a snapshot whose blob cannot be installed.
	ErrSnapshotCorrupt = errors.New("state: snapshot corrupt")
)

// Snapshot is an opaque copy of engine memory plus what is needed to trust it.
type Snapshot struct {
	Fingerprint string
	// TokenCount is the number of tokens resident when the snapshot was taken.
	TokenCount int
	Size       int
	Data       []byte
}

// Capture copies the memory held by h. tokenCount is the session's resident
// token count at capture time.
func Capture(h *engine.Handle, tokenCount int) (*Snapshot, error) {
	data, err := h.State()
	if err != nil {
		return nil, fmt.Errorf("state: capture: %w", err)
	}
	return &Snapshot{
		Fingerprint: h.Fingerprint(),
		TokenCount:  tokenCount,
		Size:        len(data),
		Data:        data,
	}, nil
}

// Restore writes snap back into h. The handle must have been opened with the
// same model and window size.
func Restore(h *engine.Handle, snap *Snapshot) error {
	if snap == nil {
		return fmt.Errorf("%w: nil snapshot", ErrSnapshotCorrupt)
	}
	if snap.Fingerprint != h.Fingerprint() {
		return ErrSnapshotMismatch
	}
	if snap.Size != len(snap.Data) {
		return fmt.Errorf("%w: size %d, have %d bytes", ErrSnapshotCorrupt, snap.Size, len(snap.Data))
	}
	if err := h.SetState(snap.Data); err != nil {
		return fmt.Errorf("%w: %v", ErrSnapshotCorrupt, err)
	}
	return nil
}

// IsMismatch reports whether err is or wraps ErrSnapshotMismatch.
func IsMismatch(err error) bool { return errors.Is(err, ErrSnapshotMismatch) }

// IsCorrupt reports whether err is or wraps ErrSnapshotCorrupt.
func IsCorrupt(err error) bool { return errors.Is(err, ErrSnapshotCorrupt) }
