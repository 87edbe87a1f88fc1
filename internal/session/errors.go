package session

import "errors"

// ErrClosed is returned by operations on a closed session.
var ErrClosed = errors.New("session closed")

// IsClosed reports whether err indicates a closed session.
func IsClosed(err error) bool { return errors.Is(err, ErrClosed) }
