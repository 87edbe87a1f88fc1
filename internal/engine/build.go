package engine

// Available reports whether this binary carries a real model backend.
func Available() bool { return llamaBuilt }
