package inference

import "github.com/pkg/errors"

// Sentinel errors returned by the session. Callers distinguish the failure
// class with errors.Is; the wrapped message carries the detail.
var (
	// ErrConfiguration reports an invalid setting or an unusable set of
	// model files. The session is left in its previous state.
	ErrConfiguration = errors.New("invalid configuration")

	// ErrInference reports a failure inside the detector backend or while
	// decoding the input image.
	ErrInference = errors.New("inference failed")

	// ErrClosed reports a call on a session after Close.
	ErrClosed = errors.New("session is closed")
)
