package pipeline

import (
	"github.com/rotisserie/eris"
)

var (
	// ErrValidation covers a bad config or a batch with no valid leads. The
	// run aborts before any network call.
	ErrValidation = eris.New("pipeline: validation failed")

	// ErrNotAuthenticated means the page session is signed out. The run
	// aborts before the first lead.
	ErrNotAuthenticated = eris.New("pipeline: not signed in to LinkedIn")

	// ErrInvalidTransition is returned when a control call does not apply to
	// the current state.
	ErrInvalidTransition = eris.New("pipeline: invalid state transition")
)
