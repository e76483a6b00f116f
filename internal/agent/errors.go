package agent

import "errors"

// Sentinel errors for agent operations.
// Check with errors.Is().
var (
	// ErrEmptyInput indicates Converse was called with a blank user message.
	ErrEmptyInput = errors.New("user message is empty")

	// ErrToolLoopExceeded indicates the model kept requesting tools past the
	// configured round limit. The turn is abandoned without persisting.
	ErrToolLoopExceeded = errors.New("tool call loop exceeded maximum rounds")

	// ErrToolNotFound indicates the model requested a tool that is not
	// registered with the runtime.
	ErrToolNotFound = errors.New("requested tool not found")
)
