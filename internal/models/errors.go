package models

import "errors"

// Error kinds shared across the registries. Every mutating operation
// validates all preconditions before writing anything; on failure it
// returns one of these and leaves no partial state. Callers match with
// errors.Is and surface the message verbatim.
var (
	ErrAlreadyRegistered = errors.New("already registered")
	ErrNotRegistered     = errors.New("agent not registered")
	ErrServiceNotFound   = errors.New("service not found")
	ErrProposalNotFound  = errors.New("proposal not found")
	ErrTaskNotFound      = errors.New("task not found")
	ErrNotOwner          = errors.New("caller is not authorized for this record")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrAgentRequired     = errors.New("service has no assigned agent")
	ErrInvalidPayment    = errors.New("payment does not match proposal price")
	ErrInvalidRating     = errors.New("rating must be between 0 and 100")
	ErrAlreadyRated      = errors.New("task already rated")
	ErrInvalidInput      = errors.New("missing or invalid required field")
)
