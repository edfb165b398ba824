package crm

import "errors"

var (
	// ErrContactNotFound indicates the contact does not exist in the org.
	ErrContactNotFound = errors.New("crm: contact not found")

	// ErrAlreadyOwned indicates a claim lost the race: the contact already
	// has an owner.
	ErrAlreadyOwned = errors.New("crm: contact already owned")

	// ErrInvalidStage indicates a stage outside the known enumeration.
	ErrInvalidStage = errors.New("crm: invalid stage")

	// ErrInvalidNextAction indicates an apply request with bad fields.
	ErrInvalidNextAction = errors.New("crm: invalid next action")
)
