package app

import "errors"

// Application-level error taxonomy. Store-level sentinels (not found,
// duplicate matricula, active transfer, status conflict) pass through from
// the store package; these cover the conditions only the lifecycle services
// can detect.
var (
	// ErrValidation marks malformed input. Wrapped with a field-level message.
	ErrValidation = errors.New("validation failed")

	// ErrStateMismatch marks an operation attempted against a record that is
	// not in the required state, or by a party that does not match the record.
	ErrStateMismatch = errors.New("record is not in the required state for this operation")

	// ErrUnknownOwner marks a ledger identity that cannot be resolved to a
	// local user, or vice versa.
	ErrUnknownOwner = errors.New("identity is not resolvable to a local user")
)
