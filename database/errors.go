package database

import "errors"

var (
	// ErrNotFound is returned when an entity does not exist or the
	// requesting user has no access to it. The two cases are deliberately
	// indistinguishable so that lookups cannot probe for existence.
	ErrNotFound = errors.New("not found")

	// ErrDuplicate is returned when a unique constraint (username, email)
	// would be violated.
	ErrDuplicate = errors.New("already exists")

	// ErrNoUpdates is returned when a partial update carries no fields.
	ErrNoUpdates = errors.New("no updates provided")

	// ErrOwnerMember is returned when a board's owner would be added as
	// a member of their own board.
	ErrOwnerMember = errors.New("owner is already on the board")
)
