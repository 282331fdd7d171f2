package graph

import "errors"

var (
	// ErrNoID is returned when an operation needs the identity of a node that
	// has not been inserted into a Graph yet.
	ErrNoID = errors.New("node has no id")

	// ErrDuplicateID is returned by AddNode when the id is already taken.
	ErrDuplicateID = errors.New("duplicate node id")

	// ErrAlreadyInserted is returned when a node that already carries an id
	// is inserted again.
	ErrAlreadyInserted = errors.New("node already inserted")

	// ErrMalformedPrompt is returned by FromPrompt for documents that are not
	// an object of node entries.
	ErrMalformedPrompt = errors.New("malformed prompt")
)
