package session

import "errors"

var (
	// ErrUnknownSession: the message id maps to no tracked session.
	ErrUnknownSession = errors.New("unknown session")
	// ErrDeadlinePassed: submission arrived after the session deadline.
	ErrDeadlinePassed = errors.New("application deadline passed")
	// ErrDuplicateSubmission: the user already applied to this session.
	ErrDuplicateSubmission = errors.New("duplicate submission")
	// ErrSessionClosed: the session no longer accepts applications.
	ErrSessionClosed = errors.New("session closed")
)
