package sessiontransport

import "errors"

var (
	// ErrLoad is returned when the session store fails during lookup.
	ErrLoad = errors.New("sessiontransport: failed to load session")
	// ErrExpiredSession is returned when asked to write an already expired session.
	ErrExpiredSession = errors.New("sessiontransport: cannot write expired session")
)
