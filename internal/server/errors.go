package server

import "errors"

var (
	// ErrUnknownIdentity - an exit names a connection that is not registered.
	ErrUnknownIdentity = errors.New("server: unknown connection identity")

	// ErrDispatcherStopped - the dispatcher loop has returned and no longer answers.
	ErrDispatcherStopped = errors.New("server: dispatcher stopped")
)
