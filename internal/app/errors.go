package app

import "errors"

var (
	// ErrChatNotFound indicates the chat does not exist.
	ErrChatNotFound = errors.New("chat not found")
	// ErrChatForbidden indicates the chat belongs to a different user.
	ErrChatForbidden = errors.New("chat forbidden")
	// ErrSurfaceNotOpen indicates the chat has no open surface.
	ErrSurfaceNotOpen = errors.New("chat surface not open")
	// ErrTaskInFlight indicates the surface already has an outstanding task.
	ErrTaskInFlight = errors.New("a response is already being generated")
	// ErrNoPendingTask indicates Await was called with nothing dispatched.
	ErrNoPendingTask = errors.New("no pending task")
	// ErrClosed indicates the controller has been shut down.
	ErrClosed = errors.New("controller closed")
	// ErrDocumentNotFound indicates the document does not exist for this user.
	ErrDocumentNotFound = errors.New("document not found")
)
