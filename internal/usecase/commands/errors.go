package commands

import "errors"

// Error is a deliberate, user-facing failure raised by a command body.
// Its message is sent back to the channel unless Silent is set.
type Error struct {
	Message string
	Silent  bool
}

func (e *Error) Error() string {
	return e.Message
}

func NewError(msg string) *Error {
	return &Error{Message: msg}
}

func NewSilentError(msg string) *Error {
	return &Error{Message: msg, Silent: true}
}

func asCommandError(err error) (*Error, bool) {
	var cmdErr *Error
	if errors.As(err, &cmdErr) {
		return cmdErr, true
	}
	return nil, false
}
