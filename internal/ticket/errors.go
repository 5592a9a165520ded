package ticket

import "errors"

var (
	ErrNotFound      = errors.New("ticket not found")
	ErrEmptyReply    = errors.New("reply has no text, voice note or attachment")
	ErrBadTransition = errors.New("invalid status transition")
)

type ValidationError string

func (e ValidationError) Error() string { return string(e) }
