package chat

import (
	"errors"
	"fmt"
)

type Kind int

const (
	KindInternal Kind = iota
	KindNotFound
	KindForbidden
	KindInvalid
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindForbidden:
		return "forbidden"
	case KindInvalid:
		return "invalid"
	default:
		return "internal"
	}
}

// Error is returned by every Service operation. Message is a format
// template so the HTTP layer can translate it before applying Args.
type Error struct {
	Kind    Kind
	Message string
	Args    []any
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Text() + ": " + e.Err.Error()
	}
	return e.Text()
}

// Text is the formatted message without the wrapped cause.
func (e *Error) Text() string {
	if len(e.Args) == 0 {
		return e.Message
	}
	return fmt.Sprintf(e.Message, e.Args...)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func NotFound(msg string, args ...any) *Error {
	return &Error{Kind: KindNotFound, Message: msg, Args: args}
}

func Forbidden(msg string, args ...any) *Error {
	return &Error{Kind: KindForbidden, Message: msg, Args: args}
}

func Invalid(msg string, args ...any) *Error {
	return &Error{Kind: KindInvalid, Message: msg, Args: args}
}

func Internal(msg string, err error) *Error {
	return &Error{Kind: KindInternal, Message: msg, Err: err}
}

// KindOf reports the kind of err. Errors that are not *Error are internal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

const (
	msgRoomNotFound     = "room not found"
	msgPermissionDenied = "permission denied"
	msgEmptyMessage     = "message content or file is required"
	msgFileTooLarge     = "file %s is too large (max %s)"
	msgSizeMismatch     = "file %s size does not match its content"
	msgUnsupportedType  = "unsupported file type: %s (%s)"
	msgMissingType      = "file %s has no declared type"
	msgFileNotFound     = "file not found"
	msgFileMissing      = "file missing on server"
	msgPartnerNotFound  = "partner not found"
	msgSelfRoom         = "cannot open a room with yourself"
)
