package store

import (
	"errors"
	"fmt"
)

// Code classifies an Error.
type Code int

const (
	CodeUnexpected Code = iota + 1
	CodeNotFound
	CodeSQL
	CodeInvalidName
	CodeInvalidData
	CodeDuplicatePrimaryAddr
	CodeDuplicateMailAccount
	CodeDuplicateTransportAccount
	CodeDuplicateDefault
	CodeDuplicateUnifiedInbox
	CodeNoDefaultDelete
	CodeNoDefaultUpdate
	CodeURIParseFailed
	CodeUnrecoverablePassword
)

// Prefix is prepended to every rendered error code.
const Prefix = "ACC"

// Error is the single error family returned at the storage boundary.
type Error struct {
	Code Code
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	s := fmt.Sprintf("%s-%04d", Prefix, int(e.Code))
	if e.Msg != "" {
		s += " " + e.Msg
	}
	if e.Err != nil {
		s += ": " + e.Err.Error()
	}
	return s
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error with the same code, so the sentinels below work with
// errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

var (
	ErrUnexpected                = &Error{Code: CodeUnexpected, Msg: "unexpected error"}
	ErrNotFound                  = &Error{Code: CodeNotFound, Msg: "mail account not found"}
	ErrSQL                       = &Error{Code: CodeSQL, Msg: "SQL error"}
	ErrInvalidName               = &Error{Code: CodeInvalidName, Msg: "invalid account name"}
	ErrInvalidData               = &Error{Code: CodeInvalidData, Msg: "invalid data"}
	ErrDuplicatePrimaryAddr      = &Error{Code: CodeDuplicatePrimaryAddr, Msg: "primary address already in use"}
	ErrDuplicateMailAccount      = &Error{Code: CodeDuplicateMailAccount, Msg: "duplicate mail account"}
	ErrDuplicateTransportAccount = &Error{Code: CodeDuplicateTransportAccount, Msg: "duplicate transport account"}
	ErrDuplicateDefault          = &Error{Code: CodeDuplicateDefault, Msg: "default account already exists"}
	ErrDuplicateUnifiedInbox     = &Error{Code: CodeDuplicateUnifiedInbox, Msg: "unified inbox account already exists"}
	ErrNoDefaultDelete           = &Error{Code: CodeNoDefaultDelete, Msg: "default account must not be deleted"}
	ErrNoDefaultUpdate           = &Error{Code: CodeNoDefaultUpdate, Msg: "default account must not be changed"}
	ErrURIParseFailed            = &Error{Code: CodeURIParseFailed, Msg: "server URI could not be parsed"}
	ErrUnrecoverablePassword     = &Error{Code: CodeUnrecoverablePassword, Msg: "password could not be decrypted"}
)

// Errorf returns an error carrying code with a formatted message.
func Errorf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Msg: fmt.Sprintf(format, args...)}
}

// Wrap returns an error carrying code that wraps err. An err that already is
// an *Error is returned unchanged.
func Wrap(code Code, err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	var se *Error
	if errors.As(err, &se) {
		return err
	}
	return &Error{Code: code, Msg: fmt.Sprintf(format, args...), Err: err}
}

// NotFound returns the not-found error for one account.
func NotFound(id, userID, contextID int) *Error {
	return Errorf(CodeNotFound, "mail account %d not found for user %d in context %d", id, userID, contextID)
}

// IsURIParseFailed reports whether err is a server URI parse failure.
func IsURIParseFailed(err error) bool {
	return errors.Is(err, ErrURIParseFailed)
}
