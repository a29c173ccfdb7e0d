// Package fserr carries the error taxonomy shared by the HTTP API and
// the WebDAV adapter. Every failure a client can observe is classified
// by a Kind, which maps to an HTTP status and an envelope code.
package fserr

import (
	"errors"
	"fmt"
	"net/http"
)

type Kind int

const (
	KindInternal Kind = iota
	KindUnknownShare
	KindPathEscape
	KindNotFound
	KindAlreadyExists
	KindNotADirectory
	KindParentMissing
	KindPayloadTooLarge
	KindRangeNotSatisfiable
	KindUnauthorized
	KindForbidden
	KindRateLimited
	KindTooManyConcurrent
	KindIPDenied
	KindConfigInvalid
	KindQuotaExceeded
	KindBadRequest
)

type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		if e.Msg == "" {
			return e.Err.Error()
		}
		return e.Msg + ": " + e.Err.Error()
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

func Wrap(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

// KindOf classifies an arbitrary error. Errors that did not come from
// this package are internal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

func (k Kind) HTTPStatus() int {
	switch k {
	case KindUnknownShare, KindNotFound:
		return http.StatusNotFound
	case KindPathEscape, KindNotADirectory, KindBadRequest:
		return http.StatusBadRequest
	case KindAlreadyExists, KindParentMissing:
		return http.StatusConflict
	case KindPayloadTooLarge, KindQuotaExceeded:
		return http.StatusRequestEntityTooLarge
	case KindRangeNotSatisfiable:
		return http.StatusRequestedRangeNotSatisfiable
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindForbidden, KindIPDenied:
		return http.StatusForbidden
	case KindRateLimited, KindTooManyConcurrent:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// Code is the machine code used in the JSON response envelope.
// 0 means success; errors reuse their HTTP status, except generic
// bad requests which report 1.
func (k Kind) Code() int {
	switch k {
	case KindPathEscape, KindNotADirectory, KindBadRequest:
		return 1
	default:
		return k.HTTPStatus()
	}
}
