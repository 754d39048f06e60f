package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

// Kind classifies a ledger failure. Values mirror the callable-error codes the
// web client already understands.
type Kind string

const (
	KindUnauthenticated    Kind = "unauthenticated"
	KindInvalidArgument    Kind = "invalid-argument"
	KindNotFound           Kind = "not-found"
	KindFailedPrecondition Kind = "failed-precondition"
	KindAlreadyExists      Kind = "already-exists"
	KindPermissionDenied   Kind = "permission-denied"
	KindAborted            Kind = "aborted"
	KindInternal           Kind = "internal"
)

// ErrConflict marks a compare-and-set write that lost to a concurrent update.
var ErrConflict = errors.New("ledger: concurrent modification")

type Error struct {
	Kind    Kind
	Op      string
	Message string
	Err     error
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	b.WriteString(string(e.Kind))
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

func newError(kind Kind, op, msg string) *Error {
	return &Error{Kind: kind, Op: op, Message: msg}
}

// NewError builds a tagged error for callers outside the core, such as the
// HTTP handlers' own input checks.
func NewError(kind Kind, op, msg string) error {
	return newError(kind, op, msg)
}

func newErrorf(kind Kind, op, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Message: fmt.Sprintf(format, args...)}
}

func wrapError(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindOf returns the kind carried by err. Untagged errors are internal.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// Retryable reports whether the caller may safely run the operation again.
func Retryable(err error) bool {
	return IsKind(err, KindAborted)
}

// PublicMessage is the text safe to show an end user. Internal failures get a
// generic message so storage details do not leak.
func PublicMessage(err error) string {
	var e *Error
	if !errors.As(err, &e) || e.Kind == KindInternal {
		return "An internal error occurred."
	}
	if e.Message != "" {
		return e.Message
	}
	if e.Kind == KindAborted {
		return "The transaction was aborted, please retry."
	}
	return string(e.Kind)
}

// MapError classifies infrastructure failures into ledger kinds. Errors that
// are already tagged pass through untouched.
func MapError(op string, err error) error {
	if err == nil {
		return nil
	}
	var tagged *Error
	if errors.As(err, &tagged) {
		return err
	}
	switch {
	case errors.Is(err, ErrConflict):
		return wrapError(KindAborted, op, err)
	case errors.Is(err, gorm.ErrRecordNotFound):
		return wrapError(KindNotFound, op, err)
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return wrapError(KindAlreadyExists, op, err)
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return wrapError(KindAborted, op, err)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch strings.TrimSpace(pgErr.Code) {
		case "23505":
			return wrapError(KindAlreadyExists, op, err) // unique_violation
		case "23503", "23514":
			return wrapError(KindFailedPrecondition, op, err) // foreign_key / check violation
		case "40001", "40P01", "55P03":
			return wrapError(KindAborted, op, err) // serialization / deadlock / lock_not_available
		}
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "unique constraint"), strings.Contains(msg, "duplicate key"):
		return wrapError(KindAlreadyExists, op, err)
	case strings.Contains(msg, "database is locked"),
		strings.Contains(msg, "database table is locked"),
		strings.Contains(msg, "sqlite_busy"),
		strings.Contains(msg, "deadlock"),
		strings.Contains(msg, "serialization"):
		return wrapError(KindAborted, op, err)
	default:
		return wrapError(KindInternal, op, err)
	}
}
