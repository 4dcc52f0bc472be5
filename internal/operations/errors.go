package operations

import (
	"errors"
	"fmt"
)

// Kind classifies failures so callers can branch without reading messages.
type Kind int

const (
	KindUnknown Kind = iota
	KindNotFound
	KindBackup
	KindRestore
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not found"
	case KindBackup:
		return "backup failed"
	case KindRestore:
		return "restore failed"
	default:
		return "unknown"
	}
}

// Sentinels matching each Kind through errors.Is.
var (
	ErrNotFound      = errors.New("not found")
	ErrBackupFailed  = errors.New("backup failed")
	ErrRestoreFailed = errors.New("restore failed")
)

// Error is the tagged error returned by Manager operations.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is the sentinel for e's kind.
func (e *Error) Is(target error) bool {
	switch target {
	case ErrNotFound:
		return e.Kind == KindNotFound
	case ErrBackupFailed:
		return e.Kind == KindBackup
	case ErrRestoreFailed:
		return e.Kind == KindRestore
	}
	return false
}

// KindOf returns the Kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

func wrap(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) && e.Kind == kind {
		return err
	}
	return &Error{Kind: kind, Op: op, Err: err}
}
