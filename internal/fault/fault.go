// Package fault tags errors with how a scheduling cycle must react to them.
package fault

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/cenkalti/backoff/v4"
)

type Kind int

const (
	// Fatal aborts the cycle after a best-effort disable-all.
	Fatal Kind = iota
	// Recoverable degrades inputs; the cycle continues.
	Recoverable
	// BestEffort failures are logged and otherwise ignored.
	BestEffort
)

func (k Kind) String() string {
	switch k {
	case Fatal:
		return "fatal"
	case Recoverable:
		return "recoverable"
	case BestEffort:
		return "best_effort"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

type Error struct {
	Kind  Kind
	Op    string
	Err   error
	Trace string
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Op
	}
	return e.Op + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

// New wraps err under op. Fatal errors capture the current stack.
func New(kind Kind, op string, err error) *Error {
	fe := &Error{Kind: kind, Op: op, Err: err}
	if kind == Fatal {
		fe.Trace = string(debug.Stack())
	}
	return fe
}

func Fatalf(op, format string, args ...any) *Error {
	return New(Fatal, op, fmt.Errorf(format, args...))
}

// KindOf reports the kind of the outermost tagged error in the chain.
// Untagged errors are treated as fatal.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return Fatal
}

func IsFatal(err error) bool { return err != nil && KindOf(err) == Fatal }

// TraceOf returns the stack captured by the first fatal error in the chain.
func TraceOf(err error) string {
	var fe *Error
	for err != nil {
		if errors.As(err, &fe) {
			if fe.Trace != "" {
				return fe.Trace
			}
			err = fe.Err
			continue
		}
		return ""
	}
	return ""
}

// RetryOnce runs op and, on failure, retries it exactly once after a short pause.
// Errors wrapped with backoff.Permanent are not retried.
func RetryOnce(ctx context.Context, op func() error) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 200 * time.Millisecond
	bo.MaxElapsedTime = 5 * time.Second
	return backoff.Retry(op, backoff.WithContext(backoff.WithMaxRetries(bo, 1), ctx))
}
