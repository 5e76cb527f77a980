package store

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"syscall"

	goredis "github.com/redis/go-redis/v9"
)

var (
	// ErrUnavailable wraps connection-class failures in Strict mode.
	ErrUnavailable = errors.New("rowcache: store unavailable")
	// ErrLockTimeout is a waiter running out of LockTimeout. Getting retries on it.
	ErrLockTimeout = errors.New("rowcache: lock wait timed out")
	// ErrUnknownScript is an Eval of a name that was never compiled in.
	ErrUnknownScript = errors.New("rowcache: unknown script")
	ErrNilClient     = errors.New("rowcache: nil redis client")
)

// ScriptError is a failure reported by the store while running a script.
type ScriptError struct {
	Script string
	Err    error
}

func (e *ScriptError) Error() string {
	return fmt.Sprintf("rowcache: script %q failed: %v", e.Script, e.Err)
}

func (e *ScriptError) Unwrap() error { return e.Err }

// isConnErr reports failures of the connection rather than the command.
func isConnErr(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var ne net.Error
	switch {
	case errors.As(err, &ne):
		return true
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		return true
	case errors.Is(err, syscall.ECONNREFUSED), errors.Is(err, syscall.ECONNRESET), errors.Is(err, syscall.EPIPE):
		return true
	case errors.Is(err, goredis.ErrClosed):
		return true
	}
	return strings.Contains(err.Error(), "connection pool timeout")
}

func isNoScript(err error) bool {
	return err != nil && strings.HasPrefix(err.Error(), "NOSCRIPT")
}

func isServerErr(err error) bool {
	var re goredis.Error
	return errors.As(err, &re) && !errors.Is(err, goredis.Nil)
}
