package rowcache

import (
	"errors"
	"fmt"

	"github.com/unkn0wn-root/rowcache/profile"
	"github.com/unkn0wn-root/rowcache/store"
)

var (
	ErrMisconfigured    = profile.ErrMisconfigured
	ErrStoreUnavailable = store.ErrUnavailable
	ErrLockTimeout      = store.ErrLockTimeout

	// ErrTokenSpent is returned by Commit on a token already committed or aborted.
	ErrTokenSpent = errors.New("rowcache: build token already spent")
)

// ScriptError is a server-side failure of one of the Lua scripts.
type ScriptError = store.ScriptError

// InvalidateError is the failure of one table during a multi-table invalidation.
type InvalidateError struct {
	Op    string
	Table string
	Err   error
}

func (e *InvalidateError) Error() string {
	return fmt.Sprintf("%s %q: %v", e.Op, e.Table, e.Err)
}

func (e *InvalidateError) Unwrap() error { return e.Err }
