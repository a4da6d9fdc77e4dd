package hyperscan

import (
	"errors"
	"runtime/debug"
	"sync/atomic"
)

// Scan is the outcome of a scan call, and the verdict a match handler gives
// for a single match.
type Scan int

const (
	// Continue keeps the engine scanning.
	Continue Scan = iota
	// Terminate stops the current scan call. The scanner stays usable.
	Terminate
)

func (s Scan) String() string {
	switch s {
	case Continue:
		return "Continue"
	case Terminate:
		return "Terminate"
	}
	return "Scan(?)"
}

// MatchHandler receives every match reported by the engine: the pattern ID and
// the [from, to) byte offsets relative to the start of the scanned input (the
// whole stream, for stream scanners). from is only exact for SomLeftMost
// patterns; otherwise it is 0.
//
// data points at the user data held by the Context, so the handler may update it
// in place.
type MatchHandler[T any] func(data *T, id uint, from, to uint64) (Scan, error)

// ErrContextBound is returned when a context is attached to a second scanner.
var ErrContextBound = errors.New("hyperscan: context is already bound to a scanner")

// Context carries the caller's data and match handler into a scanner. A context
// belongs to exactly one scanner.
type Context[T any] struct {
	data    T
	handler MatchHandler[T]
	err     error
	bound   atomic.Bool
}

// NewContext binds user data to a handler.
func NewContext[T any](data T, handler MatchHandler[T]) *Context[T] {
	return &Context[T]{data: data, handler: handler}
}

// UserData returns a pointer to the data the handler operates on.
func (c *Context[T]) UserData() *T {
	return &c.data
}

// matchSink is the non-generic view of a Context used by the cgo trampoline.
type matchSink interface {
	onMatch(id uint, from, to uint64) (stop bool)
	takeError() error
	clearError()
}

func (c *Context[T]) bind() error {
	if c == nil || c.handler == nil {
		return ErrNoHandler
	}
	if !c.bound.CompareAndSwap(false, true) {
		return ErrContextBound
	}
	return nil
}

func (c *Context[T]) onMatch(id uint, from, to uint64) (stop bool) {
	defer func() {
		if r := recover(); r != nil {
			c.err = &HandlerPanicError{Value: r, Stack: debug.Stack()}
			stop = true
		}
	}()

	outcome, err := c.handler(&c.data, id, from, to)
	if err != nil {
		c.err = err
		return true
	}
	return outcome == Terminate
}

func (c *Context[T]) takeError() error {
	err := c.err
	c.err = nil
	return err
}

func (c *Context[T]) clearError() {
	c.err = nil
}

// scanResult folds the native status and the stashed handler error into the
// outcome of one scan call. A stashed error always wins.
func scanResult(code ErrorCode, stashed error) (Scan, error) {
	if stashed != nil {
		return Continue, stashed
	}
	switch code {
	case ErrSuccess:
		return Continue, nil
	case ErrScanTerminated:
		return Terminate, nil
	}
	return Continue, &EngineError{Code: code}
}
