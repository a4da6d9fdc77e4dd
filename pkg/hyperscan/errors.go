package hyperscan

import (
	"errors"
	"fmt"
)

// ErrorCode is a status code returned by the native engine.
type ErrorCode int

// Status codes of the native engine, mirroring hs_error_t.
const (
	ErrSuccess           ErrorCode = 0
	ErrInvalid           ErrorCode = -1
	ErrNoMemory          ErrorCode = -2
	ErrScanTerminated    ErrorCode = -3
	ErrCompiler          ErrorCode = -4
	ErrDatabaseVersion   ErrorCode = -5
	ErrDatabasePlatform  ErrorCode = -6
	ErrDatabaseMode      ErrorCode = -7
	ErrBadAlign          ErrorCode = -8
	ErrBadAlloc          ErrorCode = -9
	ErrScratchInUse      ErrorCode = -10
	ErrArchError         ErrorCode = -11
	ErrInsufficientSpace ErrorCode = -12
	ErrUnknown           ErrorCode = -13
)

var errorCodeNames = map[ErrorCode]string{
	ErrSuccess:           "Success",
	ErrInvalid:           "Invalid",
	ErrNoMemory:          "NoMemory",
	ErrScanTerminated:    "ScanTerminated",
	ErrCompiler:          "CompilerError",
	ErrDatabaseVersion:   "DatabaseVersionError",
	ErrDatabasePlatform:  "DatabasePlatformError",
	ErrDatabaseMode:      "DatabaseModeError",
	ErrBadAlign:          "BadAlign",
	ErrBadAlloc:          "BadAlloc",
	ErrScratchInUse:      "ScratchInUse",
	ErrArchError:         "ArchError",
	ErrInsufficientSpace: "InsufficientSpace",
	ErrUnknown:           "UnknownError",
}

var errorCodeMessages = map[ErrorCode]string{
	ErrSuccess:           "the engine completed normally",
	ErrInvalid:           "a parameter passed to this function was invalid",
	ErrNoMemory:          "a memory allocation failed",
	ErrScanTerminated:    "the engine was terminated by callback",
	ErrCompiler:          "the pattern compiler failed",
	ErrDatabaseVersion:   "the given database was built for a different version of the engine",
	ErrDatabasePlatform:  "the given database was built for a different platform",
	ErrDatabaseMode:      "the given database was built for a different mode of operation",
	ErrBadAlign:          "a parameter passed to this function was not correctly aligned",
	ErrBadAlloc:          "the memory allocator did not correctly align memory",
	ErrScratchInUse:      "the scratch region was already in use",
	ErrArchError:         "unsupported CPU architecture",
	ErrInsufficientSpace: "provided buffer was too small",
	ErrUnknown:           "unexpected internal error",
}

// String returns the symbolic name of the code.
func (c ErrorCode) String() string {
	if name, ok := errorCodeNames[c]; ok {
		return name
	}
	return fmt.Sprintf("ErrorCode(%d)", int(c))
}

// Error makes a bare code usable as a sentinel with errors.Is.
func (c ErrorCode) Error() string {
	if msg, ok := errorCodeMessages[c]; ok {
		return "hyperscan: " + msg
	}
	return fmt.Sprintf("hyperscan: unknown error code %d", int(c))
}

// NoExpression is the CompileError.Expression value for diagnostics that do not
// belong to a single pattern.
const NoExpression = -1

// Sentinel errors raised by this package before the engine is involved.
var (
	// ErrInvalidMode is returned when a mode does not select exactly one of
	// block, stream or vectored scanning.
	ErrInvalidMode = errors.New("hyperscan: mode must select exactly one of block, stream or vectored")

	// ErrNoHandler is returned when a scanner is created without a context or
	// without a match handler.
	ErrNoHandler = errors.New("hyperscan: a match handler is required")

	// ErrClosed is returned when a closed database or scanner is used.
	ErrClosed = errors.New("hyperscan: use of closed handle")

	// ErrBufferTooLarge is returned when a buffer exceeds the engine's 32-bit length limit.
	ErrBufferTooLarge = errors.New("hyperscan: buffer length exceeds 4GiB")

	// ErrInvalidChunkSize is returned by ScanChunks for a non-positive chunk size.
	ErrInvalidChunkSize = errors.New("hyperscan: chunk size must be positive")
)

// MalformedInputError reports a pattern expression that cannot be passed to the
// engine because it contains a NUL byte.
type MalformedInputError struct {
	Pattern  int // index of the offending pattern in the compile call, or -1
	Position int // byte offset of the NUL byte inside the expression
}

func (e *MalformedInputError) Error() string {
	if e.Pattern >= 0 {
		return fmt.Sprintf("hyperscan: pattern %d: nul byte found in expression at position %d", e.Pattern, e.Position)
	}
	return fmt.Sprintf("hyperscan: nul byte found in expression at position %d", e.Position)
}

// EngineError reports a non-success status from a native call other than compile.
type EngineError struct {
	Code ErrorCode
}

func (e *EngineError) Error() string {
	return e.Code.Error()
}

// Is matches both another *EngineError and a bare ErrorCode with the same code.
func (e *EngineError) Is(target error) bool {
	switch t := target.(type) {
	case *EngineError:
		return t.Code == e.Code
	case ErrorCode:
		return t == e.Code
	}
	return false
}

// CompileError is the diagnostic of a failed compile.
type CompileError struct {
	Message    string
	Expression int // index of the offending pattern, or NoExpression
}

func (e *CompileError) Error() string {
	if e.Expression == NoExpression {
		return "hyperscan: compile failed: " + e.Message
	}
	return fmt.Sprintf("hyperscan: compile failed for expression %d: %s", e.Expression, e.Message)
}

// HandlerPanicError is returned by a scan call when the match handler panicked.
type HandlerPanicError struct {
	Value any
	Stack []byte
}

func (e *HandlerPanicError) Error() string {
	return fmt.Sprintf("hyperscan: match handler panicked: %v", e.Value)
}

// Unwrap exposes the panic value when it was an error.
func (e *HandlerPanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}

func codeError(code ErrorCode) error {
	if code == ErrSuccess {
		return nil
	}
	return &EngineError{Code: code}
}
