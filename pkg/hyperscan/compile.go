package hyperscan

/*
#include <stdlib.h>
#include <hs.h>
*/
import "C"

import (
	"unsafe"
)

// compile validates the patterns and the mode, then builds a native database.
// Pattern expressions are copied into C memory for the duration of the call.
func compile(patterns []Pattern, mode Mode) (*database, error) {
	if err := validatePatterns(patterns); err != nil {
		return nil, err
	}
	if err := mode.Validate(); err != nil {
		return nil, err
	}

	n := len(patterns)
	alloc := max(n, 1)

	exprs := unsafe.Slice((**C.char)(C.calloc(C.size_t(alloc), C.size_t(unsafe.Sizeof((*C.char)(nil))))), alloc)
	defer C.free(unsafe.Pointer(&exprs[0]))
	flags := unsafe.Slice((*C.uint)(C.calloc(C.size_t(alloc), C.size_t(unsafe.Sizeof(C.uint(0))))), alloc)
	defer C.free(unsafe.Pointer(&flags[0]))
	ids := unsafe.Slice((*C.uint)(C.calloc(C.size_t(alloc), C.size_t(unsafe.Sizeof(C.uint(0))))), alloc)
	defer C.free(unsafe.Pointer(&ids[0]))

	for i, p := range patterns {
		exprs[i] = C.CString(string(p.Expression))
		flags[i] = C.uint(p.Flags)
		ids[i] = C.uint(p.ID)
	}
	defer func() {
		for i := 0; i < n; i++ {
			C.free(unsafe.Pointer(exprs[i]))
		}
	}()

	var (
		db   *C.hs_database_t
		cerr *C.hs_compile_error_t
	)
	code := ErrorCode(C.hs_compile_multi(&exprs[0], &flags[0], &ids[0], C.uint(n), C.uint(mode), nil, &db, &cerr))
	if code != ErrSuccess {
		if cerr != nil {
			return nil, takeCompileError(cerr)
		}
		return nil, &EngineError{Code: code}
	}
	return newDatabase(db, mode), nil
}

// takeCompileError copies the diagnostic out of native memory and frees it.
func takeCompileError(cerr *C.hs_compile_error_t) *CompileError {
	defer C.hs_free_compile_error(cerr)
	return &CompileError{
		Message:    C.GoString(cerr.message),
		Expression: int(cerr.expression),
	}
}

// Compile builds a database for mode and returns it as a *BlockDatabase,
// *VectoredDatabase or *StreamDatabase. Stream databases always get a large
// start-of-match horizon unless another horizon is given.
func Compile(mode Mode, patterns ...Pattern) (Database, error) {
	if err := validatePatterns(patterns); err != nil {
		return nil, err
	}
	if err := mode.Validate(); err != nil {
		return nil, err
	}
	switch mode.ScanMode() {
	case BlockMode:
		return NewBlockDatabase(patterns...)
	case VectoredMode:
		return NewVectoredDatabase(patterns...)
	}
	if mode&somHorizonMask == 0 {
		mode |= SomHorizonLarge
	}
	db, err := compile(patterns, mode)
	if err != nil {
		return nil, err
	}
	return &StreamDatabase{newDBHandle(db)}, nil
}

// NewBlockDatabase compiles patterns for block scanning.
func NewBlockDatabase(patterns ...Pattern) (*BlockDatabase, error) {
	db, err := compile(patterns, BlockMode)
	if err != nil {
		return nil, err
	}
	return &BlockDatabase{newDBHandle(db)}, nil
}

// NewVectoredDatabase compiles patterns for vectored scanning.
func NewVectoredDatabase(patterns ...Pattern) (*VectoredDatabase, error) {
	db, err := compile(patterns, VectoredMode)
	if err != nil {
		return nil, err
	}
	return &VectoredDatabase{newDBHandle(db)}, nil
}

// NewStreamDatabase compiles patterns for stream scanning with a large
// start-of-match horizon.
func NewStreamDatabase(patterns ...Pattern) (*StreamDatabase, error) {
	db, err := compile(patterns, StreamMode|SomHorizonLarge)
	if err != nil {
		return nil, err
	}
	return &StreamDatabase{newDBHandle(db)}, nil
}
