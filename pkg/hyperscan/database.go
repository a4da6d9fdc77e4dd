package hyperscan

/*
#include <stdlib.h>
#include <hs.h>
*/
import "C"

import (
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"unsafe"
)

// database owns one native database. It is freed when the last reference is
// released.
type database struct {
	ptr  *C.hs_database_t
	mode Mode
	refs atomic.Int32
}

func newDatabase(ptr *C.hs_database_t, mode Mode) *database {
	d := &database{ptr: ptr, mode: mode}
	d.refs.Store(1)
	return d
}

func (d *database) acquire() *database {
	d.refs.Add(1)
	return d
}

func (d *database) release() {
	if d.refs.Add(-1) == 0 {
		C.hs_free_database(d.ptr)
		d.ptr = nil
	}
}

func (d *database) info() (string, error) {
	var info *C.char
	if err := codeError(ErrorCode(C.hs_database_info(d.ptr, &info))); err != nil {
		return "", err
	}
	defer C.free(unsafe.Pointer(info))
	return C.GoString(info), nil
}

func (d *database) size() (int, error) {
	var n C.size_t
	if err := codeError(ErrorCode(C.hs_database_size(d.ptr, &n))); err != nil {
		return 0, err
	}
	return int(n), nil
}

func (d *database) streamSize() (int, error) {
	var n C.size_t
	if err := codeError(ErrorCode(C.hs_stream_size(d.ptr, &n))); err != nil {
		return 0, err
	}
	return int(n), nil
}

func (d *database) serialize() ([]byte, error) {
	var (
		buf *C.char
		n   C.size_t
	)
	if err := codeError(ErrorCode(C.hs_serialize_database(d.ptr, &buf, &n))); err != nil {
		return nil, err
	}
	defer C.free(unsafe.Pointer(buf))
	return C.GoBytes(unsafe.Pointer(buf), C.int(n)), nil
}

// dbHandle is one public reference to a database. Each handle is closed at most
// once; a forgotten handle is released by its finalizer.
type dbHandle struct {
	db     *database
	once   sync.Once
	closed atomic.Bool
}

func newDBHandle(db *database) *dbHandle {
	h := &dbHandle{db: db}
	runtime.SetFinalizer(h, (*dbHandle).Close)
	return h
}

func (h *dbHandle) get() (*database, error) {
	if h == nil || h.closed.Load() {
		return nil, ErrClosed
	}
	return h.db, nil
}

func (h *dbHandle) clone() (*dbHandle, error) {
	db, err := h.get()
	if err != nil {
		return nil, err
	}
	c := newDBHandle(db.acquire())
	runtime.KeepAlive(h)
	return c, nil
}

// Close drops this handle's reference. The native database is freed once every
// handle and every scanner built on it is closed. Close is idempotent.
func (h *dbHandle) Close() error {
	h.once.Do(func() {
		h.closed.Store(true)
		runtime.SetFinalizer(h, nil)
		h.db.release()
	})
	return nil
}

// Mode reports the mode the database was compiled for.
func (h *dbHandle) Mode() Mode {
	return h.db.mode
}

// Info returns the engine's description of the database, for example
// "Version: 5.4.2 Features: AVX2 Mode: BLOCK".
func (h *dbHandle) Info() (string, error) {
	db, err := h.get()
	if err != nil {
		return "", err
	}
	defer runtime.KeepAlive(h)
	return db.info()
}

// Size returns the size of the compiled database in bytes.
func (h *dbHandle) Size() (int, error) {
	db, err := h.get()
	if err != nil {
		return 0, err
	}
	defer runtime.KeepAlive(h)
	return db.size()
}

func (h *dbHandle) handle() *dbHandle {
	return h
}

// Database is implemented by *BlockDatabase, *VectoredDatabase and
// *StreamDatabase.
type Database interface {
	Mode() Mode
	Info() (string, error)
	Size() (int, error)
	Close() error

	handle() *dbHandle
}

// BlockDatabase is a database compiled for block scanning. It is immutable and
// safe for concurrent use.
type BlockDatabase struct{ *dbHandle }

// Clone returns a second handle to the same native database.
func (d *BlockDatabase) Clone() (*BlockDatabase, error) {
	h, err := d.clone()
	if err != nil {
		return nil, err
	}
	return &BlockDatabase{h}, nil
}

// VectoredDatabase is a database compiled for vectored scanning.
type VectoredDatabase struct{ *dbHandle }

// Clone returns a second handle to the same native database.
func (d *VectoredDatabase) Clone() (*VectoredDatabase, error) {
	h, err := d.clone()
	if err != nil {
		return nil, err
	}
	return &VectoredDatabase{h}, nil
}

// StreamDatabase is a database compiled for stream scanning.
type StreamDatabase struct{ *dbHandle }

// Clone returns a second handle to the same native database.
func (d *StreamDatabase) Clone() (*StreamDatabase, error) {
	h, err := d.clone()
	if err != nil {
		return nil, err
	}
	return &StreamDatabase{h}, nil
}

// StreamSize returns the size of the per-stream state in bytes.
func (d *StreamDatabase) StreamSize() (int, error) {
	db, err := d.get()
	if err != nil {
		return 0, err
	}
	defer runtime.KeepAlive(d.dbHandle)
	return db.streamSize()
}

// Marshal serializes a database. The result can be restored on any host with a
// compatible engine version and platform.
func Marshal(db Database) ([]byte, error) {
	h := db.handle()
	d, err := h.get()
	if err != nil {
		return nil, err
	}
	defer runtime.KeepAlive(h)
	return d.serialize()
}

func unmarshal(data []byte, want Mode) (*dbHandle, error) {
	if len(data) == 0 {
		return nil, &EngineError{Code: ErrInvalid}
	}
	var info *C.char
	p := (*C.char)(unsafe.Pointer(unsafe.SliceData(data)))
	if err := codeError(ErrorCode(C.hs_serialized_database_info(p, C.size_t(len(data)), &info))); err != nil {
		return nil, err
	}
	mode := modeFromInfo(C.GoString(info))
	C.free(unsafe.Pointer(info))
	if mode.ScanMode() != want {
		return nil, &EngineError{Code: ErrDatabaseMode}
	}

	var db *C.hs_database_t
	if err := codeError(ErrorCode(C.hs_deserialize_database(p, C.size_t(len(data)), &db))); err != nil {
		return nil, err
	}
	return newDBHandle(newDatabase(db, mode)), nil
}

// UnmarshalBlockDatabase restores a serialized block database.
func UnmarshalBlockDatabase(data []byte) (*BlockDatabase, error) {
	h, err := unmarshal(data, BlockMode)
	if err != nil {
		return nil, err
	}
	return &BlockDatabase{h}, nil
}

// UnmarshalVectoredDatabase restores a serialized vectored database.
func UnmarshalVectoredDatabase(data []byte) (*VectoredDatabase, error) {
	h, err := unmarshal(data, VectoredMode)
	if err != nil {
		return nil, err
	}
	return &VectoredDatabase{h}, nil
}

// UnmarshalStreamDatabase restores a serialized stream database.
func UnmarshalStreamDatabase(data []byte) (*StreamDatabase, error) {
	h, err := unmarshal(data, StreamMode)
	if err != nil {
		return nil, err
	}
	return &StreamDatabase{h}, nil
}

// modeFromInfo extracts the mode from a database info string. The horizon is
// not part of the info string; stream databases report SomHorizonLarge, the
// only horizon this package compiles with by default.
func modeFromInfo(info string) Mode {
	_, rest, ok := strings.Cut(info, "Mode: ")
	if !ok {
		return 0
	}
	word, _, _ := strings.Cut(rest, " ")
	switch strings.ToUpper(word) {
	case "BLOCK":
		return BlockMode
	case "STREAM":
		return StreamMode | SomHorizonLarge
	case "VECTORED":
		return VectoredMode
	}
	return 0
}
