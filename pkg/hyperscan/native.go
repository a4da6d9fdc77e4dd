package hyperscan

/*
#cgo pkg-config: libhs
#include <stdint.h>
#include <stdlib.h>
#include <hs.h>

extern int perscanOnMatch(unsigned int id, unsigned long long from, unsigned long long to, unsigned int flags, void *ctx);

// The engine rejects NULL data even for zero-length input.
static const char perscan_empty[1] = {0};

static const char *perscan_empty_buffer(void) {
	return perscan_empty;
}

static hs_error_t perscan_scan(const hs_database_t *db, const char *data, unsigned int length,
                               hs_scratch_t *scratch, uintptr_t ctx) {
	return hs_scan(db, length ? data : perscan_empty, length, 0, scratch, perscanOnMatch, (void *)ctx);
}

static hs_error_t perscan_scan_vector(const hs_database_t *db, const char *const *data,
                                      const unsigned int *length, unsigned int count,
                                      hs_scratch_t *scratch, uintptr_t ctx) {
	return hs_scan_vector(db, data, length, count, 0, scratch, perscanOnMatch, (void *)ctx);
}

static hs_error_t perscan_scan_stream(hs_stream_t *stream, const char *data, unsigned int length,
                                      hs_scratch_t *scratch, uintptr_t ctx) {
	return hs_scan_stream(stream, length ? data : perscan_empty, length, 0, scratch, perscanOnMatch, (void *)ctx);
}

static hs_error_t perscan_reset_stream(hs_stream_t *stream, hs_scratch_t *scratch, uintptr_t ctx) {
	return hs_reset_stream(stream, 0, scratch, perscanOnMatch, (void *)ctx);
}

static void perscan_close_stream(hs_stream_t *stream) {
	hs_close_stream(stream, NULL, NULL, NULL);
}
*/
import "C"

import (
	"math"
	"runtime"
	"runtime/cgo"
	"unsafe"
)

func bufferPtr(data []byte) *C.char {
	if len(data) == 0 {
		return C.perscan_empty_buffer()
	}
	return (*C.char)(unsafe.Pointer(unsafe.SliceData(data)))
}

func checkLength(data []byte) error {
	if uint64(len(data)) > math.MaxUint32 {
		return ErrBufferTooLarge
	}
	return nil
}

func scanBlock(db *C.hs_database_t, data []byte, scratch *C.hs_scratch_t, h cgo.Handle) ErrorCode {
	return ErrorCode(C.perscan_scan(db, bufferPtr(data), C.uint(len(data)), scratch, C.uintptr_t(h)))
}

func scanVector(db *C.hs_database_t, data [][]byte, scratch *C.hs_scratch_t, h cgo.Handle) ErrorCode {
	n := len(data)
	alloc := max(n, 1)

	ptrs := unsafe.Slice((**C.char)(C.malloc(C.size_t(alloc)*C.size_t(unsafe.Sizeof((*C.char)(nil))))), alloc)
	defer C.free(unsafe.Pointer(&ptrs[0]))
	lens := unsafe.Slice((*C.uint)(C.malloc(C.size_t(alloc)*C.size_t(unsafe.Sizeof(C.uint(0))))), alloc)
	defer C.free(unsafe.Pointer(&lens[0]))

	// Go buffers referenced from C memory must stay put for the call.
	var pinner runtime.Pinner
	defer pinner.Unpin()

	ptrs[0], lens[0] = C.perscan_empty_buffer(), 0
	for i, buf := range data {
		if len(buf) > 0 {
			pinner.Pin(unsafe.SliceData(buf))
		}
		ptrs[i] = bufferPtr(buf)
		lens[i] = C.uint(len(buf))
	}

	return ErrorCode(C.perscan_scan_vector(db, &ptrs[0], &lens[0], C.uint(n), scratch, C.uintptr_t(h)))
}

func scanStream(s *C.hs_stream_t, data []byte, scratch *C.hs_scratch_t, h cgo.Handle) ErrorCode {
	return ErrorCode(C.perscan_scan_stream(s, bufferPtr(data), C.uint(len(data)), scratch, C.uintptr_t(h)))
}

func resetStream(s *C.hs_stream_t, scratch *C.hs_scratch_t, h cgo.Handle) ErrorCode {
	return ErrorCode(C.perscan_reset_stream(s, scratch, C.uintptr_t(h)))
}

// closeStream tears a stream down without reporting end-of-data matches.
// The status is ignored.
func closeStream(s *C.hs_stream_t) {
	C.perscan_close_stream(s)
}
