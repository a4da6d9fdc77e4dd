package hyperscan

// #include <hs.h>
import "C"

// stream is the native state of one open stream.
type stream struct {
	ptr *C.hs_stream_t
}

func openStream(db *database) (*stream, error) {
	var ptr *C.hs_stream_t
	if err := codeError(ErrorCode(C.hs_open_stream(db.ptr, 0, &ptr))); err != nil {
		return nil, err
	}
	return &stream{ptr: ptr}, nil
}

func (s *stream) close() {
	if s.ptr != nil {
		closeStream(s.ptr)
		s.ptr = nil
	}
}
