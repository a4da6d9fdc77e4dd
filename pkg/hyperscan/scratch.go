package hyperscan

// #include <hs.h>
import "C"

// scratch is the engine's per-scan working memory for one database.
type scratch struct {
	ptr *C.hs_scratch_t
}

func newScratch(db *database) (*scratch, error) {
	var ptr *C.hs_scratch_t
	if err := codeError(ErrorCode(C.hs_alloc_scratch(db.ptr, &ptr))); err != nil {
		return nil, err
	}
	return &scratch{ptr: ptr}, nil
}

func (s *scratch) clone() (*scratch, error) {
	var ptr *C.hs_scratch_t
	if err := codeError(ErrorCode(C.hs_clone_scratch(s.ptr, &ptr))); err != nil {
		return nil, err
	}
	return &scratch{ptr: ptr}, nil
}

func (s *scratch) size() (int, error) {
	var n C.size_t
	if err := codeError(ErrorCode(C.hs_scratch_size(s.ptr, &n))); err != nil {
		return 0, err
	}
	return int(n), nil
}

func (s *scratch) free() {
	if s.ptr != nil {
		C.hs_free_scratch(s.ptr)
		s.ptr = nil
	}
}
