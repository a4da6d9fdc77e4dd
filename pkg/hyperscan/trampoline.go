package hyperscan

// #include <hs.h>
import "C"

import (
	"runtime/cgo"
	"unsafe"
)

const (
	matchContinue C.int = 0
	matchStop     C.int = 1
)

// perscanOnMatch is the match_event_handler installed for every scan call. ctx
// carries the cgo.Handle of the scanner's binding. A closed scanner or a
// deleted handle stops the scan.
//
//export perscanOnMatch
func perscanOnMatch(id C.uint, from, to C.ulonglong, _ C.uint, ctx unsafe.Pointer) (ret C.int) {
	defer func() {
		if recover() != nil {
			ret = matchStop
		}
	}()
	b, ok := cgo.Handle(uintptr(ctx)).Value().(*binding)
	if !ok || b.stopped {
		return matchStop
	}
	if b.sink.onMatch(uint(id), uint64(from), uint64(to)) {
		return matchStop
	}
	return matchContinue
}
