package hyperscan

import (
	"runtime"
	"runtime/cgo"
	"sync"
)

// binding is what the trampoline reaches through the scanner's handle. It holds
// no reference back to the scanner, so an unreachable scanner is still
// finalized.
type binding struct {
	sink    matchSink
	stopped bool // set when the scanner is closed from inside a handler
}

// scanner is the state every scanner family shares: a database reference, a
// scratch region and the handle through which the trampoline reaches the
// context.
type scanner struct {
	db      *database
	scratch *scratch
	stream  *stream // stream scanners only
	sink    matchSink
	bind    *binding
	handle  cgo.Handle
	once    sync.Once
	closed  bool

	// depth counts native scan calls in progress; a Close issued from a
	// handler is deferred until it drops back to zero.
	depth        int
	closePending bool
}

func newScanner(db *database, sc *scratch, sink matchSink) *scanner {
	b := &binding{sink: sink}
	s := &scanner{
		db:      db.acquire(),
		scratch: sc,
		sink:    sink,
		bind:    b,
		handle:  cgo.NewHandle(b),
	}
	runtime.SetFinalizer(s, (*scanner).close)
	return s
}

func (s *scanner) close() {
	if s.depth > 0 {
		s.closed = true
		s.closePending = true
		s.bind.stopped = true
		return
	}
	s.once.Do(func() {
		s.closed = true
		runtime.SetFinalizer(s, nil)
		if s.stream != nil {
			s.stream.close()
		}
		s.scratch.free()
		s.handle.Delete()
		s.db.release()
	})
}

// run performs one native scan call. Native memory stays allocated until the
// outermost call returns, even if a handler closes the scanner.
func (s *scanner) run(call func() ErrorCode) (Scan, error) {
	s.sink.clearError()
	s.depth++
	code := call()
	s.depth--
	runtime.KeepAlive(s)
	outcome, err := s.finish(code)
	if s.depth == 0 && s.closePending {
		s.close()
	}
	return outcome, err
}

func (s *scanner) finish(code ErrorCode) (Scan, error) {
	return scanResult(code, s.sink.takeError())
}

func (s *scanner) scratchSize() (int, error) {
	if s.closed {
		return 0, ErrClosed
	}
	defer runtime.KeepAlive(s)
	return s.scratch.size()
}

// bindScanner attaches ctx to a fresh scanner over db, allocating scratch
// unless one is supplied.
func bindScanner[T any](db *database, ctx *Context[T], sc *scratch) (*scanner, error) {
	if err := ctx.bind(); err != nil {
		return nil, err
	}
	if sc == nil {
		var err error
		if sc, err = newScratch(db); err != nil {
			ctx.bound.Store(false)
			return nil, err
		}
	}
	return newScanner(db, sc, ctx), nil
}

// BlockScanner scans self-contained buffers. It is not safe for concurrent use.
type BlockScanner[T any] struct {
	s   *scanner
	ctx *Context[T]
}

// NewBlockScanner allocates scratch for db and binds ctx to it. The scanner
// holds its own reference to the database.
func NewBlockScanner[T any](db *BlockDatabase, ctx *Context[T]) (*BlockScanner[T], error) {
	if ctx == nil || ctx.handler == nil {
		return nil, ErrNoHandler
	}
	if db == nil {
		return nil, ErrClosed
	}
	d, err := db.get()
	if err != nil {
		return nil, err
	}
	s, err := bindScanner(d, ctx, nil)
	runtime.KeepAlive(db.dbHandle)
	if err != nil {
		return nil, err
	}
	return &BlockScanner[T]{s: s, ctx: ctx}, nil
}

// Clone returns a scanner over the same database with a copy of this scanner's
// scratch and a new context.
func (b *BlockScanner[T]) Clone(ctx *Context[T]) (*BlockScanner[T], error) {
	if ctx == nil || ctx.handler == nil {
		return nil, ErrNoHandler
	}
	if b.s.closed {
		return nil, ErrClosed
	}
	sc, err := b.s.scratch.clone()
	if err != nil {
		return nil, err
	}
	s, err := bindScanner(b.s.db, ctx, sc)
	runtime.KeepAlive(b.s)
	if err != nil {
		sc.free()
		return nil, err
	}
	return &BlockScanner[T]{s: s, ctx: ctx}, nil
}

// Scan runs the database over data. It returns Terminate when the handler
// stopped the scan, and the handler's own error if it returned one.
func (b *BlockScanner[T]) Scan(data []byte) (Scan, error) {
	if b.s.closed {
		return Continue, ErrClosed
	}
	if err := checkLength(data); err != nil {
		return Continue, err
	}
	return b.s.run(func() ErrorCode {
		return scanBlock(b.s.db.ptr, data, b.s.scratch.ptr, b.s.handle)
	})
}

// Context returns the context bound to the scanner.
func (b *BlockScanner[T]) Context() *Context[T] { return b.ctx }

// ScratchSize returns the size of the scanner's scratch region in bytes.
func (b *BlockScanner[T]) ScratchSize() (int, error) { return b.s.scratchSize() }

// Close releases the scratch region, the context binding and the database
// reference. It is idempotent. Called from the scanner's own handler, it stops
// the scan and releases everything once the scan call returns.
func (b *BlockScanner[T]) Close() error {
	b.s.close()
	return nil
}

// VectoredScanner scans a list of buffers as one logical input. It is not safe
// for concurrent use.
type VectoredScanner[T any] struct {
	s   *scanner
	ctx *Context[T]
}

// NewVectoredScanner allocates scratch for db and binds ctx to it.
func NewVectoredScanner[T any](db *VectoredDatabase, ctx *Context[T]) (*VectoredScanner[T], error) {
	if ctx == nil || ctx.handler == nil {
		return nil, ErrNoHandler
	}
	if db == nil {
		return nil, ErrClosed
	}
	d, err := db.get()
	if err != nil {
		return nil, err
	}
	s, err := bindScanner(d, ctx, nil)
	runtime.KeepAlive(db.dbHandle)
	if err != nil {
		return nil, err
	}
	return &VectoredScanner[T]{s: s, ctx: ctx}, nil
}

// Scan runs the database over the concatenation of data, in slice order.
// Reported offsets are relative to the start of the first buffer.
func (v *VectoredScanner[T]) Scan(data [][]byte) (Scan, error) {
	if v.s.closed {
		return Continue, ErrClosed
	}
	for _, buf := range data {
		if err := checkLength(buf); err != nil {
			return Continue, err
		}
	}
	return v.s.run(func() ErrorCode {
		return scanVector(v.s.db.ptr, data, v.s.scratch.ptr, v.s.handle)
	})
}

// Context returns the context bound to the scanner.
func (v *VectoredScanner[T]) Context() *Context[T] { return v.ctx }

// ScratchSize returns the size of the scanner's scratch region in bytes.
func (v *VectoredScanner[T]) ScratchSize() (int, error) { return v.s.scratchSize() }

// Close releases the scanner's resources. It is idempotent.
func (v *VectoredScanner[T]) Close() error {
	v.s.close()
	return nil
}

// StreamScanner scans data arriving in ordered chunks. Matches may span chunk
// boundaries and offsets count from the start of the stream. It is not safe for
// concurrent use.
//
// After a scan call fails with an *EngineError the stream state is undefined;
// call Reset before scanning again.
type StreamScanner[T any] struct {
	s   *scanner
	ctx *Context[T]
}

// NewStreamScanner allocates scratch and opens a stream on db, then binds ctx.
func NewStreamScanner[T any](db *StreamDatabase, ctx *Context[T]) (*StreamScanner[T], error) {
	if ctx == nil || ctx.handler == nil {
		return nil, ErrNoHandler
	}
	if db == nil {
		return nil, ErrClosed
	}
	d, err := db.get()
	if err != nil {
		return nil, err
	}
	defer runtime.KeepAlive(db.dbHandle)

	st, err := openStream(d)
	if err != nil {
		return nil, err
	}
	s, err := bindScanner(d, ctx, nil)
	if err != nil {
		st.close()
		return nil, err
	}
	s.stream = st
	return &StreamScanner[T]{s: s, ctx: ctx}, nil
}

// Scan feeds the next chunk of the stream.
func (st *StreamScanner[T]) Scan(data []byte) (Scan, error) {
	if st.s.closed {
		return Continue, ErrClosed
	}
	if err := checkLength(data); err != nil {
		return Continue, err
	}
	return st.s.run(func() ErrorCode {
		return scanStream(st.s.stream.ptr, data, st.s.scratch.ptr, st.s.handle)
	})
}

// ScanChunks feeds data in pieces of at most chunkSize bytes and stops at the
// first Terminate or error. Empty data feeds nothing and returns Continue.
func (st *StreamScanner[T]) ScanChunks(data []byte, chunkSize int) (Scan, error) {
	if chunkSize <= 0 {
		return Continue, ErrInvalidChunkSize
	}
	outcome := Continue
	for len(data) > 0 {
		n := min(chunkSize, len(data))
		var err error
		if outcome, err = st.Scan(data[:n]); err != nil {
			return outcome, err
		}
		if outcome == Terminate {
			break
		}
		data = data[n:]
	}
	return outcome, nil
}

// Reset reports any matches pending at end of data, then returns the stream to
// its initial state without reallocating it.
func (st *StreamScanner[T]) Reset() (Scan, error) {
	if st.s.closed {
		return Continue, ErrClosed
	}
	return st.s.run(func() ErrorCode {
		return resetStream(st.s.stream.ptr, st.s.scratch.ptr, st.s.handle)
	})
}

// Context returns the context bound to the scanner.
func (st *StreamScanner[T]) Context() *Context[T] { return st.ctx }

// ScratchSize returns the size of the scanner's scratch region in bytes.
func (st *StreamScanner[T]) ScratchSize() (int, error) { return st.s.scratchSize() }

// Close tears the stream down without reporting pending matches and releases
// the scanner's resources. It is idempotent.
func (st *StreamScanner[T]) Close() error {
	st.s.close()
	return nil
}
