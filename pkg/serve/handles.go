package serve

import (
	"fmt"
	"sync"

	"github.com/praetorian-inc/perscan/pkg/hyperscan"
	"github.com/praetorian-inc/perscan/pkg/patterns"
)

// resource is anything a handle can refer to.
type resource interface {
	Close() error
}

type handleTable struct {
	mu      sync.Mutex
	next    uint64
	entries map[uint64]resource
}

func newHandleTable() *handleTable {
	return &handleTable{next: 1, entries: make(map[uint64]resource)}
}

func (t *handleTable) add(r resource) uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	id := t.next
	t.next++
	t.entries[id] = r
	return id
}

func (t *handleTable) get(id uint64) (resource, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	r, ok := t.entries[id]
	return r, ok
}

func (t *handleTable) release(id uint64) error {
	t.mu.Lock()
	r, ok := t.entries[id]
	delete(t.entries, id)
	t.mu.Unlock()
	if !ok {
		return invalid("unknown handle %d", id)
	}
	return r.Close()
}

func (t *handleTable) closeAll() {
	t.mu.Lock()
	entries := t.entries
	t.entries = make(map[uint64]resource)
	t.mu.Unlock()
	for _, r := range entries {
		r.Close()
	}
}

// database is a compiled pattern set with the tags of its patterns.
type database struct {
	db  hyperscan.Database
	set *patterns.Set
}

func (d *database) Close() error { return d.db.Close() }

// session is the user data of every scanner the server builds.
type session struct {
	set     *patterns.Set
	matches []Match
	max     int
	limit   int
}

func (s *session) begin(maxMatches int) {
	s.matches = s.matches[:0]
	s.max = maxMatches
}

func onMatch(s *session, id uint, from, to uint64) (hyperscan.Scan, error) {
	if len(s.matches) >= s.limit {
		return hyperscan.Terminate, ErrMatchLimit
	}
	s.matches = append(s.matches, Match{ID: id, Tag: s.set.Tag(id), Start: from, End: to})
	if s.max > 0 && len(s.matches) >= s.max {
		return hyperscan.Terminate, nil
	}
	return hyperscan.Continue, nil
}

// scanner wraps the one scanner family its database was compiled for.
type scanner struct {
	mode       hyperscan.Mode
	maxMatches int
	ctx        *hyperscan.Context[session]

	block    *hyperscan.BlockScanner[session]
	vectored *hyperscan.VectoredScanner[session]
	stream   *hyperscan.StreamScanner[session]
}

func newScanner(d *database, maxMatches, limit int) (*scanner, error) {
	ctx := hyperscan.NewContext(session{set: d.set, limit: limit}, onMatch)
	sc := &scanner{mode: d.db.Mode().ScanMode(), maxMatches: maxMatches, ctx: ctx}

	var err error
	switch db := d.db.(type) {
	case *hyperscan.BlockDatabase:
		sc.block, err = hyperscan.NewBlockScanner(db, ctx)
	case *hyperscan.VectoredDatabase:
		sc.vectored, err = hyperscan.NewVectoredScanner(db, ctx)
	case *hyperscan.StreamDatabase:
		sc.stream, err = hyperscan.NewStreamScanner(db, ctx)
	default:
		err = fmt.Errorf("unsupported database type %T", d.db)
	}
	if err != nil {
		return nil, err
	}
	return sc, nil
}

func (sc *scanner) Close() error {
	switch {
	case sc.block != nil:
		return sc.block.Close()
	case sc.vectored != nil:
		return sc.vectored.Close()
	case sc.stream != nil:
		return sc.stream.Close()
	}
	return nil
}

// scan runs one scan request and returns its outcome and matches.
func (sc *scanner) scan(p ScanPayload) (ScanData, error) {
	maxMatches := sc.maxMatches
	if p.MaxMatches != nil {
		maxMatches = *p.MaxMatches
	}
	sc.ctx.UserData().begin(maxMatches)

	var (
		outcome hyperscan.Scan
		err     error
	)
	switch {
	case sc.vectored != nil:
		if p.Data != "" {
			return ScanData{}, invalid("vectored scanners take items, not data")
		}
		parts := make([][]byte, len(p.Items))
		for i, item := range p.Items {
			if parts[i], err = item.Bytes(); err != nil {
				return ScanData{}, invalid("item %d: %v", i, err)
			}
		}
		outcome, err = sc.vectored.Scan(parts)
	default:
		if len(p.Items) > 0 {
			return ScanData{}, invalid("%s scanners take data, not items", sc.mode)
		}
		data, derr := p.Buffer.Bytes()
		if derr != nil {
			return ScanData{}, invalid("%v", derr)
		}
		switch {
		case sc.block != nil:
			if p.ChunkSize != 0 {
				return ScanData{}, invalid("chunk_size applies to stream scanners only")
			}
			outcome, err = sc.block.Scan(data)
		case p.ChunkSize != 0:
			outcome, err = sc.stream.ScanChunks(data, p.ChunkSize)
		default:
			outcome, err = sc.stream.Scan(data)
		}
	}
	if err != nil {
		return ScanData{}, err
	}
	return sc.result(outcome), nil
}

func (sc *scanner) reset() (ScanData, error) {
	if sc.stream == nil {
		return ScanData{}, invalid("reset applies to stream scanners only")
	}
	sc.ctx.UserData().begin(sc.maxMatches)
	outcome, err := sc.stream.Reset()
	if err != nil {
		return ScanData{}, err
	}
	return sc.result(outcome), nil
}

func (sc *scanner) result(outcome hyperscan.Scan) ScanData {
	matches := append([]Match{}, sc.ctx.UserData().matches...)
	return ScanData{Outcome: outcomeName(outcome), Matches: matches}
}

func outcomeName(s hyperscan.Scan) string {
	if s == hyperscan.Terminate {
		return "terminate"
	}
	return "continue"
}
