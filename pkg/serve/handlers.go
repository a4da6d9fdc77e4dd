package serve

import (
	"errors"
	"fmt"

	"github.com/praetorian-inc/perscan/pkg/hyperscan"
	"github.com/praetorian-inc/perscan/pkg/patterns"
	"github.com/praetorian-inc/perscan/pkg/types"
)

func (spec PatternSpec) entry() (patterns.Entry, error) {
	if spec.Literal != "" {
		if spec.Expression != "" || len(spec.Flags) > 0 || spec.Base64 {
			return patterns.Entry{}, errors.New("literal excludes expression, flags and base64")
		}
		e, err := patterns.ParseLiteral(spec.Literal)
		if err != nil {
			return patterns.Entry{}, err
		}
		// Database ids are always positional here.
		e.ID = nil
		e.Tag = spec.Tag
		return e, nil
	}
	flags, err := hyperscan.ParseFlags(spec.Flags)
	if err != nil {
		return patterns.Entry{}, err
	}
	expr, err := Buffer{Data: spec.Expression, Base64: spec.Base64}.Bytes()
	if err != nil {
		return patterns.Entry{}, err
	}
	return patterns.Entry{Expression: string(expr), Flags: flags, Tag: spec.Tag}, nil
}

func (s *Server) handleCompile(payload []byte) (any, error) {
	var p CompilePayload
	if err := decodePayload(payload, &p); err != nil {
		return nil, err
	}
	mode, err := hyperscan.ParseMode(p.Mode)
	if err != nil {
		return nil, invalid("%v", err)
	}

	entries := make([]patterns.Entry, len(p.Patterns))
	for i, spec := range p.Patterns {
		e, err := spec.entry()
		if err != nil {
			return nil, invalid("pattern %d: %v", i, err)
		}
		if err := (hyperscan.Pattern{Expression: []byte(e.Expression)}).Validate(); err != nil {
			var malformed *hyperscan.MalformedInputError
			if errors.As(err, &malformed) {
				malformed.Pattern = i
			}
			return nil, err
		}
		entries[i] = e
	}
	set, err := patterns.NewSet(entries)
	if err != nil {
		return nil, invalid("%v", err)
	}

	db, err := hyperscan.Compile(mode, set.Patterns()...)
	if err != nil {
		return nil, err
	}
	size, err := db.Size()
	if err != nil {
		db.Close()
		return nil, err
	}

	id := s.handles.add(&database{db: db, set: set})
	s.logger.Debug().Uint64("handle", id).Stringer("mode", db.Mode()).Int("patterns", set.Len()).Msg("compiled database")
	return CompileData{Database: id, Mode: db.Mode().String(), Patterns: set.Len(), Size: size}, nil
}

func (s *Server) handleScanner(payload []byte) (any, error) {
	var p ScannerPayload
	if err := decodePayload(payload, &p); err != nil {
		return nil, err
	}
	r, ok := s.handles.get(p.Database)
	d, isDB := r.(*database)
	if !ok || !isDB {
		return nil, invalid("unknown database handle %d", p.Database)
	}
	sc, err := newScanner(d, p.MaxMatches, s.matchLimit)
	if err != nil {
		return nil, err
	}
	id := s.handles.add(sc)
	return ScannerData{Scanner: id, Mode: sc.mode.String()}, nil
}

func (s *Server) lookupScanner(id uint64) (*scanner, error) {
	r, ok := s.handles.get(id)
	sc, isScanner := r.(*scanner)
	if !ok || !isScanner {
		return nil, invalid("unknown scanner handle %d", id)
	}
	return sc, nil
}

func (s *Server) handleScan(payload []byte) (any, error) {
	var p ScanPayload
	if err := decodePayload(payload, &p); err != nil {
		return nil, err
	}
	sc, err := s.lookupScanner(p.Scanner)
	if err != nil {
		return nil, err
	}
	return sc.scan(p)
}

func (s *Server) handleReset(payload []byte) (any, error) {
	var p ResetPayload
	if err := decodePayload(payload, &p); err != nil {
		return nil, err
	}
	sc, err := s.lookupScanner(p.Scanner)
	if err != nil {
		return nil, err
	}
	return sc.reset()
}

func (s *Server) handleRelease(payload []byte) (any, error) {
	var p ReleasePayload
	if err := decodePayload(payload, &p); err != nil {
		return nil, err
	}
	if err := s.handles.release(p.Handle); err != nil {
		return nil, err
	}
	return struct{}{}, nil
}

func (s *Server) handleMatch(payload []byte) (any, error) {
	if s.matcher == nil {
		return nil, invalid("server has no pattern set loaded")
	}
	var p MatchPayload
	if err := decodePayload(payload, &p); err != nil {
		return nil, err
	}
	items := p.Items
	if len(items) == 0 {
		items = []ContentItem{{Source: p.Source, Content: p.Content}}
	}

	results := make([]MatchResult, 0, len(items))
	for _, item := range items {
		matches, err := s.matcher.Match([]byte(item.Content))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", item.Source, err)
		}
		for _, m := range matches {
			m.Source = item.Source
		}
		if matches == nil {
			matches = []*types.Match{}
		}
		results = append(results, MatchResult{Source: item.Source, Matches: matches})
	}
	return results, nil
}
