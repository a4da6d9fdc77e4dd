// Package serve exposes the engine over newline-delimited JSON so that other
// processes can compile databases, build scanners and scan through handles.
package serve

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/rs/zerolog"

	"github.com/praetorian-inc/perscan/pkg/hyperscan"
	"github.com/praetorian-inc/perscan/pkg/matcher"
)

// Version is the server protocol version.
const Version = "1.0.0"

// DefaultMatchLimit caps the matches one scan request may collect.
const DefaultMatchLimit = 1 << 20

// ErrMatchLimit is the handler error raised when a scan collects more than
// the server's match limit.
var ErrMatchLimit = errors.New("match limit exceeded")

// requestError is a protocol-level failure with its kind and details.
type requestError struct {
	kind string
	err  error
	data any
}

func (e *requestError) Error() string { return e.err.Error() }
func (e *requestError) Unwrap() error { return e.err }

func invalid(format string, args ...any) error {
	return &requestError{kind: KindInvalidRequest, err: fmt.Errorf(format, args...)}
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger for request tracing.
func WithLogger(logger zerolog.Logger) Option {
	return func(s *Server) { s.logger = logger }
}

// WithMatchLimit sets the per-request match cap.
func WithMatchLimit(n int) Option {
	return func(s *Server) {
		if n > 0 {
			s.matchLimit = n
		}
	}
}

// WithMatcher enables "match" requests, served by m.
func WithMatcher(m *matcher.Matcher) Option {
	return func(s *Server) { s.matcher = m }
}

// Server handles NDJSON requests from in and writes responses to out. Handles
// are private to the server and released when Run returns.
type Server struct {
	encoder *json.Encoder
	decoder *json.Decoder
	logger  zerolog.Logger

	matchLimit int
	matcher    *matcher.Matcher
	handles    *handleTable
}

// NewServer creates a new streaming server.
func NewServer(in io.Reader, out io.Writer, opts ...Option) *Server {
	s := &Server{
		encoder:    json.NewEncoder(out),
		decoder:    json.NewDecoder(bufio.NewReader(in)),
		logger:     zerolog.Nop(),
		matchLimit: DefaultMatchLimit,
		handles:    newHandleTable(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run serves requests until in is exhausted, a close request arrives or ctx
// is cancelled.
func (s *Server) Run(ctx context.Context) error {
	defer s.handles.closeAll()

	s.sendReady()

	reqChan := make(chan Request, 1)
	errChan := make(chan error, 1)

	go func() {
		for {
			var req Request
			if err := s.decoder.Decode(&req); err != nil {
				errChan <- err
				return
			}
			select {
			case reqChan <- req:
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-errChan:
			// Drain any pending request before handling EOF.
			for {
				select {
				case req := <-reqChan:
					if s.processRequest(req) {
						return nil
					}
				default:
					if err != io.EOF {
						s.sendError(TypeError, &requestError{kind: KindInvalidRequest, err: err})
					}
					return nil
				}
			}
		case req := <-reqChan:
			if s.processRequest(req) {
				return nil
			}
		}
	}
}

// processRequest handles one request and reports whether the server should exit.
func (s *Server) processRequest(req Request) bool {
	s.logger.Debug().Str("type", req.Type).Int("bytes", len(req.Payload)).Msg("request")

	var (
		data any
		err  error
	)
	switch req.Type {
	case TypeCompile:
		data, err = s.handleCompile(req.Payload)
	case TypeScanner:
		data, err = s.handleScanner(req.Payload)
	case TypeScan:
		data, err = s.handleScan(req.Payload)
	case TypeReset:
		data, err = s.handleReset(req.Payload)
	case TypeRelease:
		data, err = s.handleRelease(req.Payload)
	case TypeMatch:
		data, err = s.handleMatch(req.Payload)
	case TypeClose:
		s.send(TypeClose, struct{}{})
		return true
	default:
		err = invalid("unknown request type: %s", req.Type)
	}

	if err != nil {
		s.logger.Debug().Err(err).Str("type", req.Type).Msg("request failed")
		s.sendError(req.Type, err)
		return false
	}
	s.send(req.Type, data)
	return false
}

func decodePayload(payload json.RawMessage, v any) error {
	if len(payload) == 0 {
		return invalid("missing payload")
	}
	if err := json.Unmarshal(payload, v); err != nil {
		return invalid("invalid payload: %v", err)
	}
	return nil
}

func (s *Server) sendReady() {
	s.send(TypeReady, ReadyData{Version: Version, EngineVersion: hyperscan.Version()})
}

func (s *Server) send(typ string, data any) {
	raw, err := json.Marshal(data)
	if err != nil {
		s.sendError(typ, err)
		return
	}
	s.encode(Response{Success: true, Type: typ, Data: raw})
}

func (s *Server) sendError(typ string, err error) {
	kind, details := classify(err)
	resp := Response{Success: false, Type: typ, Error: err.Error(), Kind: kind}
	if details != nil {
		resp.Data, _ = json.Marshal(details)
	}
	s.encode(resp)
}

func (s *Server) encode(resp Response) {
	if err := s.encoder.Encode(resp); err != nil {
		s.logger.Warn().Err(err).Str("type", resp.Type).Msg("failed to write response")
	}
}

// classify maps an error to its wire kind and detail payload.
func classify(err error) (string, any) {
	var (
		reqErr    *requestError
		compile   *hyperscan.CompileError
		malformed *hyperscan.MalformedInputError
		engine    *hyperscan.EngineError
		panicked  *hyperscan.HandlerPanicError
	)
	switch {
	case errors.As(err, &reqErr):
		return reqErr.kind, reqErr.data
	case errors.As(err, &compile):
		return KindCompileError, CompileErrorData{Message: compile.Message, Pattern: compile.Expression}
	case errors.As(err, &malformed):
		return KindMalformedInput, MalformedInputData{Pattern: malformed.Pattern, Position: malformed.Position}
	case errors.As(err, &engine):
		return KindEngineError, EngineErrorData{Code: int(engine.Code), Name: engine.Code.String()}
	case errors.As(err, &panicked), errors.Is(err, ErrMatchLimit):
		return KindHandlerError, nil
	default:
		return KindInvalidRequest, nil
	}
}
