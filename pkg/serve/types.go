package serve

import (
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/praetorian-inc/perscan/pkg/types"
)

// Request types.
const (
	TypeReady   = "ready"
	TypeCompile = "compile"
	TypeScanner = "scanner"
	TypeScan    = "scan"
	TypeReset   = "reset"
	TypeRelease = "release"
	TypeMatch   = "match"
	TypeClose   = "close"
	TypeError   = "error"
)

// Error kinds reported in Response.Kind.
const (
	KindMalformedInput = "malformed_input"
	KindEngineError    = "engine_error"
	KindCompileError   = "compile_error"
	KindHandlerError   = "handler_error"
	KindInvalidRequest = "invalid_request"
)

// Request represents an incoming NDJSON request.
type Request struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// Response represents an outgoing NDJSON response.
type Response struct {
	Success bool            `json:"success"`
	Type    string          `json:"type"`
	Data    json.RawMessage `json:"data,omitempty"`
	Error   string          `json:"error,omitempty"`
	Kind    string          `json:"kind,omitempty"`
}

// ReadyData is the data field for "ready" responses.
type ReadyData struct {
	Version       string `json:"version"`
	EngineVersion string `json:"engine_version"`
}

// Buffer is scan input. Text is sent as is; binary data is sent base64
// encoded with Base64 set.
type Buffer struct {
	Data   string `json:"data"`
	Base64 bool   `json:"base64,omitempty"`
}

// Bytes decodes the buffer.
func (b Buffer) Bytes() ([]byte, error) {
	if !b.Base64 {
		return []byte(b.Data), nil
	}
	data, err := base64.StdEncoding.DecodeString(b.Data)
	if err != nil {
		return nil, fmt.Errorf("invalid base64 data: %w", err)
	}
	return data, nil
}

// PatternSpec is one pattern of a compile request. Either Expression (with
// Flags names) or Literal ("/expr/flags") is set. Expressions that are not
// valid text are sent base64 encoded with Base64 set.
type PatternSpec struct {
	Expression string   `json:"expression,omitempty"`
	Base64     bool     `json:"base64,omitempty"`
	Literal    string   `json:"literal,omitempty"`
	Flags      []string `json:"flags,omitempty"`
	Tag        string   `json:"tag,omitempty"`
}

// CompilePayload is the payload for "compile" requests. Patterns get their
// position in the list as id.
type CompilePayload struct {
	Mode     string        `json:"mode"`
	Patterns []PatternSpec `json:"patterns"`
}

// CompileData answers a compile request.
type CompileData struct {
	Database uint64 `json:"database"`
	Mode     string `json:"mode"`
	Patterns int    `json:"patterns"`
	Size     int    `json:"size"`
}

// ScannerPayload is the payload for "scanner" requests.
type ScannerPayload struct {
	Database   uint64 `json:"database"`
	MaxMatches int    `json:"max_matches,omitempty"`
}

// ScannerData answers a scanner request.
type ScannerData struct {
	Scanner uint64 `json:"scanner"`
	Mode    string `json:"mode"`
}

// ScanPayload is the payload for "scan" requests. Block and stream scanners
// take Buffer; vectored scanners take Items. ChunkSize splits a stream scan
// into several engine calls.
type ScanPayload struct {
	Scanner    uint64   `json:"scanner"`
	Buffer              // inline data/base64
	Items      []Buffer `json:"items,omitempty"`
	ChunkSize  int      `json:"chunk_size,omitempty"`
	MaxMatches *int     `json:"max_matches,omitempty"`
}

// ResetPayload is the payload for "reset" requests.
type ResetPayload struct {
	Scanner uint64 `json:"scanner"`
}

// ReleasePayload is the payload for "release" requests. Handle is a database
// or scanner handle.
type ReleasePayload struct {
	Handle uint64 `json:"handle"`
}

// Match is one match event reported to the client.
type Match struct {
	ID    uint   `json:"id"`
	Tag   string `json:"tag,omitempty"`
	Start uint64 `json:"start"`
	End   uint64 `json:"end"`
}

// ScanData answers scan and reset requests.
type ScanData struct {
	Outcome string  `json:"outcome"`
	Matches []Match `json:"matches"`
}

// ContentItem is one blob of a match request.
type ContentItem struct {
	Source  string `json:"source"`
	Content string `json:"content"`
}

// MatchPayload is the payload for "match" requests, served by the matcher the
// server was started with.
type MatchPayload struct {
	Source  string        `json:"source,omitempty"`
	Content string        `json:"content,omitempty"`
	Items   []ContentItem `json:"items,omitempty"`
}

// MatchResult holds the matches of one content item.
type MatchResult struct {
	Source  string         `json:"source"`
	Matches []*types.Match `json:"matches"`
}

// CompileErrorData details a compile_error.
type CompileErrorData struct {
	Message string `json:"message"`
	Pattern int    `json:"pattern"`
}

// EngineErrorData details an engine_error.
type EngineErrorData struct {
	Code int    `json:"code"`
	Name string `json:"name"`
}

// MalformedInputData details a malformed_input error.
type MalformedInputData struct {
	Pattern  int `json:"pattern"`
	Position int `json:"position"`
}
