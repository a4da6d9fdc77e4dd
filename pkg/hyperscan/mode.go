package hyperscan

import (
	"fmt"
	"strings"
)

// Mode selects the scanning mode of a database and, for streaming, the
// start-of-match horizon.
type Mode uint

// Modes. The values are the engine's HS_MODE_* bits.
const (
	BlockMode        Mode = 1       // HS_MODE_BLOCK
	StreamMode       Mode = 2       // HS_MODE_STREAM
	VectoredMode     Mode = 4       // HS_MODE_VECTORED
	SomHorizonLarge  Mode = 1 << 24 // HS_MODE_SOM_HORIZON_LARGE
	SomHorizonMedium Mode = 1 << 25 // HS_MODE_SOM_HORIZON_MEDIUM
	SomHorizonSmall  Mode = 1 << 26 // HS_MODE_SOM_HORIZON_SMALL

	scanModeMask   = BlockMode | StreamMode | VectoredMode
	somHorizonMask = SomHorizonLarge | SomHorizonMedium | SomHorizonSmall
)

// ScanMode returns only the block/stream/vectored bits of m.
func (m Mode) ScanMode() Mode {
	return m & scanModeMask
}

// Validate checks that exactly one scan mode is selected and that a
// start-of-match horizon, if any, accompanies stream mode.
func (m Mode) Validate() error {
	switch m.ScanMode() {
	case StreamMode:
		return nil
	case BlockMode, VectoredMode:
		if m&somHorizonMask == 0 {
			return nil
		}
	}
	return ErrInvalidMode
}

func (m Mode) String() string {
	var parts []string
	switch m.ScanMode() {
	case BlockMode:
		parts = append(parts, "Block")
	case StreamMode:
		parts = append(parts, "Stream")
	case VectoredMode:
		parts = append(parts, "Vectored")
	default:
		if s := m.ScanMode(); s != 0 {
			parts = append(parts, fmt.Sprintf("Mixed(0x%x)", uint(s)))
		}
	}
	if m&SomHorizonLarge != 0 {
		parts = append(parts, "SomHorizonLarge")
	}
	if m&SomHorizonMedium != 0 {
		parts = append(parts, "SomHorizonMedium")
	}
	if m&SomHorizonSmall != 0 {
		parts = append(parts, "SomHorizonSmall")
	}
	if len(parts) == 0 {
		return "None"
	}
	return strings.Join(parts, "|")
}

// ParseMode accepts "block", "stream" or "vectored".
func ParseMode(name string) (Mode, error) {
	switch strings.ToLower(name) {
	case "block":
		return BlockMode, nil
	case "stream", "streaming":
		return StreamMode, nil
	case "vectored", "vector":
		return VectoredMode, nil
	}
	return 0, fmt.Errorf("hyperscan: unknown mode %q", name)
}
