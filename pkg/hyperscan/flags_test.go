package hyperscan

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlag_String(t *testing.T) {
	tests := []struct {
		flags Flag
		want  string
	}{
		{0, "None"},
		{Caseless, "Caseless"},
		{Caseless | DotAll, "Caseless|DotAll"},
		{SomLeftMost | UTF8 | UCP, "UTF8|UCP|SomLeftMost"},
		{Quiet | Flag(1<<20), "Quiet|0x100000"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.flags.String())
	}
}

func TestFlag_Values(t *testing.T) {
	assert.Equal(t, Flag(1), Caseless)
	assert.Equal(t, Flag(8), SingleMatch)
	assert.Equal(t, Flag(256), SomLeftMost)
	assert.Equal(t, Flag(1024), Quiet)
}

func TestParseFlag(t *testing.T) {
	for _, name := range []string{"SomLeftMost", "som_leftmost", "SOM-LEFTMOST"} {
		f, err := ParseFlag(name)
		require.NoError(t, err, name)
		assert.Equal(t, SomLeftMost, f)
	}

	_, err := ParseFlag("greedy")
	assert.Error(t, err)

	f, err := ParseFlags([]string{"caseless", "dotall", "utf8"})
	require.NoError(t, err)
	assert.True(t, f.Has(Caseless|DotAll))
	assert.True(t, f.Has(UTF8))
	assert.False(t, f.Has(UCP))
}

func TestMode_Validate(t *testing.T) {
	assert.NoError(t, BlockMode.Validate())
	assert.NoError(t, (StreamMode | SomHorizonSmall).Validate())
	assert.NoError(t, VectoredMode.Validate())

	assert.ErrorIs(t, Mode(0).Validate(), ErrInvalidMode)
	assert.ErrorIs(t, (BlockMode | VectoredMode).Validate(), ErrInvalidMode)
	assert.ErrorIs(t, SomHorizonLarge.Validate(), ErrInvalidMode)
	assert.ErrorIs(t, (BlockMode | SomHorizonSmall).Validate(), ErrInvalidMode)
	assert.ErrorIs(t, (VectoredMode | SomHorizonMedium).Validate(), ErrInvalidMode)
}

func TestMode_StringAndParse(t *testing.T) {
	assert.Equal(t, "Stream|SomHorizonLarge", (StreamMode | SomHorizonLarge).String())
	assert.Equal(t, "Block", BlockMode.String())
	assert.Equal(t, "None", Mode(0).String())

	m, err := ParseMode("Vectored")
	require.NoError(t, err)
	assert.Equal(t, VectoredMode, m)

	_, err = ParseMode("batch")
	assert.Error(t, err)
}

func TestModeFromInfo(t *testing.T) {
	assert.Equal(t, BlockMode, modeFromInfo("Version: 5.4.2 Features: AVX2 Mode: BLOCK"))
	assert.Equal(t, StreamMode|SomHorizonLarge, modeFromInfo("Version: 5.4.2 Features:  Mode: STREAM"))
	assert.Equal(t, VectoredMode, modeFromInfo("Version: 5.4.2 Features: AVX2 Mode: VECTORED"))
	assert.Equal(t, Mode(0), modeFromInfo("garbage"))
}

func TestNewPattern(t *testing.T) {
	p, err := NewPattern([]byte("foo.*bar"), Caseless, DotAll)
	require.NoError(t, err)
	assert.Equal(t, Caseless|DotAll, p.Flags)
	assert.Equal(t, uint(0), p.ID)
	assert.Equal(t, "7:/foo.*bar/Caseless|DotAll", p.WithID(7).String())

	_, err = NewPattern([]byte("ab\x00"))
	var mi *MalformedInputError
	require.ErrorAs(t, err, &mi)
	assert.Equal(t, 2, mi.Position)
	assert.Equal(t, -1, mi.Pattern)

	assert.Panics(t, func() { MustPattern([]byte("\x00")) })
}

func TestErrorCode(t *testing.T) {
	assert.Equal(t, "ScratchInUse", ErrScratchInUse.String())
	assert.Equal(t, "ErrorCode(-99)", ErrorCode(-99).String())
	assert.Contains(t, ErrDatabaseMode.Error(), "different mode")

	err := &EngineError{Code: ErrScratchInUse}
	assert.ErrorIs(t, err, ErrScratchInUse)
	assert.ErrorIs(t, err, &EngineError{Code: ErrScratchInUse})
	assert.NotErrorIs(t, err, ErrNoMemory)

	assert.NoError(t, codeError(ErrSuccess))
	assert.ErrorIs(t, codeError(ErrBadAlign), ErrBadAlign)
}

func TestScanResult(t *testing.T) {
	handlerErr := errors.New("handler")

	outcome, err := scanResult(ErrSuccess, nil)
	require.NoError(t, err)
	assert.Equal(t, Continue, outcome)

	outcome, err = scanResult(ErrScanTerminated, nil)
	require.NoError(t, err)
	assert.Equal(t, Terminate, outcome)

	_, err = scanResult(ErrScanTerminated, handlerErr)
	assert.Same(t, handlerErr, err)

	_, err = scanResult(ErrNoMemory, nil)
	var ee *EngineError
	require.ErrorAs(t, err, &ee)
	assert.Equal(t, ErrNoMemory, ee.Code)
}

func TestContext_RecoversPanics(t *testing.T) {
	ctx := NewContext(0, func(n *int, id uint, from, to uint64) (Scan, error) {
		*n++
		if *n > 1 {
			panic("second call")
		}
		return Continue, nil
	})

	assert.False(t, ctx.onMatch(0, 0, 1))
	assert.NoError(t, ctx.takeError())

	assert.True(t, ctx.onMatch(0, 0, 2))
	var pe *HandlerPanicError
	require.ErrorAs(t, ctx.takeError(), &pe)
	assert.Equal(t, "second call", pe.Value)
	assert.NoError(t, ctx.takeError(), "takeError clears the slot")
	assert.Equal(t, 2, *ctx.UserData())
}
