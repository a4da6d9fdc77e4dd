package hyperscan

import (
	"bytes"
	"errors"
	"fmt"
)

// Pattern is one expression with its flags and numeric ID, as submitted for
// compilation. The engine does not retain it after the compile call.
type Pattern struct {
	Expression []byte
	Flags      Flag
	ID         uint // reported to the match handler; 0 when unset
}

// NewPattern builds a pattern from an expression and any number of flags.
// The expression must not contain a NUL byte.
func NewPattern(expression []byte, flags ...Flag) (Pattern, error) {
	p := Pattern{Expression: bytes.Clone(expression)}
	for _, f := range flags {
		p.Flags |= f
	}
	if err := p.Validate(); err != nil {
		return Pattern{}, err
	}
	return p, nil
}

// MustPattern is like NewPattern but panics on a malformed expression.
func MustPattern(expression []byte, flags ...Flag) Pattern {
	p, err := NewPattern(expression, flags...)
	if err != nil {
		panic(err)
	}
	return p
}

// WithID returns a copy of p carrying id.
func (p Pattern) WithID(id uint) Pattern {
	p.ID = id
	return p
}

// Validate reports a *MalformedInputError if the expression contains a NUL byte.
func (p Pattern) Validate() error {
	if i := bytes.IndexByte(p.Expression, 0); i >= 0 {
		return &MalformedInputError{Pattern: -1, Position: i}
	}
	return nil
}

// String renders the pattern in the "id:/expression/flags" form.
func (p Pattern) String() string {
	return fmt.Sprintf("%d:/%s/%s", p.ID, p.Expression, p.Flags)
}

func validatePatterns(patterns []Pattern) error {
	for i, p := range patterns {
		if err := p.Validate(); err != nil {
			var mi *MalformedInputError
			if errors.As(err, &mi) {
				return &MalformedInputError{Pattern: i, Position: mi.Position}
			}
			return err
		}
	}
	return nil
}
