package patterns

import "embed"

// builtinFS holds the pattern sets shipped with the binary.
//
//go:embed builtin/*.yml
var builtinFS embed.FS
