package hyperscan

// #include <hs.h>
import "C"

// Version returns the version string of the linked engine, for example
// "5.4.2 2023-10-26".
func Version() string {
	return C.GoString(C.hs_version())
}

// ValidPlatform reports an *EngineError with ErrArchError when the CPU lacks the
// instructions the engine was built for.
func ValidPlatform() error {
	return codeError(ErrorCode(C.hs_valid_platform()))
}
