// Package hyperscan is a memory-safe Go binding of the Hyperscan (and Vectorscan)
// regular expression engine.
//
// The package owns every native handle it creates. Compiled databases are immutable,
// reference counted and safe to share between goroutines; scratch space and stream
// state belong to exactly one scanner and are released with it.
//
// # Scanning
//
// Compile the patterns for one of the three scan modes, attach a context carrying
// your own state and a match handler, then scan:
//
//	db, err := hyperscan.NewBlockDatabase(
//	    hyperscan.MustPattern([]byte(`foo.*bar`), hyperscan.SomLeftMost),
//	)
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	ctx := hyperscan.NewContext([]uint64(nil), func(starts *[]uint64, id uint, from, to uint64) (hyperscan.Scan, error) {
//	    *starts = append(*starts, from)
//	    return hyperscan.Continue, nil
//	})
//
//	scanner, err := hyperscan.NewBlockScanner(db, ctx)
//	if err != nil {
//	    return err
//	}
//	defer scanner.Close()
//
//	outcome, err := scanner.Scan([]byte("xxfooxxbar"))
//	starts := *ctx.UserData()
//
// # Match handlers
//
// A handler returns Continue to keep scanning, Terminate to stop the current scan
// call early, or an error. Terminate is reported by Scan as an outcome, not as an
// error. An error returned by the handler stops the engine and is returned by Scan
// unchanged. A panic in the handler never unwinds through the engine: it is
// recovered and returned as a *HandlerPanicError.
//
// # Concurrency
//
// Databases may be used by any number of scanners at once. A scanner is not safe
// for concurrent use; give every goroutine its own scanner. Sharing one scanner
// between goroutines is undefined. A handler that scans again with its own scanner
// gets ErrScratchInUse from the engine, and a handler may Close its own scanner:
// the scan stops and resources are released when the scan call returns.
package hyperscan
