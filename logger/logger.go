// Package logger provides adapters for popular logger libraries to work with ridx's Logger interface.
//
// The adapters allow you to use your existing logger with ridx without writing boilerplate.
// Note that the standard library's slog.Logger already implements ridx.Logger directly.
//
// Example with zerolog:
//
//	import (
//	    "os"
//
//	    "github.com/rs/zerolog"
//	    "ridx"
//	    "ridx/logger"
//	)
//
//	func main() {
//	    zl := zerolog.New(os.Stderr).With().Timestamp().Logger()
//
//	    pool, err := ridx.NewBufferPool("index.db", 64,
//	        ridx.WithPoolLogger(logger.NewZerolog(zl)))
//	    if err != nil {
//	        panic(err)
//	    }
//	    defer pool.Close()
//	}
package logger
