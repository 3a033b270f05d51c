// Package pglog adapts the module's logf func(format string, args ...any)
// contract to an io.Writer a subprocess's stdout/stderr pipe can be wired
// to directly, and provides the package's default logger.
//
// Subprocess output arrives in arbitrary-sized chunks; the Logf contract
// expects one call per line, not one call per Write, so the writer
// buffers partial lines.
package pglog

import (
	"bytes"
	"io"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// Logf is the module-wide logging contract: a single call per log line,
// printf-style. Every component that logs takes one of these rather than
// an interface, so callers can pass t.Logf, log.Printf, or anything else
// shaped that way.
type Logf func(format string, args ...any)

// Default returns a Logf backed by a production zap.Logger (JSON-encoded,
// info level), used whenever a caller does not supply their own.
func Default() Logf {
	l, err := zap.NewProduction()
	if err != nil {
		// zap.NewProduction only fails to build its encoder config or open
		// its default sink, neither of which this module controls; fall
		// back to zap's example logger rather than panic.
		l = zap.NewExample()
	}
	sugar := l.Sugar()
	return func(format string, args ...any) {
		sugar.Infof(format, args...)
	}
}

// Discard is a Logf that does nothing, for tests and callers that want
// silence.
func Discard(string, ...any) {}

// lineWriter buffers partial writes and flushes exactly one logf call per
// complete line.
type lineWriter struct {
	logf Logf

	mu      sync.Mutex
	lineBuf strings.Builder
}

// Writer returns an io.Writer that calls logf once per line written to it,
// suitable for wiring directly to an exec.Cmd's Stdout/Stderr.
func Writer(logf Logf) io.Writer {
	return &lineWriter{logf: logf}
}

var newline = []byte{'\n'}

func (lw *lineWriter) Flush() error {
	if lw == nil {
		return nil
	}
	lw.mu.Lock()
	defer lw.mu.Unlock()
	if lw.lineBuf.Len() == 0 {
		return nil
	}
	lw.logf("%s", strings.TrimSuffix(lw.lineBuf.String(), "\n"))
	lw.lineBuf.Reset()
	return nil
}

func (lw *lineWriter) writeLocked(p []byte, includeNewline bool) {
	lw.mu.Lock()
	defer lw.mu.Unlock()
	lw.lineBuf.Write(p)
	if includeNewline {
		lw.lineBuf.WriteByte('\n')
	}
}

func (lw *lineWriter) Write(p []byte) (n int, err error) {
	p0 := p
	for {
		before, after, hasNewline := bytes.Cut(p, newline)
		lw.writeLocked(before, hasNewline)
		if hasNewline {
			if err := lw.Flush(); err != nil {
				return 0, err
			}
			p = after
		} else {
			return len(p0), nil
		}
	}
}

// Prefixed returns a Logf that prepends prefix (e.g. "pg_ctl: ") to every
// message, for distinguishing output from the several subprocesses the
// lifecycle controller supervises.
func Prefixed(logf Logf, prefix string) Logf {
	return func(format string, args ...any) {
		logf(prefix+format, args...)
	}
}
