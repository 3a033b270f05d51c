package pglog

import (
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"
)

type capture struct {
	lines []string
}

func (c *capture) logf(format string, args ...any) {
	c.lines = append(c.lines, fmt.Sprintf(format, args...))
}

func TestWriterFlushesOneLinePerLogfCall(t *testing.T) {
	tests := map[string]struct {
		writes []string
		want   []string
	}{
		"single line in one write": {
			writes: []string{"hello world\n"},
			want:   []string{"hello world"},
		},
		"multiple lines in one write": {
			writes: []string{"line one\nline two\n"},
			want:   []string{"line one", "line two"},
		},
		"split across writes": {
			writes: []string{"partial ", "line\n"},
			want:   []string{"partial line"},
		},
		"trailing partial line flushed explicitly": {
			writes: []string{"no newline yet"},
			want:   []string{"no newline yet"},
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			c := &capture{}
			w := Writer(Logf(c.logf))
			for _, p := range tt.writes {
				if _, err := w.Write([]byte(p)); err != nil {
					t.Fatal(err)
				}
			}
			if lw, ok := w.(*lineWriter); ok {
				lw.Flush()
			}
			if diff := cmp.Diff(tt.want, c.lines); diff != "" {
				t.Errorf("lines mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestPrefixedPrependsPrefix(t *testing.T) {
	c := &capture{}
	p := Prefixed(Logf(c.logf), "pg_ctl: ")
	p("starting on port %d", 5432)

	want := "pg_ctl: starting on port 5432"
	if len(c.lines) != 1 || c.lines[0] != want {
		t.Errorf("got %v, want [%q]", c.lines, want)
	}
}

func TestDiscardDoesNothing(t *testing.T) {
	// Must not panic, and must accept any arguments.
	Discard("%s %d", "x", 1)
}

func TestDefaultProducesAUsableLogger(t *testing.T) {
	logf := Default()
	if logf == nil {
		t.Fatal("Default() returned a nil Logf")
	}
}

func TestLineWriterIgnoresEmptyFlush(t *testing.T) {
	c := &capture{}
	lw := &lineWriter{logf: Logf(c.logf)}
	if err := lw.Flush(); err != nil {
		t.Fatal(err)
	}
	if len(c.lines) != 0 {
		t.Errorf("Flush on an empty buffer should not log, got %v", c.lines)
	}
}

func TestLineWriterNilFlushIsNoop(t *testing.T) {
	var lw *lineWriter
	if err := lw.Flush(); err != nil {
		t.Errorf("Flush on a nil *lineWriter should be a no-op, got %v", err)
	}
}
