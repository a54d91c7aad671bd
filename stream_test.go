package loadtext

import (
	"bytes"
	"io"
	"slices"
	"strings"
	"testing"

	"golang.org/x/text/encoding/charmap"
)

// =============================================================================
// Stream Test Helpers
// =============================================================================

// drainStream reads every buffer from s into one rune slice.
func drainStream(t *testing.T, s Stream) []rune {
	t.Helper()
	var all []rune
	for {
		buf, state, err := s.NextBuffer()
		if err != nil {
			t.Fatalf("NextBuffer error: %v", err)
		}
		if state == BufferEOF {
			return all
		}
		all = append(all, buf...)
	}
}

// =============================================================================
// Byte Stream Tests
// =============================================================================

// TestStream_NewlineCollapse verifies that every universal line break
// reaches the tokenizer as a single '\n'.
func TestStream_NewlineCollapse(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
		lines int
	}{
		{name: "lf", input: "a\nb\n", want: "a\nb\n", lines: 2},
		{name: "crlf", input: "a\r\nb\r\n", want: "a\nb\n", lines: 2},
		{name: "lfcr", input: "a\n\rb\n\r", want: "a\nb\n", lines: 2},
		{name: "bare cr", input: "a\rb\r", want: "a\nb\n", lines: 2},
		{name: "blank lines kept", input: "a\n\nb\n", want: "a\n\nb\n", lines: 3},
		{name: "no terminator", input: "abc", want: "abc", lines: 0},
		{name: "mixed", input: "a\r\nb\rc\n", want: "a\nb\nc\n", lines: 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewStream(strings.NewReader(tt.input), nil)
			got := drainStream(t, s)
			if string(got) != tt.want {
				t.Errorf("collapsed text = %q, want %q", string(got), tt.want)
			}
			if n := s.LineNumber(); n != tt.lines+1 {
				t.Errorf("LineNumber = %d, want %d", n, tt.lines+1)
			}
		})
	}
}

// TestStream_LargeInput verifies decoding across several buffer refills,
// including a multi-byte codepoint straddling a chunk boundary.
func TestStream_LargeInput(t *testing.T) {
	var b strings.Builder
	for b.Len() < 3*streamChunkSize {
		b.WriteString("départ,终点\n")
	}
	input := b.String()

	s := NewStream(strings.NewReader(input), nil)
	got := drainStream(t, s)
	if string(got) != input {
		t.Fatalf("large input corrupted: got %d runes, want %d", len(got), len([]rune(input)))
	}
}

// TestStream_BufferStates verifies the newline flag on returned buffers.
func TestStream_BufferStates(t *testing.T) {
	s := NewStream(strings.NewReader("no newline here"), nil)
	buf, state, err := s.NextBuffer()
	if err != nil {
		t.Fatalf("NextBuffer error: %v", err)
	}
	if state != BufferNoNewline {
		t.Errorf("state = %v, want BufferNoNewline", state)
	}
	if len(buf) == 0 {
		t.Error("expected a non-empty buffer")
	}

	s = NewStream(strings.NewReader("line\n"), nil)
	_, state, err = s.NextBuffer()
	if err != nil {
		t.Fatalf("NextBuffer error: %v", err)
	}
	if state != BufferMayContainNewline {
		t.Errorf("state = %v, want BufferMayContainNewline", state)
	}
}

// TestStream_Encoding decodes a latin-1 source through an explicit
// encoding.
func TestStream_Encoding(t *testing.T) {
	// "café,ña" in ISO 8859-1.
	raw := []byte{'c', 'a', 'f', 0xE9, ',', 0xF1, 'a', '\n'}
	s := NewStream(bytes.NewReader(raw), charmap.ISO8859_1)
	got := drainStream(t, s)
	if string(got) != "café,ña\n" {
		t.Errorf("decoded = %q, want %q", string(got), "café,ña\n")
	}
}

// TestStream_Restore verifies the close-time restore policies on a
// seekable source.
func TestStream_Restore(t *testing.T) {
	input := "1,2\n3,4\n"

	t.Run("restore initial", func(t *testing.T) {
		r := strings.NewReader(input)
		s := NewStream(r, nil)
		drainStream(t, s)
		if err := s.Close(RestoreInitial); err != nil {
			t.Fatalf("Close: %v", err)
		}
		if pos, _ := r.Seek(0, io.SeekCurrent); pos != 0 {
			t.Errorf("position after RestoreInitial = %d, want 0", pos)
		}
	})

	t.Run("restore current consumes all", func(t *testing.T) {
		r := strings.NewReader(input)
		s := NewStream(r, nil)
		drainStream(t, s)
		if err := s.Close(RestoreCurrent); err != nil {
			t.Fatalf("Close: %v", err)
		}
		pos, _ := r.Seek(0, io.SeekCurrent)
		if pos != int64(len(input)) {
			t.Errorf("position after RestoreCurrent = %d, want %d", pos, len(input))
		}
	})
}

// =============================================================================
// Line Stream Tests
// =============================================================================

// TestLineStream_Buffers verifies the one-buffer-per-line contract and
// terminator normalization.
func TestLineStream_Buffers(t *testing.T) {
	lines := []string{"a,b", "c,d\n", "e\r\nf"}
	s := NewLineStream(slices.Values(lines))

	var got []string
	for {
		buf, state, err := s.NextBuffer()
		if err != nil {
			t.Fatalf("NextBuffer error: %v", err)
		}
		if state == BufferEOF {
			break
		}
		got = append(got, string(buf))
	}
	want := []string{"a,b\n", "c,d\n", "e\nf\n"}
	if !slices.Equal(got, want) {
		t.Errorf("buffers = %q, want %q", got, want)
	}
	if err := s.Close(RestoreNone); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

// TestLineStream_EOF verifies that exhaustion is stable across calls.
func TestLineStream_EOF(t *testing.T) {
	s := NewLineStream(slices.Values([]string{"x"}))
	if _, state, _ := s.NextBuffer(); state != BufferMayContainNewline {
		t.Fatalf("first buffer state = %v", state)
	}
	for i := 0; i < 2; i++ {
		_, state, err := s.NextBuffer()
		if err != nil || state != BufferEOF {
			t.Fatalf("call %d: state=%v err=%v, want EOF", i, state, err)
		}
	}
}
