package loadtext

import (
	"io"
	"iter"
	"os"
	"unicode/utf8"

	"github.com/pkg/errors"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// =============================================================================
// Codepoint Streams
// =============================================================================
//
// A Stream hands the tokenizer bounded buffers of decoded codepoints. The
// contract is strict: a buffer is valid only until the next NextBuffer
// call, so the tokenizer copies whatever it wants to keep into its own row
// buffer. Streams collapse universal newlines (\r\n, \n\r, lone \r) to a
// single '\n' before the tokenizer sees them, and count one logical line
// per terminator.
//
// =============================================================================

// BufferState describes the buffer returned by NextBuffer.
type BufferState uint8

const (
	// BufferMayContainNewline means the buffer holds at least one line end.
	BufferMayContainNewline BufferState = iota

	// BufferNoNewline means the buffer holds no line end.
	BufferNoNewline

	// BufferEOF means the source is exhausted; the buffer is empty.
	BufferEOF
)

// RestorePolicy controls where a seekable source is left on Close.
type RestorePolicy uint8

const (
	// RestoreNone leaves the source position wherever reading stopped.
	RestoreNone RestorePolicy = iota

	// RestoreInitial seeks the source back to its position at stream
	// construction.
	RestoreInitial

	// RestoreCurrent seeks the source to the end of the consumed input.
	// The position is buffer-granular: bytes decoded into a delivered
	// buffer count as consumed.
	RestoreCurrent
)

// Stream is a bounded look-ahead source of Unicode codepoints.
type Stream interface {
	// NextBuffer returns the next chunk of codepoints. At end of input it
	// returns a nil buffer with BufferEOF and no error.
	NextBuffer() ([]rune, BufferState, error)

	// LineNumber returns the 1-based line number reached by decoding,
	// counting one per logical newline.
	LineNumber() int

	// Close releases the stream, applying the restore policy if the
	// underlying source is seekable.
	Close(policy RestorePolicy) error
}

// streamChunkSize is the codepoint capacity of one delivered buffer.
const streamChunkSize = 4096

// =============================================================================
// Byte Stream - io.Reader with an explicit encoding
// =============================================================================

// byteStream decodes an io.Reader through an x/text decoder into codepoint
// buffers. The default decoder is UTF-8; invalid byte sequences decode to
// U+FFFD.
type byteStream struct {
	src io.Reader
	dec transform.Transformer

	raw      []byte // undecoded source bytes
	rawStart int
	rawEnd   int
	srcEOF   bool

	dst      []byte // decoded UTF-8 bytes
	dstStart int
	dstEnd   int
	decEOF   bool

	out  []rune // delivered buffer, reused across calls
	skip rune   // second half of a two-codepoint line break to swallow

	lineno      int
	srcConsumed int64

	seeker     io.Seeker
	initialPos int64
	file       *os.File // non-nil when the stream owns the file
}

// NewStream returns a Stream decoding r with enc. A nil enc reads r as
// UTF-8. If r is seekable its current position is recorded so Close can
// honor the restore policy.
func NewStream(r io.Reader, enc encoding.Encoding) Stream {
	if enc == nil {
		enc = unicode.UTF8
	}
	s := &byteStream{
		src:    r,
		dec:    enc.NewDecoder(),
		raw:    make([]byte, streamChunkSize),
		dst:    make([]byte, streamChunkSize),
		out:    make([]rune, 0, streamChunkSize),
		lineno: 1,
	}
	if seeker, ok := r.(io.Seeker); ok {
		if pos, err := seeker.Seek(0, io.SeekCurrent); err == nil {
			s.seeker = seeker
			s.initialPos = pos
		}
	}
	return s
}

// NewFileStream opens path and returns a Stream over its contents. The
// stream owns the file and closes it on Close.
func NewFileStream(path string, enc encoding.Encoding) (Stream, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "opening input")
	}
	s := NewStream(f, enc).(*byteStream)
	s.file = f
	return s, nil
}

// NextBuffer implements Stream.
func (s *byteStream) NextBuffer() ([]rune, BufferState, error) {
	s.out = s.out[:0]
	hasNewline := false

	for len(s.out) < cap(s.out) {
		r, ok, err := s.decodeRune()
		if err != nil {
			return nil, BufferEOF, err
		}
		if !ok {
			break
		}
		if s.skip != 0 {
			pair := s.skip
			s.skip = 0
			if r == pair {
				continue
			}
		}
		switch r {
		case '\r':
			s.out = append(s.out, '\n')
			s.lineno++
			s.skip = '\n'
			hasNewline = true
		case '\n':
			s.out = append(s.out, '\n')
			s.lineno++
			s.skip = '\r'
			hasNewline = true
		default:
			s.out = append(s.out, r)
		}
	}

	if len(s.out) == 0 {
		return nil, BufferEOF, nil
	}
	if hasNewline {
		return s.out, BufferMayContainNewline, nil
	}
	return s.out, BufferNoNewline, nil
}

// LineNumber implements Stream.
func (s *byteStream) LineNumber() int { return s.lineno }

// Close implements Stream.
func (s *byteStream) Close(policy RestorePolicy) error {
	var seekErr error
	if s.seeker != nil {
		switch policy {
		case RestoreInitial:
			_, seekErr = s.seeker.Seek(s.initialPos, io.SeekStart)
		case RestoreCurrent:
			_, seekErr = s.seeker.Seek(s.initialPos+s.srcConsumed, io.SeekStart)
		}
	}
	if s.file != nil {
		if err := s.file.Close(); err != nil {
			return errors.Wrap(err, "closing input")
		}
	}
	return errors.Wrap(seekErr, "restoring input position")
}

// decodeRune returns the next codepoint from the decoded byte buffer,
// refilling it as needed. ok is false at end of input.
func (s *byteStream) decodeRune() (r rune, ok bool, err error) {
	for {
		if s.dstStart < s.dstEnd {
			r, size := utf8.DecodeRune(s.dst[s.dstStart:s.dstEnd])
			complete := r != utf8.RuneError || size > 1 ||
				s.decEOF || s.dstEnd-s.dstStart >= utf8.UTFMax
			if complete {
				s.dstStart += size
				return r, true, nil
			}
			// Possibly a sequence split at the buffer end; refill first.
		} else if s.decEOF {
			return 0, false, nil
		}
		if err := s.fillDst(); err != nil {
			return 0, false, err
		}
		if s.dstStart == s.dstEnd && s.decEOF {
			return 0, false, nil
		}
	}
}

// fillDst runs the decoder until it produces output, fills dst, or reaches
// end of input.
func (s *byteStream) fillDst() error {
	if s.decEOF {
		return nil
	}
	if s.dstStart > 0 {
		s.dstEnd = copy(s.dst, s.dst[s.dstStart:s.dstEnd])
		s.dstStart = 0
	}
	for {
		if s.rawStart == s.rawEnd && !s.srcEOF {
			if err := s.fillRaw(); err != nil {
				return err
			}
		}
		atEOF := s.srcEOF && s.rawStart == s.rawEnd
		nDst, nSrc, err := s.dec.Transform(s.dst[s.dstEnd:], s.raw[s.rawStart:s.rawEnd], atEOF)
		s.dstEnd += nDst
		s.rawStart += nSrc
		s.srcConsumed += int64(nSrc)

		switch {
		case err == nil:
			if atEOF {
				s.decEOF = true
			}
			if nDst > 0 || s.decEOF {
				return nil
			}
		case err == transform.ErrShortDst:
			return nil
		case err == transform.ErrShortSrc && !atEOF:
			if nDst > 0 {
				return nil
			}
			if err := s.fillRaw(); err != nil {
				return err
			}
		default:
			return errors.Wrap(err, "decoding input")
		}
	}
}

// fillRaw compacts the undecoded remainder and reads more source bytes.
func (s *byteStream) fillRaw() error {
	if s.srcEOF {
		return nil
	}
	if s.rawStart > 0 {
		s.rawEnd = copy(s.raw, s.raw[s.rawStart:s.rawEnd])
		s.rawStart = 0
	}
	for s.rawEnd < len(s.raw) {
		n, err := s.src.Read(s.raw[s.rawEnd:])
		s.rawEnd += n
		if err == io.EOF {
			s.srcEOF = true
			return nil
		}
		if err != nil {
			return errors.Wrap(err, "reading input")
		}
		if n > 0 {
			return nil
		}
	}
	return nil
}

// =============================================================================
// Line Stream - a sequence of strings, one buffer per line
// =============================================================================

// lineStream adapts a sequence of lines. Each item becomes one buffer whose
// last codepoint is '\n', appended when the item lacks its own terminator.
type lineStream struct {
	next   func() (string, bool)
	stop   func()
	buf    []rune
	lineno int
	done   bool
}

// NewLineStream returns a Stream over a sequence of lines.
func NewLineStream(lines iter.Seq[string]) Stream {
	next, stop := iter.Pull(lines)
	return &lineStream{next: next, stop: stop, lineno: 1}
}

// NextBuffer implements Stream.
func (s *lineStream) NextBuffer() ([]rune, BufferState, error) {
	if s.done {
		return nil, BufferEOF, nil
	}
	line, ok := s.next()
	if !ok {
		s.done = true
		return nil, BufferEOF, nil
	}

	s.buf = s.buf[:0]
	var skip rune
	for _, r := range line {
		if skip != 0 {
			pair := skip
			skip = 0
			if r == pair {
				continue
			}
		}
		switch r {
		case '\r':
			s.buf = append(s.buf, '\n')
			s.lineno++
			skip = '\n'
		case '\n':
			s.buf = append(s.buf, '\n')
			s.lineno++
			skip = '\r'
		default:
			s.buf = append(s.buf, r)
		}
	}
	if n := len(s.buf); n == 0 || s.buf[n-1] != '\n' {
		s.buf = append(s.buf, '\n')
		s.lineno++
	}
	return s.buf, BufferMayContainNewline, nil
}

// LineNumber implements Stream.
func (s *lineStream) LineNumber() int { return s.lineno }

// Close implements Stream. Restore policies do not apply to a line
// sequence; the pull iterator is stopped in every case.
func (s *lineStream) Close(RestorePolicy) error {
	if !s.done {
		s.done = true
	}
	s.stop()
	return nil
}
