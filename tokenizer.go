package loadtext

import "io"

// =============================================================================
// Tokenizer State Machine
// =============================================================================
//
// The tokenizer segments one row at a time into NUL-terminated words inside
// a reusable row buffer:
//
//   INIT ---(quote)----------> QUOTED --(quote)--> QUOTED_CHECK_DOUBLE_QUOTE
//   INIT ---(other)----------> UNQUOTED
//   QUOTED_CHECK_DOUBLE_QUOTE --(quote)--> QUOTED   (literal quote emitted)
//   QUOTED_CHECK_DOUBLE_QUOTE --(other)--> UNQUOTED (unquoted tail)
//   UNQUOTED --(delimiter)----> INIT
//   UNQUOTED --(comment)------> CHECK_COMMENT / FINALIZE_LINE
//   any ------(newline)-------> EAT_NEWLINE  (row ends)
//
// INIT starts every field; EAT_NEWLINE is the exit state. Streams have
// already collapsed universal newlines, so the machine only ever sees '\n'.
//
// The tokenizer never rejects data: malformed quoting simply produces
// fields that fail later at conversion. Only I/O errors surface here.
//
// =============================================================================

// tokenizerState identifies the current state of the row state machine.
type tokenizerState uint8

const (
	tokInit tokenizerState = iota
	tokUnquoted
	tokQuoted
	tokQuotedCheckDoubleQuote
	tokCheckComment
	tokEatNewline
	tokFinalizeLine
	tokFinalizeFile
)

// fieldSpan locates one field within the row buffer. The field's content is
// rowBuf[offset : nextSpan.offset-1]; the codepoint before the next span is
// always the NUL sentinel.
type fieldSpan struct {
	offset int
	quoted bool
}

// tokenizer drives the state machine over a Stream's buffers. The row
// buffer and span table are exclusively owned by one tokenizer instance and
// reused across rows.
type tokenizer struct {
	cfg    *parserConfig
	stream Stream

	rowBuf []rune // NUL-separated words of the current row
	bufPos int    // write position in rowBuf
	spans  []fieldSpan

	chunk    []rune // current stream buffer; valid until the next NextBuffer
	chunkPos int
	eof      bool

	state         tokenizerState
	commentReturn tokenizerState // where an unconfirmed two-codepoint marker resumes
}

// newTokenizer returns a tokenizer over s. Buffers are allocated lazily on
// the first row.
func newTokenizer(cfg *parserConfig, s Stream) *tokenizer {
	return &tokenizer{cfg: cfg, stream: s}
}

// release drops the tokenizer's buffers.
func (t *tokenizer) release() {
	t.rowBuf = nil
	t.spans = nil
	t.chunk = nil
}

// =============================================================================
// Row Buffer and Span Table
// =============================================================================

// ensureRowCap grows the row buffer to the next multiple of four that holds
// extra more codepoints plus a NUL.
func (t *tokenizer) ensureRowCap(extra int) {
	need := t.bufPos + extra + 1
	if need <= len(t.rowBuf) {
		return
	}
	grown := make([]rune, (need+3)&^3)
	copy(grown, t.rowBuf[:t.bufPos])
	t.rowBuf = grown
}

// appendChunk copies a scanned chunk into the row buffer.
func (t *tokenizer) appendChunk(rs []rune) {
	if len(rs) == 0 {
		return
	}
	t.ensureRowCap(len(rs))
	copy(t.rowBuf[t.bufPos:], rs)
	t.bufPos += len(rs)
}

// appendRune copies a single codepoint into the row buffer.
func (t *tokenizer) appendRune(r rune) {
	t.ensureRowCap(1)
	t.rowBuf[t.bufPos] = r
	t.bufPos++
}

// openField starts a new field span at the current write position.
func (t *tokenizer) openField() {
	t.spans = append(t.spans, fieldSpan{offset: t.bufPos})
}

// markQuoted flags the open field as quoted.
func (t *tokenizer) markQuoted() {
	t.spans[len(t.spans)-1].quoted = true
}

// endField terminates the open field with the NUL sentinel.
func (t *tokenizer) endField() {
	t.appendRune(0)
}

// finishRow appends the trailing sentinel span and returns the field count.
func (t *tokenizer) finishRow() (int, error) {
	t.spans = append(t.spans, fieldSpan{offset: t.bufPos})
	return len(t.spans) - 1, nil
}

// numFields returns the field count of the last tokenized row.
func (t *tokenizer) numFields() int {
	return len(t.spans) - 1
}

// field returns the codepoints of field i. The slice is valid until the
// next tokenizeRow call.
func (t *tokenizer) field(i int) []rune {
	return t.rowBuf[t.spans[i].offset : t.spans[i+1].offset-1]
}

// fieldQuoted reports whether field i was quoted.
func (t *tokenizer) fieldQuoted(i int) bool {
	return t.spans[i].quoted
}

// =============================================================================
// Stream Access
// =============================================================================

// peek returns the current codepoint without consuming it, fetching the
// next stream buffer when the current one is exhausted. ok is false at end
// of input.
func (t *tokenizer) peek() (r rune, ok bool, err error) {
	for t.chunkPos >= len(t.chunk) {
		if t.eof {
			return 0, false, nil
		}
		chunk, state, err := t.stream.NextBuffer()
		if err != nil {
			return 0, false, err
		}
		if state == BufferEOF {
			t.eof = true
			return 0, false, nil
		}
		t.chunk = chunk
		t.chunkPos = 0
	}
	return t.chunk[t.chunkPos], true, nil
}

// advance consumes the peeked codepoint.
func (t *tokenizer) advance() {
	t.chunkPos++
}

// =============================================================================
// Per-Row Operation
// =============================================================================

// tokenizeRow segments the next row. It returns the field count, or io.EOF
// when the input is exhausted. A returned count of zero means a blank or
// comment-only line; callers skip such rows.
func (t *tokenizer) tokenizeRow() (int, error) {
	if t.state == tokFinalizeFile {
		return 0, io.EOF
	}
	t.bufPos = 0
	t.spans = t.spans[:0]
	t.state = tokInit

	for {
		r, ok, err := t.peek()
		if err != nil {
			return 0, err
		}
		if !ok {
			return t.finalizeAtEOF()
		}
		switch t.state {
		case tokInit:
			t.stepInit(r)
		case tokUnquoted:
			t.scanUnquoted()
		case tokQuoted:
			t.scanQuoted()
		case tokQuotedCheckDoubleQuote:
			t.stepQuotedCheckDoubleQuote(r)
		case tokCheckComment:
			t.stepCheckComment(r)
		case tokFinalizeLine:
			t.scanToLineEnd()
		case tokEatNewline:
			t.advance()
			return t.finishRow()
		}
	}
}

// skipLine fast-forwards to the end of the current physical line without
// tokenizing. Returns io.EOF when the input ends first.
func (t *tokenizer) skipLine() error {
	for {
		r, ok, err := t.peek()
		if err != nil {
			return err
		}
		if !ok {
			t.state = tokFinalizeFile
			return io.EOF
		}
		t.advance()
		if r == '\n' {
			return nil
		}
	}
}

// =============================================================================
// State Steps
// =============================================================================

// stepInit starts a field: it skips leading whitespace, recognizes line
// ends, comment markers, and opening quotes, and otherwise enters UNQUOTED.
func (t *tokenizer) stepInit(r rune) {
	cfg := t.cfg
	if cfg.ignoreLeadingWhitespace && isBlank(r) &&
		(cfg.whitespaceDelim || r != cfg.delimiter) {
		t.advance()
		return
	}
	if r == '\n' {
		// A trailing delimiter yields a final empty field; a bare line or a
		// trailing whitespace run does not.
		if len(t.spans) > 0 && !cfg.whitespaceDelim {
			t.openField()
			t.endField()
		}
		t.state = tokEatNewline
		return
	}
	if cfg.hasComment() && r == cfg.comment[0] {
		t.advance()
		if cfg.comment[1] == 0 {
			t.state = tokFinalizeLine
		} else {
			t.commentReturn = tokInit
			t.state = tokCheckComment
		}
		return
	}
	t.openField()
	if cfg.quote != 0 && r == cfg.quote {
		t.markQuoted()
		t.advance()
		t.state = tokQuoted
		return
	}
	t.state = tokUnquoted
}

// scanUnquoted copies codepoints until a delimiter, newline, or the first
// codepoint of the comment marker, one stream chunk at a time.
func (t *tokenizer) scanUnquoted() {
	cfg := t.cfg
	start := t.chunkPos
	i := start
	for i < len(t.chunk) {
		r := t.chunk[i]
		if r == '\n' || cfg.isDelimiter(r) || (cfg.hasComment() && r == cfg.comment[0]) {
			break
		}
		i++
	}
	t.appendChunk(t.chunk[start:i])
	t.chunkPos = i
	if i >= len(t.chunk) {
		return // chunk exhausted; the outer loop refills
	}

	switch r := t.chunk[i]; {
	case r == '\n':
		t.endField()
		t.state = tokEatNewline
	case cfg.isDelimiter(r):
		t.endField()
		t.advance()
		t.state = tokInit
	default: // comment marker, first codepoint
		t.advance()
		if cfg.comment[1] == 0 {
			t.endField()
			t.state = tokFinalizeLine
		} else {
			t.commentReturn = tokUnquoted
			t.state = tokCheckComment
		}
	}
}

// scanQuoted copies codepoints until the next quote. A bare newline exits
// the field and the row unless embedded newlines are allowed.
func (t *tokenizer) scanQuoted() {
	cfg := t.cfg
	start := t.chunkPos
	i := start
	for i < len(t.chunk) {
		r := t.chunk[i]
		if r == cfg.quote || (r == '\n' && !cfg.allowEmbeddedNewline) {
			break
		}
		i++
	}
	t.appendChunk(t.chunk[start:i])
	t.chunkPos = i
	if i >= len(t.chunk) {
		return
	}
	if t.chunk[i] == cfg.quote {
		t.advance()
		t.state = tokQuotedCheckDoubleQuote
		return
	}
	t.endField()
	t.state = tokEatNewline
}

// stepQuotedCheckDoubleQuote resolves a quote seen inside a quoted field:
// a second quote is one literal quote; anything else closes the field and
// the remaining tail is appended unmodified via UNQUOTED.
func (t *tokenizer) stepQuotedCheckDoubleQuote(r rune) {
	if r == t.cfg.quote {
		t.appendRune(t.cfg.quote)
		t.advance()
		t.state = tokQuoted
		return
	}
	t.state = tokUnquoted
}

// stepCheckComment resolves the second codepoint of a two-codepoint comment
// marker with one codepoint of peek. An unconfirmed marker turns the first
// codepoint into literal field data.
func (t *tokenizer) stepCheckComment(r rune) {
	if r == t.cfg.comment[1] {
		t.advance()
		if t.commentReturn == tokUnquoted {
			t.endField()
		}
		t.state = tokFinalizeLine
		return
	}
	if t.commentReturn == tokInit {
		t.openField()
	}
	t.appendRune(t.cfg.comment[0])
	t.state = tokUnquoted
}

// scanToLineEnd discards codepoints up to the newline that ends a comment.
func (t *tokenizer) scanToLineEnd() {
	i := t.chunkPos
	for i < len(t.chunk) && t.chunk[i] != '\n' {
		i++
	}
	t.chunkPos = i
	if i < len(t.chunk) {
		t.state = tokEatNewline
	}
}

// finalizeAtEOF ends the current row when the input is exhausted. A quoted
// field that was never closed ends at EOF without error.
func (t *tokenizer) finalizeAtEOF() (int, error) {
	switch t.state {
	case tokInit:
		if len(t.spans) == 0 {
			t.state = tokFinalizeFile
			return 0, io.EOF
		}
		if !t.cfg.whitespaceDelim {
			t.openField()
			t.endField()
		}
	case tokUnquoted, tokQuoted, tokQuotedCheckDoubleQuote:
		t.endField()
	case tokCheckComment:
		if t.commentReturn == tokInit {
			t.openField()
		}
		t.appendRune(t.cfg.comment[0])
		t.endField()
	case tokFinalizeLine:
		// Comment ran to end of input; the row keeps any earlier fields.
	}
	t.state = tokFinalizeFile
	return t.finishRow()
}
