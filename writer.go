package loadtext

import (
	"bufio"
	"io"
)

// Writer writes records as delimited text, quoting fields that need it.
//
// As returned by NewWriter, a Writer writes comma-delimited records
// terminated by a newline. The exported fields can be changed to customize
// the details before the first call to Write or WriteAll. A field is
// quoted when it contains the delimiter, the quote, a line break, or
// leading whitespace; contained quotes are doubled.
//
// Writes are buffered; call Flush after the last record and check Error.
type Writer struct {
	Delimiter rune // field delimiter (set to ',' by NewWriter)
	Quote     rune // quote character (set to '"' by NewWriter)
	UseCRLF   bool // true to end lines with \r\n instead of \n

	w   *bufio.Writer
	err error
}

// NewWriter returns a new Writer that writes to w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{
		Delimiter: ',',
		Quote:     '"',
		w:         bufio.NewWriter(w),
	}
}

// Write writes a single record along with any necessary quoting.
func (w *Writer) Write(record []string) error {
	if w.err != nil {
		return w.err
	}
	for i, field := range record {
		if i > 0 {
			if _, w.err = w.w.WriteRune(w.Delimiter); w.err != nil {
				return w.err
			}
		}
		if w.err = w.writeField(field); w.err != nil {
			return w.err
		}
	}
	return w.writeLineEnding()
}

// WriteAll writes every record using Write and then calls Flush,
// returning any error from the Flush.
func (w *Writer) WriteAll(records [][]string) error {
	for _, record := range records {
		if err := w.Write(record); err != nil {
			return err
		}
	}
	return w.Flush()
}

// Flush writes any buffered data to the underlying io.Writer.
func (w *Writer) Flush() error {
	w.err = w.w.Flush()
	return w.err
}

// Error reports any error that has occurred during a previous Write or
// Flush.
func (w *Writer) Error() error {
	return w.err
}

// writeField writes a single field, quoting if necessary.
func (w *Writer) writeField(field string) error {
	if w.fieldNeedsQuotes(field) {
		return w.writeQuotedField(field)
	}
	_, err := w.w.WriteString(field)
	return err
}

// writeLineEnding writes the configured line terminator.
func (w *Writer) writeLineEnding() error {
	if w.UseCRLF {
		_, w.err = w.w.WriteString("\r\n")
	} else {
		w.err = w.w.WriteByte('\n')
	}
	return w.err
}

// fieldNeedsQuotes reports whether field must be quoted to survive a
// round trip through the tokenizer.
func (w *Writer) fieldNeedsQuotes(field string) bool {
	if w.Quote == 0 || len(field) == 0 {
		return false
	}
	if field[0] == ' ' || field[0] == '\t' {
		return true
	}
	for _, c := range field {
		if c == w.Delimiter || c == w.Quote || c == '\n' || c == '\r' {
			return true
		}
	}
	return false
}

// writeQuotedField writes a field wrapped in quotes, doubling contained
// quote characters.
func (w *Writer) writeQuotedField(field string) error {
	if _, err := w.w.WriteRune(w.Quote); err != nil {
		return err
	}
	for _, c := range field {
		if c == w.Quote {
			if _, err := w.w.WriteRune(w.Quote); err != nil {
				return err
			}
		}
		if _, err := w.w.WriteRune(c); err != nil {
			return err
		}
	}
	_, err := w.w.WriteRune(w.Quote)
	return err
}
