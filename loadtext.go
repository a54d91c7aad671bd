package loadtext

import (
	"bytes"
	"io"
	"iter"
	"slices"

	"github.com/pkg/errors"
	"golang.org/x/text/encoding"
)

// WhitespaceDelimiter selects whitespace-delimited mode: any run of blanks
// separates fields, and leading whitespace is always trimmed.
const WhitespaceDelimiter rune = 0

// Reader reads delimited text into a typed array.
//
// As returned by NewReader, a Reader expects comma-delimited input with
// RFC 4180 style quoting. The exported fields can be changed to customize
// the details before a read; they are distilled into an immutable
// configuration when the read starts.
//
// # Configuration (Policy)
//
// Public fields control parsing behavior:
//   - Delimiter, Comment, Quote: row segmentation
//   - Imaginary: the unit codepoint for complex parsing
//   - SkipRows, MaxRows, UseCols: row and column selection
//   - Converters: per-column user conversion callbacks
//   - TrimLeadingSpace, AllowFloatForInt, ByteMode: field handling
//
// # Implementation (Mechanism)
//
// Reads run single-threaded to completion on the caller's goroutine; the
// only blocking points are stream refills. Rows land in file order and
// columns convert left to right.
type Reader struct {
	// Delimiter is the field delimiter (set to ',' by NewReader).
	// WhitespaceDelimiter makes any run of blanks one delimiter.
	Delimiter rune

	// Comment is the comment marker, at most two codepoints.
	// Empty disables comment handling.
	Comment string

	// Quote is the quote character (set to '"' by NewReader).
	// Zero disables quoting.
	Quote rune

	// Imaginary is the imaginary unit for complex parsing (default 'j').
	Imaginary rune

	// DisableEmbeddedNewline stops newlines inside quoted fields from
	// being preserved; a bare newline then ends the field and the row.
	DisableEmbeddedNewline bool

	// TrimLeadingSpace ignores blanks at the start of each field.
	TrimLeadingSpace bool

	// AllowFloatForInt retries a failed integer parse as a float and
	// truncates toward zero.
	AllowFloatForInt bool

	// ByteMode controls latin-1 re-encoding on the converter paths.
	ByteMode ByteConversionMode

	// SkipRows is the number of leading physical lines to discard.
	SkipRows int

	// MaxRows bounds the number of data rows read; negative means
	// unbounded (set to -1 by NewReader).
	MaxRows int

	// UseCols maps output columns to input columns, negatives allowed.
	// Nil or empty reads every column.
	UseCols []int

	// Converters maps input column indices (negatives allowed) to
	// user conversion callbacks.
	Converters map[int]ConvertFunc

	// Encoding decodes byte sources; nil reads UTF-8.
	Encoding encoding.Encoding

	// dt is the output schema.
	dt DType
}

// NewReader returns a Reader producing arrays of the given schema.
func NewReader(dt DType) *Reader {
	return &Reader{
		Delimiter: ',',
		Quote:     '"',
		Imaginary: 'j',
		MaxRows:   -1,
		dt:        dt,
	}
}

// params validates the configuration eagerly and resolves it into one
// read's parameters.
func (r *Reader) params() (readParams, error) {
	cfg, err := r.buildConfig()
	if err != nil {
		return readParams{}, err
	}
	if err := r.dt.validate(); err != nil {
		return readParams{}, err
	}
	usecols := r.UseCols
	if len(usecols) == 0 {
		usecols = nil
	}
	if usecols != nil && r.dt.structured && len(usecols) != len(r.dt.fields) {
		return readParams{}, errors.Errorf(
			"selection of %d columns does not match %d dtype fields",
			len(usecols), len(r.dt.fields))
	}
	return readParams{
		cfg:        cfg,
		dt:         r.dt,
		usecols:    usecols,
		skipRows:   r.SkipRows,
		maxRows:    r.MaxRows,
		converters: r.Converters,
	}, nil
}

// ReadFile reads the file at path.
func (r *Reader) ReadFile(path string) (*Array, error) {
	p, err := r.params()
	if err != nil {
		return nil, err
	}
	s, err := NewFileStream(path, r.Encoding)
	if err != nil {
		return nil, err
	}
	arr, readErr := readRows(s, &p)
	closeErr := s.Close(RestoreNone)
	if readErr != nil {
		return nil, readErr
	}
	if closeErr != nil {
		return nil, closeErr
	}
	return arr, nil
}

// Read reads from src. A seekable source is left positioned after the
// input the stream decoded. The stream decodes ahead in chunks, so when
// MaxRows stops the read early that position can lie past the last row
// read.
func (r *Reader) Read(src io.Reader) (*Array, error) {
	p, err := r.params()
	if err != nil {
		return nil, err
	}
	s := NewStream(src, r.Encoding)
	arr, readErr := readRows(s, &p)
	closeErr := s.Close(RestoreCurrent)
	if readErr != nil {
		return nil, readErr
	}
	if closeErr != nil {
		return nil, closeErr
	}
	return arr, nil
}

// ReadLines reads from a sequence of lines; each item is one physical
// line, with or without its own terminator.
func (r *Reader) ReadLines(lines iter.Seq[string]) (*Array, error) {
	p, err := r.params()
	if err != nil {
		return nil, err
	}
	s := NewLineStream(lines)
	defer s.Close(RestoreNone)
	return readRows(s, &p)
}

// ReadBytes reads from a byte slice.
func (r *Reader) ReadBytes(data []byte) (*Array, error) {
	p, err := r.params()
	if err != nil {
		return nil, err
	}
	s := NewStream(bytes.NewReader(data), r.Encoding)
	defer s.Close(RestoreNone)
	return readRows(s, &p)
}

// ReadStream reads from a caller-constructed Stream. The stream stays
// open; closing it is the caller's responsibility.
func (r *Reader) ReadStream(s Stream) (*Array, error) {
	p, err := r.params()
	if err != nil {
		return nil, err
	}
	return readRows(s, &p)
}

// Read reads src into an array of the given schema with default options.
func Read(src io.Reader, dt DType) (*Array, error) {
	return NewReader(dt).Read(src)
}

// ReadLines reads a line slice into an array of the given schema with
// default options.
func ReadLines(lines []string, dt DType) (*Array, error) {
	return NewReader(dt).ReadLines(slices.Values(lines))
}
