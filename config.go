package loadtext

import (
	"unicode/utf8"

	"github.com/pkg/errors"
)

// =============================================================================
// Parser Configuration (Policy)
// =============================================================================
//
// The public Reader fields are distilled into an immutable parserConfig
// before the first row is read. The tokenizer and converters only ever see
// the distilled form, so one read cannot observe a configuration change.
//
// =============================================================================

// ByteConversionMode selects how field text reaches user converters. The
// built-in converters do not read it: byte-string columns always store
// codepoints as latin-1 bytes and wide-string columns store them verbatim.
type ByteConversionMode uint8

const (
	// ByteModeNone passes fields as decoded text.
	ByteModeNone ByteConversionMode = iota

	// ByteModeLatin1Converter re-encodes the field as latin-1 before it is
	// handed to a user converter.
	ByteModeLatin1Converter

	// ByteModeLatin1Default re-encodes converter arguments exactly as
	// ByteModeLatin1Converter does; it has no further effect on the
	// built-in converters.
	ByteModeLatin1Default
)

// parserConfig is the immutable per-read configuration shared by the
// tokenizer and the converters.
type parserConfig struct {
	delimiter       rune    // field delimiter; ignored when whitespaceDelim
	whitespaceDelim bool    // any run of blanks is one delimiter
	comment         [2]rune // comment marker; [0]==0 disables, [1]==0 means single-codepoint
	quote           rune    // quote character; 0 disables quoting
	imaginary       rune    // imaginary unit for complex parsing

	allowEmbeddedNewline    bool
	ignoreLeadingWhitespace bool
	allowFloatForInt        bool
	byteMode                ByteConversionMode
}

// hasComment reports whether a comment marker is configured.
func (c *parserConfig) hasComment() bool {
	return c.comment[0] != 0
}

// isDelimiter reports whether r terminates a field under this configuration.
func (c *parserConfig) isDelimiter(r rune) bool {
	if c.whitespaceDelim {
		return isBlank(r)
	}
	return r == c.delimiter
}

// isBlank reports whether r is field-interior whitespace (never a line
// terminator).
func isBlank(r rune) bool {
	return r == ' ' || r == '\t'
}

// =============================================================================
// Argument Validation
// =============================================================================

// controlRune validates a single-codepoint control argument such as the
// delimiter or quote. Zero stays zero (the "disabled" sentinel).
func controlRune(name string, r rune) (rune, error) {
	if r == '\n' || r == '\r' {
		return 0, errors.Errorf("%s must not be a newline character", name)
	}
	if r == utf8.RuneError {
		return 0, errors.Errorf("%s must be a valid Unicode codepoint", name)
	}
	return r, nil
}

// commentMarker validates the comment argument: at most two codepoints.
// A one-codepoint marker matches on its own; a two-codepoint marker
// requires both codepoints in sequence.
func commentMarker(s string) ([2]rune, error) {
	var m [2]rune
	i := 0
	for _, r := range s {
		if i >= 2 {
			return m, errors.Errorf("comment marker %q is longer than two codepoints", s)
		}
		if r == '\n' || r == '\r' {
			return m, errors.New("comment marker must not contain newline characters")
		}
		m[i] = r
		i++
	}
	return m, nil
}

// buildConfig validates the public Reader fields and distills them into a
// parserConfig. Validation is eager: argument errors are reported here,
// before any input is consumed; the schema and the selection length are
// checked by the caller, Reader.params.
func (r *Reader) buildConfig() (parserConfig, error) {
	var cfg parserConfig

	delim, err := controlRune("delimiter", r.Delimiter)
	if err != nil {
		return cfg, err
	}
	quote, err := controlRune("quote", r.Quote)
	if err != nil {
		return cfg, err
	}
	comment, err := commentMarker(r.Comment)
	if err != nil {
		return cfg, err
	}

	cfg.delimiter = delim
	cfg.whitespaceDelim = delim == 0
	cfg.quote = quote
	cfg.comment = comment

	cfg.imaginary = r.Imaginary
	if cfg.imaginary == 0 {
		cfg.imaginary = 'j'
	}
	if cfg.imaginary >= 128 {
		return cfg, errors.Errorf("imaginary unit %q must be an ASCII codepoint", cfg.imaginary)
	}

	if quote != 0 && quote == cfg.delimiter {
		return cfg, errors.New("quote and delimiter must differ")
	}
	if cfg.hasComment() && !cfg.whitespaceDelim && cfg.comment[0] == cfg.delimiter {
		return cfg, errors.New("comment marker and delimiter must differ")
	}
	if cfg.hasComment() && quote != 0 && cfg.comment[0] == quote {
		return cfg, errors.New("comment marker and quote must differ")
	}

	cfg.allowEmbeddedNewline = !r.DisableEmbeddedNewline
	cfg.ignoreLeadingWhitespace = r.TrimLeadingSpace || cfg.whitespaceDelim
	cfg.allowFloatForInt = r.AllowFloatForInt
	cfg.byteMode = r.ByteMode

	if r.SkipRows < 0 {
		return cfg, errors.New("skip row count must be non-negative")
	}
	for key, fn := range r.Converters {
		if fn == nil {
			return cfg, errors.Errorf("converter for column %d is nil", key)
		}
	}
	return cfg, nil
}
