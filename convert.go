package loadtext

import (
	"encoding/binary"
	"math"
	"strconv"

	"github.com/pkg/errors"
)

// =============================================================================
// Converters - codepoint slice to typed bytes
// =============================================================================
//
// Numeric contract: leading and trailing ASCII whitespace are skipped, every
// non-whitespace codepoint between them must be consumed, and a partial
// parse is an error. String converters copy the field as is, truncated to
// the column width. Converters write in native byte order and swap once
// when the target order differs.
//
// =============================================================================

// ConvertFunc is a user-supplied per-column converter. It receives the
// field text (latin-1 re-encoded under the byte conversion modes) and
// returns a value the output column can be set from.
type ConvertFunc func(field string) (interface{}, error)

// convertField dispatches a field to the built-in converter for the
// column's type tag.
func convertField(f *FieldDesc, rs []rune, out []byte, cfg *parserConfig) error {
	switch f.Kind {
	case KindInt:
		return convertInt(f, rs, out, cfg)
	case KindUint:
		return convertUint(f, rs, out, cfg)
	case KindFloat:
		return convertFloat(f, rs, out)
	case KindComplex:
		return convertComplex(f, rs, out, cfg)
	case KindBytes:
		return convertBytes(f, rs, out)
	case KindWide:
		return convertWide(f, rs, out)
	default:
		return errors.Errorf("no converter for kind %d", f.Kind)
	}
}

// trimASCIISpace removes leading and trailing ASCII whitespace codepoints.
func trimASCIISpace(rs []rune) []rune {
	start := 0
	for start < len(rs) && isASCIISpace(rs[start]) {
		start++
	}
	end := len(rs)
	for end > start && isASCIISpace(rs[end-1]) {
		end--
	}
	return rs[start:end]
}

// isASCIISpace reports whether r is an ASCII whitespace codepoint.
func isASCIISpace(r rune) bool {
	switch r {
	case ' ', '\t', '\n', '\r', '\v', '\f':
		return true
	}
	return false
}

// =============================================================================
// Scalar Byte Emission
// =============================================================================

// writeScalar emits size native-order bytes of bits, then byte-swaps the
// element when the target order is non-native.
func writeScalar(out []byte, size int, nonNative bool, bits uint64) {
	switch size {
	case 1:
		out[0] = byte(bits)
	case 2:
		binary.NativeEndian.PutUint16(out, uint16(bits))
	case 4:
		binary.NativeEndian.PutUint32(out, uint32(bits))
	default:
		binary.NativeEndian.PutUint64(out, bits)
	}
	if nonNative {
		for i, j := 0, size-1; i < j; i, j = i+1, j-1 {
			out[i], out[j] = out[j], out[i]
		}
	}
}

// =============================================================================
// Integer Conversion
// =============================================================================

// intBounds returns the inclusive value range of a signed integer of size
// bytes.
func intBounds(size int) (min, max int64) {
	bits := uint(size * 8)
	max = int64(1)<<(bits-1) - 1
	min = -max - 1
	return min, max
}

// uintMax returns the maximum value of an unsigned integer of size bytes.
func uintMax(size int) uint64 {
	if size == 8 {
		return math.MaxUint64
	}
	return uint64(1)<<(uint(size)*8) - 1
}

// parseSigned parses a decimal integer with an overflow predicate that is
// exact at the type boundaries: the accumulator is compared against MIN/10
// and -(MIN%10) on the negative side, MAX/10 and MAX%10 otherwise, so no
// arithmetic wider than 64 bits is needed.
func parseSigned(rs []rune, min, max int64) (int64, error) {
	i := 0
	neg := false
	if i < len(rs) && (rs[i] == '+' || rs[i] == '-') {
		neg = rs[i] == '-'
		i++
	}
	if i >= len(rs) {
		return 0, ErrBadToken
	}
	var v int64
	if neg {
		minDiv, minMod := min/10, -(min % 10)
		for ; i < len(rs); i++ {
			d := rs[i] - '0'
			if d < 0 || d > 9 {
				return 0, ErrBadToken
			}
			if v < minDiv || (v == minDiv && int64(d) > minMod) {
				return 0, ErrOverflow
			}
			v = v*10 - int64(d)
		}
		return v, nil
	}
	maxDiv, maxMod := max/10, max%10
	for ; i < len(rs); i++ {
		d := rs[i] - '0'
		if d < 0 || d > 9 {
			return 0, ErrBadToken
		}
		if v > maxDiv || (v == maxDiv && int64(d) > maxMod) {
			return 0, ErrOverflow
		}
		v = v*10 + int64(d)
	}
	return v, nil
}

// parseUnsigned parses a decimal unsigned integer. A minus sign is an
// error; a plus sign is allowed.
func parseUnsigned(rs []rune, max uint64) (uint64, error) {
	i := 0
	if i < len(rs) && rs[i] == '+' {
		i++
	}
	if i >= len(rs) {
		return 0, ErrBadToken
	}
	var v uint64
	maxDiv, maxMod := max/10, max%10
	for ; i < len(rs); i++ {
		d := rs[i] - '0'
		if d < 0 || d > 9 {
			return 0, ErrBadToken
		}
		if v > maxDiv || (v == maxDiv && uint64(d) > maxMod) {
			return 0, ErrOverflow
		}
		v = v*10 + uint64(d)
	}
	return v, nil
}

// convertInt converts a signed integer field. When the decimal parse fails
// and the configuration allows it, the field is retried as a float and
// truncated toward zero.
func convertInt(f *FieldDesc, rs []rune, out []byte, cfg *parserConfig) error {
	rs = trimASCIISpace(rs)
	min, max := intBounds(f.Size)
	v, err := parseSigned(rs, min, max)
	if err != nil {
		if !cfg.allowFloatForInt {
			return errors.Wrapf(err, "integer %q", string(rs))
		}
		d, ferr := parseFloatRunes(rs)
		if ferr != nil {
			return errors.Wrapf(err, "integer %q", string(rs))
		}
		v, err = floatToInt(d, f.Size)
		if err != nil {
			return errors.Wrapf(err, "integer %q", string(rs))
		}
	}
	writeScalar(out, f.Size, f.nonNative(), uint64(v))
	return nil
}

// convertUint converts an unsigned integer field, with the same float
// fallback as convertInt.
func convertUint(f *FieldDesc, rs []rune, out []byte, cfg *parserConfig) error {
	rs = trimASCIISpace(rs)
	v, err := parseUnsigned(rs, uintMax(f.Size))
	if err != nil {
		if !cfg.allowFloatForInt {
			return errors.Wrapf(err, "unsigned integer %q", string(rs))
		}
		d, ferr := parseFloatRunes(rs)
		if ferr != nil {
			return errors.Wrapf(err, "unsigned integer %q", string(rs))
		}
		v, err = floatToUint(d, f.Size)
		if err != nil {
			return errors.Wrapf(err, "unsigned integer %q", string(rs))
		}
	}
	writeScalar(out, f.Size, f.nonNative(), v)
	return nil
}

// floatToInt truncates d toward zero and range-checks it against a signed
// integer of size bytes.
func floatToInt(d float64, size int) (int64, error) {
	if math.IsNaN(d) {
		return 0, ErrBadToken
	}
	t := math.Trunc(d)
	if size == 8 {
		// 2^63 is exactly representable; MAX is not.
		if t < -9223372036854775808.0 || t >= 9223372036854775808.0 {
			return 0, ErrOverflow
		}
		return int64(t), nil
	}
	min, max := intBounds(size)
	if t < float64(min) || t > float64(max) {
		return 0, ErrOverflow
	}
	return int64(t), nil
}

// floatToUint truncates d toward zero and range-checks it against an
// unsigned integer of size bytes.
func floatToUint(d float64, size int) (uint64, error) {
	if math.IsNaN(d) {
		return 0, ErrBadToken
	}
	t := math.Trunc(d)
	if t < 0 {
		return 0, ErrOverflow
	}
	if size == 8 {
		if t >= 18446744073709551616.0 { // 2^64
			return 0, ErrOverflow
		}
		return uint64(t), nil
	}
	if t > float64(uintMax(size)) {
		return 0, ErrOverflow
	}
	return uint64(t), nil
}

// =============================================================================
// Float Conversion
// =============================================================================

// asciiBytes narrows a codepoint slice to ASCII bytes. buf is typically a
// stack array; longer fields fall back to the heap via append. Codepoints
// outside ASCII cannot be part of a number and are rejected.
func asciiBytes(rs []rune, buf []byte) ([]byte, error) {
	for _, r := range rs {
		if r >= 128 {
			return nil, ErrBadToken
		}
		buf = append(buf, byte(r))
	}
	return buf, nil
}

// parseFloatRunes parses a complete float from a trimmed codepoint slice,
// delegating to the host parser. A value out of range parses to an
// infinity rather than failing.
func parseFloatRunes(rs []rune) (float64, error) {
	if len(rs) == 0 {
		return 0, ErrBadToken
	}
	var stack [128]byte
	b, err := asciiBytes(rs, stack[:0])
	if err != nil {
		return 0, err
	}
	d, err := strconv.ParseFloat(string(b), 64)
	if err != nil {
		var numErr *strconv.NumError
		if errors.As(err, &numErr) && numErr.Err == strconv.ErrRange {
			return d, nil
		}
		return 0, ErrBadToken
	}
	return d, nil
}

// convertFloat converts a float field, narrowing to single precision by
// plain cast when the target is four bytes.
func convertFloat(f *FieldDesc, rs []rune, out []byte) error {
	rs = trimASCIISpace(rs)
	d, err := parseFloatRunes(rs)
	if err != nil {
		return errors.Wrapf(err, "float %q", string(rs))
	}
	writeFloatBits(out, f.Size, f.nonNative(), d)
	return nil
}

// writeFloatBits emits one float element of size bytes.
func writeFloatBits(out []byte, size int, nonNative bool, d float64) {
	if size == 4 {
		writeScalar(out, 4, nonNative, uint64(math.Float32bits(float32(d))))
		return
	}
	writeScalar(out, 8, nonNative, math.Float64bits(d))
}

// =============================================================================
// Complex Conversion
// =============================================================================

// floatTokenLen returns the length of the float token at the start of b,
// or 0 when b does not begin with one. Accepts an optional sign, decimal
// digits with one point, an exponent, and the inf/infinity/nan words.
func floatTokenLen(b []byte) int {
	i := 0
	if i < len(b) && (b[i] == '+' || b[i] == '-') {
		i++
	}
	if n := specialFloatLen(b[i:]); n > 0 {
		return i + n
	}
	digits := 0
	for i < len(b) && b[i] >= '0' && b[i] <= '9' {
		i++
		digits++
	}
	if i < len(b) && b[i] == '.' {
		i++
		for i < len(b) && b[i] >= '0' && b[i] <= '9' {
			i++
			digits++
		}
	}
	if digits == 0 {
		return 0
	}
	if i < len(b) && (b[i] == 'e' || b[i] == 'E') {
		j := i + 1
		if j < len(b) && (b[j] == '+' || b[j] == '-') {
			j++
		}
		expDigits := 0
		for j < len(b) && b[j] >= '0' && b[j] <= '9' {
			j++
			expDigits++
		}
		if expDigits > 0 {
			i = j
		}
	}
	return i
}

// specialFloatLen matches the case-insensitive words nan, inf, and
// infinity at the start of b.
func specialFloatLen(b []byte) int {
	match := func(word string) bool {
		if len(b) < len(word) {
			return false
		}
		for i := 0; i < len(word); i++ {
			if b[i]|0x20 != word[i] {
				return false
			}
		}
		return true
	}
	switch {
	case match("infinity"):
		return len("infinity")
	case match("inf"):
		return len("inf")
	case match("nan"):
		return len("nan")
	}
	return 0
}

// parseFloatToken parses all of b, a token measured by floatTokenLen, as a
// float.
func parseFloatToken(b []byte) (float64, error) {
	d, err := strconv.ParseFloat(string(b), 64)
	if err != nil {
		var numErr *strconv.NumError
		if errors.As(err, &numErr) && numErr.Err == strconv.ErrRange {
			return d, nil
		}
		return 0, ErrBadToken
	}
	return d, nil
}

// convertComplex converts a complex field. The grammar follows the strict
// form: a real part, then either nothing, the imaginary unit (making the
// parsed value the imaginary part), or a signed imaginary part terminated
// by the unit. A surrounding parenthesis pair is allowed. No separator may
// be skipped.
func convertComplex(f *FieldDesc, rs []rune, out []byte, cfg *parserConfig) error {
	rs = trimASCIISpace(rs)
	var stack [128]byte
	b, err := asciiBytes(rs, stack[:0])
	if err != nil {
		return errors.Wrapf(err, "complex %q", string(rs))
	}
	re, im, err := parseComplexBytes(b, byte(cfg.imaginary))
	if err != nil {
		return errors.Wrapf(err, "complex %q", string(rs))
	}

	half := f.Size / 2
	writeFloatBits(out[:half], half, f.nonNative(), re)
	writeFloatBits(out[half:], half, f.nonNative(), im)
	return nil
}

// parseComplexBytes parses the real and imaginary parts from ASCII bytes.
func parseComplexBytes(b []byte, unit byte) (re, im float64, err error) {
	if len(b) >= 2 && b[0] == '(' && b[len(b)-1] == ')' {
		b = b[1 : len(b)-1]
	}
	n1 := floatTokenLen(b)
	if n1 == 0 {
		return 0, 0, ErrBadToken
	}
	v1, err := parseFloatToken(b[:n1])
	if err != nil {
		return 0, 0, err
	}
	rest := b[n1:]
	switch {
	case len(rest) == 0:
		return v1, 0, nil
	case len(rest) == 1 && rest[0] == unit:
		return 0, v1, nil
	case rest[0] == '+' || rest[0] == '-':
		n2 := floatTokenLen(rest)
		if n2 == 0 || len(rest) != n2+1 || rest[n2] != unit {
			return 0, 0, ErrBadToken
		}
		v2, err := parseFloatToken(rest[:n2])
		if err != nil {
			return 0, 0, err
		}
		return v1, v2, nil
	default:
		return 0, 0, ErrBadToken
	}
}

// =============================================================================
// String Conversion
// =============================================================================

// convertBytes copies up to the column width of codepoints as latin-1
// bytes, NUL-padding the remainder. A codepoint above 255 cannot be
// represented and is an error.
func convertBytes(f *FieldDesc, rs []rune, out []byte) error {
	n := len(rs)
	if n > f.Size {
		n = f.Size
	}
	for i := 0; i < n; i++ {
		if rs[i] > 255 {
			return errors.Wrapf(ErrBadToken, "codepoint %q does not fit a byte string", rs[i])
		}
		out[i] = byte(rs[i])
	}
	for i := n; i < f.Size; i++ {
		out[i] = 0
	}
	return nil
}

// convertWide copies up to the column width of codepoints verbatim as
// 4-byte elements, zero-padding the remainder and swapping per element
// when the target order is non-native.
func convertWide(f *FieldDesc, rs []rune, out []byte) error {
	width := f.Size / 4
	n := len(rs)
	if n > width {
		n = width
	}
	for i := 0; i < n; i++ {
		writeScalar(out[i*4:(i+1)*4], 4, f.nonNative(), uint64(uint32(rs[i])))
	}
	for i := n; i < width; i++ {
		writeScalar(out[i*4:(i+1)*4], 4, false, 0)
	}
	return nil
}

// =============================================================================
// Generic Path - user converters and value coercion
// =============================================================================

// fieldArgument builds the string handed to a user converter, re-encoding
// as latin-1 when a byte conversion mode asks for it.
func fieldArgument(rs []rune, cfg *parserConfig) (string, error) {
	if cfg.byteMode == ByteModeNone {
		return string(rs), nil
	}
	var stack [128]byte
	b := stack[:0]
	for _, r := range rs {
		if r > 255 {
			return "", errors.Wrapf(ErrBadToken, "codepoint %q cannot be latin-1 encoded", r)
		}
		b = append(b, byte(r))
	}
	return string(b), nil
}

// applyConverter invokes a user converter and sets the output element from
// its result. The converter's own error is preserved as the cause.
func applyConverter(f *FieldDesc, fn ConvertFunc, rs []rune, out []byte, cfg *parserConfig) error {
	arg, err := fieldArgument(rs, cfg)
	if err != nil {
		return err
	}
	v, err := fn(arg)
	if err != nil {
		return errors.Wrap(err, "converter failed")
	}
	return setFromValue(f, v, out)
}

// setFromValue coerces a converter result into the output element.
func setFromValue(f *FieldDesc, v interface{}, out []byte) error {
	switch f.Kind {
	case KindInt:
		i, ok := toInt64(v)
		if !ok {
			return errors.Errorf("cannot set int column from %T", v)
		}
		min, max := intBounds(f.Size)
		if i < min || i > max {
			return errors.Wrapf(ErrOverflow, "value %d", i)
		}
		writeScalar(out, f.Size, f.nonNative(), uint64(i))
	case KindUint:
		i, ok := toInt64(v)
		if !ok || i < 0 {
			return errors.Errorf("cannot set uint column from %v (%T)", v, v)
		}
		if f.Size < 8 && uint64(i) > uintMax(f.Size) {
			return errors.Wrapf(ErrOverflow, "value %d", i)
		}
		writeScalar(out, f.Size, f.nonNative(), uint64(i))
	case KindFloat:
		d, ok := toFloat64(v)
		if !ok {
			return errors.Errorf("cannot set float column from %T", v)
		}
		writeFloatBits(out, f.Size, f.nonNative(), d)
	case KindComplex:
		c, ok := toComplex128(v)
		if !ok {
			return errors.Errorf("cannot set complex column from %T", v)
		}
		half := f.Size / 2
		writeFloatBits(out[:half], half, f.nonNative(), real(c))
		writeFloatBits(out[half:], half, f.nonNative(), imag(c))
	case KindBytes:
		s, ok := toString(v)
		if !ok {
			return errors.Errorf("cannot set byte-string column from %T", v)
		}
		return convertBytes(f, []rune(s), out)
	case KindWide:
		s, ok := toString(v)
		if !ok {
			return errors.Errorf("cannot set string column from %T", v)
		}
		return convertWide(f, []rune(s), out)
	default:
		return errors.Errorf("cannot set column of kind %d", f.Kind)
	}
	return nil
}

// toInt64 widens any integer-valued result to int64. Floats are accepted
// when integral.
func toInt64(v interface{}) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int8:
		return int64(n), true
	case int16:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case uint:
		return int64(n), true
	case uint8:
		return int64(n), true
	case uint16:
		return int64(n), true
	case uint32:
		return int64(n), true
	case uint64:
		return int64(n), true
	case float64:
		if n == math.Trunc(n) {
			return int64(n), true
		}
	case float32:
		d := float64(n)
		if d == math.Trunc(d) {
			return int64(d), true
		}
	}
	return 0, false
}

// toFloat64 widens any numeric result to float64.
func toFloat64(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	}
	if i, ok := toInt64(v); ok {
		return float64(i), true
	}
	return 0, false
}

// toComplex128 widens any numeric result to complex128.
func toComplex128(v interface{}) (complex128, bool) {
	switch n := v.(type) {
	case complex128:
		return n, true
	case complex64:
		return complex128(n), true
	}
	if d, ok := toFloat64(v); ok {
		return complex(d, 0), true
	}
	return 0, false
}

// toString accepts string-valued results.
func toString(v interface{}) (string, bool) {
	switch s := v.(type) {
	case string:
		return s, true
	case []byte:
		return string(s), true
	}
	return "", false
}
