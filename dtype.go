package loadtext

import (
	"encoding/binary"

	"github.com/pkg/errors"
)

// =============================================================================
// Field Descriptors and Output Schema
// =============================================================================
//
// Every output column is described by a tagged descriptor {kind, size,
// offset}. A homogeneous output carries one descriptor shared by every
// column; a structured output carries one per column with cumulative byte
// offsets. Converter dispatch is a switch on the kind tag.
//
// =============================================================================

// Kind is the type tag of an output column.
type Kind uint8

const (
	// KindNone is the zero Kind; it never describes a column.
	KindNone Kind = iota

	// KindInt is a signed integer of 1, 2, 4, or 8 bytes.
	KindInt

	// KindUint is an unsigned integer of 1, 2, 4, or 8 bytes.
	KindUint

	// KindFloat is an IEEE float of 4 or 8 bytes.
	KindFloat

	// KindComplex is a complex number of 8 or 16 bytes.
	KindComplex

	// KindBytes is a fixed-width byte string, NUL-padded.
	KindBytes

	// KindWide is a fixed-width string of 4-byte codepoints, zero-padded.
	KindWide
)

// String returns a short name for the kind, used in error messages.
func (k Kind) String() string {
	switch k {
	case KindInt:
		return "int"
	case KindUint:
		return "uint"
	case KindFloat:
		return "float"
	case KindComplex:
		return "complex"
	case KindBytes:
		return "bytes"
	case KindWide:
		return "string"
	default:
		return "none"
	}
}

// FieldDesc describes one output column: its type tag, element size in
// bytes, and byte offset within an output row.
type FieldDesc struct {
	Kind      Kind
	Size      int  // element size in bytes; 0 requests width discovery from the first row
	Offset    int  // byte offset within the output row; assigned by the schema
	BigEndian bool // target byte order; converters write native then swap
}

// nonNative reports whether the descriptor's byte order differs from the
// host's.
func (f *FieldDesc) nonNative() bool {
	return f.BigEndian != hostBigEndian
}

// hostBigEndian records the host byte order once at init.
var hostBigEndian = func() bool {
	var b [2]byte
	binary.NativeEndian.PutUint16(b[:], 1)
	return b[0] == 0
}()

// =============================================================================
// Descriptor Constructors
// =============================================================================

// Int returns a signed integer descriptor of the given byte size.
func Int(size int) FieldDesc { return FieldDesc{Kind: KindInt, Size: size} }

// Uint returns an unsigned integer descriptor of the given byte size.
func Uint(size int) FieldDesc { return FieldDesc{Kind: KindUint, Size: size} }

// Float returns a float descriptor of the given byte size (4 or 8).
func Float(size int) FieldDesc { return FieldDesc{Kind: KindFloat, Size: size} }

// Complex returns a complex descriptor of the given byte size (8 or 16).
func Complex(size int) FieldDesc { return FieldDesc{Kind: KindComplex, Size: size} }

// Bytes returns a byte-string descriptor holding width bytes. A width of
// zero defers the width to the first data row.
func Bytes(width int) FieldDesc { return FieldDesc{Kind: KindBytes, Size: width} }

// Wide returns a wide-string descriptor holding width codepoints. A width
// of zero defers the width to the first data row.
func Wide(width int) FieldDesc { return FieldDesc{Kind: KindWide, Size: 4 * width} }

// =============================================================================
// DType
// =============================================================================

// DType is the output schema: either a single element type shared by every
// column (homogeneous, yielding a two-dimensional result) or an ordered
// tuple of typed fields (structured, yielding a one-dimensional result of
// records).
type DType struct {
	fields     []FieldDesc
	structured bool
}

// Scalar returns a homogeneous schema where every column has element type f.
func Scalar(f FieldDesc) DType {
	return DType{fields: []FieldDesc{f}}
}

// Struct returns a structured schema with one field per output column.
// Byte offsets are assigned cumulatively in declaration order.
func Struct(fs ...FieldDesc) DType {
	fields := make([]FieldDesc, len(fs))
	offset := 0
	for i, f := range fs {
		f.Offset = offset
		fields[i] = f
		offset += f.Size
	}
	return DType{fields: fields, structured: true}
}

// Structured reports whether the schema is a tuple of typed fields.
func (d DType) Structured() bool { return d.structured }

// NumFields returns the number of schema fields (1 for homogeneous).
func (d DType) NumFields() int { return len(d.fields) }

// Field returns the i-th field descriptor.
func (d DType) Field(i int) FieldDesc { return d.fields[i] }

// elem returns the shared element descriptor of a homogeneous schema.
func (d DType) elem() FieldDesc { return d.fields[0] }

// rowSize returns the byte size of one output row for ncols columns.
func (d DType) rowSize(ncols int) int {
	if d.structured {
		total := 0
		for _, f := range d.fields {
			total += f.Size
		}
		return total
	}
	return ncols * d.fields[0].Size
}

// validate checks descriptor well-formedness. Structured schemas must have
// explicit widths; only a homogeneous string schema may defer its width to
// the first row.
func (d DType) validate() error {
	if len(d.fields) == 0 {
		return errors.New("dtype has no fields")
	}
	for i, f := range d.fields {
		if err := validateField(f, d.structured); err != nil {
			return errors.Wrapf(err, "dtype field %d", i)
		}
	}
	return nil
}

// validateField checks one descriptor against the sizes its kind supports.
func validateField(f FieldDesc, structured bool) error {
	switch f.Kind {
	case KindInt, KindUint:
		switch f.Size {
		case 1, 2, 4, 8:
		default:
			return errors.Errorf("unsupported %s size %d", f.Kind, f.Size)
		}
	case KindFloat:
		if f.Size != 4 && f.Size != 8 {
			return errors.Errorf("unsupported float size %d", f.Size)
		}
	case KindComplex:
		if f.Size != 8 && f.Size != 16 {
			return errors.Errorf("unsupported complex size %d", f.Size)
		}
	case KindBytes:
		if f.Size < 0 || (structured && f.Size == 0) {
			return errors.Errorf("byte-string width %d not allowed here", f.Size)
		}
	case KindWide:
		if f.Size < 0 || f.Size%4 != 0 || (structured && f.Size == 0) {
			return errors.Errorf("wide-string size %d not allowed here", f.Size)
		}
	default:
		return errors.Errorf("unknown field kind %d", f.Kind)
	}
	return nil
}
