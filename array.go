package loadtext

import (
	"encoding/binary"
	"math"
)

// =============================================================================
// Typed Output Array
// =============================================================================

// Array is the dense result of a read: rows x cols elements for a
// homogeneous schema, or rows records for a structured one. The backing
// store is a single contiguous byte buffer; the first dimension is the row.
type Array struct {
	data    []byte
	rows    int
	cols    int
	rowSize int
	dt      DType
}

// Rows returns the number of rows read.
func (a *Array) Rows() int { return a.rows }

// Cols returns the number of output columns.
func (a *Array) Cols() int { return a.cols }

// DType returns the schema the array was read with, including any string
// widths fixed by the first row.
func (a *Array) DType() DType { return a.dt }

// Data returns the backing byte buffer. Its length is exactly
// Rows() * RowSize().
func (a *Array) Data() []byte { return a.data }

// RowSize returns the byte size of one row.
func (a *Array) RowSize() int { return a.rowSize }

// desc returns the descriptor and byte offset of column c.
func (a *Array) desc(c int) (FieldDesc, int) {
	if a.dt.structured {
		f := a.dt.fields[c]
		return f, f.Offset
	}
	f := a.dt.elem()
	return f, c * f.Size
}

// elem returns the bytes of the element at (r, c).
func (a *Array) elem(r, c int) ([]byte, FieldDesc) {
	f, off := a.desc(c)
	start := r*a.rowSize + off
	return a.data[start : start+f.Size], f
}

// order returns the byte order the element was stored in.
func order(f FieldDesc) binary.ByteOrder {
	if f.BigEndian {
		return binary.BigEndian
	}
	return binary.LittleEndian
}

// Int returns the element at (r, c) as a signed integer.
// The column kind is not checked: the element's bytes are decoded as a
// signed integer of the column's size.
func (a *Array) Int(r, c int) int64 {
	b, f := a.elem(r, c)
	switch f.Size {
	case 1:
		return int64(int8(b[0]))
	case 2:
		return int64(int16(order(f).Uint16(b)))
	case 4:
		return int64(int32(order(f).Uint32(b)))
	default:
		return int64(order(f).Uint64(b))
	}
}

// Uint returns the element at (r, c) as an unsigned integer.
func (a *Array) Uint(r, c int) uint64 {
	b, f := a.elem(r, c)
	switch f.Size {
	case 1:
		return uint64(b[0])
	case 2:
		return uint64(order(f).Uint16(b))
	case 4:
		return uint64(order(f).Uint32(b))
	default:
		return order(f).Uint64(b)
	}
}

// Float returns the element at (r, c) as a float64.
func (a *Array) Float(r, c int) float64 {
	b, f := a.elem(r, c)
	if f.Size == 4 {
		return float64(math.Float32frombits(order(f).Uint32(b)))
	}
	return math.Float64frombits(order(f).Uint64(b))
}

// Complex returns the element at (r, c) as a complex128.
func (a *Array) Complex(r, c int) complex128 {
	b, f := a.elem(r, c)
	if f.Size == 8 {
		re := math.Float32frombits(order(f).Uint32(b[:4]))
		im := math.Float32frombits(order(f).Uint32(b[4:]))
		return complex(float64(re), float64(im))
	}
	re := math.Float64frombits(order(f).Uint64(b[:8]))
	im := math.Float64frombits(order(f).Uint64(b[8:]))
	return complex(re, im)
}

// Bytes returns the raw fixed-width byte string at (r, c), including NUL
// padding.
func (a *Array) Bytes(r, c int) []byte {
	b, _ := a.elem(r, c)
	return b
}

// String returns the element at (r, c) as a Go string. Byte-string columns
// are trimmed of NUL padding; wide-string columns are decoded from 4-byte
// codepoints up to the first zero.
func (a *Array) String(r, c int) string {
	b, f := a.elem(r, c)
	switch f.Kind {
	case KindWide:
		runes := make([]rune, 0, f.Size/4)
		for i := 0; i+4 <= len(b); i += 4 {
			cp := rune(order(f).Uint32(b[i : i+4]))
			if cp == 0 {
				break
			}
			runes = append(runes, cp)
		}
		return string(runes)
	default:
		end := len(b)
		for end > 0 && b[end-1] == 0 {
			end--
		}
		return string(b[:end])
	}
}
