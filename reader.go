package loadtext

import (
	"io"

	"github.com/pkg/errors"
)

// =============================================================================
// Row Reader
// =============================================================================
//
// The row reader drives the tokenizer, maps output columns to input fields
// through the optional selection vector, invokes the converter bound to
// each column, and grows the output buffer geometrically when the row count
// was not declared up front. It owns the output buffer until it returns;
// on any failure the partial buffer is discarded, never observable.
//
// =============================================================================

// readParams carries one read's resolved arguments.
type readParams struct {
	cfg        parserConfig
	dt         DType
	usecols    []int
	skipRows   int
	maxRows    int // negative means unbounded
	converters map[int]ConvertFunc
}

// allocTargetBytes is the minimum byte budget of the first speculative
// allocation block.
const allocTargetBytes = 8192

// readRows reads every remaining row from stream into a typed array.
func readRows(stream Stream, p *readParams) (*Array, error) {
	tok := newTokenizer(&p.cfg, stream)
	defer tok.release()

	// Skip phase: reaching EOF early is not an error.
	for i := 0; i < p.skipRows; i++ {
		if err := tok.skipLine(); err != nil {
			if err == io.EOF {
				break
			}
			return nil, err
		}
	}

	// The schema is copied so width discovery cannot leak into the
	// caller's DType.
	dt := p.dt
	dt.fields = append([]FieldDesc(nil), p.dt.fields...)

	var (
		out          []byte
		allocRows    int
		blockRows    int
		rowSize      int
		ncols        int
		actualFields int
		bound        []ConvertFunc
		rowCount     int
		discovered   bool
	)
	exact := p.maxRows >= 0

	for {
		if exact && rowCount >= p.maxRows {
			break
		}
		n, err := tok.tokenizeRow()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		// Blank and comment-only lines carry no fields; a row whose only
		// field is empty (such as a lone "") is skipped as well.
		if n == 0 || (n == 1 && len(tok.field(0)) == 0) {
			continue
		}

		if !discovered {
			actualFields, ncols = resolveShape(&dt, p.usecols, n)
			bound = bindConverters(p.converters, p.usecols, actualFields, ncols, n)
			discoverStringWidth(&dt, tok, p.usecols, ncols, n)
			rowSize = dt.rowSize(ncols)

			if exact {
				allocRows = p.maxRows
			} else {
				blockRows = 1
				for blockRows*rowSize < allocTargetBytes {
					blockRows <<= 1
				}
				allocRows = blockRows
			}
			out = make([]byte, allocRows*rowSize)
			discovered = true
		}
		rowNum := rowCount + 1

		if p.usecols == nil && n != actualFields {
			return nil, &ParseError{
				Row: rowNum,
				Err: errors.Wrapf(ErrFieldCount, "expected %d fields, found %d", actualFields, n),
			}
		}

		if rowCount == allocRows {
			allocRows = growAlloc(&out, rowCount, rowSize, allocRows, blockRows)
		}

		rowBytes := out[rowCount*rowSize : (rowCount+1)*rowSize]
		if err := convertRow(&dt, tok, p, bound, rowBytes, rowNum, n, ncols); err != nil {
			return nil, err
		}
		rowCount++
	}

	return finishArray(out, &dt, p.usecols, rowCount, rowSize, ncols, discovered), nil
}

// resolveShape determines the expected input field count and the output
// column count from the first non-empty row.
func resolveShape(dt *DType, usecols []int, firstRowFields int) (actualFields, ncols int) {
	switch {
	case usecols != nil:
		return len(usecols), len(usecols)
	case dt.structured:
		return len(dt.fields), len(dt.fields)
	default:
		return firstRowFields, firstRowFields
	}
}

// bindConverters resolves the user converter mapping into per-output-column
// slots. Keys name input columns; negative keys are normalised against the
// actual field count, and keys matching no output column are silently
// ignored. Negative selection entries resolve against the first row's
// field count n, as they do in convertRow.
func bindConverters(converters map[int]ConvertFunc, usecols []int, actualFields, ncols, n int) []ConvertFunc {
	if len(converters) == 0 {
		return nil
	}
	bound := make([]ConvertFunc, ncols)
	for key, fn := range converters {
		k := key
		if k < 0 {
			k += actualFields
		}
		if usecols == nil {
			if k >= 0 && k < ncols {
				bound[k] = fn
			}
			continue
		}
		for j, c := range usecols {
			if c < 0 {
				c += n
			}
			if c == k {
				bound[j] = fn
			}
		}
	}
	return bound
}

// discoverStringWidth fixes a variable-width homogeneous string element to
// the longest field of the first row. Later rows never widen it; longer
// fields are truncated to this width.
func discoverStringWidth(dt *DType, tok *tokenizer, usecols []int, ncols, n int) {
	if dt.structured || dt.fields[0].Size != 0 {
		return
	}
	maxLen := 1
	for j := 0; j < ncols; j++ {
		col := j
		if usecols != nil {
			col = usecols[j]
			if col < 0 {
				col += n
			}
			if col < 0 || col >= n {
				continue
			}
		}
		if l := len(tok.field(col)); l > maxLen {
			maxLen = l
		}
	}
	if dt.fields[0].Kind == KindWide {
		dt.fields[0].Size = 4 * maxLen
		return
	}
	dt.fields[0].Size = maxLen
}

// growAlloc grows the speculative allocation by one quarter, rounded up to
// the block multiple, and returns the new row capacity.
func growAlloc(out *[]byte, rowCount, rowSize, allocRows, blockRows int) int {
	next := allocRows + allocRows/4
	next = (next + blockRows - 1) / blockRows * blockRows
	if next <= allocRows {
		next = allocRows + blockRows
	}
	grown := make([]byte, next*rowSize)
	copy(grown, (*out)[:rowCount*rowSize])
	*out = grown
	return next
}

// convertRow converts every output column of the current row into rowBytes.
func convertRow(dt *DType, tok *tokenizer, p *readParams, bound []ConvertFunc, rowBytes []byte, rowNum, n, ncols int) error {
	for j := 0; j < ncols; j++ {
		col := j
		if p.usecols != nil {
			col = p.usecols[j]
			if col < 0 {
				col += n
			}
			if col < 0 || col >= n {
				return &ParseError{
					Row: rowNum,
					Err: errors.Wrapf(ErrColumnRange, "requested column %d with %d fields", p.usecols[j], n),
				}
			}
		}

		var f *FieldDesc
		var off int
		if dt.structured {
			f = &dt.fields[j]
			off = f.Offset
		} else {
			f = &dt.fields[0]
			off = j * f.Size
		}
		dst := rowBytes[off : off+f.Size]

		var err error
		if bound != nil && bound[j] != nil {
			err = applyConverter(f, bound[j], tok.field(col), dst, &p.cfg)
		} else {
			err = convertField(f, tok.field(col), dst, &p.cfg)
		}
		if err != nil {
			return &ParseError{Row: rowNum, Column: col + 1, Type: f.Kind, Err: err}
		}
	}
	return nil
}

// finishArray trims the speculative allocation to the exact row count with
// a single reallocation and assembles the result.
func finishArray(out []byte, dt *DType, usecols []int, rowCount, rowSize, ncols int, discovered bool) *Array {
	if !discovered {
		// No data rows: the shape is whatever the arguments pin down.
		switch {
		case usecols != nil:
			ncols = len(usecols)
		case dt.structured:
			ncols = len(dt.fields)
		default:
			ncols = 0
		}
		rowSize = dt.rowSize(ncols)
		return &Array{data: []byte{}, rows: 0, cols: ncols, rowSize: rowSize, dt: *dt}
	}

	data := out[:rowCount*rowSize]
	if rowCount*rowSize != len(out) {
		data = make([]byte, rowCount*rowSize)
		copy(data, out)
	}
	return &Array{data: data, rows: rowCount, cols: ncols, rowSize: rowSize, dt: *dt}
}
