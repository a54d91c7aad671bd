package loadtext

import (
	"errors"
	"strings"
	"testing"
)

// TestParseError_Format checks the message shapes for conversion, column,
// and row-only errors.
func TestParseError_Format(t *testing.T) {
	tests := []struct {
		name string
		err  *ParseError
		want []string
	}{
		{
			name: "conversion error",
			err:  &ParseError{Row: 2, Column: 3, Type: KindInt, Err: ErrOverflow},
			want: []string{"row 2", "column 3", "converting to int"},
		},
		{
			name: "column error",
			err:  &ParseError{Row: 4, Column: 1, Err: ErrBadToken},
			want: []string{"row 4", "column 1"},
		},
		{
			name: "row error",
			err:  &ParseError{Row: 7, Err: ErrFieldCount},
			want: []string{"row 7", "wrong number of fields"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := tt.err.Error()
			for _, frag := range tt.want {
				if !strings.Contains(msg, frag) {
					t.Errorf("message %q missing %q", msg, frag)
				}
			}
		})
	}
}

// TestParseError_Unwrap reaches the sentinel through the wrapper.
func TestParseError_Unwrap(t *testing.T) {
	err := &ParseError{Row: 1, Err: ErrFieldCount}
	if !errors.Is(err, ErrFieldCount) {
		t.Error("errors.Is did not reach the sentinel")
	}
	var parseErr *ParseError
	if !errors.As(error(err), &parseErr) {
		t.Error("errors.As failed")
	}
}

// TestKind_String covers the type names used in messages.
func TestKind_String(t *testing.T) {
	names := map[Kind]string{
		KindInt:     "int",
		KindUint:    "uint",
		KindFloat:   "float",
		KindComplex: "complex",
		KindBytes:   "bytes",
		KindWide:    "string",
		KindNone:    "none",
	}
	for k, want := range names {
		if got := k.String(); got != want {
			t.Errorf("Kind(%d).String() = %q, want %q", k, got, want)
		}
	}
}
