package loadtext

import (
	"bytes"
	"reflect"
	"strings"
	"testing"
)

// =============================================================================
// Writer Tests
// =============================================================================

// TestWriter_Quoting verifies when fields are quoted and how quotes are
// doubled.
func TestWriter_Quoting(t *testing.T) {
	tests := []struct {
		name   string
		record []string
		want   string
	}{
		{name: "plain", record: []string{"a", "b"}, want: "a,b\n"},
		{name: "delimiter in field", record: []string{"a,b", "c"}, want: "\"a,b\",c\n"},
		{name: "quote doubled", record: []string{`say "hi"`}, want: "\"say \"\"hi\"\"\"\n"},
		{name: "newline in field", record: []string{"a\nb"}, want: "\"a\nb\"\n"},
		{name: "leading space quoted", record: []string{" a"}, want: "\" a\"\n"},
		{name: "empty fields", record: []string{"", "x", ""}, want: ",x,\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			w := NewWriter(&buf)
			if err := w.Write(tt.record); err != nil {
				t.Fatalf("Write: %v", err)
			}
			if err := w.Flush(); err != nil {
				t.Fatalf("Flush: %v", err)
			}
			if got := buf.String(); got != tt.want {
				t.Errorf("output = %q, want %q", got, tt.want)
			}
		})
	}
}

// TestWriter_CustomDialect writes with a non-default delimiter and quote.
func TestWriter_CustomDialect(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	w.Delimiter = ';'
	w.Quote = '\''

	if err := w.WriteAll([][]string{{"a;b", "it's"}}); err != nil {
		t.Fatalf("WriteAll: %v", err)
	}
	want := "'a;b';'it''s'\n"
	if got := buf.String(); got != want {
		t.Errorf("output = %q, want %q", got, want)
	}
}

// TestWriter_CRLF writes CRLF line endings.
func TestWriter_CRLF(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	w.UseCRLF = true
	if err := w.WriteAll([][]string{{"a"}, {"b"}}); err != nil {
		t.Fatalf("WriteAll: %v", err)
	}
	if got := buf.String(); got != "a\r\nb\r\n" {
		t.Errorf("output = %q", got)
	}
}

// =============================================================================
// Round-Trip Property
// =============================================================================

// TestRoundTrip writes records and tokenizes them back; field contents
// must survive exactly, including quoting and embedded structure.
func TestRoundTrip(t *testing.T) {
	records := [][]string{
		{"plain", "fields", "here"},
		{"with,delimiter", "with\"quote", "with\nnewline"},
		{"", "empty neighbors", ""},
		{` leading space`, "trailing space "},
		{`""`, `a""b`},
		{"unicode 日本語", "mixed, \"all\"\nof it"},
	}

	var buf bytes.Buffer
	w := NewWriter(&buf)
	if err := w.WriteAll(records); err != nil {
		t.Fatalf("WriteAll: %v", err)
	}

	got := tokenizeAll(t, testConfig(), buf.String())
	if !reflect.DeepEqual(got, records) {
		t.Errorf("round trip mismatch:\ngot=%q\nwant=%q", got, records)
	}
}

// TestRoundTrip_CustomDialect round-trips through a semicolon dialect.
func TestRoundTrip_CustomDialect(t *testing.T) {
	records := [][]string{
		{"a;b", "c"},
		{"plain", "'quoted'"},
	}

	var buf bytes.Buffer
	w := NewWriter(&buf)
	w.Delimiter = ';'
	w.Quote = '\''
	if err := w.WriteAll(records); err != nil {
		t.Fatalf("WriteAll: %v", err)
	}

	cfg := testConfig()
	cfg.delimiter = ';'
	cfg.quote = '\''
	got := tokenizeAll(t, cfg, buf.String())
	if !reflect.DeepEqual(got, records) {
		t.Errorf("round trip mismatch:\ngot=%q\nwant=%q", got, records)
	}
}

// TestRoundTrip_Typed writes numeric text and reads it back typed.
func TestRoundTrip_Typed(t *testing.T) {
	records := [][]string{{"1", "-2", "3"}, {"40", "50", "-60"}}

	var buf bytes.Buffer
	if err := NewWriter(&buf).WriteAll(records); err != nil {
		t.Fatalf("WriteAll: %v", err)
	}

	arr, err := Read(strings.NewReader(buf.String()), Scalar(Int(8)))
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	want := [][]int64{{1, -2, 3}, {40, 50, -60}}
	for i, row := range want {
		for j, v := range row {
			if arr.Int(i, j) != v {
				t.Errorf("(%d,%d) = %d, want %d", i, j, arr.Int(i, j), v)
			}
		}
	}
}
