package sqlcli

import (
	"bytes"
	"encoding/binary"
	"math"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

// badValue is a Value the binder does not know how to encode.
type badValue struct{}

func (badValue) sqlType() SQLType { return TypeVarchar }

func TestBindParameterMapping(t *testing.T) {
	conn := newFakeConn()
	stmt := NewStatement(conn)
	defer stmt.Close()

	ts := time.Date(2024, time.March, 5, 10, 11, 12, 123456789, time.UTC)
	params := []Value{
		Int32(-7),
		Int64(1 << 40),
		Float64(2.5),
		Text("abc"),
		WideText("hé"),
		Null{},
		Date{Year: 2024, Month: time.March, Day: 5},
		TimeOfDay{Hour: 10, Minute: 11, Second: 12},
		Timestamp{ts},
		Decimal{decimal.RequireFromString("12.50")},
		Binary([]byte{1, 2, 3}),
	}
	if err := stmt.Execute("INSERT INTO t VALUES (?)", params...); err != nil {
		t.Fatalf("Failed to execute: %v", err)
	}

	h := conn.last()
	if len(h.bound) != len(params) {
		t.Fatalf("Expected %d bound parameters, got %d", len(params), len(h.bound))
	}

	checks := []struct {
		index   int
		sqlType SQLType
		ctype   CType
		size    int
	}{
		{0, TypeInteger, CLong, 10},
		{1, TypeBigInt, CSBigInt, 19},
		{2, TypeDouble, CDouble, 15},
		{3, TypeVarchar, CChar, 3},
		{4, TypeWVarchar, CWChar, 2},
		{5, TypeNull, CChar, 1},
		{6, TypeDate, CDate, 10},
		{7, TypeTime, CTime, 8},
		{8, TypeTimestamp, CTimestamp, 29},
		{9, TypeDecimal, CChar, 5},
		{10, TypeLongVarBinary, CBinary, 3},
	}
	for _, c := range checks {
		p := h.bound[c.index]
		if p.SQLType != c.sqlType || p.CType != c.ctype || p.ColumnSize != c.size {
			t.Errorf("Parameter %d: got (%s, %d, %d), want (%s, %d, %d)",
				c.index, p.SQLType, p.CType, p.ColumnSize, c.sqlType, c.ctype, c.size)
		}
	}

	if got := int32(binary.NativeEndian.Uint32(h.bound[0].Data)); got != -7 {
		t.Errorf("Expected -7, got %d", got)
	}
	if got := int64(binary.NativeEndian.Uint64(h.bound[1].Data)); got != 1<<40 {
		t.Errorf("Expected 1<<40, got %d", got)
	}
	if got := math.Float64frombits(binary.NativeEndian.Uint64(h.bound[2].Data)); got != 2.5 {
		t.Errorf("Expected 2.5, got %v", got)
	}
	if string(h.bound[3].Data) != "abc" || h.bound[3].Indicator != 3 {
		t.Errorf("Unexpected text binding: %q indicator %d", h.bound[3].Data, h.bound[3].Indicator)
	}
	if !bytes.Equal(h.bound[4].Data, []byte{'h', 0, 0xe9, 0}) {
		t.Errorf("Unexpected wide text encoding: %v", h.bound[4].Data)
	}
	if h.bound[5].Indicator != NullData || h.bound[5].Data != nil {
		t.Errorf("Expected NULL binding, got %+v", h.bound[5])
	}
	if y, m, d := DateFromBytes(h.bound[6].Data); y != 2024 || m != 3 || d != 5 {
		t.Errorf("Unexpected date %d-%d-%d", y, m, d)
	}
	if hh, mm, ss := TimeFromBytes(h.bound[7].Data); hh != 10 || mm != 11 || ss != 12 {
		t.Errorf("Unexpected time %d:%d:%d", hh, mm, ss)
	}
	if got := TimestampFromBytes(h.bound[8].Data); !got.Equal(ts) {
		t.Errorf("Expected %v, got %v", ts, got)
	}
	if h.bound[8].Scale != 9 {
		t.Errorf("Expected timestamp scale 9, got %d", h.bound[8].Scale)
	}
	if string(h.bound[9].Data) != "12.50" || h.bound[9].Scale != 2 {
		t.Errorf("Expected decimal 12.50 scale 2, got %q scale %d", h.bound[9].Data, h.bound[9].Scale)
	}

	blob := h.bound[10]
	if !blob.Deferred() || blob.Data != nil {
		t.Errorf("Expected deferred binary without inline data, got %+v", blob)
	}
	if n, ok := DeferredLength(blob.Indicator); !ok || n != 3 {
		t.Errorf("Expected deferred length 3, got %d %v", n, ok)
	}
	if segs := h.putData[10]; len(segs) != 1 || !bytes.Equal(segs[0], []byte{1, 2, 3}) {
		t.Errorf("Unexpected PutData segments: %v", segs)
	}

	if len(stmt.Params()) != 0 {
		t.Errorf("Expected parameters to be freed after execute, got %d", len(stmt.Params()))
	}
}

func TestDeferredChunking(t *testing.T) {
	conn := newFakeConn()
	stmt := NewStatement(conn)
	defer stmt.Close()

	blob := filled(250001)
	if err := stmt.Execute("INSERT INTO t VALUES (?)", Binary(blob)); err != nil {
		t.Fatalf("Failed to execute: %v", err)
	}

	segs := conn.last().putData[0]
	want := []int{100000, 100000, 50001}
	if len(segs) != len(want) {
		t.Fatalf("Expected %d segments, got %d", len(want), len(segs))
	}
	var joined []byte
	for i, seg := range segs {
		if len(seg) != want[i] {
			t.Errorf("Segment %d: expected %d bytes, got %d", i, want[i], len(seg))
		}
		joined = append(joined, seg...)
	}
	if !bytes.Equal(joined, blob) {
		t.Error("Reassembled segments differ from the original value")
	}
}

func TestDeferredChunkingWithInputSizes(t *testing.T) {
	conn := newFakeConn()
	stmt := NewStatement(conn)
	defer stmt.Close()

	if err := stmt.SetInputSizes([]int{0, 1000}); err != nil {
		t.Fatalf("Failed to set input sizes: %v", err)
	}
	if err := stmt.Execute("INSERT INTO t VALUES (?, ?, ?)",
		Binary(filled(2500)), Binary(filled(2500)), Binary(nil)); err != nil {
		t.Fatalf("Failed to execute: %v", err)
	}

	h := conn.last()
	if n := len(h.putData[0]); n != 1 {
		t.Errorf("Parameter 0 should use the default size, got %d segments", n)
	}
	var sizes []int
	for _, seg := range h.putData[1] {
		sizes = append(sizes, len(seg))
	}
	if len(sizes) != 3 || sizes[0] != 1000 || sizes[1] != 1000 || sizes[2] != 500 {
		t.Errorf("Expected segments [1000 1000 500], got %v", sizes)
	}
	if segs := h.putData[2]; len(segs) != 1 || len(segs[0]) != 0 {
		t.Errorf("Expected one empty PutData for a zero-length value, got %v", segs)
	}

	if err := stmt.SetInputSizes([]int{10, -1}); !IsError(err, ErrInterface) {
		t.Errorf("Expected interface error for negative size, got %v", err)
	}
}

func TestChunkIterator(t *testing.T) {
	it := newChunkIterator([]byte("abcdefg"), 3)
	var got []string
	for seg, ok := it.Next(); ok; seg, ok = it.Next() {
		got = append(got, string(seg))
	}
	if len(got) != 3 || got[0] != "abc" || got[1] != "def" || got[2] != "g" {
		t.Errorf("Unexpected segments %q", got)
	}
	if it.Total() != 7 {
		t.Errorf("Expected total 7, got %d", it.Total())
	}

	empty := newChunkIterator(nil, 3)
	seg, ok := empty.Next()
	if !ok || len(seg) != 0 {
		t.Fatalf("Expected one empty segment, got %q %v", seg, ok)
	}
	if _, ok := empty.Next(); ok {
		t.Error("Expected the empty value to end after one segment")
	}

	exact := newChunkIterator(filled(6), 3)
	n := 0
	for _, ok := exact.Next(); ok; _, ok = exact.Next() {
		n++
	}
	if n != 2 {
		t.Errorf("Expected 2 segments for an exact multiple, got %d", n)
	}
}

func TestBindFailureKeepsPartialParameters(t *testing.T) {
	conn := newFakeConn()
	stmt := NewStatement(conn)
	defer stmt.Close()

	err := stmt.Execute("INSERT INTO t VALUES (?, ?)", Int32(1), badValue{})
	if !IsError(err, ErrInterface) {
		t.Fatalf("Expected interface error, got %v", err)
	}
	if len(stmt.Params()) != 2 {
		t.Errorf("Expected the partial parameter array to be installed, got %d", len(stmt.Params()))
	}
	if conn.count("ExecDirect") != 0 {
		t.Error("Statement should not execute after a binding failure")
	}

	if err := stmt.Execute("INSERT INTO t VALUES (?)", Int32(2)); err != nil {
		t.Fatalf("Failed to execute after binding failure: %v", err)
	}
	if len(stmt.Params()) != 0 {
		t.Errorf("Expected parameters to be freed, got %d", len(stmt.Params()))
	}
}

func TestEmptyParameterSequence(t *testing.T) {
	stmt := NewStatement(newFakeConn())
	defer stmt.Close()

	if err := stmt.Execute("SELECT 1", []Value{}...); !IsError(err, ErrInterface) {
		t.Errorf("Expected interface error for empty parameters, got %v", err)
	}
}

func TestFormatDecimal(t *testing.T) {
	tests := []struct {
		in    string
		text  string
		scale int
	}{
		{"12.50", "12.50", 2},
		{"100", "100", 0},
		{"-0.001", "-0.001", 3},
		{"1.0", "1.0", 1},
	}
	for _, tt := range tests {
		text := formatDecimal(Decimal{decimal.RequireFromString(tt.in)})
		if text != tt.text {
			t.Errorf("formatDecimal(%s) = %q, want %q", tt.in, text, tt.text)
		}
		if got := decimalScale(text); got != tt.scale {
			t.Errorf("decimalScale(%q) = %d, want %d", text, got, tt.scale)
		}
	}
	if got := decimalScale("3,25"); got != 2 {
		t.Errorf("Expected comma separator to count, got %d", got)
	}
}
