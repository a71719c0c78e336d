package sqlcli

import (
	"database/sql"
	"math"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestValueOf(t *testing.T) {
	now := time.Date(2024, time.June, 1, 12, 0, 0, 0, time.UTC)
	dec := decimal.RequireFromString("3.14")

	tests := []struct {
		name string
		in   any
		want Value
	}{
		{"nil", nil, Null{}},
		{"true", true, Int32(1)},
		{"false", false, Int32(0)},
		{"int8", int8(-3), Int32(-3)},
		{"small int", 42, Int32(42)},
		{"large int", math.MaxInt32 + 1, Int64(math.MaxInt32 + 1)},
		{"int64", int64(5), Int64(5)},
		{"uint32", uint32(math.MaxUint32), Int64(math.MaxUint32)},
		{"float32", float32(1.5), Float64(1.5)},
		{"string", "abc", Text("abc")},
		{"nil bytes", []byte(nil), Null{}},
		{"value passthrough", WideText("w"), WideText("w")},
		{"null string", sql.NullString{}, Null{}},
		{"valid null int", sql.NullInt64{Int64: 9, Valid: true}, Int64(9)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ValueOf(tt.in)
			if err != nil {
				t.Fatalf("ValueOf(%v) failed: %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("ValueOf(%v) = %#v, want %#v", tt.in, got, tt.want)
			}
		})
	}

	if v, err := ValueOf([]byte{1}); err != nil {
		t.Errorf("ValueOf([]byte) failed: %v", err)
	} else if b, ok := v.(Binary); !ok || len(b) != 1 {
		t.Errorf("Expected Binary, got %#v", v)
	}

	if v, _ := ValueOf(now); v.(Timestamp).Time != now {
		t.Errorf("Expected Timestamp, got %#v", v)
	}

	v, err := ValueOf(dec)
	if err != nil {
		t.Fatalf("ValueOf(decimal) failed: %v", err)
	}
	if d, ok := v.(Decimal); !ok || !d.Equal(dec) {
		t.Errorf("Expected Decimal, got %#v", v)
	}
	if v, _ := ValueOf((*decimal.Decimal)(nil)); v != (Null{}) {
		t.Errorf("Expected Null for a nil decimal pointer, got %#v", v)
	}

	for _, bad := range []any{uint64(math.MaxUint64), struct{}{}, make(chan int)} {
		if _, err := ValueOf(bad); !IsError(err, ErrInterface) {
			t.Errorf("Expected interface error for %T, got %v", bad, err)
		}
	}
}

func TestValuesOf(t *testing.T) {
	vals, err := ValuesOf(1, "a", nil)
	if err != nil {
		t.Fatalf("ValuesOf failed: %v", err)
	}
	if len(vals) != 3 || vals[0] != Int32(1) || vals[1] != Text("a") || vals[2] != (Null{}) {
		t.Errorf("Unexpected values %#v", vals)
	}
	if _, err := ValuesOf(1, struct{}{}); !IsError(err, ErrInterface) {
		t.Errorf("Expected interface error, got %v", err)
	}
}

func TestDateHelpers(t *testing.T) {
	ts := time.Date(2021, time.February, 28, 7, 8, 9, 0, time.UTC)
	if d := DateOf(ts); d != (Date{Year: 2021, Month: time.February, Day: 28}) {
		t.Errorf("Unexpected date %+v", d)
	}
	if tod := TimeOfDayOf(ts); tod != (TimeOfDay{Hour: 7, Minute: 8, Second: 9}) {
		t.Errorf("Unexpected time of day %+v", tod)
	}

	buf := make([]byte, timestampSize)
	PutTimestamp(buf, ts.Add(123*time.Nanosecond))
	if got := TimestampFromBytes(buf); !got.Equal(ts.Add(123 * time.Nanosecond)) {
		t.Errorf("Timestamp round trip gave %v", got)
	}
}
