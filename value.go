// Package sqlcli provides the data-marshalling core of a SQL call-level interface.
package sqlcli

import (
	"database/sql/driver"
	"fmt"
	"math"
	"time"

	"github.com/shopspring/decimal"
)

// Value is a parameter value that can be bound to a statement. The set of
// implementations is closed: Int32, Int64, Float64, Text, WideText, Binary,
// Null, Date, TimeOfDay, Timestamp and Decimal.
type Value interface {
	sqlType() SQLType
}

// Int32 binds as INTEGER.
type Int32 int32

// Int64 binds as BIGINT.
type Int64 int64

// Float64 binds as DOUBLE.
type Float64 float64

// Text binds as VARCHAR. The bytes are sent as-is.
type Text string

// WideText binds as NVARCHAR and is transferred as UTF-16.
type WideText string

// Binary binds as LONG VARBINARY and is always streamed in segments.
type Binary []byte

// Null binds a typeless NULL.
type Null struct{}

// Date binds as DATE.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// TimeOfDay binds as TIME.
type TimeOfDay struct {
	Hour   int
	Minute int
	Second int
}

// Timestamp binds as TIMESTAMP with nanosecond fraction.
type Timestamp struct {
	time.Time
}

// Decimal binds as DECIMAL using its canonical text form.
type Decimal struct {
	decimal.Decimal
}

func (Int32) sqlType() SQLType     { return TypeInteger }
func (Int64) sqlType() SQLType     { return TypeBigInt }
func (Float64) sqlType() SQLType   { return TypeDouble }
func (Text) sqlType() SQLType      { return TypeVarchar }
func (WideText) sqlType() SQLType  { return TypeWVarchar }
func (Binary) sqlType() SQLType    { return TypeLongVarBinary }
func (Null) sqlType() SQLType      { return TypeNull }
func (Date) sqlType() SQLType      { return TypeDate }
func (TimeOfDay) sqlType() SQLType { return TypeTime }
func (Timestamp) sqlType() SQLType { return TypeTimestamp }
func (Decimal) sqlType() SQLType   { return TypeDecimal }

// DateOf returns the date part of t.
func DateOf(t time.Time) Date {
	return Date{Year: t.Year(), Month: t.Month(), Day: t.Day()}
}

// TimeOfDayOf returns the clock part of t.
func TimeOfDayOf(t time.Time) TimeOfDay {
	return TimeOfDay{Hour: t.Hour(), Minute: t.Minute(), Second: t.Second()}
}

// ValueOf converts a Go value into a bindable Value. Values that already
// implement Value are returned unchanged.
func ValueOf(v any) (Value, error) {
	// decimal.Decimal is a driver.Valuer producing text; keep it numeric.
	switch d := v.(type) {
	case decimal.Decimal:
		return Decimal{d}, nil
	case *decimal.Decimal:
		if d == nil {
			return Null{}, nil
		}
		return Decimal{*d}, nil
	}
	if valuer, ok := v.(driver.Valuer); ok {
		if _, isValue := v.(Value); !isValue {
			dv, err := valuer.Value()
			if err != nil {
				return nil, err
			}
			v = dv
		}
	}

	switch x := v.(type) {
	case nil:
		return Null{}, nil
	case Value:
		return x, nil
	case bool:
		if x {
			return Int32(1), nil
		}
		return Int32(0), nil
	case int8:
		return Int32(x), nil
	case int16:
		return Int32(x), nil
	case int32:
		return Int32(x), nil
	case uint8:
		return Int32(x), nil
	case uint16:
		return Int32(x), nil
	case int:
		if x >= math.MinInt32 && x <= math.MaxInt32 {
			return Int32(x), nil
		}
		return Int64(x), nil
	case int64:
		return Int64(x), nil
	case uint32:
		return Int64(x), nil
	case uint:
		if uint64(x) > math.MaxInt64 {
			return nil, errorf(ErrInterface, "unsigned value %d overflows BIGINT", x)
		}
		return Int64(x), nil
	case uint64:
		if x > math.MaxInt64 {
			return nil, errorf(ErrInterface, "unsigned value %d overflows BIGINT", x)
		}
		return Int64(x), nil
	case float32:
		return Float64(x), nil
	case float64:
		return Float64(x), nil
	case string:
		return Text(x), nil
	case []byte:
		if x == nil {
			return Null{}, nil
		}
		return Binary(x), nil
	case time.Time:
		return Timestamp{x}, nil
	}
	return nil, errorf(ErrInterface, "unsupported parameter type %T", v)
}

// ValuesOf converts every argument with ValueOf.
func ValuesOf(args ...any) ([]Value, error) {
	vals := make([]Value, len(args))
	for i, a := range args {
		v, err := ValueOf(a)
		if err != nil {
			return nil, fmt.Errorf("parameter %d: %w", i, err)
		}
		vals[i] = v
	}
	return vals, nil
}
