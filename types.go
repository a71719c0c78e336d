// Package sqlcli provides the data-marshalling core of a SQL call-level interface.
package sqlcli

import (
	"encoding/binary"
	"fmt"
	"time"
)

// SQLType is a server-side SQL data type, using ODBC numbering.
type SQLType int16

const (
	TypeNull          SQLType = 0
	TypeChar          SQLType = 1
	TypeNumeric       SQLType = 2
	TypeDecimal       SQLType = 3
	TypeInteger       SQLType = 4
	TypeSmallInt      SQLType = 5
	TypeFloat         SQLType = 6
	TypeReal          SQLType = 7
	TypeDouble        SQLType = 8
	TypeVarchar       SQLType = 12
	TypeBoolean       SQLType = 16
	TypeDate          SQLType = 91
	TypeTime          SQLType = 92
	TypeTimestamp     SQLType = 93
	TypeLongVarchar   SQLType = -1
	TypeBinary        SQLType = -2
	TypeVarBinary     SQLType = -3
	TypeLongVarBinary SQLType = -4
	TypeBigInt        SQLType = -5
	TypeTinyInt       SQLType = -6
	TypeBit           SQLType = -7
	TypeWChar         SQLType = -8
	TypeWVarchar      SQLType = -9
	TypeWLongVarchar  SQLType = -10
)

var sqlTypeNames = map[SQLType]string{
	TypeNull:          "NULL",
	TypeChar:          "CHAR",
	TypeNumeric:       "NUMERIC",
	TypeDecimal:       "DECIMAL",
	TypeInteger:       "INTEGER",
	TypeSmallInt:      "SMALLINT",
	TypeFloat:         "FLOAT",
	TypeReal:          "REAL",
	TypeDouble:        "DOUBLE",
	TypeVarchar:       "VARCHAR",
	TypeBoolean:       "BOOLEAN",
	TypeDate:          "DATE",
	TypeTime:          "TIME",
	TypeTimestamp:     "TIMESTAMP",
	TypeLongVarchar:   "LONG VARCHAR",
	TypeBinary:        "BINARY",
	TypeVarBinary:     "VARBINARY",
	TypeLongVarBinary: "LONG VARBINARY",
	TypeBigInt:        "BIGINT",
	TypeTinyInt:       "TINYINT",
	TypeBit:           "BIT",
	TypeWChar:         "NCHAR",
	TypeWVarchar:      "NVARCHAR",
	TypeWLongVarchar:  "LONG NVARCHAR",
}

func (t SQLType) String() string {
	if name, ok := sqlTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("SQLTYPE(%d)", int(t))
}

// IsLong reports whether values of t are of unbounded length and are
// fetched in segments.
func (t SQLType) IsLong() bool {
	switch t {
	case TypeLongVarchar, TypeLongVarBinary, TypeWLongVarchar:
		return true
	}
	return false
}

// IsTemporal reports whether t is a date, time or timestamp type.
func (t SQLType) IsTemporal() bool {
	return t == TypeDate || t == TypeTime || t == TypeTimestamp
}

// CType is the client-side transfer type of a buffer, using ODBC numbering.
type CType int16

const (
	CChar      CType = 1
	CLong      CType = 4
	CShort     CType = 5
	CDouble    CType = 8
	CDate      CType = 91
	CTime      CType = 92
	CTimestamp CType = 93
	CBinary    CType = -2
	CBit       CType = -7
	CWChar     CType = -8
	CSBigInt   CType = -25
	CTinyInt   CType = -6
)

// Width returns the fixed byte width of a transfer type, or 0 for
// variable-length types.
func (c CType) Width() int {
	switch c {
	case CLong:
		return 4
	case CShort:
		return 2
	case CDouble, CSBigInt:
		return 8
	case CBit, CTinyInt:
		return 1
	case CDate, CTime:
		return dateSize
	case CTimestamp:
		return timestampSize
	}
	return 0
}

// TerminatorWidth returns the number of bytes a driver appends after
// character data of this transfer type.
func (c CType) TerminatorWidth() int {
	switch c {
	case CChar:
		return 1
	case CWChar:
		return 2
	}
	return 0
}

// TypeCode is the coarse classification reported in result descriptions.
type TypeCode int

const (
	CodeUnknown TypeCode = iota
	CodeString
	CodeBinary
	CodeNumber
	CodeDatetime
	CodeRowID
	CodeUnicode
)

func (c TypeCode) String() string {
	switch c {
	case CodeString:
		return "STRING"
	case CodeBinary:
		return "BINARY"
	case CodeNumber:
		return "NUMBER"
	case CodeDatetime:
		return "DATETIME"
	case CodeRowID:
		return "ROWID"
	case CodeUnicode:
		return "UNICODE"
	}
	return "UNKNOWN"
}

// TypeCodeOf classifies a SQL type.
func TypeCodeOf(t SQLType) TypeCode {
	switch t {
	case TypeChar, TypeVarchar, TypeLongVarchar:
		return CodeString
	case TypeWChar, TypeWVarchar, TypeWLongVarchar:
		return CodeUnicode
	case TypeBinary, TypeVarBinary, TypeLongVarBinary:
		return CodeBinary
	case TypeDate, TypeTime, TypeTimestamp:
		return CodeDatetime
	case TypeNumeric, TypeDecimal, TypeInteger, TypeSmallInt, TypeTinyInt,
		TypeBigInt, TypeFloat, TypeReal, TypeDouble, TypeBit, TypeBoolean:
		return CodeNumber
	}
	return CodeUnknown
}

// Sizes of the CLI temporal structs.
const (
	dateSize      = 6
	timestampSize = 16
)

// PutDate encodes the CLI date struct into b, which must hold 6 bytes.
func PutDate(b []byte, year, month, day int) {
	binary.NativeEndian.PutUint16(b[0:], uint16(int16(year)))
	binary.NativeEndian.PutUint16(b[2:], uint16(month))
	binary.NativeEndian.PutUint16(b[4:], uint16(day))
}

// DateFromBytes decodes a CLI date struct.
func DateFromBytes(b []byte) (year, month, day int) {
	year = int(int16(binary.NativeEndian.Uint16(b[0:])))
	month = int(binary.NativeEndian.Uint16(b[2:]))
	day = int(binary.NativeEndian.Uint16(b[4:]))
	return
}

// PutTime encodes the CLI time struct into b, which must hold 6 bytes.
func PutTime(b []byte, hour, minute, second int) {
	binary.NativeEndian.PutUint16(b[0:], uint16(hour))
	binary.NativeEndian.PutUint16(b[2:], uint16(minute))
	binary.NativeEndian.PutUint16(b[4:], uint16(second))
}

// TimeFromBytes decodes a CLI time struct.
func TimeFromBytes(b []byte) (hour, minute, second int) {
	hour = int(binary.NativeEndian.Uint16(b[0:]))
	minute = int(binary.NativeEndian.Uint16(b[2:]))
	second = int(binary.NativeEndian.Uint16(b[4:]))
	return
}

// PutTimestamp encodes t into the 16 byte CLI timestamp struct. The
// fraction field carries nanoseconds.
func PutTimestamp(b []byte, t time.Time) {
	PutDate(b[0:6], t.Year(), int(t.Month()), t.Day())
	PutTime(b[6:12], t.Hour(), t.Minute(), t.Second())
	binary.NativeEndian.PutUint32(b[12:], uint32(t.Nanosecond()))
}

// TimestampFromBytes decodes a CLI timestamp struct as a UTC time.
func TimestampFromBytes(b []byte) time.Time {
	year, month, day := DateFromBytes(b[0:6])
	hour, minute, second := TimeFromBytes(b[6:12])
	frac := binary.NativeEndian.Uint32(b[12:])
	return time.Date(year, time.Month(month), day, hour, minute, second, int(frac), time.UTC)
}
