// Package sqlcli provides the data-marshalling core of a SQL call-level interface.
package sqlcli

import (
	"encoding/binary"
	"io"
	"math"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// maxDisplaySize is the sentinel drivers report for unbounded columns.
const maxDisplaySize = math.MaxInt32

// temporalPrecision is the precision reported for date and time columns,
// which are all transferred as timestamps.
const temporalPrecision = 26

// Column is one entry of a result description.
type Column struct {
	Name         string
	TypeCode     TypeCode
	SQLType      SQLType
	DisplaySize  int64
	InternalSize int
	Precision    int
	Scale        int
	Nullable     bool
}

// describeColumns reads the metadata of every result column and sizes the
// column buffers.
func (s *Statement) describeColumns() error {
	for i, d := range s.columns {
		meta, st := s.handle.DescribeCol(i)
		if !st.Succeeded() {
			return s.statusError(st, s.query)
		}
		s.collectWarnings(st)

		display, st := s.handle.ColAttribute(i, AttrDisplaySize)
		if !st.Succeeded() {
			return s.statusError(st, s.query)
		}
		octet, st := s.handle.ColAttribute(i, AttrOctetLength)
		if !st.Succeeded() {
			return s.statusError(st, s.query)
		}

		d.Name = meta.Name
		d.SQLType = meta.SQLType
		d.Precision = meta.Size
		d.Scale = meta.Scale
		d.Nullable = meta.Nullable
		d.DisplaySize = display
		if display >= maxDisplaySize {
			d.DisplaySize = -1
		}
		sizeColumn(d, int(octet))

		d.data.Release()
		if d.InternalSize > 0 {
			d.data.Alloc(d.InternalSize)
		}

		s.log.Debug("column described",
			zap.Int("index", i),
			zap.String("name", d.Name),
			zap.Stringer("type", d.SQLType),
			zap.Int("precision", d.Precision),
			zap.Int("scale", d.Scale),
			zap.Int("buffer", d.InternalSize))
	}
	return nil
}

// sizeColumn picks the transfer type and buffer size of a described column.
func sizeColumn(d *Descriptor, octet int) {
	if octet < 0 || octet >= maxDisplaySize {
		octet = 0
	}

	switch d.SQLType {
	case TypeDate, TypeTime, TypeTimestamp:
		d.CType = CTimestamp
		d.InternalSize = timestampSize
		d.Precision = temporalPrecision
	case TypeDecimal, TypeNumeric:
		d.CType = CChar
		d.InternalSize = d.Precision + 4
	case TypeLongVarchar:
		d.CType = CChar
		d.InternalSize = 0
		d.Precision = 0
	case TypeWLongVarchar:
		d.CType = CWChar
		d.InternalSize = 0
		d.Precision = 0
	case TypeLongVarBinary:
		d.CType = CBinary
		d.InternalSize = 0
		d.Precision = 0
	case TypeChar, TypeVarchar:
		d.CType = CChar
		d.InternalSize = octet + 1
	case TypeWChar, TypeWVarchar:
		d.CType = CWChar
		d.InternalSize = octet + 2
	case TypeBinary, TypeVarBinary:
		d.CType = CBinary
		d.InternalSize = octet
	case TypeInteger:
		d.CType = CLong
		d.InternalSize = max(octet, CLong.Width())
	case TypeSmallInt:
		d.CType = CShort
		d.InternalSize = max(octet, CShort.Width())
	case TypeTinyInt:
		d.CType = CTinyInt
		d.InternalSize = max(octet, CTinyInt.Width())
	case TypeBigInt:
		d.CType = CSBigInt
		d.InternalSize = max(octet, CSBigInt.Width())
	case TypeReal, TypeFloat, TypeDouble:
		d.CType = CDouble
		d.InternalSize = max(octet, CDouble.Width())
	case TypeBit, TypeBoolean:
		d.CType = CBit
		d.InternalSize = max(octet, CBit.Width())
	default:
		d.CType = CChar
		d.InternalSize = max(octet, 1) + 1
	}
}

// fetchRow advances the cursor and fills every column descriptor. It
// returns io.EOF once the result set is exhausted.
func (s *Statement) fetchRow() error {
	if !s.hasResultSet {
		return NewError(ErrInterface, "no result set to fetch from")
	}
	if s.fetchDone {
		return io.EOF
	}

	s.FreeRowData()
	s.rowValid = false

	st := s.handle.Fetch()
	if st == NoData {
		s.fetchDone = true
		s.state = StateFetchExhausted
		s.log.Debug("result set exhausted", zap.Int64("rows", s.rowCount))
		return io.EOF
	}
	if !st.Succeeded() {
		return s.statusError(st, s.query)
	}
	s.collectWarnings(st)

	for i, d := range s.columns {
		var err error
		if d.SQLType.IsLong() {
			err = s.getLong(i, d)
		} else {
			err = s.getBounded(i, d)
		}
		if err != nil {
			s.log.Warn("row decode failed", zap.Int("column", i), zap.Error(err))
			return err
		}
	}

	if s.rowCount < 1 {
		s.rowCount = 1
	} else {
		s.rowCount++
	}
	s.rowValid = true
	return nil
}

// getBounded retrieves a fixed width or pre-sized value with a single call.
func (s *Statement) getBounded(i int, d *Descriptor) error {
	d.data.Grow(d.InternalSize)
	d.data.SetLen(0)
	buf := d.data.Spare()[:d.InternalSize]

	ind, st := s.handle.GetData(i, d.CType, buf)
	if !st.Succeeded() {
		return s.decodeError(st, i)
	}
	s.collectWarnings(st)

	if ind == NullData {
		d.setNull()
		return nil
	}

	d.IsNull = false
	n := d.CType.Width()
	if n == 0 {
		room := len(buf) - d.CType.TerminatorWidth()
		switch {
		case ind == NoTotal || ind > int64(room):
			n = room
		case ind < 0:
			return errorf(ErrData, "column %d: invalid length indicator %d", i, ind)
		default:
			n = int(ind)
		}
	}
	d.data.SetLen(n)
	d.Indicator = ind
	return nil
}

// getLong retrieves an unbounded value segment by segment. Every call asks
// for one segment of payload plus room for the terminator, so each segment
// carries exactly segmentSize bytes for narrow text, wide text and binary.
func (s *Statement) getLong(i int, d *Descriptor) error {
	seg := s.outputSegmentSize(i)
	term := d.CType.TerminatorWidth()
	if d.CType == CWChar && seg%2 != 0 {
		seg++
	}

	d.IsNull = false
	d.data.Alloc(seg + term)

	calls := 0
	for {
		buf := d.data.Spare()[:seg+term]
		ind, st := s.handle.GetData(i, d.CType, buf)
		calls++
		if st == NoData {
			break
		}
		if !st.Succeeded() {
			d.data.Release()
			return s.decodeError(st, i)
		}
		if ind == NullData {
			d.data.Release()
			d.setNull()
			return nil
		}

		switch {
		case ind == NoTotal:
			if st != SuccessWithInfo {
				d.data.Release()
				return errorf(ErrData, "column %d: unknown length on final segment", i)
			}
			d.data.Extend(seg)
		case ind < 0:
			d.data.Release()
			return errorf(ErrData, "column %d: invalid length indicator %d", i, ind)
		case ind > int64(seg):
			d.data.Extend(seg)
		default:
			d.data.Extend(int(ind))
		}

		if ind >= 0 && ind <= int64(seg) {
			break
		}
		if ind == NoTotal {
			d.data.Grow(d.data.Len() + seg + term)
			continue
		}
		// The rest is known: size for it in whole segments so later calls
		// still see seg+term of spare room and the buffer moves once.
		rest := int(ind) - seg
		d.data.Grow(d.data.Len() + (rest+seg-1)/seg*seg + term)
	}

	d.Indicator = int64(d.data.Len())
	s.log.Debug("long value fetched",
		zap.Int("column", i),
		zap.Int("bytes", d.data.Len()),
		zap.Int("segment", seg),
		zap.Int("calls", calls),
		zap.Int("reallocs", d.data.reallocs))
	return nil
}

// outputSegmentSize returns the long-value chunk size for column col. When
// an output column is set only that column uses the override.
func (s *Statement) outputSegmentSize(col int) int {
	if s.outputColumn >= 0 {
		if col == s.outputColumn && s.outputSize > 0 {
			return s.outputSize
		}
		return s.cfg.outputSegment
	}
	if s.outputSize > 0 {
		return s.outputSize
	}
	return s.cfg.outputSegment
}

func (s *Statement) decodeError(st Status, col int) error {
	err := s.statusError(st, s.query)
	if e, ok := err.(*Error); ok {
		if e.Type == ErrInternal && st != InvalidHandle {
			e.Type = ErrData
		}
		e.Message = "column " + strconv.Itoa(col) + ": " + e.Message
	}
	return err
}

// Value converts the current content of d into a Go value: nil, int64,
// float64, bool, string, []byte, time.Time or decimal.Decimal.
func (d *Descriptor) Value() (any, error) {
	if d.IsNull {
		return nil, nil
	}

	b := d.data.Bytes()
	need := func(n int) error {
		if len(b) < n {
			return errorf(ErrData, "column %q: %d bytes, need %d", d.Name, len(b), n)
		}
		return nil
	}

	switch d.CType {
	case CLong:
		if err := need(4); err != nil {
			return nil, err
		}
		return int64(int32(binary.NativeEndian.Uint32(b))), nil
	case CShort:
		if err := need(2); err != nil {
			return nil, err
		}
		return int64(int16(binary.NativeEndian.Uint16(b))), nil
	case CTinyInt:
		if err := need(1); err != nil {
			return nil, err
		}
		return int64(int8(b[0])), nil
	case CSBigInt:
		if err := need(8); err != nil {
			return nil, err
		}
		return int64(binary.NativeEndian.Uint64(b)), nil
	case CDouble:
		if err := need(8); err != nil {
			return nil, err
		}
		return math.Float64frombits(binary.NativeEndian.Uint64(b)), nil
	case CBit:
		if err := need(1); err != nil {
			return nil, err
		}
		return b[0] != 0, nil
	case CTimestamp:
		if err := need(timestampSize); err != nil {
			return nil, err
		}
		ts := TimestampFromBytes(b)
		switch d.SQLType {
		case TypeDate:
			return time.Date(ts.Year(), ts.Month(), ts.Day(), 0, 0, 0, 0, time.UTC), nil
		case TypeTime:
			return time.Date(0, time.January, 1, ts.Hour(), ts.Minute(), ts.Second(), ts.Nanosecond(), time.UTC), nil
		}
		return ts, nil
	case CDate:
		if err := need(dateSize); err != nil {
			return nil, err
		}
		y, m, dd := DateFromBytes(b)
		return time.Date(y, time.Month(m), dd, 0, 0, 0, 0, time.UTC), nil
	case CTime:
		if err := need(dateSize); err != nil {
			return nil, err
		}
		h, m, sec := TimeFromBytes(b)
		return time.Date(0, time.January, 1, h, m, sec, 0, time.UTC), nil
	case CWChar:
		str, err := decodeWide(b)
		if err != nil {
			return nil, errorf(ErrData, "column %q: invalid wide text: %v", d.Name, err)
		}
		return str, nil
	case CBinary:
		out := make([]byte, len(b))
		copy(out, b)
		return out, nil
	}

	if d.SQLType == TypeDecimal || d.SQLType == TypeNumeric {
		dec, err := decimal.NewFromString(string(b))
		if err != nil {
			return nil, errorf(ErrData, "column %q: invalid decimal %q", d.Name, b)
		}
		return dec, nil
	}
	return string(b), nil
}

// describe returns the result description entry for d.
func (d *Descriptor) describe() Column {
	return Column{
		Name:         d.Name,
		TypeCode:     TypeCodeOf(d.SQLType),
		SQLType:      d.SQLType,
		DisplaySize:  d.DisplaySize,
		InternalSize: d.InternalSize,
		Precision:    d.Precision,
		Scale:        d.Scale,
		Nullable:     d.Nullable != NoNulls,
	}
}
