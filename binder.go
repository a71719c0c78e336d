// Package sqlcli provides the data-marshalling core of a SQL call-level interface.
package sqlcli

import (
	"encoding/binary"
	"math"
	"strings"
	"unsafe"

	"go.uber.org/zap"
	"golang.org/x/text/encoding/unicode"
)

// wideEncoding is the CLI wide character form: UTF-16 without a byte
// order mark, in the little-endian order of every supported platform.
var wideEncoding = unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM)

// encodeWide converts s to UTF-16 code units.
func encodeWide(s string) ([]byte, error) {
	return wideEncoding.NewEncoder().Bytes([]byte(s))
}

// decodeWide converts UTF-16 code units to a string.
func decodeWide(b []byte) (string, error) {
	out, err := wideEncoding.NewDecoder().Bytes(b)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// bindParameters converts values into a new parameter descriptor array and
// binds every descriptor to the handle. The previous array is released only
// once the new one is complete. If a value cannot be converted, the
// descriptors filled so far are installed so the next reset frees them.
func (s *Statement) bindParameters(values []Value) error {
	if len(values) == 0 {
		return NewError(ErrInterface, "parameter sequence is empty")
	}

	descs, err := s.newDescriptors(len(values), ParameterKind)
	if err != nil {
		return err
	}

	for i, v := range values {
		if err := s.fillParameter(descs[i], v); err != nil {
			s.FreeDescriptors(ParameterKind)
			s.params = descs
			s.log.Warn("parameter binding aborted", zap.Int("index", i), zap.Error(err))
			return err
		}
	}

	s.FreeDescriptors(ParameterKind)
	s.params = descs

	for i, d := range descs {
		st := s.handle.BindParameter(i, d.binding())
		if !st.Succeeded() {
			return s.statusError(st, s.query)
		}
		s.collectWarnings(st)
		s.log.Debug("parameter bound",
			zap.Int("index", i),
			zap.Stringer("type", d.SQLType),
			zap.Int("length", d.Len()),
			zap.Bool("null", d.IsNull),
			zap.Bool("deferred", d.deferred()))
	}
	return nil
}

// fillParameter encodes one value into d.
func (s *Statement) fillParameter(d *Descriptor, v Value) error {
	d.SQLType = v.sqlType()
	d.Nullable = Nullable

	switch x := v.(type) {
	case Int32:
		d.CType = CLong
		d.Precision = 10
		d.data.Alloc(4)
		d.data.SetLen(4)
		binary.NativeEndian.PutUint32(d.data.Bytes(), uint32(int32(x)))
	case Int64:
		d.CType = CSBigInt
		d.Precision = 19
		d.data.Alloc(8)
		d.data.SetLen(8)
		binary.NativeEndian.PutUint64(d.data.Bytes(), uint64(int64(x)))
	case Float64:
		d.CType = CDouble
		d.Precision = 15
		d.data.Alloc(8)
		d.data.SetLen(8)
		binary.NativeEndian.PutUint64(d.data.Bytes(), math.Float64bits(float64(x)))
	case Text:
		d.CType = CChar
		d.data.Borrow(unsafe.Slice(unsafe.StringData(string(x)), len(x)))
		d.Precision = len(x)
	case WideText:
		wide, err := encodeWide(string(x))
		if err != nil {
			return errorf(ErrInterface, "cannot encode wide text: %v", err)
		}
		d.CType = CWChar
		d.data.Borrow(wide)
		d.Precision = len(wide) / 2
	case Binary:
		d.CType = CBinary
		d.data.Borrow(x)
		d.Precision = len(x)
		d.Indicator = LenDataAtExec(len(x))
		return nil
	case Null:
		d.CType = CChar
		d.setNull()
		return nil
	case Date:
		d.CType = CDate
		d.Precision = 10
		d.data.Alloc(dateSize)
		d.data.SetLen(dateSize)
		PutDate(d.data.Bytes(), x.Year, int(x.Month), x.Day)
	case TimeOfDay:
		d.CType = CTime
		d.Precision = 8
		d.data.Alloc(dateSize)
		d.data.SetLen(dateSize)
		PutTime(d.data.Bytes(), x.Hour, x.Minute, x.Second)
	case Timestamp:
		d.CType = CTimestamp
		d.Precision = 29
		d.Scale = 9
		d.data.Alloc(timestampSize)
		d.data.SetLen(timestampSize)
		PutTimestamp(d.data.Bytes(), x.Time)
	case Decimal:
		text := formatDecimal(x)
		d.CType = CChar
		d.data.Borrow([]byte(text))
		d.Precision = len(text)
		d.Scale = decimalScale(text)
	default:
		return errorf(ErrInterface, "unsupported parameter value %T", v)
	}

	d.Indicator = int64(d.data.Len())
	return nil
}

// formatDecimal renders d keeping its declared number of fraction digits.
func formatDecimal(d Decimal) string {
	if exp := d.Exponent(); exp < 0 {
		return d.StringFixed(-exp)
	}
	return d.String()
}

// decimalScale counts the digits after the first '.' or ','.
func decimalScale(text string) int {
	i := strings.IndexAny(text, ".,")
	if i < 0 {
		return 0
	}
	return len(text) - i - 1
}

// binding describes d to BindParameter.
func (d *Descriptor) binding() ParamBinding {
	p := ParamBinding{
		SQLType:    d.SQLType,
		CType:      d.CType,
		ColumnSize: d.Precision,
		Scale:      d.Scale,
		Indicator:  d.Indicator,
	}
	if p.ColumnSize < 1 {
		p.ColumnSize = 1
	}
	if !d.IsNull && !d.deferred() {
		p.Data = d.data.Bytes()
	}
	return p
}

func (d *Descriptor) deferred() bool {
	_, ok := DeferredLength(d.Indicator)
	return ok && !d.IsNull
}

// chunkIterator walks a deferred value in segments. A zero-length value
// yields exactly one empty segment.
type chunkIterator struct {
	data    []byte
	size    int
	off     int
	emitted bool
}

func newChunkIterator(data []byte, size int) *chunkIterator {
	if size <= 0 {
		size = DefaultInputSegmentSize
	}
	return &chunkIterator{data: data, size: size}
}

// Total returns the number of bytes the iterator delivers.
func (it *chunkIterator) Total() int { return len(it.data) }

// Next returns the next segment, or false when the value is exhausted.
func (it *chunkIterator) Next() ([]byte, bool) {
	if it.off >= len(it.data) && it.emitted {
		return nil, false
	}
	end := it.off + it.size
	if end > len(it.data) {
		end = len(it.data)
	}
	seg := it.data[it.off:end]
	it.off = end
	it.emitted = true
	return seg, true
}

// pushParameter streams the deferred parameter at index through PutData.
func (s *Statement) pushParameter(index int) error {
	if index < 0 || index >= len(s.params) || !s.params[index].deferred() {
		return errorf(ErrInternal, "driver requested data for parameter %d which is not deferred", index)
	}

	d := s.params[index]
	it := newChunkIterator(d.data.Bytes(), s.inputSegmentSize(index))
	calls := 0
	for seg, ok := it.Next(); ok; seg, ok = it.Next() {
		st := s.handle.PutData(seg)
		calls++
		if !st.Succeeded() {
			return s.statusError(st, s.query)
		}
		s.collectWarnings(st)
	}
	s.log.Debug("deferred parameter sent",
		zap.Int("index", index),
		zap.Int("bytes", it.Total()),
		zap.Int("segments", calls))
	return nil
}

// inputSegmentSize returns the push chunk size for the parameter at index.
func (s *Statement) inputSegmentSize(index int) int {
	if index >= 0 && index < len(s.inputSizes) && s.inputSizes[index] > 0 {
		return s.inputSizes[index]
	}
	return s.cfg.inputSegment
}
