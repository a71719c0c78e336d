// Package sqlitecli is a call-level interface over SQLite.
package sqlitecli

import (
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"golang.org/x/text/encoding/unicode"

	sqlcli "github.com/semihalev/go-sqlcli"
)

var wide = unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM)

// timeFormats are tried in order when a stored value is text.
var timeFormats = []string{
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02T15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	"15:04:05.999999999",
	"15:04:05",
}

// stmt is a statement handle. Result sets are read completely at execute
// time and served row by row.
type stmt struct {
	conn     *Conn
	query    string
	prepared *sqlx.Stmt
	freed    bool

	params   map[int]sqlcli.ParamBinding
	pending  []int
	current  int
	deferred map[int][]byte

	cols     []column
	rows     [][]any
	pos      int
	offsets  []int
	cells    [][]byte
	rowCount int64

	diags []sqlcli.DiagRecord
}

func newStmt(c *Conn) *stmt {
	return &stmt{
		conn:     c,
		params:   make(map[int]sqlcli.ParamBinding),
		current:  -1,
		rowCount: -1,
	}
}

func (s *stmt) fail(state, format string, args ...any) sqlcli.Status {
	s.diags = append(s.diags, sqlcli.DiagRecord{SQLState: state, Message: fmt.Sprintf(format, args...)})
	return sqlcli.Failed
}

func (s *stmt) failErr(err error) sqlcli.Status {
	s.diags = append(s.diags, diagnose(err))
	return sqlcli.Failed
}

func (s *stmt) info(state, message string) {
	s.diags = append(s.diags, sqlcli.DiagRecord{SQLState: state, Message: message})
}

// begin starts a new call: it clears diagnostics and rejects freed handles.
func (s *stmt) begin() bool {
	s.diags = nil
	return !s.freed
}

func (s *stmt) Prepare(query string) sqlcli.Status {
	if !s.begin() {
		return sqlcli.InvalidHandle
	}
	s.conn.count(func(st *Stats) { st.Prepares++ })
	s.closeCursor()
	if s.prepared != nil {
		s.prepared.Close()
		s.prepared = nil
	}

	p, err := s.conn.db.Preparex(query)
	if err != nil {
		return s.failErr(err)
	}
	s.prepared = p
	s.query = query
	return sqlcli.Success
}

func (s *stmt) ExecDirect(query string) sqlcli.Status {
	if !s.begin() {
		return sqlcli.InvalidHandle
	}
	s.conn.count(func(st *Stats) { st.ExecDirects++ })
	if s.prepared != nil {
		s.prepared.Close()
		s.prepared = nil
	}
	s.query = query
	return s.start()
}

func (s *stmt) Execute() sqlcli.Status {
	if !s.begin() {
		return sqlcli.InvalidHandle
	}
	s.conn.count(func(st *Stats) { st.Executes++ })
	if s.prepared == nil {
		return s.fail("HY010", "function sequence error: statement is not prepared")
	}
	return s.start()
}

// start runs the statement, or asks for deferred data first.
func (s *stmt) start() sqlcli.Status {
	s.closeCursor()
	if strings.HasPrefix(strings.TrimSpace(s.query), "{") {
		return s.fail("IM001", "procedure calls are not supported")
	}

	s.pending = s.pending[:0]
	s.deferred = make(map[int][]byte)
	for i, p := range s.params {
		if p.Deferred() {
			s.pending = append(s.pending, i)
		}
	}
	sort.Ints(s.pending)
	s.current = -1
	if len(s.pending) > 0 {
		return sqlcli.NeedData
	}
	return s.run()
}

func (s *stmt) BindParameter(index int, p sqlcli.ParamBinding) sqlcli.Status {
	if !s.begin() {
		return sqlcli.InvalidHandle
	}
	if index < 0 {
		return s.fail("07009", "invalid parameter index %d", index)
	}
	s.params[index] = p
	return sqlcli.Success
}

func (s *stmt) ParamData() (int, sqlcli.Status) {
	if !s.begin() {
		return 0, sqlcli.InvalidHandle
	}
	if s.current >= 0 {
		s.pending = s.pending[1:]
		s.current = -1
	}
	if len(s.pending) > 0 {
		s.current = s.pending[0]
		return s.current, sqlcli.NeedData
	}
	if s.deferred == nil {
		return 0, s.fail("HY010", "function sequence error: no data requested")
	}
	return 0, s.run()
}

func (s *stmt) PutData(p []byte) sqlcli.Status {
	if !s.begin() {
		return sqlcli.InvalidHandle
	}
	s.conn.count(func(st *Stats) {
		st.PutDataCalls++
		st.PutDataLengths = append(st.PutDataLengths, len(p))
	})
	if s.current < 0 {
		return s.fail("HY010", "function sequence error: no parameter awaiting data")
	}
	buf := s.deferred[s.current]
	if buf == nil {
		buf = []byte{}
	}
	s.deferred[s.current] = append(buf, p...)
	return sqlcli.Success
}

// run executes the statement with the bound arguments.
func (s *stmt) run() sqlcli.Status {
	defer func() { s.deferred = nil }()

	args := make([]any, len(s.params))
	for i := range args {
		p, ok := s.params[i]
		if !ok {
			return s.fail("07002", "parameter %d is not bound", i)
		}
		v, err := paramArg(p, s.deferred[i])
		if err != nil {
			return s.fail("HY105", "parameter %d: %v", i, err)
		}
		args[i] = v
	}

	if returnsRows(s.query) {
		var (
			rows *sqlx.Rows
			err  error
		)
		if s.prepared != nil {
			rows, err = s.prepared.Queryx(args...)
		} else {
			rows, err = s.conn.db.Queryx(s.query, args...)
		}
		if err != nil {
			return s.failErr(err)
		}
		defer rows.Close()
		return s.load(rows)
	}

	var (
		res sql.Result
		err error
	)
	if s.prepared != nil {
		res, err = s.prepared.Exec(args...)
	} else {
		res, err = s.conn.db.Exec(s.query, args...)
	}
	if err != nil {
		return s.failErr(err)
	}
	if n, err := res.RowsAffected(); err == nil {
		s.rowCount = n
	}
	return sqlcli.Success
}

// load buffers a result set.
func (s *stmt) load(rows *sqlx.Rows) sqlcli.Status {
	types, err := rows.ColumnTypes()
	if err != nil {
		return s.failErr(err)
	}
	for rows.Next() {
		row, err := rows.SliceScan()
		if err != nil {
			return s.failErr(err)
		}
		s.rows = append(s.rows, row)
	}
	if err := rows.Err(); err != nil {
		return s.failErr(err)
	}

	s.cols = make([]column, len(types))
	for i, ct := range types {
		c := parseDeclType(ct.DatabaseTypeName())
		if c.sqlType == sqlcli.TypeNull {
			c = inferColumn(c, s.rows, i)
		}
		c.name = ct.Name()
		s.cols[i] = c
	}
	s.rowCount = -1
	s.pos = -1
	return sqlcli.Success
}

func returnsRows(query string) bool {
	q := strings.TrimLeft(query, " \t\r\n(")
	end := strings.IndexFunc(q, func(r rune) bool {
		return r == ' ' || r == '\t' || r == '\r' || r == '\n' || r == '('
	})
	if end >= 0 {
		q = q[:end]
	}
	switch strings.ToUpper(q) {
	case "SELECT", "WITH", "VALUES", "PRAGMA", "EXPLAIN":
		return true
	}
	return strings.Contains(strings.ToUpper(query), " RETURNING ")
}

func (s *stmt) closeCursor() {
	s.cols = nil
	s.rows = nil
	s.pos = -1
	s.offsets = nil
	s.cells = nil
	s.rowCount = -1
}

func (s *stmt) NumResultCols() (int, sqlcli.Status) {
	if !s.begin() {
		return 0, sqlcli.InvalidHandle
	}
	return len(s.cols), sqlcli.Success
}

func (s *stmt) DescribeCol(index int) (sqlcli.ColumnMeta, sqlcli.Status) {
	if !s.begin() {
		return sqlcli.ColumnMeta{}, sqlcli.InvalidHandle
	}
	if index < 0 || index >= len(s.cols) {
		return sqlcli.ColumnMeta{}, s.fail("07009", "invalid column index %d", index)
	}
	c := s.cols[index]
	return sqlcli.ColumnMeta{
		Name:     c.name,
		SQLType:  c.sqlType,
		Size:     c.size,
		Scale:    c.scale,
		Nullable: sqlcli.NullableUnknown,
	}, sqlcli.Success
}

func (s *stmt) ColAttribute(index int, attr sqlcli.Attribute) (int64, sqlcli.Status) {
	if !s.begin() {
		return 0, sqlcli.InvalidHandle
	}
	if index < 0 || index >= len(s.cols) {
		return 0, s.fail("07009", "invalid column index %d", index)
	}
	display, octet := s.cols[index].attributes()
	switch attr {
	case sqlcli.AttrDisplaySize:
		return display, sqlcli.Success
	case sqlcli.AttrOctetLength:
		return octet, sqlcli.Success
	}
	return 0, s.fail("HY091", "invalid descriptor field %d", attr)
}

func (s *stmt) Fetch() sqlcli.Status {
	if !s.begin() {
		return sqlcli.InvalidHandle
	}
	s.conn.count(func(st *Stats) { st.Fetches++ })
	if s.cols == nil {
		return s.fail("24000", "invalid cursor state")
	}
	s.pos++
	if s.pos >= len(s.rows) {
		s.pos = len(s.rows)
		return sqlcli.NoData
	}
	s.offsets = make([]int, len(s.cols))
	s.cells = make([][]byte, len(s.cols))
	return sqlcli.Success
}

func (s *stmt) GetData(index int, ct sqlcli.CType, buf []byte) (int64, sqlcli.Status) {
	if !s.begin() {
		return 0, sqlcli.InvalidHandle
	}
	s.conn.count(func(st *Stats) {
		st.GetDataCalls++
		if st.GetDataByColumn == nil {
			st.GetDataByColumn = make(map[int]int)
		}
		st.GetDataByColumn[index]++
	})
	if s.pos < 0 || s.pos >= len(s.rows) {
		return 0, s.fail("24000", "invalid cursor state")
	}
	if index < 0 || index >= len(s.cols) {
		return 0, s.fail("07009", "invalid column index %d", index)
	}
	if s.offsets[index] < 0 {
		return 0, sqlcli.NoData
	}

	v := s.rows[s.pos][index]
	if v == nil {
		s.offsets[index] = -1
		return sqlcli.NullData, sqlcli.Success
	}

	if w := ct.Width(); w > 0 {
		if len(buf) < w {
			return 0, s.fail("HY090", "buffer of %d bytes is too small for %d", len(buf), w)
		}
		if err := putFixed(buf, ct, s.cols[index], v); err != nil {
			return 0, s.fail("22018", "column %d: %v", index, err)
		}
		s.offsets[index] = -1
		return int64(w), sqlcli.Success
	}

	if s.cells[index] == nil {
		cell, err := cellBytes(ct, s.cols[index], v)
		if err != nil {
			return 0, s.fail("22018", "column %d: %v", index, err)
		}
		s.cells[index] = cell
	}
	cell := s.cells[index]
	off := s.offsets[index]
	remaining := len(cell) - off

	term := ct.TerminatorWidth()
	room := len(buf) - term
	if room < 0 {
		room = 0
	}
	if ct == sqlcli.CWChar {
		room -= room % 2
	}
	n := min(remaining, room)
	copy(buf, cell[off:off+n])
	for i := 0; i < term && n+i < len(buf); i++ {
		buf[n+i] = 0
	}

	if remaining > room {
		s.offsets[index] = off + n
		s.info("01004", "string data, right truncated")
		return int64(remaining), sqlcli.SuccessWithInfo
	}
	s.offsets[index] = -1
	return int64(remaining), sqlcli.Success
}

func (s *stmt) RowCount() (int64, sqlcli.Status) {
	if !s.begin() {
		return 0, sqlcli.InvalidHandle
	}
	return s.rowCount, sqlcli.Success
}

func (s *stmt) Cancel() sqlcli.Status {
	if !s.begin() {
		return sqlcli.InvalidHandle
	}
	s.conn.count(func(st *Stats) { st.Cancels++ })
	s.closeCursor()
	s.pending = nil
	s.current = -1
	s.deferred = nil
	return sqlcli.Success
}

func (s *stmt) Free() sqlcli.Status {
	if s.freed {
		return sqlcli.InvalidHandle
	}
	s.conn.count(func(st *Stats) { st.Frees++ })
	s.closeCursor()
	if s.prepared != nil {
		s.prepared.Close()
		s.prepared = nil
	}
	s.params = nil
	s.freed = true
	return sqlcli.Success
}

func (s *stmt) Diagnostics() []sqlcli.DiagRecord {
	return s.diags
}

// paramArg decodes a bound parameter into a database/sql argument.
func paramArg(p sqlcli.ParamBinding, deferred []byte) (any, error) {
	if p.Indicator == sqlcli.NullData {
		return nil, nil
	}

	data := p.Data
	if p.Deferred() {
		data = deferred
		if data == nil {
			data = []byte{}
		}
	} else if p.Indicator >= 0 && int(p.Indicator) <= len(data) {
		data = data[:p.Indicator]
	}

	need := func(n int) error {
		if len(data) < n {
			return fmt.Errorf("%d bytes, need %d", len(data), n)
		}
		return nil
	}

	switch p.CType {
	case sqlcli.CLong:
		if err := need(4); err != nil {
			return nil, err
		}
		return int64(int32(binary.NativeEndian.Uint32(data))), nil
	case sqlcli.CSBigInt:
		if err := need(8); err != nil {
			return nil, err
		}
		return int64(binary.NativeEndian.Uint64(data)), nil
	case sqlcli.CShort:
		if err := need(2); err != nil {
			return nil, err
		}
		return int64(int16(binary.NativeEndian.Uint16(data))), nil
	case sqlcli.CTinyInt, sqlcli.CBit:
		if err := need(1); err != nil {
			return nil, err
		}
		return int64(int8(data[0])), nil
	case sqlcli.CDouble:
		if err := need(8); err != nil {
			return nil, err
		}
		return math.Float64frombits(binary.NativeEndian.Uint64(data)), nil
	case sqlcli.CChar:
		return string(data), nil
	case sqlcli.CWChar:
		out, err := wide.NewDecoder().Bytes(data)
		if err != nil {
			return nil, err
		}
		return string(out), nil
	case sqlcli.CBinary:
		return append([]byte{}, data...), nil
	case sqlcli.CDate:
		if err := need(6); err != nil {
			return nil, err
		}
		y, m, d := sqlcli.DateFromBytes(data)
		return fmt.Sprintf("%04d-%02d-%02d", y, m, d), nil
	case sqlcli.CTime:
		if err := need(6); err != nil {
			return nil, err
		}
		h, m, sec := sqlcli.TimeFromBytes(data)
		return fmt.Sprintf("%02d:%02d:%02d", h, m, sec), nil
	case sqlcli.CTimestamp:
		if err := need(16); err != nil {
			return nil, err
		}
		return sqlcli.TimestampFromBytes(data), nil
	}
	return nil, fmt.Errorf("unsupported transfer type %d", p.CType)
}

// putFixed writes a fixed width transfer of v into buf.
func putFixed(buf []byte, ct sqlcli.CType, c column, v any) error {
	switch ct {
	case sqlcli.CLong, sqlcli.CShort, sqlcli.CTinyInt, sqlcli.CSBigInt, sqlcli.CBit:
		n, err := toInt(v)
		if err != nil {
			return err
		}
		switch ct {
		case sqlcli.CLong:
			if n < math.MinInt32 || n > math.MaxInt32 {
				return fmt.Errorf("value %d out of range for INTEGER", n)
			}
			binary.NativeEndian.PutUint32(buf, uint32(int32(n)))
		case sqlcli.CShort:
			if n < math.MinInt16 || n > math.MaxInt16 {
				return fmt.Errorf("value %d out of range for SMALLINT", n)
			}
			binary.NativeEndian.PutUint16(buf, uint16(int16(n)))
		case sqlcli.CTinyInt:
			if n < math.MinInt8 || n > math.MaxInt8 {
				return fmt.Errorf("value %d out of range for TINYINT", n)
			}
			buf[0] = byte(int8(n))
		case sqlcli.CBit:
			buf[0] = 0
			if n != 0 {
				buf[0] = 1
			}
		default:
			binary.NativeEndian.PutUint64(buf, uint64(n))
		}
		return nil
	case sqlcli.CDouble:
		f, err := toFloat(v)
		if err != nil {
			return err
		}
		binary.NativeEndian.PutUint64(buf, math.Float64bits(f))
		return nil
	case sqlcli.CTimestamp, sqlcli.CDate, sqlcli.CTime:
		t, err := toTime(v)
		if err != nil {
			return err
		}
		switch ct {
		case sqlcli.CDate:
			sqlcli.PutDate(buf, t.Year(), int(t.Month()), t.Day())
		case sqlcli.CTime:
			sqlcli.PutTime(buf, t.Hour(), t.Minute(), t.Second())
		default:
			sqlcli.PutTimestamp(buf, t)
		}
		return nil
	}
	return fmt.Errorf("unsupported transfer type %d", ct)
}

// cellBytes renders v in a variable length transfer type.
func cellBytes(ct sqlcli.CType, c column, v any) ([]byte, error) {
	if ct == sqlcli.CBinary {
		switch x := v.(type) {
		case []byte:
			return x, nil
		case string:
			return []byte(x), nil
		}
	}

	text := textOf(c, v)
	if ct == sqlcli.CWChar {
		return wide.NewEncoder().Bytes([]byte(text))
	}
	return []byte(text), nil
}

func textOf(c column, v any) string {
	switch x := v.(type) {
	case string:
		return x
	case []byte:
		return string(x)
	case int64:
		if c.hasScale && c.scale > 0 {
			return strconv.FormatInt(x, 10) + "." + strings.Repeat("0", c.scale)
		}
		return strconv.FormatInt(x, 10)
	case float64:
		if c.hasScale {
			return strconv.FormatFloat(x, 'f', c.scale, 64)
		}
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		if x {
			return "1"
		}
		return "0"
	case time.Time:
		return x.Format("2006-01-02 15:04:05.999999999")
	}
	return fmt.Sprint(v)
}

func toInt(v any) (int64, error) {
	switch x := v.(type) {
	case int64:
		return x, nil
	case float64:
		return int64(x), nil
	case bool:
		if x {
			return 1, nil
		}
		return 0, nil
	case string:
		return strconv.ParseInt(strings.TrimSpace(x), 10, 64)
	case []byte:
		return strconv.ParseInt(strings.TrimSpace(string(x)), 10, 64)
	}
	return 0, fmt.Errorf("cannot convert %T to integer", v)
}

func toFloat(v any) (float64, error) {
	switch x := v.(type) {
	case float64:
		return x, nil
	case int64:
		return float64(x), nil
	case string:
		return strconv.ParseFloat(strings.TrimSpace(x), 64)
	case []byte:
		return strconv.ParseFloat(strings.TrimSpace(string(x)), 64)
	}
	return 0, fmt.Errorf("cannot convert %T to float", v)
}

func toTime(v any) (time.Time, error) {
	switch x := v.(type) {
	case time.Time:
		return x.UTC(), nil
	case string:
		return parseTime(x)
	case []byte:
		return parseTime(string(x))
	case int64:
		return time.Unix(x, 0).UTC(), nil
	}
	return time.Time{}, fmt.Errorf("cannot convert %T to time", v)
}

func parseTime(s string) (time.Time, error) {
	s = strings.TrimSuffix(strings.TrimSpace(s), "Z")
	for _, layout := range timeFormats {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("cannot parse %q as time", s)
}
