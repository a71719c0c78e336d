package sqlcli

import (
	"encoding/binary"
	"errors"
	"sort"
)

// fakeColumn scripts one result column.
type fakeColumn struct {
	meta    ColumnMeta
	display int64
	octet   int64
}

// fakeResult scripts a result set. A nil cell is NULL; every other cell
// holds the bytes GetData hands out for that column.
type fakeResult struct {
	cols []fakeColumn
	rows [][][]byte
}

// fakeConn is a scripted CLI connection.
type fakeConn struct {
	results   map[string]*fakeResult
	rowCounts map[string]int64
	failures  map[string]DiagRecord
	infos     map[string]DiagRecord
	allocErr  error
	noTotal   bool

	putDataFails bool
	cancelFails  bool

	handles []*fakeStmt
	closed  bool
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		results:   make(map[string]*fakeResult),
		rowCounts: make(map[string]int64),
		failures:  make(map[string]DiagRecord),
		infos:     make(map[string]DiagRecord),
	}
}

func (c *fakeConn) AllocStatement() (StmtHandle, error) {
	if c.allocErr != nil {
		return nil, c.allocErr
	}
	s := &fakeStmt{
		conn:     c,
		bound:    make(map[int]ParamBinding),
		putData:  make(map[int][][]byte),
		getData:  make(map[int]int),
		getSizes: make(map[int][]int),
		pos:      -1,
		rowCount: -1,
	}
	c.handles = append(c.handles, s)
	return s, nil
}

func (c *fakeConn) Close() error {
	c.closed = true
	return nil
}

// last returns the most recently allocated handle.
func (c *fakeConn) last() *fakeStmt {
	if len(c.handles) == 0 {
		return nil
	}
	return c.handles[len(c.handles)-1]
}

// count returns how many times name was called across every handle.
func (c *fakeConn) count(name string) int {
	n := 0
	for _, h := range c.handles {
		n += h.count(name)
	}
	return n
}

// fakeStmt records every primitive it receives.
type fakeStmt struct {
	conn  *fakeConn
	calls []string

	query    string
	prepared string
	freed    bool
	needData bool

	bound   map[int]ParamBinding
	pending []int
	current int
	putData map[int][][]byte

	result   *fakeResult
	pos      int
	offsets  []int
	getData  map[int]int
	getSizes map[int][]int
	rowCount int64

	diags []DiagRecord
}

func (s *fakeStmt) record(name string) {
	s.calls = append(s.calls, name)
	s.diags = nil
}

func (s *fakeStmt) count(name string) int {
	n := 0
	for _, c := range s.calls {
		if c == name {
			n++
		}
	}
	return n
}

// sequenceError reports HY010 while a data-at-execution exchange is open.
func (s *fakeStmt) sequenceError() bool {
	if !s.needData {
		return false
	}
	s.diags = []DiagRecord{{SQLState: "HY010", Message: "function sequence error"}}
	return true
}

func (s *fakeStmt) Prepare(query string) Status {
	s.record("Prepare")
	if s.sequenceError() {
		return Failed
	}
	if d, ok := s.conn.failures[query]; ok {
		s.diags = []DiagRecord{d}
		return Failed
	}
	s.prepared = query
	return Success
}

func (s *fakeStmt) ExecDirect(query string) Status {
	s.record("ExecDirect")
	if s.sequenceError() {
		return Failed
	}
	s.query = query
	return s.start()
}

func (s *fakeStmt) Execute() Status {
	s.record("Execute")
	if s.sequenceError() {
		return Failed
	}
	if s.prepared == "" {
		s.diags = []DiagRecord{{SQLState: "HY010", Message: "not prepared"}}
		return Failed
	}
	s.query = s.prepared
	return s.start()
}

func (s *fakeStmt) start() Status {
	s.result = nil
	s.pos = -1
	s.pending = s.pending[:0]
	s.current = -1
	for i, p := range s.bound {
		if p.Deferred() {
			s.pending = append(s.pending, i)
		}
	}
	sort.Ints(s.pending)
	if len(s.pending) > 0 {
		s.needData = true
		return NeedData
	}
	return s.finish()
}

func (s *fakeStmt) finish() Status {
	if d, ok := s.conn.failures[s.query]; ok {
		s.diags = []DiagRecord{d}
		return Failed
	}
	s.result = s.conn.results[s.query]
	s.rowCount = -1
	if n, ok := s.conn.rowCounts[s.query]; ok {
		s.rowCount = n
	}
	if d, ok := s.conn.infos[s.query]; ok {
		s.diags = []DiagRecord{d}
		return SuccessWithInfo
	}
	if s.result == nil && s.rowCount == 0 {
		return NoData
	}
	return Success
}

func (s *fakeStmt) BindParameter(index int, p ParamBinding) Status {
	s.record("BindParameter")
	if index == 0 {
		s.bound = make(map[int]ParamBinding)
	}
	// Descriptor buffers go back to the pool after execution.
	if p.Data != nil {
		p.Data = append([]byte{}, p.Data...)
	}
	s.bound[index] = p
	return Success
}

func (s *fakeStmt) ParamData() (int, Status) {
	s.record("ParamData")
	if s.current >= 0 {
		s.pending = s.pending[1:]
	}
	if len(s.pending) > 0 {
		s.current = s.pending[0]
		return s.current, NeedData
	}
	s.current = -1
	s.needData = false
	return 0, s.finish()
}

func (s *fakeStmt) PutData(p []byte) Status {
	s.record("PutData")
	if s.conn.putDataFails {
		s.diags = []DiagRecord{{SQLState: "HY000", Message: "write failed"}}
		return Failed
	}
	s.putData[s.current] = append(s.putData[s.current], append([]byte{}, p...))
	return Success
}

func (s *fakeStmt) NumResultCols() (int, Status) {
	s.record("NumResultCols")
	if s.result == nil {
		return 0, Success
	}
	return len(s.result.cols), Success
}

func (s *fakeStmt) DescribeCol(index int) (ColumnMeta, Status) {
	s.record("DescribeCol")
	return s.result.cols[index].meta, Success
}

func (s *fakeStmt) ColAttribute(index int, attr Attribute) (int64, Status) {
	s.record("ColAttribute")
	c := s.result.cols[index]
	if attr == AttrDisplaySize {
		return c.display, Success
	}
	return c.octet, Success
}

func (s *fakeStmt) Fetch() Status {
	s.record("Fetch")
	if s.result == nil {
		s.diags = []DiagRecord{{SQLState: "24000", Message: "invalid cursor state"}}
		return Failed
	}
	s.pos++
	if s.pos >= len(s.result.rows) {
		return NoData
	}
	s.offsets = make([]int, len(s.result.cols))
	return Success
}

func (s *fakeStmt) GetData(index int, ct CType, buf []byte) (int64, Status) {
	s.record("GetData")
	s.getData[index]++
	s.getSizes[index] = append(s.getSizes[index], len(buf))

	if s.offsets[index] < 0 {
		return 0, NoData
	}
	cell := s.result.rows[s.pos][index]
	if cell == nil {
		s.offsets[index] = -1
		return NullData, Success
	}
	if w := ct.Width(); w > 0 {
		copy(buf, cell)
		s.offsets[index] = -1
		return int64(w), Success
	}

	off := s.offsets[index]
	remaining := len(cell) - off
	term := ct.TerminatorWidth()
	room := max(len(buf)-term, 0)
	if ct == CWChar {
		room -= room % 2
	}
	n := min(remaining, room)
	copy(buf, cell[off:off+n])
	if remaining > room {
		s.offsets[index] = off + n
		s.diags = []DiagRecord{{SQLState: "01004", Message: "string data, right truncated"}}
		if s.conn.noTotal {
			return NoTotal, SuccessWithInfo
		}
		return int64(remaining), SuccessWithInfo
	}
	s.offsets[index] = -1
	return int64(remaining), Success
}

func (s *fakeStmt) RowCount() (int64, Status) {
	s.record("RowCount")
	return s.rowCount, Success
}

func (s *fakeStmt) Cancel() Status {
	s.record("Cancel")
	if s.conn.cancelFails {
		s.diags = []DiagRecord{{SQLState: "HY018", Message: "server declined cancel request"}}
		return Failed
	}
	s.needData = false
	s.result = nil
	return Success
}

func (s *fakeStmt) Free() Status {
	s.record("Free")
	if s.freed {
		return InvalidHandle
	}
	s.freed = true
	return Success
}

func (s *fakeStmt) Diagnostics() []DiagRecord { return s.diags }

var errAlloc = errors.New("out of handles")

// longColumn scripts a LONG VARCHAR column.
func longColumn(name string) fakeColumn {
	return fakeColumn{
		meta:    ColumnMeta{Name: name, SQLType: TypeLongVarchar, Size: maxDisplaySize, Nullable: Nullable},
		display: maxDisplaySize,
		octet:   maxDisplaySize,
	}
}

// intColumn scripts an INTEGER column.
func intColumn(name string) fakeColumn {
	return fakeColumn{
		meta:    ColumnMeta{Name: name, SQLType: TypeInteger, Size: 10, Nullable: NoNulls},
		display: 11,
		octet:   4,
	}
}

// int32Cell encodes v as GetData delivers a CLong.
func int32Cell(v int32) []byte {
	b := make([]byte, 4)
	binary.NativeEndian.PutUint32(b, uint32(v))
	return b
}

// filled returns n bytes of a repeating pattern.
func filled(n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = byte('a' + i%26)
	}
	return b
}
