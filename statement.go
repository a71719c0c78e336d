// Package sqlcli provides the data-marshalling core of a SQL call-level interface.
package sqlcli

import (
	"io"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// State is the execution state of a Statement.
type State int

const (
	StateIdle State = iota
	StatePrepared
	StateExecuting
	StateHasResultSet
	StateNoResultSet
	StateFetchExhausted
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePrepared:
		return "prepared"
	case StateExecuting:
		return "executing"
	case StateHasResultSet:
		return "has result set"
	case StateNoResultSet:
		return "no result set"
	case StateFetchExhausted:
		return "fetch exhausted"
	}
	return "unknown"
}

// queryChangedWarning is recorded when a prepared statement is executed
// with different text and falls back to direct execution.
const queryChangedWarning = "query has changed, reverting to direct execution"

// Statement is a reusable execution context over one CLI statement handle.
// It drives prepare, bind, execute and fetch, and owns the parameter and
// column descriptors. A Statement must be used by one goroutine at a time.
type Statement struct {
	conn   Conn
	handle StmtHandle
	cfg    config
	log    *zap.Logger
	id     uuid.UUID

	query         string
	preparedQuery string
	prepared      bool
	isProcCall    bool

	hasResultSet bool
	fetchDone    bool
	rowValid     bool
	rowCount     int64
	rowNumber    int64

	params  []*Descriptor
	columns []*Descriptor

	inputSizes   []int
	outputSize   int
	outputColumn int

	warnings []Warning
	state    State
	closed   bool
}

// NewStatement creates a statement on conn. The CLI handle is allocated on
// first execution.
func NewStatement(conn Conn, opts ...Option) *Statement {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	id := uuid.New()
	return &Statement{
		conn:         conn,
		cfg:          cfg,
		log:          cfg.logger.With(zap.String("stmt", id.String())),
		id:           id,
		rowCount:     -1,
		outputColumn: -1,
	}
}

// ID returns the identifier used in log entries for this statement.
func (s *Statement) ID() string { return s.id.String() }

// State returns the current execution state.
func (s *Statement) State() State { return s.state }

// Query returns the text of the most recent execution.
func (s *Statement) Query() string { return s.query }

// RowCount returns the number of rows affected by the last statement, or
// the number of rows fetched so far for a result set. It is -1 when unknown.
func (s *Statement) RowCount() int64 { return s.rowCount }

// RowNumber returns the 0-based index of the next row in the result set.
func (s *Statement) RowNumber() int64 { return s.rowNumber }

// HasResultSet reports whether the last execution produced columns.
func (s *Statement) HasResultSet() bool { return s.hasResultSet }

// Warnings returns the warnings recorded by the last execution and the
// fetches that followed it.
func (s *Statement) Warnings() []Warning { return s.warnings }

// Columns returns the column descriptors of the current result set.
func (s *Statement) Columns() []*Descriptor { return s.columns }

// Params returns the parameter descriptors kept after a procedure call.
func (s *Statement) Params() []*Descriptor { return s.params }

// Description returns one entry per result column, or nil when the last
// execution produced no result set.
func (s *Statement) Description() []Column {
	if !s.hasResultSet {
		return nil
	}
	cols := make([]Column, len(s.columns))
	for i, d := range s.columns {
		cols[i] = d.describe()
	}
	return cols
}

// SetPrepared turns prepare mode on or off for later executions.
func (s *Statement) SetPrepared(enabled bool) {
	if s.cfg.prepared == enabled {
		return
	}
	s.cfg.prepared = enabled
	s.prepared = false
	s.preparedQuery = ""
}

// SetInputSizes sets per-parameter push segment sizes, by position. Zero
// keeps the default for that position.
func (s *Statement) SetInputSizes(sizes []int) error {
	for i, n := range sizes {
		if n < 0 {
			return errorf(ErrInterface, "input size %d for parameter %d is negative", n, i)
		}
	}
	s.inputSizes = append(s.inputSizes[:0], sizes...)
	return nil
}

// SetOutputSize sets the long-value fetch segment size for every column.
// Zero restores the default.
func (s *Statement) SetOutputSize(size int) error {
	if size < 0 {
		return errorf(ErrInterface, "output size %d is negative", size)
	}
	s.outputSize = size
	s.outputColumn = -1
	return nil
}

// SetOutputSizeForColumn sets the long-value fetch segment size for one
// 0-based column; every other column uses the default.
func (s *Statement) SetOutputSizeForColumn(size, column int) error {
	if size < 0 {
		return errorf(ErrInterface, "output size %d is negative", size)
	}
	if column < 0 {
		return errorf(ErrInterface, "output column %d is negative", column)
	}
	s.outputSize = size
	s.outputColumn = column
	return nil
}

// Execute runs query with the given parameters. A nil params slice binds
// nothing.
func (s *Statement) Execute(query string, params ...Value) error {
	return s.execute(query, params, false)
}

// ExecuteArgs converts args with ValueOf and runs query.
func (s *Statement) ExecuteArgs(query string, args ...any) error {
	var params []Value
	if len(args) > 0 {
		var err error
		if params, err = ValuesOf(args...); err != nil {
			return err
		}
	}
	return s.execute(query, params, false)
}

// CallProc calls a database procedure with positional parameters and
// returns the parameters. Procedure calls are not available in prepare
// mode.
func (s *Statement) CallProc(name string, params ...Value) ([]Value, error) {
	if s.cfg.prepared {
		return nil, NewError(ErrInterface, "procedure calls are not allowed in prepared mode")
	}
	if name == "" {
		return nil, NewError(ErrInterface, "procedure name is empty")
	}
	if err := s.execute(procCallText(name, len(params)), params, true); err != nil {
		return nil, err
	}
	return params, nil
}

func procCallText(name string, n int) string {
	var b strings.Builder
	b.WriteString("{ call ")
	b.WriteString(name)
	if n > 0 {
		b.WriteString("( ")
		for i := 0; i < n; i++ {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString("?")
		}
		b.WriteString(" )")
	}
	b.WriteString(" }")
	return b.String()
}

// ExecuteMany runs query once per parameter set. Statements that return
// rows are rejected. RowCount afterwards is the total number of affected
// rows, or the number of sets when the driver cannot tell.
func (s *Statement) ExecuteMany(query string, sets [][]Value) error {
	if len(sets) == 0 {
		return NewError(ErrInterface, "executemany requires parameters")
	}

	var total int64
	known := true
	for i, params := range sets {
		if err := s.execute(query, params, false); err != nil {
			s.log.Warn("executemany aborted", zap.Int("set", i), zap.Error(err))
			return err
		}
		if s.hasResultSet {
			if err := s.Cancel(); err != nil {
				s.log.Warn("cannot cancel executemany result set", zap.Error(err))
			}
			return NewError(ErrInterface, "result sets not allowed for executemany")
		}
		if s.rowCount < 0 {
			known = false
		} else {
			total += s.rowCount
		}
	}

	if known {
		s.rowCount = total
	} else {
		s.rowCount = int64(len(sets))
	}
	return nil
}

func (s *Statement) execute(query string, params []Value, isProc bool) error {
	if s.closed {
		return NewError(ErrInterface, "statement is closed")
	}
	if query == "" {
		return NewError(ErrInterface, "query is empty")
	}
	if params != nil && len(params) == 0 {
		return NewError(ErrInterface, "parameter sequence is empty")
	}

	s.warnings = nil
	s.rowValid = false

	if err := s.discardResultSet(); err != nil {
		return err
	}
	s.isProcCall = isProc
	s.query = query

	usePrepared := s.cfg.prepared && !isProc
	if usePrepared && s.prepared && s.preparedQuery != query {
		s.addWarning(Warning{Message: queryChangedWarning})
		s.log.Debug("prepared text replaced",
			zap.String("prepared", s.preparedQuery),
			zap.String("query", query))
		s.prepared = false
		s.preparedQuery = ""
		usePrepared = false
	}

	if usePrepared {
		if err := s.ensureHandle(); err != nil {
			return err
		}
		if !s.prepared {
			st := s.handle.Prepare(query)
			if !st.Succeeded() {
				return s.failExecute(s.statusError(st, query))
			}
			s.collectWarnings(st)
			s.prepared = true
			s.preparedQuery = query
			s.state = StatePrepared
			s.log.Debug("statement prepared", zap.String("query", query))
		}
	} else if err := s.resetHandle(); err != nil {
		return err
	}

	s.state = StateExecuting
	if params != nil {
		if err := s.bindParameters(params); err != nil {
			return s.failExecute(err)
		}
	} else {
		s.FreeDescriptors(ParameterKind)
	}

	var st Status
	if usePrepared {
		st = s.handle.Execute()
	} else {
		st = s.handle.ExecDirect(query)
	}
	for st == NeedData {
		index, pst := s.handle.ParamData()
		if pst != NeedData {
			st = pst
			break
		}
		if err := s.pushParameter(index); err != nil {
			return s.failExecute(err)
		}
	}
	if !st.Succeeded() && st != NoData {
		return s.failExecute(s.statusError(st, query))
	}
	s.collectWarnings(st)

	if !isProc {
		s.FreeDescriptors(ParameterKind)
	}

	n, st := s.handle.NumResultCols()
	if !st.Succeeded() {
		return s.failExecute(s.statusError(st, query))
	}

	if n > 0 {
		if err := s.AllocateDescriptors(n, ColumnKind); err != nil {
			return s.failExecute(err)
		}
		if err := s.describeColumns(); err != nil {
			return s.failExecute(err)
		}
		s.hasResultSet = true
		s.state = StateHasResultSet
	} else {
		s.rowCount = -1
		if rc, st := s.handle.RowCount(); st.Succeeded() {
			s.rowCount = rc
		}
		s.state = StateNoResultSet
	}

	s.log.Debug("statement executed",
		zap.String("query", query),
		zap.Bool("prepared", usePrepared),
		zap.Int("params", len(params)),
		zap.Int("columns", n),
		zap.Int64("rows", s.rowCount))
	return nil
}

// discardResultSet cancels a pending result set and drops its columns.
func (s *Statement) discardResultSet() error {
	if s.hasResultSet && !s.fetchDone && s.handle != nil {
		st := s.handle.Cancel()
		if !st.Succeeded() {
			return s.statusError(st, s.query)
		}
		s.log.Debug("pending result set cancelled")
	}
	s.hasResultSet = false
	s.fetchDone = false
	s.rowNumber = 0
	return s.FreeDescriptors(ColumnKind)
}

// failExecute leaves the statement needing re-execution. The prepared
// text is forgotten so the next call prepares again. A handle that failed
// mid execution may still be waiting for parameter data, so it is
// cancelled and dropped and the next call allocates a fresh one.
func (s *Statement) failExecute(err error) error {
	if s.state == StateExecuting && s.handle != nil {
		if st := s.handle.Cancel(); !st.Succeeded() {
			s.log.Warn("cancel after failed execution", zap.Error(s.statusError(st, s.query)))
		}
		if st := s.handle.Free(); !st.Succeeded() {
			s.log.Warn("free after failed execution", zap.Stringer("status", st))
		}
		s.handle = nil
		s.FreeDescriptors(ParameterKind)
	}
	s.prepared = false
	s.preparedQuery = ""
	s.state = StateIdle
	s.log.Debug("execution failed", zap.String("query", s.query), zap.Error(err))
	return err
}

func (s *Statement) ensureHandle() error {
	if s.handle != nil {
		return nil
	}
	h, err := s.conn.AllocStatement()
	if err != nil {
		return &Error{Type: ErrInternal, Message: "cannot allocate statement handle: " + err.Error()}
	}
	s.handle = h
	return nil
}

// resetHandle replaces the handle with a fresh one.
func (s *Statement) resetHandle() error {
	if s.handle != nil {
		s.handle.Free()
		s.handle = nil
	}
	s.prepared = false
	s.preparedQuery = ""
	return s.ensureHandle()
}

// FetchRow advances to the next row and decodes it into the column
// descriptors. It returns io.EOF when no rows remain. A decode error
// invalidates only the current row.
func (s *Statement) FetchRow() error {
	if s.closed {
		return NewError(ErrInterface, "statement is closed")
	}
	if err := s.fetchRow(); err != nil {
		return err
	}
	s.rowNumber++
	return nil
}

// Row converts the current row into Go values.
func (s *Statement) Row() ([]any, error) {
	if !s.rowValid {
		return nil, NewError(ErrInterface, "no current row")
	}
	row := make([]any, len(s.columns))
	for i, d := range s.columns {
		v, err := d.Value()
		if err != nil {
			return nil, err
		}
		row[i] = v
	}
	return row, nil
}

// FetchOne fetches and converts the next row. It returns io.EOF when no
// rows remain.
func (s *Statement) FetchOne() ([]any, error) {
	if err := s.FetchRow(); err != nil {
		return nil, err
	}
	return s.Row()
}

// FetchMany returns up to n rows. Fewer rows are returned at the end of
// the result set.
func (s *Statement) FetchMany(n int) ([][]any, error) {
	if n <= 0 {
		n = 1
	}
	rows := make([][]any, 0, n)
	for len(rows) < n {
		row, err := s.FetchOne()
		if err == io.EOF {
			break
		}
		if err != nil {
			return rows, err
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// FetchAll returns every remaining row.
func (s *Statement) FetchAll() ([][]any, error) {
	var rows [][]any
	for {
		row, err := s.FetchOne()
		if err == io.EOF {
			return rows, nil
		}
		if err != nil {
			return rows, err
		}
		rows = append(rows, row)
	}
}

// Cancel abandons a pending result set.
func (s *Statement) Cancel() error {
	if s.handle == nil || !s.hasResultSet || s.fetchDone {
		return nil
	}
	st := s.handle.Cancel()
	if !st.Succeeded() {
		return s.statusError(st, s.query)
	}
	s.fetchDone = true
	s.rowValid = false
	s.state = StateFetchExhausted
	return nil
}

// Close cancels a pending result set, releases every descriptor and frees
// the handle. Closing twice is a no-op.
func (s *Statement) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true

	var err error
	if s.handle != nil && s.hasResultSet && !s.fetchDone {
		if st := s.handle.Cancel(); !st.Succeeded() {
			err = s.statusError(st, s.query)
		}
	}
	s.hasResultSet = false
	s.rowValid = false
	s.FreeDescriptors(ColumnKind)
	s.FreeDescriptors(ParameterKind)

	if s.handle != nil {
		if st := s.handle.Free(); !st.Succeeded() && err == nil {
			err = s.statusError(st, s.query)
		}
		s.handle = nil
	}
	s.state = StateIdle
	s.log.Debug("statement closed")
	return err
}

func (s *Statement) statusError(st Status, query string) error {
	var diags []DiagRecord
	if s.handle != nil {
		diags = s.handle.Diagnostics()
	}
	return mapStatus(st, diags, query)
}

// collectWarnings records the diagnostics of a SuccessWithInfo call.
func (s *Statement) collectWarnings(st Status) {
	if st != SuccessWithInfo || s.handle == nil {
		return
	}
	ws := warningsFrom(s.handle.Diagnostics())
	if len(ws) == 0 {
		ws = []Warning{{Message: "operation completed with information"}}
	}
	for _, w := range ws {
		s.addWarning(w)
	}
}

func (s *Statement) addWarning(w Warning) {
	s.warnings = append(s.warnings, w)
	s.log.Warn("statement warning",
		zap.String("sqlstate", w.SQLState),
		zap.Int32("native", w.Native),
		zap.String("message", w.Message))
}
