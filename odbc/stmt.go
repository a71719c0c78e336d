// Package odbc drives an ODBC driver manager through the sqlcli primitives.
package odbc

import (
	"runtime"
	"unsafe"

	sqlcli "github.com/semihalev/go-sqlcli"
)

const maxColumnName = 256

// stmt is an ODBC statement handle. Indexes are 0-based on the sqlcli side
// and 1-based on the ODBC side.
type stmt struct {
	lib *Library
	h   uintptr

	// Bound buffers and indicators stay pinned until the next parameter
	// set or Free, because the driver reads them during Execute.
	pinner runtime.Pinner

	diags []sqlcli.DiagRecord
}

// check records diagnostics for statuses that carry them.
func (s *stmt) check(st sqlcli.Status) sqlcli.Status {
	switch st {
	case sqlcli.SuccessWithInfo, sqlcli.Failed:
		s.diags = s.lib.diagnostics(handleStmt, s.h)
	default:
		s.diags = nil
	}
	return st
}

func (s *stmt) text(fn uintptr, query string) sqlcli.Status {
	q := cstr(query)
	st := call(fn, s.h, uintptr(unsafe.Pointer(&q[0])), word(nts))
	runtime.KeepAlive(q)
	return s.check(st)
}

func (s *stmt) Prepare(query string) sqlcli.Status {
	return s.text(s.lib.prepare, query)
}

func (s *stmt) ExecDirect(query string) sqlcli.Status {
	return s.text(s.lib.execDirect, query)
}

func (s *stmt) Execute() sqlcli.Status {
	return s.check(call(s.lib.execute, s.h))
}

func (s *stmt) BindParameter(index int, p sqlcli.ParamBinding) sqlcli.Status {
	if index == 0 {
		// A new parameter set starts at index 0; release the previous one.
		s.unbind()
	}
	ind := new(int)
	*ind = int(p.Indicator)
	s.pinner.Pin(ind)

	sqlType, ctype := p.SQLType, p.CType
	if sqlType == sqlcli.TypeNull {
		sqlType = sqlcli.TypeVarchar
	}

	var (
		value  uintptr
		buflen int
	)
	switch {
	case p.Deferred():
		// The token handed back by SQLParamData.
		value = uintptr(index + 1)
	case len(p.Data) > 0:
		s.pinner.Pin(&p.Data[0])
		value = uintptr(unsafe.Pointer(&p.Data[0]))
		buflen = len(p.Data)
	default:
		b := []byte{0}
		s.pinner.Pin(&b[0])
		value = uintptr(unsafe.Pointer(&b[0]))
	}

	size := max(p.ColumnSize, 1)
	st := call(s.lib.bindParameter, s.h,
		uintptr(index+1), paramInput,
		word(int(ctype)), word(int(sqlType)),
		uintptr(size), uintptr(p.Scale),
		value, uintptr(buflen),
		uintptr(unsafe.Pointer(ind)))
	return s.check(st)
}

func (s *stmt) unbind() {
	s.pinner.Unpin()
}

func (s *stmt) ParamData() (int, sqlcli.Status) {
	var token uintptr
	st := s.check(call(s.lib.paramData, s.h, uintptr(unsafe.Pointer(&token))))
	if st == sqlcli.NeedData {
		return int(token) - 1, st
	}
	return 0, st
}

func (s *stmt) PutData(p []byte) sqlcli.Status {
	var ptr uintptr
	if len(p) > 0 {
		ptr = uintptr(unsafe.Pointer(&p[0]))
	} else {
		var zero byte
		ptr = uintptr(unsafe.Pointer(&zero))
	}
	st := call(s.lib.putData, s.h, ptr, uintptr(len(p)))
	runtime.KeepAlive(p)
	return s.check(st)
}

func (s *stmt) NumResultCols() (int, sqlcli.Status) {
	var n int16
	st := s.check(call(s.lib.numResultCols, s.h, uintptr(unsafe.Pointer(&n))))
	return int(n), st
}

func (s *stmt) DescribeCol(index int) (sqlcli.ColumnMeta, sqlcli.Status) {
	var (
		name     [maxColumnName]byte
		nameLen  int16
		dataType int16
		size     uint
		scale    int16
		nullable int16
	)
	st := s.check(call(s.lib.describeCol, s.h, uintptr(index+1),
		uintptr(unsafe.Pointer(&name[0])), uintptr(len(name)),
		uintptr(unsafe.Pointer(&nameLen)),
		uintptr(unsafe.Pointer(&dataType)),
		uintptr(unsafe.Pointer(&size)),
		uintptr(unsafe.Pointer(&scale)),
		uintptr(unsafe.Pointer(&nullable))))
	if !st.Succeeded() {
		return sqlcli.ColumnMeta{}, st
	}
	return sqlcli.ColumnMeta{
		Name:     cString(name[:min(int(nameLen), len(name))]),
		SQLType:  sqlcli.SQLType(dataType),
		Size:     int(size),
		Scale:    int(scale),
		Nullable: sqlcli.Nullability(nullable),
	}, st
}

func (s *stmt) ColAttribute(index int, attr sqlcli.Attribute) (int64, sqlcli.Status) {
	var n int
	st := s.check(call(s.lib.colAttribute, s.h, uintptr(index+1), uintptr(attr),
		0, 0, 0, uintptr(unsafe.Pointer(&n))))
	return int64(n), st
}

func (s *stmt) Fetch() sqlcli.Status {
	return s.check(call(s.lib.fetch, s.h))
}

func (s *stmt) GetData(index int, ct sqlcli.CType, buf []byte) (int64, sqlcli.Status) {
	if len(buf) == 0 {
		buf = make([]byte, 1)
	}
	var ind int
	st := call(s.lib.getData, s.h, uintptr(index+1), word(int(ct)),
		uintptr(unsafe.Pointer(&buf[0])), uintptr(len(buf)),
		uintptr(unsafe.Pointer(&ind)))
	runtime.KeepAlive(buf)
	return int64(ind), s.check(st)
}

func (s *stmt) RowCount() (int64, sqlcli.Status) {
	var n int
	st := s.check(call(s.lib.rowCount, s.h, uintptr(unsafe.Pointer(&n))))
	return int64(n), st
}

// Cancel stops pending data-at-execution and closes any open cursor.
func (s *stmt) Cancel() sqlcli.Status {
	if st := s.check(call(s.lib.cancel, s.h)); !st.Succeeded() {
		return st
	}
	return s.check(call(s.lib.freeStmt, s.h, freeStmtClose))
}

func (s *stmt) Free() sqlcli.Status {
	st := call(s.lib.freeHandle, handleStmt, s.h)
	s.unbind()
	s.h = 0
	return st
}

func (s *stmt) Diagnostics() []sqlcli.DiagRecord {
	return s.diags
}
