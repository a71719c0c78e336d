// Package sqlcli provides the data-marshalling core of a SQL call-level interface.
package sqlcli

import (
	"database/sql/driver"
	"io"
	"reflect"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"
)

// Rows represents database rows returned from a query.
type Rows struct {
	conn        *Connection
	stmt        *Statement
	columnNames []string
	ownsStmt    bool
	closed      int32
}

func newRows(conn *Connection, stmt *Statement, owns bool) *Rows {
	r := &Rows{
		conn:     conn,
		stmt:     stmt,
		ownsStmt: owns,
	}
	cols := stmt.Columns()
	r.columnNames = make([]string, len(cols))
	for i, d := range cols {
		r.columnNames[i] = d.Name
	}
	return r
}

// Columns returns the column names.
func (r *Rows) Columns() []string {
	return r.columnNames
}

// Close releases the result set. Rows of a prepared statement cancel the
// pending result; other rows close their statement.
func (r *Rows) Close() error {
	if !atomic.CompareAndSwapInt32(&r.closed, 0, 1) {
		return nil
	}

	r.conn.mu.Lock()
	defer r.conn.mu.Unlock()

	if r.ownsStmt {
		return r.stmt.Close()
	}
	return r.stmt.Cancel()
}

// Next fetches the next row into dest.
func (r *Rows) Next(dest []driver.Value) error {
	if atomic.LoadInt32(&r.closed) != 0 {
		return io.EOF
	}
	if !r.stmt.HasResultSet() {
		return io.EOF
	}

	r.conn.mu.Lock()
	defer r.conn.mu.Unlock()

	if err := r.stmt.FetchRow(); err != nil {
		return err
	}
	row, err := r.stmt.Row()
	if err != nil {
		return err
	}
	for i := range dest {
		if i >= len(row) {
			break
		}
		// decimal.Decimal is not a driver.Value; its text form scans into
		// strings, floats and *decimal.Decimal alike.
		if d, ok := row[i].(decimal.Decimal); ok {
			dest[i] = d.String()
			continue
		}
		dest[i] = row[i]
	}
	return nil
}

// ColumnTypeDatabaseTypeName returns the SQL type name of a column.
func (r *Rows) ColumnTypeDatabaseTypeName(index int) string {
	return r.stmt.Columns()[index].SQLType.String()
}

// ColumnTypeNullable reports whether a column may hold NULL.
func (r *Rows) ColumnTypeNullable(index int) (nullable, ok bool) {
	switch r.stmt.Columns()[index].Nullable {
	case NoNulls:
		return false, true
	case Nullable:
		return true, true
	}
	return true, false
}

// ColumnTypeLength returns the display size of variable length columns.
func (r *Rows) ColumnTypeLength(index int) (length int64, ok bool) {
	d := r.stmt.Columns()[index]
	switch TypeCodeOf(d.SQLType) {
	case CodeString, CodeUnicode, CodeBinary:
		if d.DisplaySize < 0 {
			return 1<<63 - 1, true
		}
		return d.DisplaySize, true
	}
	return 0, false
}

// ColumnTypePrecisionScale returns precision and scale of decimal columns.
func (r *Rows) ColumnTypePrecisionScale(index int) (precision, scale int64, ok bool) {
	d := r.stmt.Columns()[index]
	if d.SQLType == TypeDecimal || d.SQLType == TypeNumeric {
		return int64(d.Precision), int64(d.Scale), true
	}
	return 0, 0, false
}

var (
	scanTypeInt64   = reflect.TypeOf(int64(0))
	scanTypeFloat64 = reflect.TypeOf(float64(0))
	scanTypeBool    = reflect.TypeOf(false)
	scanTypeString  = reflect.TypeOf("")
	scanTypeBytes   = reflect.TypeOf([]byte(nil))
	scanTypeTime    = reflect.TypeOf(time.Time{})
	scanTypeAny     = reflect.TypeOf((*any)(nil)).Elem()
)

// ColumnTypeScanType returns the Go type Next produces for a column.
func (r *Rows) ColumnTypeScanType(index int) reflect.Type {
	d := r.stmt.Columns()[index]
	switch d.CType {
	case CLong, CShort, CTinyInt, CSBigInt:
		return scanTypeInt64
	case CDouble:
		return scanTypeFloat64
	case CBit:
		return scanTypeBool
	case CTimestamp, CDate, CTime:
		return scanTypeTime
	case CBinary:
		return scanTypeBytes
	case CChar, CWChar:
		return scanTypeString
	}
	return scanTypeAny
}

// Result represents the result of a query execution.
type Result struct {
	rowsAffected int64
}

// LastInsertId is not available through the CLI.
func (r *Result) LastInsertId() (int64, error) {
	return 0, NewError(ErrNotSupported, "LastInsertId is not supported")
}

// RowsAffected returns the number of rows affected by the query.
func (r *Result) RowsAffected() (int64, error) {
	return r.rowsAffected, nil
}
