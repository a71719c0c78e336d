// Package odbc drives an ODBC driver manager through the sqlcli primitives.
// The driver manager is loaded at runtime with purego, so the package
// builds without CGO.
package odbc

import (
	"errors"
	"fmt"
	"runtime"
	"sync"
	"unsafe"

	sqlcli "github.com/semihalev/go-sqlcli"
)

// DriverName is the database/sql name registered by this package. The
// data source name is an ODBC connection string.
const DriverName = "sqlcli-odbc"

func init() {
	sqlcli.Register(DriverName, func(dsn string) (sqlcli.Conn, error) {
		lib, err := Default()
		if err != nil {
			return nil, err
		}
		return lib.Connect(dsn)
	})
}

// Conn is an ODBC connection.
type Conn struct {
	lib *Library
	env uintptr
	dbc uintptr

	mu     sync.Mutex
	inTx   bool
	closed bool
}

// Connect opens a connection with SQLDriverConnect.
func (l *Library) Connect(connStr string) (*Conn, error) {
	c := &Conn{lib: l}

	if st := call(l.allocHandle, handleEnv, 0, uintptr(unsafe.Pointer(&c.env))); !st.Succeeded() {
		return nil, fmt.Errorf("odbc: allocate environment: %s", st)
	}
	if st := call(l.setEnvAttr, c.env, attrODBCVersion, ovODBC3, 0); !st.Succeeded() {
		err := c.failure("set ODBC version", handleEnv, c.env)
		c.release()
		return nil, err
	}
	if st := call(l.allocHandle, handleDbc, c.env, uintptr(unsafe.Pointer(&c.dbc))); !st.Succeeded() {
		err := c.failure("allocate connection", handleEnv, c.env)
		c.release()
		return nil, err
	}

	in := cstr(connStr)
	var outLen int16
	st := call(l.driverConnect, c.dbc, 0,
		uintptr(unsafe.Pointer(&in[0])), word(nts),
		0, 0, uintptr(unsafe.Pointer(&outLen)),
		driverNoPrompt)
	runtime.KeepAlive(in)
	if !st.Succeeded() {
		err := c.failure("connect", handleDbc, c.dbc)
		c.release()
		return nil, err
	}
	return c, nil
}

func (c *Conn) failure(op string, kind int, handle uintptr) error {
	diags := c.lib.diagnostics(kind, handle)
	if len(diags) == 0 {
		return fmt.Errorf("odbc: %s failed", op)
	}
	d := diags[0]
	return sqlcli.NewError(sqlcli.ErrInterface, fmt.Sprintf("%s: [%s] %s", op, d.SQLState, d.Message))
}

func (c *Conn) release() {
	if c.dbc != 0 {
		call(c.lib.freeHandle, handleDbc, c.dbc)
		c.dbc = 0
	}
	if c.env != 0 {
		call(c.lib.freeHandle, handleEnv, c.env)
		c.env = 0
	}
}

// AllocStatement allocates a statement handle.
func (c *Conn) AllocStatement() (sqlcli.StmtHandle, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, errors.New("odbc: connection is closed")
	}

	s := &stmt{lib: c.lib}
	if st := call(c.lib.allocHandle, handleStmt, c.dbc, uintptr(unsafe.Pointer(&s.h))); !st.Succeeded() {
		return nil, c.failure("allocate statement", handleDbc, c.dbc)
	}
	return s, nil
}

// Close disconnects and frees the connection handles.
func (c *Conn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true

	var err error
	if st := call(c.lib.disconnect, c.dbc); !st.Succeeded() {
		err = c.failure("disconnect", handleDbc, c.dbc)
	}
	c.release()
	return err
}

// Begin turns autocommit off until the transaction ends.
func (c *Conn) Begin() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.inTx {
		return sqlcli.NewError(sqlcli.ErrInterface, "transaction already in progress")
	}
	if err := c.autocommit(false); err != nil {
		return err
	}
	c.inTx = true
	return nil
}

// Commit commits the transaction and restores autocommit.
func (c *Conn) Commit() error {
	return c.end(commit)
}

// Rollback rolls back the transaction and restores autocommit.
func (c *Conn) Rollback() error {
	return c.end(rollback)
}

func (c *Conn) end(completion uintptr) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.inTx {
		return sqlcli.NewError(sqlcli.ErrInterface, "no transaction in progress")
	}
	c.inTx = false

	var err error
	if st := call(c.lib.endTran, handleDbc, c.dbc, completion); !st.Succeeded() {
		err = c.failure("end transaction", handleDbc, c.dbc)
	}
	if aerr := c.autocommit(true); err == nil {
		err = aerr
	}
	return err
}

func (c *Conn) autocommit(on bool) error {
	v := uintptr(autocommitOff)
	if on {
		v = autocommitOn
	}
	if st := call(c.lib.setConnectAttr, c.dbc, attrAutocommit, v, word(isUInteger)); !st.Succeeded() {
		return c.failure("set autocommit", handleDbc, c.dbc)
	}
	return nil
}
