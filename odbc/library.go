// Package odbc drives an ODBC driver manager through the sqlcli primitives.
package odbc

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"sync"
	"unsafe"

	"github.com/ebitengine/purego"

	sqlcli "github.com/semihalev/go-sqlcli"
)

// LibraryEnv names the environment variable that overrides the driver
// manager search.
const LibraryEnv = "SQLCLI_ODBC_LIBRARY"

// Handle types.
const (
	handleEnv  = 1
	handleDbc  = 2
	handleStmt = 3
)

// Attribute and option values used by this package.
const (
	attrODBCVersion  = 200
	ovODBC3          = 3
	attrAutocommit   = 102
	autocommitOff    = 0
	autocommitOn     = 1
	isUInteger       = -5
	nts              = -3
	driverNoPrompt   = 0
	paramInput       = 1
	commit           = 0
	rollback         = 1
	freeStmtClose    = 0
	maxMessageLength = 1024
)

// Library is a loaded ODBC driver manager.
type Library struct {
	path   string
	handle uintptr

	allocHandle    uintptr
	freeHandle     uintptr
	setEnvAttr     uintptr
	driverConnect  uintptr
	disconnect     uintptr
	setConnectAttr uintptr
	endTran        uintptr
	prepare        uintptr
	execDirect     uintptr
	execute        uintptr
	bindParameter  uintptr
	paramData      uintptr
	putData        uintptr
	numResultCols  uintptr
	describeCol    uintptr
	colAttribute   uintptr
	fetch          uintptr
	getData        uintptr
	rowCount       uintptr
	cancel         uintptr
	freeStmt       uintptr
	getDiagRec     uintptr
}

var (
	defaultOnce sync.Once
	defaultLib  *Library
	defaultErr  error
)

// Default loads the driver manager once, from $SQLCLI_ODBC_LIBRARY or the
// platform search path.
func Default() (*Library, error) {
	defaultOnce.Do(func() {
		defaultLib, defaultErr = Load(os.Getenv(LibraryEnv))
	})
	return defaultLib, defaultErr
}

// candidates returns the library names tried when no path is given.
func candidates() []string {
	switch runtime.GOOS {
	case "windows":
		return []string{"odbc32.dll"}
	case "darwin":
		return []string{
			"libodbc.2.dylib",
			"libodbc.dylib",
			"/opt/homebrew/lib/libodbc.dylib",
			"/usr/local/lib/libodbc.dylib",
			"libiodbc.2.dylib",
		}
	}
	return []string{"libodbc.so.2", "libodbc.so", "libiodbc.so.2"}
}

// Load opens the driver manager at path and resolves the functions this
// package calls. An empty path searches the platform defaults.
func Load(path string) (*Library, error) {
	paths := []string{path}
	if path == "" {
		paths = candidates()
	}

	var errs []error
	for _, p := range paths {
		handle, err := openLibrary(p)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		lib := &Library{path: p, handle: handle}
		if err := lib.resolve(); err != nil {
			closeLibrary(handle)
			return nil, err
		}
		return lib, nil
	}
	return nil, fmt.Errorf("odbc: driver manager not found: %w", errors.Join(errs...))
}

func (l *Library) resolve() error {
	syms := []struct {
		name string
		fn   *uintptr
	}{
		{"SQLAllocHandle", &l.allocHandle},
		{"SQLFreeHandle", &l.freeHandle},
		{"SQLSetEnvAttr", &l.setEnvAttr},
		{"SQLDriverConnect", &l.driverConnect},
		{"SQLDisconnect", &l.disconnect},
		{"SQLSetConnectAttr", &l.setConnectAttr},
		{"SQLEndTran", &l.endTran},
		{"SQLPrepare", &l.prepare},
		{"SQLExecDirect", &l.execDirect},
		{"SQLExecute", &l.execute},
		{"SQLBindParameter", &l.bindParameter},
		{"SQLParamData", &l.paramData},
		{"SQLPutData", &l.putData},
		{"SQLNumResultCols", &l.numResultCols},
		{"SQLDescribeCol", &l.describeCol},
		{"SQLColAttribute", &l.colAttribute},
		{"SQLFetch", &l.fetch},
		{"SQLGetData", &l.getData},
		{"SQLRowCount", &l.rowCount},
		{"SQLCancel", &l.cancel},
		{"SQLFreeStmt", &l.freeStmt},
		{"SQLGetDiagRec", &l.getDiagRec},
	}
	for _, s := range syms {
		fn, err := symbol(l.handle, s.name)
		if err != nil {
			return fmt.Errorf("odbc: %s: %w", s.name, err)
		}
		*s.fn = fn
	}
	return nil
}

// Path returns the file the library was loaded from.
func (l *Library) Path() string { return l.path }

// Close unloads the library. Connections must be closed first.
func (l *Library) Close() {
	closeLibrary(l.handle)
	l.handle = 0
}

// call invokes an ODBC function and narrows its SQLRETURN.
func call(fn uintptr, args ...uintptr) sqlcli.Status {
	r, _, _ := purego.SyscallN(fn, args...)
	return sqlcli.Status(int16(r))
}

// diagnostics reads every diagnostic record of a handle.
func (l *Library) diagnostics(kind int, handle uintptr) []sqlcli.DiagRecord {
	var (
		recs   []sqlcli.DiagRecord
		state  [6]byte
		native int32
		msg    [maxMessageLength]byte
		n      int16
	)
	for rec := 1; ; rec++ {
		st := call(l.getDiagRec,
			uintptr(kind), handle, uintptr(rec),
			uintptr(unsafe.Pointer(&state[0])),
			uintptr(unsafe.Pointer(&native)),
			uintptr(unsafe.Pointer(&msg[0])),
			uintptr(len(msg)),
			uintptr(unsafe.Pointer(&n)))
		if !st.Succeeded() {
			break
		}
		recs = append(recs, sqlcli.DiagRecord{
			SQLState: cString(state[:5]),
			Native:   native,
			Message:  cString(msg[:min(int(n), len(msg))]),
		})
	}
	return recs
}

// cstr returns a NUL terminated copy of s.
func cstr(s string) []byte {
	b := make([]byte, len(s)+1)
	copy(b, s)
	return b
}

// cString trims b at its first NUL.
func cString(b []byte) string {
	for i, c := range b {
		if c == 0 {
			return string(b[:i])
		}
	}
	return string(b)
}

// word widens a signed value to a call argument. Negative lengths such as
// SQL_NTS are passed this way.
func word(n int) uintptr {
	return uintptr(n)
}
