// Package sqlitecli is a call-level interface over SQLite. It implements
// the sqlcli driver primitives in process, including deferred parameter
// data and segmented GetData, so the marshalling core can be exercised
// without an ODBC driver manager.
package sqlitecli

import (
	"errors"
	"sync"

	"github.com/jmoiron/sqlx"
	sqlite3 "github.com/mattn/go-sqlite3"

	sqlcli "github.com/semihalev/go-sqlcli"
)

// DriverName is the database/sql name registered by this package.
const DriverName = "sqlcli-sqlite"

func init() {
	sqlcli.Register(DriverName, func(dsn string) (sqlcli.Conn, error) {
		return Open(dsn)
	})
}

// Stats counts the primitives a connection has served.
type Stats struct {
	Prepares     int
	ExecDirects  int
	Executes     int
	Fetches      int
	GetDataCalls int
	PutDataCalls int
	Cancels      int
	Frees        int
	// PutDataLengths holds the length of every PutData call in order.
	PutDataLengths []int
	// GetDataByColumn counts GetData calls per 0-based column index.
	GetDataByColumn map[int]int
}

// Conn is a CLI connection backed by one SQLite database.
type Conn struct {
	db *sqlx.DB

	mu    sync.Mutex
	stats Stats
}

// Open opens a SQLite database. The dsn is passed to go-sqlite3 unchanged,
// so ":memory:" and "file:..." forms work.
func Open(dsn string) (*Conn, error) {
	db, err := sqlx.Open("sqlite3", dsn)
	if err != nil {
		return nil, err
	}
	// One connection keeps in-memory databases and transactions coherent.
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}
	return &Conn{db: db}, nil
}

// DB returns the underlying database.
func (c *Conn) DB() *sqlx.DB { return c.db }

// AllocStatement returns a new statement handle.
func (c *Conn) AllocStatement() (sqlcli.StmtHandle, error) {
	if c.db == nil {
		return nil, errors.New("sqlitecli: connection is closed")
	}
	return newStmt(c), nil
}

// Close closes the database.
func (c *Conn) Close() error {
	if c.db == nil {
		return nil
	}
	err := c.db.Close()
	c.db = nil
	return err
}

// Begin starts a transaction.
func (c *Conn) Begin() error {
	_, err := c.db.Exec("BEGIN")
	return err
}

// Commit commits the current transaction.
func (c *Conn) Commit() error {
	_, err := c.db.Exec("COMMIT")
	return err
}

// Rollback rolls back the current transaction.
func (c *Conn) Rollback() error {
	_, err := c.db.Exec("ROLLBACK")
	return err
}

// Stats returns a copy of the call counters.
func (c *Conn) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := c.stats
	s.PutDataLengths = append([]int(nil), c.stats.PutDataLengths...)
	s.GetDataByColumn = make(map[int]int, len(c.stats.GetDataByColumn))
	for k, v := range c.stats.GetDataByColumn {
		s.GetDataByColumn[k] = v
	}
	return s
}

// ResetStats clears the call counters.
func (c *Conn) ResetStats() {
	c.mu.Lock()
	c.stats = Stats{}
	c.mu.Unlock()
}

func (c *Conn) count(f func(*Stats)) {
	c.mu.Lock()
	f(&c.stats)
	c.mu.Unlock()
}

// diagnose converts a database error into a diagnostic record.
func diagnose(err error) sqlcli.DiagRecord {
	var se sqlite3.Error
	if errors.As(err, &se) {
		state := "HY000"
		switch se.Code {
		case sqlite3.ErrConstraint:
			state = "23000"
		case sqlite3.ErrError:
			state = "42000"
		case sqlite3.ErrTooBig:
			state = "22001"
		case sqlite3.ErrMismatch:
			state = "22018"
		case sqlite3.ErrBusy, sqlite3.ErrLocked:
			state = "40001"
		}
		return sqlcli.DiagRecord{
			SQLState: state,
			Native:   int32(se.ExtendedCode),
			Message:  se.Error(),
		}
	}
	return sqlcli.DiagRecord{SQLState: "HY000", Message: err.Error()}
}
