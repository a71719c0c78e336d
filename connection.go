// Package sqlcli provides the data-marshalling core of a SQL call-level interface.
package sqlcli

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"sync"
	"sync/atomic"
)

// Connection adapts a CLI connection to database/sql/driver.Conn. Each
// query runs on its own Statement.
type Connection struct {
	cli    Conn
	opts   []Option
	closed int32
	mu     sync.Mutex
}

// NewConnection wraps cli. The options are applied to every statement the
// connection creates.
func NewConnection(cli Conn, opts ...Option) *Connection {
	return &Connection{
		cli:  cli,
		opts: opts,
	}
}

// CLI returns the underlying CLI connection.
func (c *Connection) CLI() Conn { return c.cli }

// NewStatement creates a statement on the underlying CLI connection with
// the connection's options.
func (c *Connection) NewStatement(opts ...Option) *Statement {
	all := make([]Option, 0, len(c.opts)+len(opts))
	all = append(all, c.opts...)
	all = append(all, opts...)
	return NewStatement(c.cli, all...)
}

// Close closes the connection.
func (c *Connection) Close() error {
	if !atomic.CompareAndSwapInt32(&c.closed, 0, 1) {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	return c.cli.Close()
}

// BeginTx starts a new transaction with the provided context and options.
func (c *Connection) BeginTx(ctx context.Context, opts driver.TxOptions) (driver.Tx, error) {
	if atomic.LoadInt32(&c.closed) != 0 {
		return nil, driver.ErrBadConn
	}
	if opts.ReadOnly {
		return nil, NewError(ErrNotSupported, "read-only transactions are not supported")
	}

	if t, ok := c.cli.(Transactor); ok {
		if sql.IsolationLevel(opts.Isolation) != sql.LevelDefault {
			return nil, fmt.Errorf("unsupported isolation level: %d", opts.Isolation)
		}
		c.mu.Lock()
		err := t.Begin()
		c.mu.Unlock()
		if err != nil {
			return nil, err
		}
		return &tx{conn: c}, nil
	}

	iso := "BEGIN TRANSACTION"
	switch sql.IsolationLevel(opts.Isolation) {
	case sql.LevelDefault:
	case sql.LevelSerializable:
		iso = "BEGIN TRANSACTION ISOLATION LEVEL SERIALIZABLE"
	case sql.LevelReadCommitted:
		iso = "BEGIN TRANSACTION ISOLATION LEVEL READ COMMITTED"
	case sql.LevelReadUncommitted:
		iso = "BEGIN TRANSACTION ISOLATION LEVEL READ UNCOMMITTED"
	case sql.LevelRepeatableRead:
		iso = "BEGIN TRANSACTION ISOLATION LEVEL REPEATABLE READ"
	default:
		return nil, fmt.Errorf("unsupported isolation level: %d", opts.Isolation)
	}

	if _, err := c.ExecContext(ctx, iso, nil); err != nil {
		return nil, err
	}
	return &tx{conn: c}, nil
}

// Begin starts a transaction with default options.
func (c *Connection) Begin() (driver.Tx, error) {
	return c.BeginTx(context.Background(), driver.TxOptions{})
}

// PrepareContext returns a prepared statement bound to this connection.
func (c *Connection) PrepareContext(ctx context.Context, query string) (driver.Stmt, error) {
	if atomic.LoadInt32(&c.closed) != 0 {
		return nil, driver.ErrBadConn
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return &preparedStmt{
		conn:  c,
		query: query,
		stmt:  c.NewStatement(WithPrepared(true)),
	}, nil
}

// Prepare returns a prepared statement bound to this connection.
func (c *Connection) Prepare(query string) (driver.Stmt, error) {
	return c.PrepareContext(context.Background(), query)
}

// ExecContext executes a query without returning any rows.
func (c *Connection) ExecContext(ctx context.Context, query string, args []driver.NamedValue) (driver.Result, error) {
	if atomic.LoadInt32(&c.closed) != 0 {
		return nil, driver.ErrBadConn
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	params, err := namedValues(args)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	stmt := c.NewStatement()
	defer stmt.Close()

	if err := stmt.Execute(query, params...); err != nil {
		return nil, err
	}
	return &Result{rowsAffected: stmt.RowCount()}, nil
}

// QueryContext executes a query that may return rows.
func (c *Connection) QueryContext(ctx context.Context, query string, args []driver.NamedValue) (driver.Rows, error) {
	if atomic.LoadInt32(&c.closed) != 0 {
		return nil, driver.ErrBadConn
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	params, err := namedValues(args)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	stmt := c.NewStatement()
	if err := stmt.Execute(query, params...); err != nil {
		stmt.Close()
		return nil, err
	}
	return newRows(c, stmt, true), nil
}

// Ping checks that the connection is open.
func (c *Connection) Ping(ctx context.Context) error {
	if atomic.LoadInt32(&c.closed) != 0 {
		return driver.ErrBadConn
	}
	return ctx.Err()
}

// CheckNamedValue accepts every value ValueOf can convert.
func (c *Connection) CheckNamedValue(nv *driver.NamedValue) error {
	if nv.Name != "" {
		return NewError(ErrNotSupported, "named parameters are not supported")
	}
	v, err := ValueOf(nv.Value)
	if err != nil {
		return err
	}
	nv.Value = v
	return nil
}

// namedValues orders arguments by ordinal and converts them. A query
// without arguments binds nothing.
func namedValues(args []driver.NamedValue) ([]Value, error) {
	if len(args) == 0 {
		return nil, nil
	}
	params := make([]Value, len(args))
	for _, a := range args {
		if a.Name != "" {
			return nil, NewError(ErrNotSupported, "named parameters are not supported")
		}
		if a.Ordinal < 1 || a.Ordinal > len(args) {
			return nil, errorf(ErrInterface, "parameter ordinal %d out of range", a.Ordinal)
		}
		v, err := ValueOf(a.Value)
		if err != nil {
			return nil, err
		}
		params[a.Ordinal-1] = v
	}
	return params, nil
}

// preparedStmt implements driver.Stmt on a prepare-mode Statement.
type preparedStmt struct {
	conn   *Connection
	query  string
	stmt   *Statement
	closed int32
}

func (s *preparedStmt) Close() error {
	if !atomic.CompareAndSwapInt32(&s.closed, 0, 1) {
		return nil
	}
	s.conn.mu.Lock()
	defer s.conn.mu.Unlock()
	return s.stmt.Close()
}

// NumInput returns -1: the placeholder count is known only to the server.
func (s *preparedStmt) NumInput() int { return -1 }

func (s *preparedStmt) Exec(args []driver.Value) (driver.Result, error) {
	return s.ExecContext(context.Background(), toNamed(args))
}

func (s *preparedStmt) Query(args []driver.Value) (driver.Rows, error) {
	return s.QueryContext(context.Background(), toNamed(args))
}

func (s *preparedStmt) ExecContext(ctx context.Context, args []driver.NamedValue) (driver.Result, error) {
	if err := s.check(ctx); err != nil {
		return nil, err
	}
	params, err := namedValues(args)
	if err != nil {
		return nil, err
	}

	s.conn.mu.Lock()
	defer s.conn.mu.Unlock()

	if err := s.stmt.Execute(s.query, params...); err != nil {
		return nil, err
	}
	if s.stmt.HasResultSet() {
		if err := s.stmt.Cancel(); err != nil {
			return nil, err
		}
	}
	return &Result{rowsAffected: s.stmt.RowCount()}, nil
}

func (s *preparedStmt) QueryContext(ctx context.Context, args []driver.NamedValue) (driver.Rows, error) {
	if err := s.check(ctx); err != nil {
		return nil, err
	}
	params, err := namedValues(args)
	if err != nil {
		return nil, err
	}

	s.conn.mu.Lock()
	defer s.conn.mu.Unlock()

	if err := s.stmt.Execute(s.query, params...); err != nil {
		return nil, err
	}
	return newRows(s.conn, s.stmt, false), nil
}

func (s *preparedStmt) check(ctx context.Context) error {
	if atomic.LoadInt32(&s.closed) != 0 {
		return NewError(ErrInterface, "statement is closed")
	}
	if atomic.LoadInt32(&s.conn.closed) != 0 {
		return driver.ErrBadConn
	}
	return ctx.Err()
}

func toNamed(args []driver.Value) []driver.NamedValue {
	named := make([]driver.NamedValue, len(args))
	for i, v := range args {
		named[i] = driver.NamedValue{Ordinal: i + 1, Value: v}
	}
	return named
}
