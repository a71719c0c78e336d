// Package sqlcli provides the data-marshalling core of a SQL call-level interface.
package sqlcli

import (
	"context"
	"database/sql"
	"database/sql/driver"
)

// OpenFunc opens a CLI connection for a data source name.
type OpenFunc func(dsn string) (Conn, error)

// Driver implements database/sql/driver.Driver on top of a CLI.
type Driver struct {
	open OpenFunc
	opts []Option
}

// NewDriver returns a driver that opens CLI connections with open. The
// options apply to every statement of every connection.
func NewDriver(open OpenFunc, opts ...Option) *Driver {
	return &Driver{open: open, opts: opts}
}

// Register makes a CLI available to database/sql under name.
func Register(name string, open OpenFunc, opts ...Option) {
	sql.Register(name, NewDriver(open, opts...))
}

// Open opens a new connection.
func (d *Driver) Open(dsn string) (driver.Conn, error) {
	cli, err := d.open(dsn)
	if err != nil {
		return nil, err
	}
	return NewConnection(cli, d.opts...), nil
}

// OpenConnector returns a connector for dsn.
func (d *Driver) OpenConnector(dsn string) (driver.Connector, error) {
	return &Connector{driver: d, dsn: dsn}, nil
}

// Connector opens connections for a fixed data source name.
type Connector struct {
	driver *Driver
	dsn    string
}

// NewConnector returns a connector usable with sql.OpenDB.
func NewConnector(open OpenFunc, dsn string, opts ...Option) *Connector {
	return &Connector{driver: NewDriver(open, opts...), dsn: dsn}
}

// Connect opens a new connection.
func (c *Connector) Connect(ctx context.Context) (driver.Conn, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return c.driver.Open(c.dsn)
}

// Driver returns the underlying driver.
func (c *Connector) Driver() driver.Driver {
	return c.driver
}
