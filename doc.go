/*
Package sqlcli is the data-marshalling core of a SQL call-level interface
client. It turns Go values into bound parameters, streams large inputs and
outputs in segments, and decodes result rows into Go values, all over a
single reusable statement handle.

# Overview

The package drives any driver that exposes the CLI primitives described by
the StmtHandle interface (prepare, execute, bind, fetch and the deferred
PutData/ParamData pair). Two drivers ship with the module:

1. odbc - loads an ODBC driver manager at runtime with purego, no CGO
2. sqlitecli - an in-process CLI over SQLite, used for tests and examples

On top of a driver the package offers two APIs:

1. The Statement API, with control over prepare mode and segment sizes
2. A database/sql binding through Driver, Connector and Register

# Statement API Example

	package main

	import (
		"fmt"
		"log"

		"github.com/semihalev/go-sqlcli"
		"github.com/semihalev/go-sqlcli/sqlitecli"
	)

	func main() {
		conn, err := sqlitecli.Open(":memory:")
		if err != nil {
			log.Fatalf("failed to open: %v", err)
		}
		defer conn.Close()

		stmt := sqlcli.NewStatement(conn)
		defer stmt.Close()

		if err := stmt.Execute(`CREATE TABLE docs (id INTEGER, body LONG VARCHAR)`); err != nil {
			log.Fatalf("failed to create table: %v", err)
		}
		if err := stmt.Execute(`INSERT INTO docs VALUES (?, ?)`,
			sqlcli.Int32(1), sqlcli.Text("hello")); err != nil {
			log.Fatalf("failed to insert: %v", err)
		}

		if err := stmt.Execute(`SELECT id, body FROM docs`); err != nil {
			log.Fatalf("failed to query: %v", err)
		}
		rows, err := stmt.FetchAll()
		if err != nil {
			log.Fatalf("failed to fetch: %v", err)
		}
		for _, row := range rows {
			fmt.Println(row...)
		}
	}

# Standard SQL API Example

	db, err := sql.Open("sqlcli-sqlite", ":memory:")
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer db.Close()

	rows, err := db.Query(`SELECT id, name FROM users WHERE age > ?`, 20)

# Values

Parameters are a closed set of Value variants: Int32, Int64, Float64, Text,
WideText, Binary, Null, Date, TimeOfDay, Timestamp and Decimal. ValueOf
converts plain Go values. Binary values are always sent as deferred data in
segments of 100,000 bytes unless SetInputSizes says otherwise.

Rows decode to nil, int64, float64, bool, string, []byte, time.Time and
decimal.Decimal. Long columns (LONG VARCHAR, LONG NVARCHAR, LONG VARBINARY)
are fetched in segments of 1,000,000 bytes unless SetOutputSize or
SetOutputSizeForColumn says otherwise.

# Errors

Every failure is an *Error. Use IsError to test its ErrorType; integrity
errors (SQLSTATE class 23) also match ErrData. Calls that complete with
information are not errors; their diagnostics are available from
Statement.Warnings.

# Logging

Statements log through zap. The default logger discards everything; pass
WithLogger to a statement, connection or driver to see execution and
transfer events.
*/
package sqlcli
